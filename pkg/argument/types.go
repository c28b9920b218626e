package argument

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// ErrTypeMismatch is returned when a resolved value cannot be coerced to the expected type.
var ErrTypeMismatch = errors.New("value does not match expected type")

// Type is the declared value type of an argument.
type Type string

const (
	TypeAny      Type = "any"
	TypeString   Type = "string"
	TypeBool     Type = "bool"
	TypeInt      Type = "int"
	TypeFloat    Type = "float"
	TypeDuration Type = "duration"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeAny, TypeString, TypeBool, TypeInt, TypeFloat, TypeDuration:
		return true
	}
	return false
}

// Coerce converts value to t. Durations accept Go duration strings or a
// number of milliseconds. A nil value only satisfies TypeAny; it is never
// turned into a zero value.
func Coerce(value any, t Type) (any, error) {
	var (
		out any
		err error
	)
	switch t {
	case "", TypeAny:
		return value, nil
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrTypeMismatch, t)
	}
	if value == nil {
		return nil, fmt.Errorf("%w: no value (null or undefined) for %s", ErrTypeMismatch, t)
	}

	switch t {
	case TypeString:
		out, err = cast.ToStringE(value)
	case TypeBool:
		out, err = cast.ToBoolE(value)
	case TypeInt:
		out, err = cast.ToIntE(value)
	case TypeFloat:
		out, err = cast.ToFloat64E(value)
	case TypeDuration:
		out, err = toDuration(value)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v (%T) as %s: %v", ErrTypeMismatch, value, value, t, err)
	}
	return out, nil
}

func toDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		return cast.ToDurationE(v)
	default:
		ms, err := cast.ToInt64E(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
}
