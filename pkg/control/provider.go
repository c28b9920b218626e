package control

import (
	"context"
	"errors"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/search"
)

var (
	// ErrNotFound is returned by a LookupProvider when nothing matches a query
	ErrNotFound = errors.New("control not found")

	// ErrProviderUnavailable is returned when no automation provider is bound
	ErrProviderUnavailable = errors.New("automation provider unavailable")
)

// Handle is a located control
type Handle interface {
	Bounds() Rect
}

// Query is one lookup of a single identity link
type Query struct {
	// Identity is the link being resolved; Next is ignored by providers
	Identity *Identity

	// Anchor is the control the previous link resolved to, nil for the head
	Anchor Handle

	// Scope bounds the search relative to Anchor
	Scope search.Scope

	// Attempt is the one-based try number for this link
	Attempt int
}

// LookupProvider finds controls on screen
type LookupProvider interface {
	Find(ctx context.Context, q Query) (Handle, error)
}

// LookupFunc adapts a function to LookupProvider
type LookupFunc func(ctx context.Context, q Query) (Handle, error)

func (f LookupFunc) Find(ctx context.Context, q Query) (Handle, error) { return f(ctx, q) }

// Clock abstracts time for retry pacing
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Sleep waits for d or until ctx is done
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
