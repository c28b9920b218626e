package scriptpath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/wehubfusion/Daedalus/pkg/entity"
)

// Extension is the file extension of generated script files.
const Extension = ".js"

// Assignment records a script path given to a component property.
type Assignment struct {
	ComponentID string `json:"componentId"`
	Component   string `json:"component"`
	Kind        string `json:"kind"`
	Property    string `json:"property"`
	Path        string `json:"path"`
}

// Initializer gives every unset script-valued property a fresh file path
// relative to the scripts directory.
type Initializer struct {
	paths       PathProvider
	registry    *Registry
	logger      *zap.Logger
	createFiles bool
}

// Option configures an Initializer.
type Option func(*Initializer)

// WithRegistry uses r instead of the default registry.
func WithRegistry(r *Registry) Option {
	return func(i *Initializer) {
		if r != nil {
			i.registry = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Initializer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithCreateFiles creates an empty script file for each assignment.
func WithCreateFiles(create bool) Option {
	return func(i *Initializer) {
		i.createFiles = create
	}
}

// NewInitializer creates an initializer.
func NewInitializer(paths PathProvider, opts ...Option) *Initializer {
	i := &Initializer{
		paths:    paths,
		registry: defaultRegistry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Initialize assigns paths across the whole tree rooted at root.
func (i *Initializer) Initialize(root entity.Component) ([]Assignment, error) {
	var (
		out []Assignment
		err error
	)
	entity.Walk(root, func(c entity.Component) bool {
		if err != nil {
			return false
		}
		var assigned []Assignment
		assigned, err = i.InitializeComponent(c)
		out = append(out, assigned...)
		return err == nil
	})
	return out, err
}

// InitializeComponent assigns paths to c's unset script-valued properties.
// Properties that already name a file are left alone.
func (i *Initializer) InitializeComponent(c entity.Component) ([]Assignment, error) {
	props := i.registry.Properties(c.Kind())
	if len(props) == 0 {
		return nil, nil
	}

	scope := Scope(c)
	var out []Assignment
	for _, prop := range props {
		target := prop.Path(entity.Self(c))
		if target == nil || *target != "" {
			continue
		}

		rel := path.Join(scope, uuid.NewString()+Extension)
		if i.createFiles {
			if err := i.create(scope, rel); err != nil {
				return out, err
			}
		}
		*target = rel

		i.logger.Debug("Assigned script path",
			zap.String("component_id", c.ID()),
			zap.String("component", c.Name()),
			zap.String("property", prop.Name),
			zap.String("path", rel))
		out = append(out, Assignment{
			ComponentID: c.ID(),
			Component:   c.Name(),
			Kind:        c.Kind(),
			Property:    prop.Name,
			Path:        rel,
		})
	}
	return out, nil
}

func (i *Initializer) create(scope, rel string) error {
	dir := i.paths.ScopedDirectory(scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create script directory %s: %w", dir, err)
	}
	full := filepath.Join(i.paths.ScriptsDirectory(), filepath.FromSlash(rel))
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("script file %s already exists: %w", full, err)
		}
		return fmt.Errorf("failed to create script file %s: %w", full, err)
	}
	return f.Close()
}

// Scope returns the slash-separated scope of c: the normalized tags of its
// tagged ancestors from the root down, followed by c's own tag.
func Scope(c entity.Component) string {
	var segments []string
	if tag := ownTag(c); tag != "" {
		segments = append(segments, Normalize(tag))
	}
	for o := c.Owner(); o != nil; o = o.Owner() {
		if o.Tag() != "" {
			segments = append(segments, Normalize(o.Tag()))
		}
	}
	for l, r := 0, len(segments)-1; l < r; l, r = l+1, r-1 {
		segments[l], segments[r] = segments[r], segments[l]
	}
	return strings.Join(segments, "/")
}

func ownTag(c entity.Component) string {
	if e, ok := entity.AsEntity(c); ok {
		return e.Tag()
	}
	return ""
}

// Normalize turns a display name into a lowercase path segment made of
// letters, digits and single dashes.
func Normalize(name string) string {
	// casers and transformers are stateful, so each call gets its own
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	folded = cases.Lower(language.Und).String(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
