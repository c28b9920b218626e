package control

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/search"
)

// LinkError identifies the chain link that could not be resolved
type LinkError struct {
	// Position is the one-based index of the link in the chain
	Position int

	// Length is the number of links in the chain
	Length int

	// Identity is the failing link
	Identity *Identity

	// Attempts is the number of lookups made for the link
	Attempts int

	// Err is the last lookup error
	Err error
}

func (e *LinkError) Error() string {
	msg := fmt.Sprintf("control %q (link %d of %d) not found after %d attempt(s)",
		e.Identity.Name, e.Position, e.Length, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LinkError) Unwrap() error { return e.Err }

// Resolver resolves identity chains through a LookupProvider
type Resolver struct {
	provider LookupProvider
	clock    Clock
	logger   *zap.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithClock sets the clock used between retries
func WithClock(clock Clock) ResolverOption {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the resolver logger
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver. A nil provider resolves nothing.
func NewResolver(provider LookupProvider, opts ...ResolverOption) *Resolver {
	if provider == nil {
		provider = Unavailable{}
	}
	r := &Resolver{
		provider: provider,
		clock:    SystemClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve walks the chain from head. Each link is looked up relative to the
// previous link's control; the last link's control is returned. A link that
// misses on every try fails the whole chain with an element-not-found error.
func (r *Resolver) Resolve(ctx context.Context, head *Identity) (Handle, error) {
	if head == nil {
		return nil, derrors.NewConfigurationError("control identity is not set", nil)
	}
	if err := head.Validate(); err != nil {
		return nil, err
	}

	length := head.Len()
	var anchor Handle
	pos := 0
	for link := head; link != nil; link = link.Next {
		pos++
		h, err := r.resolveLink(ctx, link, anchor, pos, length)
		if err != nil {
			return nil, err
		}
		anchor = h
	}
	return anchor, nil
}

// ResolvePoint resolves the chain and returns the clickable point of the
// resolved control using the last link's pivot and offsets.
func (r *Resolver) ResolvePoint(ctx context.Context, head *Identity) (Point, Handle, error) {
	h, err := r.Resolve(ctx, head)
	if err != nil {
		return Point{}, nil, err
	}
	return ClickablePoint(h.Bounds(), head.Last()), h, nil
}

func (r *Resolver) resolveLink(ctx context.Context, link *Identity, anchor Handle, pos, length int) (Handle, error) {
	scope := link.Scope
	if scope.IsEmpty() {
		scope = search.Descendants
	}
	tries := link.Tries()

	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		h, err := r.provider.Find(ctx, Query{Identity: link, Anchor: anchor, Scope: scope, Attempt: attempt})
		if err == nil && h != nil {
			return h, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil {
			err = ErrNotFound
		}
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
		lastErr = err

		r.logger.Debug("Control lookup missed",
			zap.String("control", link.Name),
			zap.Int("link", pos),
			zap.Int("attempt", attempt),
			zap.Int("tries", tries),
			zap.Error(err))

		if attempt < tries {
			if err := r.clock.Sleep(ctx, link.RetryDelay()); err != nil {
				return nil, err
			}
		}
	}

	linkErr := &LinkError{Position: pos, Length: length, Identity: link, Attempts: tries, Err: lastErr}
	return nil, derrors.NewElementNotFoundError(fmt.Sprintf("failed to resolve %s", describeLink(link)), linkErr)
}

func describeLink(link *Identity) string {
	if link.Name != "" {
		return fmt.Sprintf("control %q", link.Name)
	}
	if len(link.Attributes) > 0 {
		return fmt.Sprintf("control with %s=%q", link.Attributes[0].Name, link.Attributes[0].Value)
	}
	return "control"
}
