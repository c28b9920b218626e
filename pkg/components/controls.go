package components

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/control"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// target is the control a control actor operates on.
type target struct {
	Target *control.Identity `json:"target,omitempty"`
}

func (t *target) validateTarget(name string) error {
	if t.Target == nil {
		return derrors.NewArgumentNotConfiguredError(fmt.Sprintf("%q has no target control", name), nil)
	}
	return t.Target.Validate()
}

// identity returns a copy of the target chain bound to the current
// application where a link names none.
func (t *target) identity(rc *engine.RunContext) *control.Identity {
	id := t.Target.Clone()
	app := rc.Application()
	if app == nil {
		return id
	}
	for _, link := range id.Links() {
		if link.ApplicationID == "" {
			link.ApplicationID = app.ID()
		}
	}
	return id
}

// ClickControl clicks the clickable point of a control.
type ClickControl struct {
	entity.Base
	target
	Button control.MouseButton `json:"button,omitempty"`
	Count  int                 `json:"count,omitempty"`

	clicked control.Point
}

// NewClickControl creates a single left click actor.
func NewClickControl(name string) *ClickControl {
	c := &ClickControl{Button: control.ButtonLeft, Count: 1}
	c.Base = entity.NewBase(c, KindClickControl, name)
	return c
}

// Click creates a single left click on id.
func Click(name string, id *control.Identity) *ClickControl {
	c := NewClickControl(name)
	c.Target = id
	return c
}

// Clicked returns the point clicked by the last run.
func (c *ClickControl) Clicked() control.Point {
	return c.clicked
}

func (c *ClickControl) Validate() error {
	if c.Count < 0 {
		return derrors.NewArgumentNotConfiguredError(fmt.Sprintf("click count %d is negative", c.Count), nil)
	}
	return c.validateTarget(c.Name())
}

func (c *ClickControl) Act(ctx context.Context, rc *engine.RunContext) error {
	p, _, err := rc.Controls.ResolvePoint(ctx, c.identity(rc))
	if err != nil {
		return err
	}
	button := c.Button
	if button == "" {
		button = control.ButtonLeft
	}
	count := c.Count
	if count == 0 {
		count = 1
	}
	if err := rc.Devices.Mouse.Click(ctx, p, button, count); err != nil {
		return fmt.Errorf("click at %s: %w", p, err)
	}
	c.clicked = p
	return nil
}

// TypeText types resolved text, optionally focusing a control first, and
// then presses the named keys.
type TypeText struct {
	entity.Base
	target
	Text *argument.Argument `json:"text"`
	Keys []string           `json:"keys,omitempty"`

	text string
}

// NewTypeText creates a typing actor with no target.
func NewTypeText(name string) *TypeText {
	t := &TypeText{Text: argument.Literal("").Typed(argument.TypeString)}
	t.Base = entity.NewBase(t, KindTypeText, name)
	return t
}

func (t *TypeText) Validate() error {
	for _, k := range t.Keys {
		if _, ok := control.Keys[k]; !ok {
			return derrors.NewArgumentNotConfiguredError(fmt.Sprintf("unknown key %q", k), nil)
		}
	}
	if t.Target != nil {
		if err := t.Target.Validate(); err != nil {
			return err
		}
	}
	return t.Text.Validate()
}

func (t *TypeText) ResolveArguments(ctx context.Context, rc *engine.RunContext) error {
	text, err := rc.ResolveString(ctx, t.Text)
	if err != nil {
		return err
	}
	t.text = text
	return nil
}

func (t *TypeText) Act(ctx context.Context, rc *engine.RunContext) error {
	if t.Target != nil {
		p, _, err := rc.Controls.ResolvePoint(ctx, t.identity(rc))
		if err != nil {
			return err
		}
		if err := rc.Devices.Mouse.Click(ctx, p, control.ButtonLeft, 1); err != nil {
			return fmt.Errorf("focus at %s: %w", p, err)
		}
	}
	if t.text != "" {
		if err := rc.Devices.Keyboard.Type(ctx, t.text); err != nil {
			return fmt.Errorf("type: %w", err)
		}
	}
	if len(t.Keys) > 0 {
		codes := make([]string, len(t.Keys))
		for i, k := range t.Keys {
			codes[i] = control.Keys[k]
		}
		if err := rc.Devices.Keyboard.Press(ctx, codes...); err != nil {
			return fmt.Errorf("press %v: %w", t.Keys, err)
		}
	}
	return nil
}

// WaitForControl waits until a control can be resolved. With a Timeout the
// wait is bounded; otherwise the target's own retry settings apply. The
// found bounds can be stored in the model under ResultVariable.
type WaitForControl struct {
	entity.Base
	target
	Timeout        *argument.Argument `json:"timeout,omitempty"`
	ResultVariable string             `json:"resultVariable,omitempty"`

	timeout time.Duration
	found   control.Rect
}

// NewWaitForControl creates a wait actor without a timeout.
func NewWaitForControl(name string) *WaitForControl {
	w := &WaitForControl{}
	w.Base = entity.NewBase(w, KindWaitForControl, name)
	return w
}

// Found returns the bounds of the control found by the last run.
func (w *WaitForControl) Found() control.Rect {
	return w.found
}

func (w *WaitForControl) Validate() error {
	if w.Timeout != nil {
		if err := w.Timeout.Validate(); err != nil {
			return err
		}
	}
	return w.validateTarget(w.Name())
}

func (w *WaitForControl) Reset() {
	w.found = control.Rect{}
}

func (w *WaitForControl) ResolveArguments(ctx context.Context, rc *engine.RunContext) error {
	w.timeout = 0
	if w.Timeout == nil {
		return nil
	}
	d, err := rc.ResolveDuration(ctx, w.Timeout)
	if err != nil {
		return err
	}
	w.timeout = d
	return nil
}

func (w *WaitForControl) Act(ctx context.Context, rc *engine.RunContext) error {
	waitCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	h, err := rc.Controls.Resolve(waitCtx, w.identity(rc))
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return derrors.NewElementNotFoundError(
				fmt.Sprintf("%s did not appear within %s", w.Target.Name, w.timeout), err)
		}
		return err
	}

	w.found = h.Bounds()
	rc.Logger.Debug("Control appeared",
		zap.String("node_name", w.Name()),
		zap.String("control", w.Target.String()))
	if w.ResultVariable != "" {
		rc.SetVariable(w.ResultVariable, map[string]any{
			"x":      w.found.X,
			"y":      w.found.Y,
			"width":  w.found.Width,
			"height": w.found.Height,
		})
	}
	return nil
}

var (
	_ engine.Actor          = (*ClickControl)(nil)
	_ engine.ArgumentBinder = (*TypeText)(nil)
	_ engine.ArgumentBinder = (*WaitForControl)(nil)
)
