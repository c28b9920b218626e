// Package components provides the built-in workflow node kinds: processors,
// flow control, script and control actors, data and service components.
package components

import (
	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	"github.com/wehubfusion/Daedalus/pkg/scriptpath"
	"github.com/wehubfusion/Daedalus/pkg/serialization"
)

// Component kinds.
const (
	KindSequence       = "sequence"
	KindTestFixture    = "test_fixture"
	KindTestCase       = "test_case"
	KindConditional    = "conditional"
	KindLoop           = "loop"
	KindWhileLoop      = "while_loop"
	KindRepeatLoop     = "repeat_loop"
	KindBreak          = "break"
	KindScript         = "script"
	KindDelay          = "delay"
	KindLog            = "log"
	KindClickControl   = "click_control"
	KindTypeText       = "type_text"
	KindWaitForControl = "wait_for_control"
	KindVariables      = "variables"
	KindApplication    = "application"
)

func init() {
	RegisterScriptProperties(scriptpath.DefaultRegistry())
}

// NewRegistry creates a serialization registry with every built-in kind.
func NewRegistry() *serialization.Registry {
	r := serialization.NewRegistry()
	RegisterKinds(r)
	return r
}

// RegisterKinds registers the built-in kinds on r.
func RegisterKinds(r *serialization.Registry) {
	r.Register(KindSequence, func(name string) entity.Component { return NewSequence(name) })
	r.Register(KindTestFixture, func(name string) entity.Component { return NewTestFixture(name) })
	r.Register(KindTestCase, func(name string) entity.Component { return NewTestCase(name) })
	r.Register(KindConditional, func(name string) entity.Component { return NewConditional(name) })
	r.Register(KindLoop, func(name string) entity.Component { return NewLoop(name) })
	r.Register(KindWhileLoop, func(name string) entity.Component { return NewWhileLoop(name) })
	r.Register(KindRepeatLoop, func(name string) entity.Component { return NewRepeatLoop(name) })
	r.Register(KindBreak, func(name string) entity.Component { return NewBreak(name) })
	r.Register(KindScript, func(name string) entity.Component { return NewScriptActor(name) })
	r.Register(KindDelay, func(name string) entity.Component { return NewDelay(name) })
	r.Register(KindLog, func(name string) entity.Component { return NewLog(name) })
	r.Register(KindClickControl, func(name string) entity.Component { return NewClickControl(name) })
	r.Register(KindTypeText, func(name string) entity.Component { return NewTypeText(name) })
	r.Register(KindWaitForControl, func(name string) entity.Component { return NewWaitForControl(name) })
	r.Register(KindVariables, func(name string) entity.Component { return NewVariables(name) })
	r.Register(KindApplication, func(name string) entity.Component { return NewApplication(name) })
}

// RegisterScriptProperties declares the script-valued properties of the
// built-in kinds on r.
func RegisterScriptProperties(r *scriptpath.Registry) {
	r.Register(KindConditional, scriptpath.ArgumentProperty("condition", func(c entity.Component) *argument.Argument {
		return c.(*Conditional).Condition
	}))
	r.Register(KindWhileLoop, scriptpath.ArgumentProperty("condition", func(c entity.Component) *argument.Argument {
		return c.(*WhileLoop).Condition
	}))
	r.Register(KindRepeatLoop, scriptpath.ArgumentProperty("count", func(c entity.Component) *argument.Argument {
		return c.(*RepeatLoop).Count
	}))
	r.Register(KindScript, scriptpath.FileProperty("scriptFile", func(c entity.Component) *string {
		return &c.(*ScriptActor).ScriptFile
	}))
	r.Register(KindDelay, scriptpath.ArgumentProperty("duration", func(c entity.Component) *argument.Argument {
		return c.(*Delay).Duration
	}))
	r.Register(KindLog, scriptpath.ArgumentProperty("message", func(c entity.Component) *argument.Argument {
		return c.(*Log).Message
	}))
	r.Register(KindTypeText, scriptpath.ArgumentProperty("text", func(c entity.Component) *argument.Argument {
		return c.(*TypeText).Text
	}))
	r.Register(KindWaitForControl, scriptpath.ArgumentProperty("timeout", func(c entity.Component) *argument.Argument {
		return c.(*WaitForControl).Timeout
	}))
}
