package components_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/control"
	"github.com/wehubfusion/Daedalus/pkg/control/fake"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/scripting"
)

func logStep(name string) *components.Log {
	l := components.NewLog(name)
	l.Message = argument.Literal(name).Typed(argument.TypeString)
	return l
}

func add(t *testing.T, parent entity.Container, children ...entity.Component) {
	t.Helper()
	for _, c := range children {
		require.NoError(t, parent.AsEntity().AddComponent(c))
	}
}

func run(t *testing.T, root entity.Component, env engine.Environment) (*engine.RunReport, *engine.Recorder, error) {
	t.Helper()
	rec := &engine.Recorder{}
	env.Listeners = append(env.Listeners, rec)
	report, err := engine.NewProcessor(engine.DefaultConfig()).Run(context.Background(), root, env)
	return report, rec, err
}

func scriptEngine(t *testing.T, files map[string]string) *scripting.Engine {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	cfg := scripting.DefaultConfig()
	cfg.ScriptsDir = dir
	eng, err := scripting.NewEngine(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestConditional_StructuralChildren(t *testing.T) {
	c := components.NewConditional("if")
	assert.Equal(t, 0, c.ChildCount())

	c.ResolveDependencies()
	c.ResolveDependencies()
	require.Equal(t, 2, c.ChildCount())
	children := c.Children()
	assert.Equal(t, components.ThenBranch, children[0].Name())
	assert.Equal(t, components.ElseBranch, children[1].Name())

	then := c.Then()
	require.NotNil(t, then)
	assert.Same(t, then, c.Then())
	assert.Equal(t, 2, c.ChildCount())
}

func TestConditional_SelectsBranch(t *testing.T) {
	tests := []struct {
		name string
		cond *components.Conditional
		want []string
	}{
		{name: "literal true", cond: components.If("if", argument.Literal(true)), want: []string{"then-1", "then-2"}},
		{name: "literal false", cond: components.If("if", argument.Literal(false)), want: []string{"else-1"}},
		{name: "property", cond: components.If("if", argument.Property("ready")), want: []string{"then-1", "then-2"}},
		{name: "expression", cond: components.IfExpr("if", "attempts > 2"), want: []string{"else-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			add(t, tt.cond.Then(), logStep("then-1"), logStep("then-2"))
			add(t, tt.cond.Else(), logStep("else-1"))

			_, rec, err := run(t, tt.cond, engine.Environment{
				Model: map[string]any{"ready": true, "attempts": 1},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Names())
		})
	}
}

func TestConditional_BranchThatIsNotAContainer(t *testing.T) {
	c := components.If("if", argument.Literal(true))
	require.NoError(t, c.RemoveComponent(c.Then()))
	require.NoError(t, c.InsertComponent(0, logStep(components.ThenBranch)))

	report, _, err := run(t, c, engine.Environment{})
	require.NoError(t, err)
	require.Len(t, report.Failures(), 1)
	assert.True(t, derrors.IsMissingComponent(report.Failures()[0].Err))
	assert.Equal(t, engine.PhaseBranch, report.Failures()[0].Phase)
}

func TestConditional_RequiresCondition(t *testing.T) {
	c := components.NewConditional("if")
	assert.True(t, derrors.IsArgumentNotConfigured(c.Validate()))

	c.Condition = argument.Literal(true)
	c.Expression = "true"
	assert.True(t, derrors.IsArgumentNotConfigured(c.Validate()))
}

func TestBreak_ExitsLoopFromNestedConditional(t *testing.T) {
	loop := components.NewLoop("loop")
	cond := components.IfExpr("stop?", "true")
	add(t, cond.Then(), components.NewBreak("break"))
	add(t, loop, logStep("before"), cond, logStep("after"))

	report, rec, err := run(t, loop, engine.Environment{})
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "break"}, rec.Names())
	assert.True(t, loop.ShouldExit())
	assert.Equal(t, 1, loop.Iterations())
	assert.Equal(t, engine.OutcomePassed, report.Outcome)
}

func TestBreak_OutsideLoopIsConfigurationError(t *testing.T) {
	seq := components.NewSequence("main")
	add(t, seq, components.NewBreak("break"), logStep("never"))

	report, rec, err := run(t, seq, engine.Environment{})
	require.Error(t, err)
	assert.True(t, derrors.IsConfiguration(err))
	assert.Equal(t, []string{"break"}, rec.Names())
	assert.Equal(t, engine.OutcomeFailed, report.Outcome)
}

func TestRepeatLoop(t *testing.T) {
	loop := components.Repeat("thrice", 3)
	add(t, loop, logStep("tick"))

	_, rec, err := run(t, loop, engine.Environment{})
	require.NoError(t, err)
	assert.Equal(t, []string{"tick", "tick", "tick"}, rec.Names())
	assert.Equal(t, 3, loop.Iterations())

	loop.Count = argument.Literal(-1).Typed(argument.TypeInt)
	report, _, err := run(t, loop, engine.Environment{})
	require.NoError(t, err)
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, engine.PhaseIteration, report.Failures()[0].Phase)
}

func TestWhileLoop_WithScriptCounter(t *testing.T) {
	eng := scriptEngine(t, map[string]string{"inc.js": "model.counter + 1"})

	loop := components.NewWhileLoop("while")
	loop.Expression = "counter < 3"
	inc := components.NewScriptActor("inc")
	inc.ScriptFile = "inc.js"
	inc.ResultVariable = "counter"
	add(t, loop, inc)

	model := map[string]any{"counter": 0}
	_, rec, err := run(t, loop, engine.Environment{Scripts: eng, Model: model})
	require.NoError(t, err)
	assert.Len(t, rec.Names(), 3)
	assert.EqualValues(t, 3, model["counter"])
	assert.Equal(t, 3, loop.Iterations())
}

func TestScriptedArgument_MissingFile(t *testing.T) {
	eng := scriptEngine(t, nil)
	l := components.NewLog("log")
	l.Message = argument.Script("missing.js").Typed(argument.TypeString)

	report, _, err := run(t, l, engine.Environment{Scripts: eng})
	require.NoError(t, err)
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, engine.PhaseArguments, failures[0].Phase)
	assert.ErrorIs(t, failures[0].Err, scripting.ErrScriptNotFound)
	assert.True(t, derrors.IsArgumentNotConfigured(failures[0].Err))
}

func TestScriptActor_WithoutEngine(t *testing.T) {
	s := components.NewScriptActor("s")
	s.ScriptFile = "a.js"

	report, _, err := run(t, s, engine.Environment{})
	require.NoError(t, err)
	require.Len(t, report.Failures(), 1)
	assert.True(t, derrors.IsConfiguration(report.Failures()[0].Err))
	assert.Equal(t, engine.OutcomeFailed, report.Outcome)
}

func TestTestCase_AggregatesFailures(t *testing.T) {
	fixture := components.NewTestFixture("fixture")
	failing := components.NewTestCase("failing")
	passing := components.NewTestCase("passing")
	add(t, failing, components.Click("click", control.NewIdentity("OK")), logStep("still-runs"))
	add(t, passing, logStep("fine"))
	add(t, fixture, failing, passing)

	report, rec, err := run(t, fixture, engine.Environment{})
	require.NoError(t, err)
	assert.Equal(t, []string{"click", "still-runs", "fine"}, rec.Names())

	assert.False(t, failing.Passed())
	assert.Equal(t, 1, failing.Failures())
	assert.True(t, passing.Passed())
	assert.False(t, fixture.Passed())
	assert.Equal(t, 3, fixture.ResultCount())
	assert.ErrorIs(t, report.Failures()[0].Err, control.ErrProviderUnavailable)
}

func TestTestFixture_MisconfiguredStepFailsOnlyItsCase(t *testing.T) {
	tests := []struct {
		name  string
		step  func() entity.Component
		phase engine.Phase
	}{
		{
			name: "invalid identity",
			step: func() entity.Component {
				id := control.NewIdentity("OK")
				id.Index = -1
				return components.Click("bad-step", id)
			},
			phase: engine.PhaseValidate,
		},
		{
			name: "unresolved property",
			step: func() entity.Component {
				l := components.NewLog("bad-step")
				l.Message = argument.Property("missing").Typed(argument.TypeString)
				return l
			},
			phase: engine.PhaseArguments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := components.NewTestFixture("fixture")
			bad := components.NewTestCase("bad")
			good := components.NewTestCase("good")
			add(t, bad, tt.step())
			add(t, good, logStep("sibling-case"))
			add(t, fixture, bad, good)

			report, rec, err := run(t, fixture, engine.Environment{Model: map[string]any{}})
			require.NoError(t, err)
			assert.Equal(t, []string{"bad-step", "sibling-case"}, rec.Names())
			assert.False(t, bad.Passed())
			assert.True(t, good.Passed())
			assert.Equal(t, engine.OutcomeFailed, report.Outcome)

			failures := report.Failures()
			require.Len(t, failures, 1)
			assert.Equal(t, tt.phase, failures[0].Phase)
			assert.True(t, derrors.IsConfiguration(failures[0].Err))
		})
	}
}

func TestPropertyArgument_UnencodableModelValue(t *testing.T) {
	l := components.NewLog("greet")
	l.Message = argument.Property("greeting").Typed(argument.TypeString)

	report, _, err := run(t, l, engine.Environment{
		Model: map[string]any{"greeting": "hello", "ratio": math.NaN()},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePassed, report.Outcome)
	assert.Equal(t, "hello", l.LastMessage())
}

func TestConditional_UndefinedScriptResultFails(t *testing.T) {
	eng := scriptEngine(t, map[string]string{"cond.js": "var ready = true;"})
	c := components.If("if", argument.Script("cond.js"))
	add(t, c.Then(), logStep("then"))
	add(t, c.Else(), logStep("else"))

	report, rec, err := run(t, c, engine.Environment{Scripts: eng})
	require.NoError(t, err)
	assert.Equal(t, []string{"if"}, rec.Names())

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, engine.PhaseBranch, failures[0].Phase)
	assert.ErrorIs(t, failures[0].Err, argument.ErrTypeMismatch)
}

func TestConditional_ExpressionMustCompile(t *testing.T) {
	c := components.IfExpr("if", "attempts >")
	assert.True(t, derrors.IsArgumentNotConfigured(c.Validate()))

	add(t, c.Then(), logStep("then"))
	report, rec, err := run(t, c, engine.Environment{})
	require.NoError(t, err)
	assert.Equal(t, []string{"if"}, rec.Names())
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, engine.PhaseValidate, report.Failures()[0].Phase)
}

func TestTestCase_StopsOnError(t *testing.T) {
	tc := components.NewTestCase("strict")
	tc.ErrorMode = engine.ErrorModeStop
	add(t, tc, components.Click("click", control.NewIdentity("OK")), logStep("skipped"))

	_, rec, err := run(t, tc, engine.Environment{})
	require.NoError(t, err)
	assert.Equal(t, []string{"click"}, rec.Names())
}

func TestApplication_BindsControlActors(t *testing.T) {
	provider := fake.NewProvider(
		&fake.Element{Name: "Window", Box: control.Rect{X: 0, Y: 0, Width: 800, Height: 600}},
		&fake.Element{Name: "Name", Parent: "Window", Box: control.Rect{X: 10, Y: 20, Width: 200, Height: 30}},
		&fake.Element{Name: "OK", Parent: "Window", Box: control.Rect{X: 100, Y: 100, Width: 80, Height: 20}},
	)
	devices, mouse, keyboard, apps := fake.Devices(provider)

	app := components.NewApplication("editor")
	app.Launch = control.LaunchSpec{ID: "editor", Path: "/usr/bin/editor"}

	typing := components.NewTypeText("type name")
	typing.Target = control.NewIdentity("Window").Then(control.NewIdentity("Name"))
	typing.Text = argument.Property("user.name").Typed(argument.TypeString)
	typing.Keys = []string{"Tab"}

	click := components.Click("ok", control.NewIdentity("OK"))
	click.Target.OffsetX = 10

	add(t, app, typing, click)

	_, _, err := run(t, app, engine.Environment{
		Devices: devices,
		Model:   map[string]any{"user": map[string]any{"name": "Ada"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Ada"}, keyboard.Typed)
	assert.Equal(t, [][]string{{control.Keys["Tab"]}}, keyboard.Pressed)
	require.Len(t, mouse.Clicks, 2)
	assert.Equal(t, control.Point{X: 110, Y: 35}, mouse.Clicks[0].Point)
	assert.Equal(t, control.Point{X: 150, Y: 110}, mouse.Clicks[1].Point)
	assert.Equal(t, control.Point{X: 150, Y: 110}, click.Clicked())

	for _, q := range provider.Queries() {
		assert.Equal(t, "editor", q.Identity.ApplicationID)
	}
	assert.Empty(t, click.Target.ApplicationID, "the authored identity is not modified")

	require.Len(t, apps.Launched, 1)
	assert.True(t, apps.Launched[0].Closed)
	assert.Nil(t, app.Handle())
}

func TestWaitForControl_RetriesOnClock(t *testing.T) {
	provider := fake.NewProvider(&fake.Element{
		Name:           "Spinner",
		Box:            control.Rect{X: 5, Y: 5, Width: 10, Height: 10},
		AvailableAfter: 2,
	})
	devices, _, _, _ := fake.Devices(provider)
	clock := fake.NewClock(time.Unix(0, 0))

	wait := components.NewWaitForControl("wait")
	wait.Target = control.NewIdentity("Spinner").WithRetry(5, 200*time.Millisecond)
	wait.ResultVariable = "spinner"

	model := map[string]any{}
	_, _, err := run(t, wait, engine.Environment{Devices: devices, Clock: clock, Model: model})
	require.NoError(t, err)

	assert.Equal(t, 3, provider.Calls("Spinner"))
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, clock.Sleeps())
	assert.Equal(t, control.Rect{X: 5, Y: 5, Width: 10, Height: 10}, wait.Found())
	assert.Equal(t, map[string]any{"x": 5, "y": 5, "width": 10, "height": 10}, model["spinner"])
}

func TestWaitForControl_NotFound(t *testing.T) {
	devices, _, _, _ := fake.Devices(fake.NewProvider())
	wait := components.NewWaitForControl("wait")
	wait.Target = control.NewIdentity("Ghost").WithRetry(2, time.Millisecond)

	report, _, err := run(t, wait, engine.Environment{Devices: devices, Clock: fake.NewClock(time.Unix(0, 0))})
	require.NoError(t, err)
	require.Len(t, report.Failures(), 1)
	assert.True(t, derrors.IsElementNotFound(report.Failures()[0].Err))
}

func TestDelay_UsesRunClock(t *testing.T) {
	clock := fake.NewClock(time.Unix(0, 0))
	d := components.NewDelay("pause")
	d.Duration = argument.Literal(250).Typed(argument.TypeDuration)

	_, _, err := run(t, d, engine.Environment{Clock: clock})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, clock.Sleeps())
}

func TestVariables_PublishIntoModel(t *testing.T) {
	seq := components.NewSequence("main")
	vars := components.NewVariables("vars").
		Set("greeting", argument.Literal("hello")).
		Set("retries", argument.Literal("3").Typed(argument.TypeInt))
	greet := components.NewLog("greet")
	greet.Message = argument.Property("greeting").Typed(argument.TypeString)
	add(t, seq, vars, greet)

	model := map[string]any{}
	_, _, err := run(t, seq, engine.Environment{Model: model})
	require.NoError(t, err)
	assert.Equal(t, "hello", model["greeting"])
	assert.Equal(t, 3, model["retries"])
	assert.Equal(t, "hello", greet.LastMessage())
}

func TestInputReferences(t *testing.T) {
	cfg := scripting.DefaultConfig()
	cfg.ScriptsDir = t.TempDir()
	eng, err := scripting.NewEngine(cfg, scripting.WithReferences(components.InputReferences()))
	require.NoError(t, err)
	defer eng.Close()

	v, err := eng.Evaluate(context.Background(), scripting.Inline("Keys.Enter + ':' + Pivots.TopLeft"), nil)
	require.NoError(t, err)
	assert.Equal(t, control.Keys["Enter"]+":top_left", v)
}

func TestCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq := components.NewSequence("main")
	add(t, seq, logStep("never"))
	report, err := engine.NewProcessor(engine.DefaultConfig()).Run(ctx, seq, engine.Environment{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, engine.OutcomeCancelled, report.Outcome)
}
