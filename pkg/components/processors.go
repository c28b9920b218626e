package components

import (
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/entity"
)

// aggregate is the pass/fail state shared by the processor kinds.
type aggregate struct {
	// ErrorMode overrides the engine's stop-on-error policy for this subtree
	ErrorMode engine.ErrorMode `json:"onError,omitempty"`

	results  int
	failures int
}

func (a *aggregate) RecordResult(passed bool) {
	a.results++
	if !passed {
		a.failures++
	}
}

func (a *aggregate) Passed() bool { return a.failures == 0 }

func (a *aggregate) ResultCount() int { return a.results }

// Failures returns the number of failed results recorded since the last reset.
func (a *aggregate) Failures() int { return a.failures }

func (a *aggregate) OnError() engine.ErrorMode { return a.ErrorMode }

func (a *aggregate) Reset() {
	a.results = 0
	a.failures = 0
}

// Sequence runs its children in order and aggregates their results.
type Sequence struct {
	*entity.Entity
	aggregate
}

// NewSequence creates a sequence.
func NewSequence(name string) *Sequence {
	s := &Sequence{}
	s.Entity = entity.NewEntity(s, KindSequence, name)
	return s
}

// TestFixture groups test cases that share setup.
type TestFixture struct {
	*entity.Entity
	aggregate
	Description string `json:"description,omitempty"`
}

// NewTestFixture creates a test fixture.
func NewTestFixture(name string) *TestFixture {
	f := &TestFixture{}
	f.Entity = entity.NewEntity(f, KindTestFixture, name)
	return f
}

// TestCase is a single automated test. It fails when any step below it fails.
type TestCase struct {
	*entity.Entity
	aggregate
	Description string `json:"description,omitempty"`
}

// NewTestCase creates a test case.
func NewTestCase(name string) *TestCase {
	c := &TestCase{}
	c.Entity = entity.NewEntity(c, KindTestCase, name)
	return c
}

var (
	_ engine.EntityProcessor = (*Sequence)(nil)
	_ engine.EntityProcessor = (*TestFixture)(nil)
	_ engine.EntityProcessor = (*TestCase)(nil)
	_ engine.ErrorPolicy     = (*TestCase)(nil)
)
