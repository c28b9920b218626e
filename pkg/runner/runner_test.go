package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// step is an actor whose behavior is set per test
type step struct {
	entity.Base
	act func(ctx context.Context) error
}

func newStep(name string, act func(ctx context.Context) error) *step {
	s := &step{act: act}
	s.Base = entity.NewBase(s, "step", name)
	return s
}

func (s *step) Act(ctx context.Context, _ *engine.RunContext) error {
	return s.act(ctx)
}

func pass(context.Context) error { return nil }

func fail(context.Context) error { return errors.New("assertion failed") }

func workflow(t *testing.T, name string, steps ...*step) entity.Component {
	t.Helper()
	root := entity.New(name)
	for _, s := range steps {
		require.NoError(t, root.AddComponent(s))
	}
	return root
}

func newRunner(t *testing.T, config Config) *BatchRunner {
	t.Helper()
	r, err := NewBatchRunner(engine.NewProcessor(engine.DefaultConfig()), config)
	require.NoError(t, err)
	return r
}

func TestNewBatchRunner_RequiresProcessor(t *testing.T) {
	_, err := NewBatchRunner(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	c := Config{MaxConcurrent: -1, RunTimeout: -time.Second}
	c.Validate()
	assert.Positive(t, c.MaxConcurrent)
	assert.Zero(t, c.RunTimeout)
	assert.NotNil(t, c.Logger)
	assert.NotNil(t, c.Tracer)
}

func TestBatchRunner_ResultsInJobOrder(t *testing.T) {
	r := newRunner(t, Config{MaxConcurrent: 2, FailureThreshold: 10})
	jobs := []Job{
		{Name: "login", Root: workflow(t, "login", newStep("open", pass))},
		{Name: "checkout", Root: workflow(t, "checkout", newStep("pay", fail), newStep("confirm", pass))},
		{Name: "logout", Root: workflow(t, "logout", newStep("close", pass))},
	}

	var completed atomic.Int32
	r.OnComplete(func(context.Context, Result) { completed.Add(1) })

	results, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "login", results[0].Job)
	assert.True(t, results[0].Passed())
	assert.Equal(t, "checkout", results[1].Job)
	assert.False(t, results[1].Passed())
	assert.NoError(t, results[1].Err)
	assert.Equal(t, 1, results[1].Report.Failed)
	assert.Equal(t, 1, results[1].Report.Passed)
	assert.True(t, results[2].Passed())
	assert.EqualValues(t, 3, completed.Load())
}

func TestBatchRunner_BoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	busy := func(context.Context) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return nil
	}

	r := newRunner(t, Config{MaxConcurrent: 2, FailureThreshold: 10})
	var jobs []Job
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		jobs = append(jobs, Job{Name: name, Root: workflow(t, name, newStep("work", busy))})
	}

	results, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	for _, res := range results {
		assert.True(t, res.Passed(), res.Job)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))

	m := r.Limiter().GetMetrics()
	assert.EqualValues(t, 5, m.TotalAcquired)
	assert.EqualValues(t, 5, m.TotalReleased)
	assert.LessOrEqual(t, m.PeakConcurrent, int64(2))
	assert.Zero(t, r.Limiter().CurrentActive())
}

func TestBatchRunner_CircuitBreakerRejects(t *testing.T) {
	r := newRunner(t, Config{MaxConcurrent: 1, FailureThreshold: 2, ResetTimeout: time.Hour})
	var jobs []Job
	for _, name := range []string{"a", "b", "c", "d"} {
		jobs = append(jobs, Job{Name: name, Root: workflow(t, name, newStep("flaky", fail))})
	}

	results, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)

	ran, rejected := 0, 0
	for _, res := range results {
		if res.Rejected {
			rejected++
			assert.ErrorIs(t, res.Err, ErrCircuitOpen)
			assert.Nil(t, res.Report)
			continue
		}
		ran++
		assert.Equal(t, engine.OutcomeFailed, res.Report.Outcome)
	}
	assert.Equal(t, 2, ran)
	assert.Equal(t, 2, rejected)
	assert.Equal(t, StateOpen, r.Breaker().GetState())
	assert.EqualValues(t, 2, r.Limiter().GetMetrics().TotalRejected)
}

func TestBatchRunner_StopOnAbort(t *testing.T) {
	tests := []struct {
		name        string
		stopOnAbort bool
		wantErr     bool
	}{
		{name: "abort cancels batch", stopOnAbort: true, wantErr: true},
		{name: "abort is reported", stopOnAbort: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(t, Config{MaxConcurrent: 1, FailureThreshold: 10, StopOnAbort: tt.stopOnAbort})
			results, err := r.Run(context.Background(), []Job{{Name: "empty"}})

			require.Len(t, results, 1)
			assert.True(t, derrors.IsConfiguration(results[0].Err))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, derrors.IsConfiguration(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBatchRunner_RunTimeout(t *testing.T) {
	r := newRunner(t, Config{MaxConcurrent: 1, FailureThreshold: 10, RunTimeout: 20 * time.Millisecond})
	hang := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	results, err := r.Run(context.Background(), []Job{{Name: "hang", Root: workflow(t, "hang", newStep("wait", hang))}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.Equal(t, engine.OutcomeCancelled, results[0].Report.Outcome)
	assert.EqualValues(t, 1, r.Breaker().GetConsecutiveFailures())
}

func TestBatchRunner_CancelledBatch(t *testing.T) {
	r := newRunner(t, Config{MaxConcurrent: 1, FailureThreshold: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.Run(ctx, []Job{{Name: "late", Root: workflow(t, "late", newStep("s", pass))}})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed())
	assert.Zero(t, r.Breaker().GetConsecutiveFailures())
}

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1000, 0)}
	cb := NewCircuitBreaker(3, time.Minute)
	cb.now = clock.now

	cb.RecordFailure()
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
	assert.Equal(t, "open", cb.GetState().String())

	clock.advance(2 * time.Minute)
	assert.False(t, cb.IsOpen())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	// a failure while probing reopens
	cb.RecordFailure()
	assert.True(t, cb.IsOpen())

	clock.advance(2 * time.Minute)
	assert.False(t, cb.IsOpen())
	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.GetState())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Zero(t, cb.GetConsecutiveFailures())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.GetState())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())
	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Zero(t, cb.GetConsecutiveFailures())
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	l := NewLimiter(1, nil)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)

	l.Release()
	l.Release()
	assert.Zero(t, l.CurrentActive())
	assert.EqualValues(t, 1, l.GetMetrics().TotalReleased)
}

func TestLimiter_RejectsWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	l := NewLimiter(2, cb)
	l.Record(false)

	assert.ErrorIs(t, l.Acquire(context.Background()), ErrCircuitOpen)
	assert.EqualValues(t, 1, l.GetMetrics().TotalRejected)
}
