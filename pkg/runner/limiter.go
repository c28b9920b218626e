package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a run.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// LimiterMetrics tracks limiter usage
type LimiterMetrics struct {
	TotalAcquired   int64 `json:"total_acquired"`
	TotalReleased   int64 `json:"total_released"`
	TotalRejected   int64 `json:"total_rejected"`
	PeakConcurrent  int64 `json:"peak_concurrent"`
	TotalWaitTimeNs int64 `json:"total_wait_time_ns"`
}

// Limiter bounds how many workflows run at once and consults a circuit
// breaker before admitting another.
type Limiter struct {
	sem            chan struct{}
	active         int64
	acquired       int64
	released       int64
	rejected       int64
	peak           int64
	waitNs         int64
	circuitBreaker *CircuitBreaker
}

// NewLimiter creates a limiter admitting maxConcurrent runs. A nil breaker
// never rejects.
func NewLimiter(maxConcurrent int, cb *CircuitBreaker) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{
		sem:            make(chan struct{}, maxConcurrent),
		circuitBreaker: cb,
	}
}

// Acquire waits for a free slot. It fails with ErrCircuitOpen when the
// breaker is open, or with ctx's error when ctx is done first.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.circuitBreaker != nil && l.circuitBreaker.IsOpen() {
		atomic.AddInt64(&l.rejected, 1)
		return ErrCircuitOpen
	}

	start := time.Now()
	select {
	case l.sem <- struct{}{}:
		// the breaker may have opened while this caller waited
		if l.circuitBreaker != nil && l.circuitBreaker.IsOpen() {
			<-l.sem
			atomic.AddInt64(&l.rejected, 1)
			return ErrCircuitOpen
		}
		atomic.AddInt64(&l.waitNs, time.Since(start).Nanoseconds())
		atomic.AddInt64(&l.acquired, 1)
		l.updatePeak(atomic.AddInt64(&l.active, 1))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot
func (l *Limiter) Release() {
	select {
	case <-l.sem:
		atomic.AddInt64(&l.active, -1)
		atomic.AddInt64(&l.released, 1)
	default:
	}
}

// Record feeds a finished run's success into the circuit breaker
func (l *Limiter) Record(success bool) {
	if l.circuitBreaker == nil {
		return
	}
	if success {
		l.circuitBreaker.RecordSuccess()
	} else {
		l.circuitBreaker.RecordFailure()
	}
}

// CurrentActive returns the number of runs holding a slot
func (l *Limiter) CurrentActive() int64 {
	return atomic.LoadInt64(&l.active)
}

// GetMetrics returns a snapshot of the limiter metrics
func (l *Limiter) GetMetrics() LimiterMetrics {
	return LimiterMetrics{
		TotalAcquired:   atomic.LoadInt64(&l.acquired),
		TotalReleased:   atomic.LoadInt64(&l.released),
		TotalRejected:   atomic.LoadInt64(&l.rejected),
		PeakConcurrent:  atomic.LoadInt64(&l.peak),
		TotalWaitTimeNs: atomic.LoadInt64(&l.waitNs),
	}
}

// GetAverageWaitTime returns the mean time spent waiting for a slot
func (l *Limiter) GetAverageWaitTime() time.Duration {
	m := l.GetMetrics()
	if m.TotalAcquired == 0 {
		return 0
	}
	return time.Duration(m.TotalWaitTimeNs / m.TotalAcquired)
}

func (l *Limiter) updatePeak(current int64) {
	for {
		peak := atomic.LoadInt64(&l.peak)
		if current <= peak || atomic.CompareAndSwapInt64(&l.peak, peak, current) {
			return
		}
	}
}
