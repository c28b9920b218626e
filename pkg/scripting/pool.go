package scripting

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
)

// runtimePool manages reusable runtimes for stateless evaluation
type runtimePool struct {
	pool          chan *pooledRuntime
	create        func() (*goja.Runtime, error)
	maxSize       int
	maxReuseCount int
	currentSize   atomic.Int32
	totalCreated  atomic.Int64
	totalAcquired atomic.Int64
	mu            sync.Mutex
	closed        bool
}

type pooledRuntime struct {
	vm         *goja.Runtime
	reuseCount int
	globals    []string
}

// PoolStats contains pool statistics
type PoolStats struct {
	CurrentSize   int   `json:"current_size"`
	MaxSize       int   `json:"max_size"`
	TotalCreated  int64 `json:"total_created"`
	TotalAcquired int64 `json:"total_acquired"`
	Available     int   `json:"available"`
}

func newRuntimePool(maxSize, maxReuseCount int, create func() (*goja.Runtime, error)) *runtimePool {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &runtimePool{
		pool:          make(chan *pooledRuntime, maxSize),
		create:        create,
		maxSize:       maxSize,
		maxReuseCount: maxReuseCount,
	}
}

// acquire gets a runtime from the pool, creating one while under capacity
func (p *runtimePool) acquire(ctx context.Context) (*pooledRuntime, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrEngineClosed
	}
	p.mu.Unlock()

	p.totalAcquired.Add(1)

	select {
	case rt, ok := <-p.pool:
		if !ok {
			return nil, ErrEngineClosed
		}
		return p.recycle(rt)
	default:
	}

	if int(p.currentSize.Load()) < p.maxSize {
		return p.newRuntime()
	}

	select {
	case rt, ok := <-p.pool:
		if !ok {
			return nil, ErrEngineClosed
		}
		return p.recycle(rt)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *runtimePool) recycle(rt *pooledRuntime) (*pooledRuntime, error) {
	rt.reuseCount++
	if p.maxReuseCount > 0 && rt.reuseCount >= p.maxReuseCount {
		p.destroy(rt)
		return p.newRuntime()
	}
	return rt, nil
}

func (p *runtimePool) newRuntime() (*pooledRuntime, error) {
	vm, err := p.create()
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	p.currentSize.Add(1)
	p.totalCreated.Add(1)
	return &pooledRuntime{vm: vm}, nil
}

// release clears per-evaluation globals and returns the runtime to the pool
func (p *runtimePool) release(rt *pooledRuntime, healthy bool) {
	if !healthy {
		p.destroy(rt)
		return
	}

	global := rt.vm.GlobalObject()
	for _, name := range rt.globals {
		_ = global.Delete(name)
	}
	rt.globals = rt.globals[:0]
	rt.vm.ClearInterrupt()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.destroy(rt)
		return
	}
	select {
	case p.pool <- rt:
	default:
		p.destroy(rt)
	}
}

func (p *runtimePool) destroy(rt *pooledRuntime) {
	if rt == nil || rt.vm == nil {
		return
	}
	rt.vm = nil
	p.currentSize.Add(-1)
}

func (p *runtimePool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.pool)
	for rt := range p.pool {
		p.destroy(rt)
	}
}

func (p *runtimePool) stats() PoolStats {
	return PoolStats{
		CurrentSize:   int(p.currentSize.Load()),
		MaxSize:       p.maxSize,
		TotalCreated:  p.totalCreated.Load(),
		TotalAcquired: p.totalAcquired.Load(),
		Available:     len(p.pool),
	}
}
