package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/entity"
)

// runLoop repeats the loop body until the exit flag is set, an iteration
// controller declines, or a configured bound is reached. The body is reset
// before every iteration after the first.
func (rs *runState) runLoop(ctx context.Context, l Loop) (bool, error) {
	started := time.Now()
	loopStart := rs.clock.Now()
	cfg := rs.p.config
	body := l.AsEntity()
	ctrl, _ := l.(IterationController)

	l.ResetExit()
	rs.rc.pushLoop(l)
	defer rs.rc.popLoop()

	ok := true
	iterations := 0
	for i := 0; ; i++ {
		if l.ShouldExit() {
			break
		}
		if cfg.MaxLoopIterations > 0 && i >= cfg.MaxLoopIterations {
			return rs.fail(ctx, l, PhaseIteration,
				fmt.Errorf("%w: reached %d iterations", ErrLoopBoundExceeded, cfg.MaxLoopIterations), started)
		}
		if cfg.MaxLoopDuration > 0 && rs.clock.Now().Sub(loopStart) >= cfg.MaxLoopDuration {
			return rs.fail(ctx, l, PhaseIteration,
				fmt.Errorf("%w: ran for %s", ErrLoopBoundExceeded, cfg.MaxLoopDuration), started)
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}

		if ctrl != nil {
			cont, err := ctrl.BeforeIteration(ctx, rs.rc, i)
			if err != nil {
				return rs.fail(ctx, l, PhaseIteration, err, started)
			}
			if !cont {
				break
			}
		}

		if i > 0 {
			for _, child := range body.Children() {
				entity.ResetHierarchy(child)
			}
		}

		rs.metrics.RecordIteration()
		iterations++
		iterOK, err := rs.runChildren(ctx, body, body.Children())
		if err != nil {
			return false, err
		}
		if !iterOK {
			ok = false
			if rs.stopOnError(body) {
				break
			}
		}
	}

	rs.rc.Logger.Debug("Loop finished",
		zap.String("node_id", l.ID()),
		zap.String("node_name", l.Name()),
		zap.Int("iterations", iterations),
		zap.Bool("exit_requested", l.ShouldExit()))
	return ok, nil
}
