package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// LoopState describes how the refinement loop ended.
type LoopState string

const (
	// LoopIterating means the loop is still running. It never escapes
	// runLoop; it exists for logging mid-flight.
	LoopIterating LoopState = "ITERATING"

	// LoopExited means a stage signalled completion via the exit tool.
	LoopExited LoopState = "EXITED"

	// LoopCapped means the iteration budget ran out before approval.
	LoopCapped LoopState = "CAPPED"
)

// Loop runs its stages in order, repeatedly, until the exit signal or
// the iteration cap. A capped loop is not a failure; the pipeline
// continues with the best refinement produced so far.
type Loop struct {
	Stages        []*Stage
	MaxIterations int
}

func (p *Pipeline) runLoop(ctx context.Context, run *RunContext, task string, loop *Loop) (LoopState, error) {
	run.enterLoop()
	defer run.leaveLoop()

	for i := 1; i <= loop.MaxIterations; i++ {
		p.logger.Info("validation loop iteration",
			zap.Int("iteration", i),
			zap.Int("max", loop.MaxIterations),
			zap.String("state", string(LoopIterating)))

		for _, stage := range loop.Stages {
			if err := p.runStage(ctx, run, task, stage); err != nil {
				return "", err
			}
		}

		if run.Escalated() {
			p.logger.Info("validation loop exited", zap.Int("iterations", i))
			return LoopExited, nil
		}
	}

	p.logger.Warn("validation loop hit iteration cap",
		zap.Int("max", loop.MaxIterations))
	return LoopCapped, nil
}
