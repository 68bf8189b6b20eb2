package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pharoreview/internal/types"
)

// Options bound the agentic parts of a run.
type Options struct {
	MaxValidationIterations int
	MaxToolCalls            int
	ToolTimeout             time.Duration
}

// Pipeline is the fixed refactoring workflow: reviewer, initial writer,
// the validate/refine loop, then release.
type Pipeline struct {
	oracle types.LLMClient
	tools  ToolRunner
	logger *zap.Logger

	maxToolCalls int
	toolTimeout  time.Duration

	reviewer *Stage
	writer   *Stage
	loop     *Loop
	release  *Stage
}

// New assembles the pipeline with its five role stages.
func New(oracle types.LLMClient, tools ToolRunner, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxValidationIterations <= 0 {
		opts.MaxValidationIterations = 3
	}
	if opts.MaxToolCalls <= 0 {
		opts.MaxToolCalls = 20
	}

	return &Pipeline{
		oracle:       oracle,
		tools:        tools,
		logger:       logger,
		maxToolCalls: opts.MaxToolCalls,
		toolTimeout:  opts.ToolTimeout,
		reviewer:     newReviewerStage(),
		writer:       newInitialWriterStage(),
		loop: &Loop{
			Stages:        []*Stage{newValidatorStage(), newRefinerStage()},
			MaxIterations: opts.MaxValidationIterations,
		},
		release: newReleaseStage(),
	}
}

// Run executes the full pipeline for one method. The task prompt names
// the class and method; everything else flows through the blackboard.
// The first stage failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, run *RunContext, className, methodName string) error {
	task := fmt.Sprintf("Review and refactor the method '%s' in class '%s'.", methodName, className)
	p.logger.Info("pipeline starting",
		zap.String("class", className),
		zap.String("method", methodName))

	if err := p.runStage(ctx, run, task, p.reviewer); err != nil {
		return err
	}
	if err := p.runStage(ctx, run, task, p.writer); err != nil {
		return err
	}

	state, err := p.runLoop(ctx, run, task, p.loop)
	if err != nil {
		return err
	}

	if err := p.runStage(ctx, run, task, p.release); err != nil {
		return err
	}

	p.logger.Info("pipeline complete", zap.String("loop_state", string(state)))
	return nil
}
