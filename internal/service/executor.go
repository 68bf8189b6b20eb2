// Package service owns run admission: at most one refactoring run is in
// flight at any time.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"pharoreview/internal/pipeline"
)

// ErrBusy is returned when a run is already in progress.
var ErrBusy = errors.New("a refactoring run is already in progress")

// Pipeline is the workflow the executor drives.
type Pipeline interface {
	Run(ctx context.Context, run *pipeline.RunContext, className, methodName string) error
}

// RunRecord is the outcome of one refactoring run. Failed runs still
// carry the blackboard snapshot accumulated before the failure.
type RunRecord struct {
	ID         string            `json:"id"`
	ClassName  string            `json:"class_name"`
	MethodName string            `json:"method_name"`
	Success    bool              `json:"success"`
	Result     map[string]string `json:"result"`
	Error      string            `json:"error,omitempty"`
}

// Executor serializes pipeline runs with a single-slot semaphore.
// Admission is atomic: TryAcquire either claims the slot or the request
// is rejected, so two concurrent callers can never both start.
type Executor struct {
	pipeline Pipeline
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

// NewExecutor creates an executor over the given pipeline.
func NewExecutor(p Pipeline, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		pipeline: p,
		sem:      semaphore.NewWeighted(1),
		logger:   logger,
	}
}

// Busy reports whether a run is currently in flight. The answer is
// advisory; Refactor makes the authoritative admission decision.
func (e *Executor) Busy() bool {
	if e.sem.TryAcquire(1) {
		e.sem.Release(1)
		return false
	}
	return true
}

// Refactor runs the pipeline for one method. It returns ErrBusy when a
// run is already active; every other failure is folded into the record.
func (e *Executor) Refactor(ctx context.Context, className, methodName string) (*RunRecord, error) {
	if !e.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer e.sem.Release(1)

	record := &RunRecord{
		ID:         uuid.NewString(),
		ClassName:  className,
		MethodName: methodName,
	}
	logger := e.logger.With(
		zap.String("run_id", record.ID),
		zap.String("class", className),
		zap.String("method", methodName))
	logger.Info("refactoring run starting")

	run := pipeline.NewRunContext()
	if err := e.pipeline.Run(ctx, run, className, methodName); err != nil {
		record.Error = err.Error()
		record.Result = run.Board.Snapshot()
		logger.Error("refactoring run failed", zap.Error(err))
		return record, nil
	}

	record.Success = true
	record.Result = run.Board.Snapshot()
	logger.Info("refactoring run complete",
		zap.String("release_status", record.Result[pipeline.KeyReleaseStatus]))
	return record, nil
}
