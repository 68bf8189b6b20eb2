// Package pipeline runs the staged refactoring workflow: review, initial
// rewrite, a bounded validate/refine loop, and release. Stages communicate
// only through a shared blackboard.
package pipeline

import (
	"sync"
)

// Blackboard is the shared key/value state for one pipeline run. Stages
// read upstream outputs from it and write their own output under a fixed
// key. It is safe for concurrent use; tool callbacks may write while a
// stage holds a reference.
type Blackboard struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewBlackboard returns an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{values: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (b *Blackboard) Get(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

// Set stores value under key, overwriting any previous value.
func (b *Blackboard) Set(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Snapshot returns a copy of the current state.
func (b *Blackboard) Snapshot() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// RunContext carries the per-run state threaded through every stage: the
// blackboard plus the loop escalation flag.
type RunContext struct {
	Board *Blackboard

	mu       sync.Mutex
	escalate bool
	inLoop   bool
}

// NewRunContext returns a run context with a fresh blackboard.
func NewRunContext() *RunContext {
	return &RunContext{Board: NewBlackboard()}
}

// SignalLoopExit requests termination of the enclosing refinement loop.
// It reports whether a loop was active; outside a loop the signal is
// ignored.
func (r *RunContext) SignalLoopExit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inLoop {
		return false
	}
	r.escalate = true
	return true
}

// Escalated reports whether loop exit has been signalled.
func (r *RunContext) Escalated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.escalate
}

// enterLoop marks the run as inside the refinement loop and clears any
// stale escalation.
func (r *RunContext) enterLoop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inLoop = true
	r.escalate = false
}

// leaveLoop marks the loop as finished.
func (r *RunContext) leaveLoop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inLoop = false
}
