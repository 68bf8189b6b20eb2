package pipeline

import (
	"errors"
	"fmt"
)

// ErrMissingContext indicates an instruction template referenced a
// blackboard key that no upstream stage produced.
var ErrMissingContext = errors.New("missing context key")

// StageError wraps a failure with the role of the stage that produced it.
type StageError struct {
	Role string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Role, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// fatalToolError marks a tool failure that must abort the stage instead
// of being reported back to the model as a retryable tool result.
type fatalToolError struct {
	err error
}

// Fatal wraps err so the stage loop aborts on it.
func Fatal(err error) error {
	return &fatalToolError{err: err}
}

func (e *fatalToolError) Error() string { return e.err.Error() }

func (e *fatalToolError) Unwrap() error { return e.err }

// IsFatal reports whether err carries a Fatal marker.
func IsFatal(err error) bool {
	var f *fatalToolError
	return errors.As(err, &f)
}
