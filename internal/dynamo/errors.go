package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for trace comparison runs. None of them are retried.
var (
	// ErrIO indicates the trace file could not be read.
	ErrIO = errors.New("dynamo: trace unreadable")

	// ErrFormat indicates the trace container does not unpack to the expected shape.
	ErrFormat = errors.New("dynamo: trace format mismatch")

	// ErrState indicates an operation was called in the wrong lifecycle state.
	ErrState = errors.New("dynamo: invalid lifecycle state")

	// ErrSchema indicates a record whose width drifted from the fixed layout.
	ErrSchema = errors.New("dynamo: record schema mismatch")

	// ErrClosed indicates a write to a finalized recorder.
	ErrClosed = errors.New("dynamo: recorder closed")

	// ErrTraceExhausted indicates every trace-aligned step has already run.
	ErrTraceExhausted = errors.New("dynamo: trace exhausted")
)

// StepError wraps an error raised while executing one control step.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

// Formatf returns an error wrapping ErrFormat.
func Formatf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// Schemaf returns an error wrapping ErrSchema.
func Schemaf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}
