package utils

import "fmt"

// EvalError wraps an operation, the metric it concerns, and the underlying
// error. Per-metric failures are collected into the run summary rather than
// aborting the run.
type EvalError struct {
	Op     string
	Metric string
	Err    error
}

func (e *EvalError) Error() string {
	if e.Metric == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: metric %s: %v", e.Op, e.Metric, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// NewEvalError constructs an EvalError.
func NewEvalError(op, metric string, err error) error {
	return &EvalError{Op: op, Metric: metric, Err: err}
}
