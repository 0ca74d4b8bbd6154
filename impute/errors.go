package impute

import (
	"errors"
	"fmt"

	"github.com/edbonneville/smcfcs/sampler"
)

var (
	// ErrInvalidInput is matched by errors describing invalid data,
	// specifications or options, detected before any sampling.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRejectionLimit is matched by errors from rejection sampling
	// that drew the maximum number of proposals without acceptance.
	ErrRejectionLimit = errors.New("rejection limit exceeded")

	// ErrWorkerFailure is matched by errors from a failed worker of a
	// parallel run.
	ErrWorkerFailure = errors.New("worker failure")
)

// InputError describes invalid input.
type InputError struct {
	Field string
	Msg   string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Msg)
}

// Is reports whether target is ErrInvalidInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...interface{}) error {
	return &InputError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// RejectionLimitError identifies the value that could not be drawn.
type RejectionLimitError struct {
	Imputation int
	Iteration  int
	Variable   string
	Subject    int
	Attempts   int
}

func (e *RejectionLimitError) Error() string {
	return fmt.Sprintf("imputation %d, iteration %d: no proposal for '%s' of subject %d was accepted in %d attempts",
		e.Imputation, e.Iteration, e.Variable, e.Subject, e.Attempts)
}

// Is reports whether target is ErrRejectionLimit.
func (e *RejectionLimitError) Is(target error) bool {
	return target == ErrRejectionLimit
}

// Unwrap returns sampler.ErrRejected.
func (e *RejectionLimitError) Unwrap() error {
	return sampler.ErrRejected
}

// WorkerError is the failure of one worker of a parallel run.
type WorkerError struct {
	Worker int
	Err    error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d: %v", e.Worker, e.Err)
}

// Is reports whether target is ErrWorkerFailure.
func (e *WorkerError) Is(target error) bool {
	return target == ErrWorkerFailure
}

// Unwrap returns the cause of the failure.
func (e *WorkerError) Unwrap() error {
	return e.Err
}
