package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is an error raised by the dispatcher itself rather than an
// operation outcome. Ownership and range failures are not RuntimeErrors;
// they are recorded as completion statuses.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Op is the operation being dispatched, if known.
	Op string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownOp indicates a request for an operation the library lacks.
	ErrCodeUnknownOp RuntimeErrorCode = "UNKNOWN_OP"

	// ErrCodeEngineStopped indicates a submission after Stop.
	ErrCodeEngineStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodeInvalidArgs indicates missing or mistyped request arguments.
	ErrCodeInvalidArgs RuntimeErrorCode = "INVALID_ARGS"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the runtime error code of err, or "" if err is not a
// RuntimeError. Uses errors.As to handle wrapped errors.
func ErrorCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsStopped returns true if the error reports a stopped engine.
func IsStopped(err error) bool {
	return ErrorCode(err) == ErrCodeEngineStopped
}

// IsInvalidArgs returns true if the error reports bad request arguments.
func IsInvalidArgs(err error) bool {
	return ErrorCode(err) == ErrCodeInvalidArgs
}

func newUnknownOpError(op string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownOp,
		Message: "unknown operation",
		Op:      op,
	}
}

func newInvalidArgsError(op, arg, problem string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidArgs,
		Message: fmt.Sprintf("argument %q %s", arg, problem),
		Op:      op,
		Details: map[string]string{"arg": arg},
	}
}

func newStoppedError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeEngineStopped,
		Message: "engine is stopped",
	}
}
