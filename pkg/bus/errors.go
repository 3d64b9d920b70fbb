package bus

import (
	"errors"
	"fmt"
)

// Error codes carried on task_error messages. They map onto the failure
// taxonomy: structural failures are never retried, transient ones are.
const (
	CodeProfileNotFound = "profile_not_found"
	CodeInvalidTask     = "invalid_task"
	CodeRateLimited     = "rate_limited"
	CodeQualityGate     = "quality_gate_failed"
	CodeUpstream        = "upstream_failure"
	CodeInternal        = "internal_error"
)

// TaskError is the structured failure detail on a task_error message.
type TaskError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Context   map[string]string `json:"context,omitempty"`
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewTaskError wraps an error with a code for transport on the bus.
func NewTaskError(code string, retryable bool, err error) *TaskError {
	return &TaskError{Code: code, Message: err.Error(), Retryable: retryable}
}

// AsTaskError extracts a TaskError from an error chain, defaulting to an
// internal non-retryable error when the cause carries no code.
func AsTaskError(err error) *TaskError {
	var te *TaskError
	if errors.As(err, &te) {
		return te
	}
	return &TaskError{Code: CodeInternal, Message: err.Error()}
}

// ErrAckTimeout is returned when a message requiring acknowledgment
// receives none within its timeout.
var ErrAckTimeout = errors.New("bus: acknowledgment timeout")
