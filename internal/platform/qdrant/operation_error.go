package qdrant

import (
	"errors"
	"fmt"

	"github.com/yungbote/agentwriter-backend/internal/pkg/httpx"
)

type OperationErrorCode string

const (
	OperationErrorValidation OperationErrorCode = "validation_failed"
	OperationErrorTransport  OperationErrorCode = "transport_failed"
	OperationErrorStatus     OperationErrorCode = "status_failed"
)

// OperationError wraps every failed store call. Transport and 5xx failures
// are retryable; validation failures are not.
type OperationError struct {
	Code      OperationErrorCode
	Operation string
	Message   string
	Cause     error
}

func (e *OperationError) Error() string {
	if e.Message != "" && e.Cause != nil {
		return fmt.Sprintf("qdrant %s (%s): %s: %v", e.Operation, e.Code, e.Message, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("qdrant %s (%s): %v", e.Operation, e.Code, e.Cause)
	}
	return fmt.Sprintf("qdrant %s (%s): %s", e.Operation, e.Code, e.Message)
}

func (e *OperationError) Unwrap() error { return e.Cause }

func (e *OperationError) Retryable() bool {
	if e.Code == OperationErrorValidation {
		return false
	}
	return e.Code == OperationErrorTransport || httpx.IsRetryableError(e.Cause)
}

func validationErr(op, msg string) error {
	return &OperationError{Code: OperationErrorValidation, Operation: op, Message: msg}
}

func callErr(op string, err error) error {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return &OperationError{Code: OperationErrorStatus, Operation: op, Cause: err}
	}
	return &OperationError{Code: OperationErrorTransport, Operation: op, Cause: err}
}
