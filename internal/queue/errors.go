package queue

import (
	"errors"
	"fmt"
)

// Error is a structured error raised by the queue subsystem. It carries a
// Code for classification via errors.As and enough context fields to
// diagnose the failure without parsing Error().
type Error struct {
	Code      ErrorCode
	Message   string
	QueueName string
	EntryID   int64
	Details   map[string]string
	cause     error
}

// ErrorCode categorizes queue errors.
type ErrorCode string

const (
	// ErrCodeDuplicateQueueName indicates a queue name already in use.
	ErrCodeDuplicateQueueName ErrorCode = "DUPLICATE_QUEUE_NAME"
	// ErrCodeEntryRequired indicates an operation needed an entry that was nil.
	ErrCodeEntryRequired ErrorCode = "ENTRY_REQUIRED"
	// ErrCodeRequestRequired indicates an operation needed a request that was nil.
	ErrCodeRequestRequired ErrorCode = "REQUEST_REQUIRED"
	// ErrCodeReplayFailed indicates a replay attempt's fetch failed.
	ErrCodeReplayFailed ErrorCode = "REPLAY_FAILED"
	// ErrCodeStoreError indicates the underlying durable store failed.
	ErrCodeStoreError ErrorCode = "STORE_ERROR"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.QueueName != "" && e.EntryID != 0 {
		return fmt.Sprintf("%s: %s (queue=%s, entry=%d)", e.Code, e.Message, e.QueueName, e.EntryID)
	}
	if e.QueueName != "" {
		return fmt.Sprintf("%s: %s (queue=%s)", e.Code, e.Message, e.QueueName)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause kept in the unexported cause field by
// the constructors below, allowing errors.Is/As to reach a wrapped store
// error while still matching *Error at the outer layer.
func (e *Error) Unwrap() error {
	return e.cause
}

func IsDuplicateQueueName(err error) bool { return codeIs(err, ErrCodeDuplicateQueueName) }
func IsEntryRequired(err error) bool      { return codeIs(err, ErrCodeEntryRequired) }
func IsRequestRequired(err error) bool    { return codeIs(err, ErrCodeRequestRequired) }
func IsReplayFailed(err error) bool       { return codeIs(err, ErrCodeReplayFailed) }
func IsStoreError(err error) bool         { return codeIs(err, ErrCodeStoreError) }

func codeIs(err error, code ErrorCode) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

func newDuplicateQueueNameError(name string) *Error {
	return &Error{
		Code:      ErrCodeDuplicateQueueName,
		Message:   "queue name already registered",
		QueueName: name,
	}
}

func newEntryRequiredError(name string) *Error {
	return &Error{
		Code:      ErrCodeEntryRequired,
		Message:   "operation requires an existing entry",
		QueueName: name,
	}
}

func newRequestRequiredError(name string) *Error {
	return &Error{
		Code:      ErrCodeRequestRequired,
		Message:   "operation requires a non-nil request",
		QueueName: name,
	}
}

func newReplayFailedError(name string, entryID int64, cause error) *Error {
	return &Error{
		Code:      ErrCodeReplayFailed,
		Message:   "replay attempt failed",
		QueueName: name,
		EntryID:   entryID,
		cause:     cause,
	}
}

func newStoreError(name string, cause error) *Error {
	return &Error{
		Code:      ErrCodeStoreError,
		Message:   "durable store operation failed",
		QueueName: name,
		cause:     cause,
	}
}
