package engine

import (
	"errors"
	"fmt"
)

// Error is the structured error returned by engine operations.
//
// Soft failures (INVALID_TRANSITION, NOT_FOUND, INVALID_ARGUMENT, CONFLICT)
// leave state unchanged. STORAGE_FAILURE wraps the store error and means the
// operation's transaction did not commit.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// PeriodKey identifies the affected round, when there is one.
	PeriodKey string

	// Subject is the participant, match or follow-up the error is about.
	Subject string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeConflict indicates another run holds the period, or a round
	// for the period was created concurrently.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeInvalidTransition indicates a state change that is not allowed
	// from the current state: answering twice, unsubscribing a non-subscriber.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeDeliveryFailure indicates the gateway could not reach a participant.
	ErrCodeDeliveryFailure ErrorCode = "DELIVERY_FAILURE"

	// ErrCodeStorageFailure indicates a transaction could not commit.
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"

	// ErrCodeNotFound indicates a referenced row does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidArgument indicates malformed input.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.PeriodKey != "" && e.Subject != "":
		msg += fmt.Sprintf(" (period=%s, subject=%s)", e.PeriodKey, e.Subject)
	case e.PeriodKey != "":
		msg += fmt.Sprintf(" (period=%s)", e.PeriodKey)
	case e.Subject != "":
		msg += fmt.Sprintf(" (subject=%s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsConflict reports whether err is a CONFLICT error.
func IsConflict(err error) bool { return CodeOf(err) == ErrCodeConflict }

// IsInvalidTransition reports whether err is an INVALID_TRANSITION error.
func IsInvalidTransition(err error) bool { return CodeOf(err) == ErrCodeInvalidTransition }

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsInvalidArgument reports whether err is an INVALID_ARGUMENT error.
func IsInvalidArgument(err error) bool { return CodeOf(err) == ErrCodeInvalidArgument }

// IsStorageFailure reports whether err is a STORAGE_FAILURE error.
func IsStorageFailure(err error) bool { return CodeOf(err) == ErrCodeStorageFailure }

func invalidArgument(subject, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...), Subject: subject}
}

func notFound(subject, format string, args ...any) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...), Subject: subject}
}

func invalidTransition(subject, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidTransition, Message: fmt.Sprintf(format, args...), Subject: subject}
}

// storageFailure wraps a store error. An error that is already an *Error
// passes through unchanged so soft failures raised inside a transaction
// keep their code.
func storageFailure(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: ErrCodeStorageFailure, Message: op, Err: err}
}
