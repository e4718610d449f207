package runner

import (
	"errors"
	"fmt"
)

// RunError is a fatal run error. Run returns it together with the partial
// journal holding every entry recorded before the failure.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Seq is the position in the input stream where the run stopped, 0 if the
	// run stopped before pulling any input.
	Seq int64

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes fatal run errors.
type RunErrorCode string

const (
	// ErrCodeStream indicates the input stream itself failed.
	ErrCodeStream RunErrorCode = "STREAM_ERROR"

	// ErrCodeCancelled indicates the run context was cancelled.
	ErrCodeCancelled RunErrorCode = "CANCELLED"

	// ErrCodeMalformedInput indicates an input without an identifier.
	ErrCodeMalformedInput RunErrorCode = "MALFORMED_INPUT"

	// ErrCodeInvalidFactory indicates the factory returned no processor.
	ErrCodeInvalidFactory RunErrorCode = "INVALID_FACTORY"

	// ErrCodeInvalidOption indicates an unusable runner option.
	ErrCodeInvalidOption RunErrorCode = "INVALID_OPTION"

	// ErrCodeJournal indicates the journal builder rejected an entry.
	ErrCodeJournal RunErrorCode = "JOURNAL_ERROR"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Seq > 0 {
		msg = fmt.Sprintf("%s (seq=%d)", msg, e.Seq)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// IsStreamError reports whether err is a RunError caused by the input stream.
// Uses errors.As to handle wrapped errors.
func IsStreamError(err error) bool {
	return hasCode(err, ErrCodeStream)
}

// IsCancelled reports whether err is a RunError caused by cancellation.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

// IsMalformedInput reports whether err is a RunError caused by an input
// without an identifier.
func IsMalformedInput(err error) bool {
	return hasCode(err, ErrCodeMalformedInput)
}

func hasCode(err error, code RunErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func newStreamError(seq int64, err error) *RunError {
	return &RunError{
		Code:    ErrCodeStream,
		Message: "input stream failed",
		Seq:     seq,
		Err:     err,
	}
}

func newCancelledError(seq int64, err error) *RunError {
	return &RunError{
		Code:    ErrCodeCancelled,
		Message: "run cancelled",
		Seq:     seq,
		Err:     err,
	}
}

func newMalformedInputError(seq int64, err error) *RunError {
	return &RunError{
		Code:    ErrCodeMalformedInput,
		Message: "input has no identifier",
		Seq:     seq,
		Err:     err,
	}
}
