package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/pipejournal/internal/value"
)

// Error is the structured failure recorded in a failure entry.
//
// Message is always present. Type names the kind of failure (a Go type name
// for normalized errors, "panic" for recovered panics). Details is an
// optional, arbitrarily nested payload.
type Error struct {
	Message   string      `json:"message"`
	Type      string      `json:"type,omitempty"`
	Traceback string      `json:"traceback,omitempty"`
	Details   value.Value `json:"details,omitempty"`
}

// NewError creates an Error with the given message.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details value.Value) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithType returns a copy of e with the given type.
func (e *Error) WithType(typ string) *Error {
	cp := *e
	cp.Type = typ
	return &cp
}

// NormalizeError converts any error into the recorded Error shape.
//
// An *Error returned directly is recorded as is. An *Error wrapped by other
// errors keeps its type and details but takes the full wrapped message.
// Anything else becomes Message=err.Error() with Type set to the dynamic type
// of err. A typed nil *Error records as "unknown error". Returns nil for a
// nil error.
func NormalizeError(err error) *Error {
	if err == nil {
		return nil
	}
	if je, ok := err.(*Error); ok {
		if je == nil {
			return &Error{Message: "unknown error"}
		}
		if je.Message != "" {
			return je
		}
	}

	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}

	var je *Error
	if errors.As(err, &je) && je != nil {
		cp := *je
		cp.Message = msg
		return &cp
	}
	return &Error{
		Message: msg,
		Type:    typeName(err),
	}
}

func typeName(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

type errorJSON struct {
	Message   string          `json:"message"`
	Type      string          `json:"type,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e Error) MarshalJSON() ([]byte, error) {
	out := errorJSON{
		Message:   e.Message,
		Type:      e.Type,
		Traceback: e.Traceback,
	}
	if e.Details != nil {
		data, err := value.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal error details: %w", err)
		}
		out.Details = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Error) UnmarshalJSON(data []byte) error {
	var in errorJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Error{
		Message:   in.Message,
		Type:      in.Type,
		Traceback: in.Traceback,
	}
	if len(in.Details) > 0 {
		details, err := value.Unmarshal(in.Details)
		if err != nil {
			return fmt.Errorf("unmarshal error details: %w", err)
		}
		e.Details = details
	}
	return nil
}
