package core

import (
	"errors"
	"fmt"
)

// Error is the error type shared by the realtime session, the agent loop,
// and the browser tools.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrCredential: a start attempt had no usable credential. Fatal for that
	// attempt, surfaced to the caller, never retried automatically.
	ErrCredential ErrorType = "credential_error"
	// ErrTransport: handshake failure or mid-session disconnect. Retried with
	// bounded backoff; fatal only after the retry bound is exceeded.
	ErrTransport ErrorType = "transport_error"
	// ErrConfigurationRejected: the remote service refused the session
	// parameters. Fatal; requires a restart with corrected parameters.
	ErrConfigurationRejected ErrorType = "configuration_rejected"
	// ErrToolExecution: local to one tool invocation, reported back into the
	// agent transcript as a structured failure rather than raised.
	ErrToolExecution ErrorType = "tool_execution_error"
	// ErrLoopExhausted: the agent loop hit its step ceiling without a final
	// answer. Reported as an explanatory result, not an exception.
	ErrLoopExhausted ErrorType = "loop_exhausted"
	// ErrMalformedEvent: an unparseable inbound event payload. Dropped after
	// logging; never terminates the session.
	ErrMalformedEvent ErrorType = "malformed_event"
)

// NewCredentialError creates a credential error.
func NewCredentialError(message string) *Error {
	return &Error{
		Type:    ErrCredential,
		Message: message,
	}
}

// NewTransportError creates a transport error wrapping its cause.
func NewTransportError(message string, cause error) *Error {
	return &Error{
		Type:    ErrTransport,
		Message: message,
		Err:     cause,
	}
}

// NewConfigurationRejected creates a configuration rejection error with the
// remote service's error code.
func NewConfigurationRejected(message, code string) *Error {
	return &Error{
		Type:    ErrConfigurationRejected,
		Message: message,
		Code:    code,
	}
}

// NewToolExecutionError creates a tool execution error.
func NewToolExecutionError(message string) *Error {
	return &Error{
		Type:    ErrToolExecution,
		Message: message,
	}
}

// NewLoopExhausted creates a loop exhaustion error.
func NewLoopExhausted(message string) *Error {
	return &Error{
		Type:    ErrLoopExhausted,
		Message: message,
	}
}

// NewMalformedEventError creates a malformed event error.
func NewMalformedEventError(message string) *Error {
	return &Error{
		Type:    ErrMalformedEvent,
		Message: message,
	}
}

// IsRetryable reports whether the session may reconnect after this error.
func (e *Error) IsRetryable() bool {
	return e.Type == ErrTransport
}

// TypeOf returns the ErrorType of err when err is, or wraps, an *Error.
func TypeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return "", false
}
