package errors

import stderrors "errors"

// Error is a domain error with a machine-readable code.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Message reported back to the originating side
	Metadata map[string]string // Additional context for logs
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates an error carrying metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates an error wrapping an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the domain code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var de *Error
	if stderrors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Sentinels usable with errors.Is.
var (
	ErrNotYourTurn     = New(CodeNotYourTurn, "not your turn")
	ErrInvalidAction   = New(CodeInvalidAction, "invalid action")
	ErrSessionNotFound = New(CodeSessionNotFound, "session not found")
	ErrAlreadyInGame   = New(CodeAlreadyInGame, "already in game")
	ErrAlreadyQueued   = New(CodeAlreadyQueued, "already queued")
	ErrInvalidRequest  = New(CodeInvalidRequest, "invalid request")
)
