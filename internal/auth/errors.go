package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrSessionInvalid     = errors.New("auth: session invalid")
	ErrMalformedResponse  = errors.New("auth: malformed response")
	ErrNetwork            = errors.New("auth: network error")
	ErrNoCredential       = errors.New("auth: no credential staged")
)

const (
	MsgInvalidCredentials = "Credenciales inválidas."
	MsgSignInAgain        = "Por favor, inicie sesión de nuevo."
	MsgSessionExpired     = "Su sesión ha expirado. Por favor, inicie sesión de nuevo."
	MsgLoginFailed        = "Fallo el inicio de sesión. Inténtelo de nuevo."
)

// Error carries a taxonomy kind together with the text shown to the user.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error, falling back to the default copy for kind when message is empty.
func NewError(kind error, message string, cause error) *Error {
	if message == "" {
		message = DefaultMessage(kind)
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// DefaultMessage returns the generic user-facing text for a taxonomy kind.
// MalformedResponse and SessionInvalid share the same copy.
func DefaultMessage(kind error) string {
	switch {
	case errors.Is(kind, ErrInvalidCredentials):
		return MsgInvalidCredentials
	case errors.Is(kind, ErrSessionInvalid), errors.Is(kind, ErrMalformedResponse):
		return MsgSignInAgain
	case errors.Is(kind, ErrNetwork):
		return "Error de conexión."
	default:
		return MsgLoginFailed
	}
}

// UserMessage extracts a displayable string from any error produced by this package.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return DefaultMessage(err)
}
