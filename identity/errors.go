package identity

import (
	"errors"
	"fmt"
)

// Reason classifies a failed provider call.
type Reason string

const (
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonEmailTaken         Reason = "email_taken"
	ReasonNetwork            Reason = "network"
	ReasonUnknown            Reason = "unknown"
)

// Sentinels for errors.Is against an *AuthError of the matching reason.
var (
	ErrInvalidCredentials = &AuthError{Reason: ReasonInvalidCredentials}
	ErrEmailTaken         = &AuthError{Reason: ReasonEmailTaken}
	ErrNetwork            = &AuthError{Reason: ReasonNetwork}
	ErrUnknown            = &AuthError{Reason: ReasonUnknown}
)

// AuthError is the only error type a Provider returns from SignIn and SignUp.
type AuthError struct {
	Reason Reason
	Op     string // provider operation, e.g. "kratos.SignIn"
	Err    error
}

func NewAuthError(reason Reason, op string, err error) *AuthError {
	return &AuthError{Reason: reason, Op: op, Err: err}
}

func (e *AuthError) Error() string {
	msg := string(e.Reason)
	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any *AuthError with the same reason.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == e.Reason
}

// UserMessage is the text shown next to the form for a failed sign-in or sign-up.
func (e *AuthError) UserMessage() string {
	switch e.Reason {
	case ReasonInvalidCredentials:
		return "Invalid email or password. Please check your credentials."
	case ReasonEmailTaken:
		return "An account with this email already exists."
	default:
		return "Something went wrong. Please try again."
	}
}

// ReasonOf extracts the reason from err, returning ReasonUnknown for foreign errors.
func ReasonOf(err error) Reason {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ReasonUnknown
}
