package errors

import (
	"errors"
	"fmt"
)

// Common error types shared across the session bridge
var (
	// Session errors
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
	ErrStoreClosed    = errors.New("session store closed")

	// Dependency errors
	ErrNotConfigured = errors.New("not configured")
	ErrRequired      = errors.New("required dependency missing")

	// Storage errors
	ErrContainerUnknown    = errors.New("unknown storage container")
	ErrContentTooLarge     = errors.New("content exceeds container size limit")
	ErrContentTypeRejected = errors.New("content type not allowed by container")
	ErrEmptyContent        = errors.New("content is empty")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
