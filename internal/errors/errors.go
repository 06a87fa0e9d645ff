package errors

import (
	"errors"
	"fmt"
)

// Common error types for the storefront client
var (
	// Session errors
	ErrInvalidTokenFormat  = errors.New("invalid token format")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrUnauthorized        = errors.New("unauthorized")

	// Acquisition errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNewPasswordRequired = errors.New("new password required")
	ErrUserNotConfirmed    = errors.New("user not confirmed")
	ErrNoTokenFound        = errors.New("no token found")
	ErrInvalidState        = errors.New("invalid state parameter")

	// Cart errors
	ErrSyncFailure       = errors.New("cart sync failed")
	ErrValidationFailure = errors.New("cart validation failed")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported operation")
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

// New is errors.New, re-exported so callers importing this package do not
// also need the standard library one.
func New(text string) error {
	return errors.New(text)
}
