package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Session errors
	ErrNoSession        = errors.New("no active session")
	ErrInvalidSession   = errors.New("invalid session: token and user must both be present")
	ErrSessionExpired   = errors.New("session expired")
	ErrCorruptSession   = errors.New("corrupt session data")
	ErrStoreUnavailable = errors.New("session store unavailable")

	// Refresh errors
	ErrRefreshUnavailable = errors.New("token refresh unavailable")
	ErrRefreshFailed      = errors.New("token refresh failed")
	ErrStaleRefresh       = errors.New("refresh result superseded")

	// Authorization errors
	ErrAdminOnly = errors.New("admin only")

	// General errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnsupported   = errors.New("unsupported operation")
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
