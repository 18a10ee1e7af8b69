package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by services wraps exactly one of them,
// so callers may map errors to transport codes with errors.Is
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrInternal        = errors.New("internal error")
)

var (
	ErrUserAlreadyExists  = kind(ErrConflict, "user with username or email already exists")
	ErrUserNotFound       = kind(ErrNotFound, "user not found")
	ErrInvalidCredentials = kind(ErrUnauthorized, "invalid user credentials")

	ErrRefreshTokenMismatch = kind(ErrUnauthorized, "refresh token does not match stored one")

	ErrTokenMalformed = kind(ErrUnauthorized, "token is malformed")
	ErrTokenInvalid   = kind(ErrUnauthorized, "token is invalid")
	ErrTokenExpired   = kind(ErrUnauthorized, "token is expired")

	// User the token was issued for does not exist anymore
	ErrTokenSubjectNotFound = kind(ErrUnauthorized, "token subject not found")

	ErrVideoNotFound = kind(ErrNotFound, "video not found")

	ErrAssetUpload = kind(ErrUpstreamFailure, "asset upload failed")
)

func kind(k error, msg string) error {
	return fmt.Errorf("%s: %w", msg, k)
}

// Caller supplied data is missing or malformed
// Reason is safe to show to the client
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason + ": " + ErrInvalidInput.Error()
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// InvalidInput returns error of ErrInvalidInput kind with human readable reason
func InvalidInput(reason string) error {
	return &InputError{Reason: reason}
}

// Kind returns the error kind err belongs to.
// Errors of unknown kind are considered internal
func Kind(err error) error {
	for _, k := range []error{ErrInvalidInput, ErrConflict, ErrNotFound, ErrUnauthorized, ErrUpstreamFailure} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}
