package auth

import "errors"

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrInvalidOrExpiredToken = errors.New("refresh token invalid or expired")
	ErrTokenReuseDetected    = errors.New("refresh token reuse detected")
	ErrUserNotFound          = errors.New("user not found")

	// ErrStorageUnavailable wraps collaborator I/O failures. The engine does
	// not retry, that belongs to the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Store contract errors, returned by UserStore/RefreshTokenStore
	// implementations.
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenConflict = errors.New("refresh token already consumed")
)
