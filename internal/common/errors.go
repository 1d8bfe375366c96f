// Package common defines shared constants and sentinel errors used across
// repository, service and transport layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Credential errors. ErrInvalidCredentials deliberately covers both an
	// unknown email and a wrong password.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWrongOldPassword   = errors.New("old password does not match")
	ErrHashingFailure     = errors.New("password hashing failed")

	// Access errors.
	ErrNoIdentity  = errors.New("no authenticated identity")
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidRole = errors.New("invalid role")

	// Profile media errors.
	ErrUploadFailed = errors.New("image upload failed")
)
