package auth

import "errors"

var (
	// ErrInvalidCredentials covers absent users, disabled users and wrong
	// passwords alike so that login failures never enumerate accounts.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidToken indicates a missing, malformed, expired, revoked or
	// already-rotated token. Deliberately generic.
	ErrInvalidToken = errors.New("auth: invalid token")

	ErrTenantKeyRequired  = errors.New("auth: tenant key required")
	ErrTenantKeyInvalid   = errors.New("auth: invalid tenant key")
	ErrTenantAccessDenied = errors.New("auth: tenant access denied")

	// ErrPermissionDenied means the principal authenticated fine but lacks a
	// required capability.
	ErrPermissionDenied = errors.New("auth: permission denied")

	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: resource conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
)
