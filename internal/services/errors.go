// Package services implements namespace tokens, bearer classification,
// process orchestration and log streaming.
package services

import "errors"

var (
	// ErrInvalidTokenFormat is returned for credentials that are not four '_'-delimited segments.
	ErrInvalidTokenFormat = errors.New("invalid token format")
	// ErrInvalidCredential covers both an unknown token id and a secret mismatch.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrUnauthorized is returned when a bearer credential is missing or matches nothing.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a namespace scope calls a root-only operation.
	ErrForbidden = errors.New("forbidden")
	// ErrProcessNotFound covers both an absent process and one outside the caller's namespace.
	ErrProcessNotFound = errors.New("process not found")
	// ErrProcessExists is returned by Start when the name is already taken,
	// whichever namespace holds it.
	ErrProcessExists = errors.New("process name already in use")
	// ErrUpstream wraps supervisor failures.
	ErrUpstream = errors.New("supervisor error")
	// ErrLogIO wraps log file failures other than absence.
	ErrLogIO = errors.New("log read error")
	// ErrPersistence wraps storage failures.
	ErrPersistence = errors.New("persistence error")
	// ErrInvalidNamespace is returned when a namespace fails validation.
	ErrInvalidNamespace = errors.New("invalid namespace")
	// ErrInvalidInput is returned for malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTokenNotFound is returned when no token has the requested id.
	ErrTokenNotFound = errors.New("token not found")
	// ErrInvalidTOTP is returned when the root TOTP code is missing or wrong.
	ErrInvalidTOTP = errors.New("invalid TOTP code")
)
