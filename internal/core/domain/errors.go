// Package domain defines the core domain models for gatekeeper.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form GK-<AREA>-<NNNN>, where the first three digits of NNNN
// are the HTTP status the error maps to.
type DomainError struct {
	Code    string // Error code (e.g., "GK-AUTH-4012")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on code only, so wrapped copies with details still satisfy
// errors.Is against the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Admission Errors (SYS)
// ============================================================================

var (
	// ErrOverloaded indicates the admission gate rejected a heavy request.
	ErrOverloaded = NewDomainError("GK-SYS-5030", "server is busy, please retry later")

	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("GK-SYS-5000", "internal server error")

	// ErrStorage indicates a store backend failed.
	ErrStorage = NewDomainError("GK-SYS-5001", "storage error")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("GK-SYS-4000", "bad request")

	// ErrRouteNotFound indicates no route matches the path.
	ErrRouteNotFound = NewDomainError("GK-SYS-4040", "not found")

	// ErrMethodNotAllowed indicates the route exists under another method.
	ErrMethodNotAllowed = NewDomainError("GK-SYS-4050", "method not allowed")
)

// ============================================================================
// Rate Errors (RATE, QUOTA)
// ============================================================================

var (
	// ErrRateLimited indicates the generic sliding window rejected the call.
	ErrRateLimited = NewDomainError("GK-RATE-4290", "too many requests")

	// ErrLoginRateLimited indicates too many login attempts from one address.
	ErrLoginRateLimited = NewDomainError("GK-RATE-4291", "too many login attempts")

	// ErrQuotaExceeded indicates the daily prompt allowance is used up.
	ErrQuotaExceeded = NewDomainError("GK-QUOTA-4292", "daily prompt limit reached")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrTokenMissing indicates no bearer token was presented.
	ErrTokenMissing = NewDomainError("GK-AUTH-4010", "authentication required")

	// ErrTokenInvalid indicates a malformed token or a bad signature.
	ErrTokenInvalid = NewDomainError("GK-AUTH-4011", "invalid token")

	// ErrTokenExpired indicates the token lifetime has elapsed.
	ErrTokenExpired = NewDomainError("GK-AUTH-4012", "token expired")

	// ErrTokenRevoked indicates the token was blacklisted or predates a forced logout.
	ErrTokenRevoked = NewDomainError("GK-AUTH-4013", "token revoked")

	// ErrSessionInvalid indicates the token's session is no longer active.
	ErrSessionInvalid = NewDomainError("GK-AUTH-4014", "session no longer active")

	// ErrTokenWrongType indicates an access token was used as refresh or vice versa.
	ErrTokenWrongType = NewDomainError("GK-AUTH-4015", "wrong token type")

	// ErrAPIKeyInvalid indicates a missing, unknown or revoked API key.
	ErrAPIKeyInvalid = NewDomainError("GK-AUTH-4016", "invalid api key")

	// ErrInvalidCredentials indicates a failed password login.
	ErrInvalidCredentials = NewDomainError("GK-AUTH-4017", "invalid email or password")

	// ErrUserInactive indicates the account behind a valid credential is disabled.
	ErrUserInactive = NewDomainError("GK-AUTH-4018", "account disabled")

	// ErrForbidden indicates a valid identity without the required permission.
	// The message is identical for every denial.
	ErrForbidden = NewDomainError("GK-AUTH-4030", "permission denied")
)

// ============================================================================
// Directory Errors (USER)
// ============================================================================

var (
	// ErrUserNotFound indicates no user matches the lookup.
	ErrUserNotFound = NewDomainError("GK-USER-4040", "user not found")

	// ErrUserConflict indicates the email is already registered.
	ErrUserConflict = NewDomainError("GK-USER-4090", "email already registered")

	// ErrAPIKeyNotFound indicates the caller owns no key with the given id.
	ErrAPIKeyNotFound = NewDomainError("GK-USER-4041", "api key not found")
)
