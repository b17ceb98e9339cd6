package ledger

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrUnknownCompany is returned when no credentials are configured for the
// requested company key.
var ErrUnknownCompany = errors.New("no ledger credentials configured for company")

// AuthError is a rejected token refresh. It points at the credentials
// configuration and is never retried.
type AuthError struct {
	CompanyKey string
	Status     int
	Detail     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("ledger token refresh failed for %s: status %d: %s", e.CompanyKey, e.Status, e.Detail)
}

// AccountNotFoundError means a configured account name has no ledger match.
// Fatal for the run; the account names are configuration, not user data.
type AccountNotFoundError struct {
	CompanyKey string
	Name       string
	Kind       string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("no %s account named %q in ledger for company %s", e.Kind, e.Name, e.CompanyKey)
}

// APIError is a non-2xx ledger response. 5xx responses are transient; 4xx
// responses (validation, auth rejection) are permanent and surface
// immediately.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger returned status %d (code %d): %s", e.Status, e.Code, e.Message)
}

// RetryExhaustedError reports a creation that stayed transiently broken for
// every allowed attempt.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("expense creation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// IsTransient reports whether an error belongs to the class expected to
// sometimes succeed on retry: timeouts, connection resets and 5xx responses.
// Auth and validation failures are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "context deadline exceeded") {
		return true
	}
	return false
}
