package client

import (
	"fmt"
	"net/http"
	"strings"
)

// Fault reasons reported through FaultReason. The pipeline maps them onto
// its own taxonomy without this package depending on it.
const (
	reasonRateLimited = "rate_limited"
	reasonAuth        = "auth"
	reasonUpstream    = "upstream"
)

// ErrNotConfigured is returned when a client has no API key
var ErrNotConfigured = &ConfigError{}

// ConfigError reports a client that cannot be used without credentials
type ConfigError struct {
	Provider string
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return "client not configured"
	}
	return fmt.Sprintf("%s client not configured: missing API key", e.Provider)
}

func (e *ConfigError) FaultReason() string { return reasonAuth }

// Is matches any ConfigError so callers can test against ErrNotConfigured
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// APIError is a non-2xx response from a model provider
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, truncate(e.Body, 512))
}

// FaultReason classifies the response status
func (e *APIError) FaultReason() string {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return reasonRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return reasonAuth
	default:
		return reasonUpstream
	}
}

// providerError wraps SDK errors that only expose their cause as text
type providerError struct {
	provider string
	reason   string
	err      error
}

func (e *providerError) Error() string       { return fmt.Sprintf("%s: %v", e.provider, e.err) }
func (e *providerError) Unwrap() error       { return e.err }
func (e *providerError) FaultReason() string { return e.reason }

// classifyMessage maps an SDK error message onto a fault reason
func classifyMessage(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "quota"), strings.Contains(lower, "resource_exhausted"):
		return reasonRateLimited
	case strings.Contains(lower, "401"), strings.Contains(lower, "403"), strings.Contains(lower, "api key"), strings.Contains(lower, "permission_denied"), strings.Contains(lower, "unauthenticated"):
		return reasonAuth
	default:
		return reasonUpstream
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
