package glpi

import (
	"fmt"
	"strings"
	"time"
)

// AuthError represents a session that could not be established or renewed.
// It is fatal for the request that triggered it.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("glpi auth: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("glpi auth: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SchemaError represents required search-option fields that could not be
// resolved against the installation's schema
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("glpi schema: unresolved fields: %s", strings.Join(e.Missing, ", "))
}

// TransportError represents an HTTP-level failure after retries were
// exhausted
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("glpi transport: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("glpi transport: %s: unexpected status %d", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError represents an HTTP 429 with the server's retry hint
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("glpi rate limited, retry after %s", e.RetryAfter)
}
