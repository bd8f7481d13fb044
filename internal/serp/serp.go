// Package serp talks to web search backends and returns their results in
// one shape, whichever engine produced them.
package serp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Result is one search hit. URL is its identity.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Engine  string `json:"engine"`
}

// Query is a search request. State scopes the search geographically; Num and
// DateRestrict are honored by backends that support them.
type Query struct {
	Text         string
	State        string
	DateRestrict string
	Num          int
}

// Provider abstracts a search engine. An empty slice with a nil error means
// nothing was found.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Result, error)
}

var (
	// ErrRateLimited is returned when the backend throttled this request.
	ErrRateLimited = errors.New("serp: rate limited")
	// ErrExhausted is returned when no credential has quota left.
	ErrExhausted = errors.New("serp: all credentials exhausted")
)

// TransientError marks a failure worth retrying: network errors, 5xx
// responses, truncated bodies.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "serp: transient error"
	}
	return fmt.Sprintf("serp: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// APIError is a non-retryable error reported by a backend for one query.
// It never carries credentials.
type APIError struct {
	Engine     string
	StatusCode int
	Code       int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	parts := []string{fmt.Sprintf("serp: %s api error", e.Engine)}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("http=%d", e.StatusCode))
	}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	}
	if e.Status != "" {
		parts = append(parts, "status="+e.Status)
	}
	if e.Message != "" {
		parts = append(parts, "message="+redactSecrets(e.Message))
	}
	return strings.Join(parts, " ")
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

var apiKeyKVRe = regexp.MustCompile(`(?i)\b(key|api[_-]?key)=[^\s&"']+`)

// redactSecrets strips key=... pairs that sometimes leak into URLs quoted
// by net/http errors.
func redactSecrets(s string) string {
	return apiKeyKVRe.ReplaceAllString(s, "$1=<redacted>")
}

// RedactKey shortens a credential for logs and reports.
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "****"
	}
	return k[:6] + "..." + k[len(k)-2:]
}
