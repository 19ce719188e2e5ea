// Package generation starts paid image and video generations and delivers
// their results.
package generation

import (
	"context"
	"errors"

	"github.com/stylebot/server/internal/domain/billing"
)

var (
	ErrNoBackend      = errors.New("no backend configured for service")
	ErrRateLimited    = errors.New("too many generation requests")
	ErrQuotaExhausted = errors.New("quota exhausted")
	ErrEmptyResult    = errors.New("backend returned no result")
)

// Request describes one generation.
type Request struct {
	UserID    int64           `json:"user_id"`
	Service   billing.Service `json:"service"`
	Prompt    string          `json:"prompt"`
	Style     string          `json:"style,omitempty"`
	SourceURL string          `json:"source_url,omitempty"`
}

// Backend produces a generated asset and returns its URL.
type Backend interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req *Request) (string, error)

func (f BackendFunc) Generate(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}

// QuotaExhaustedError is returned by Flow.Start when the user cannot pay
// for a generation. Verdict tells the chat layer which upsell to show.
type QuotaExhaustedError struct {
	Service   billing.Service
	Remaining int64
	Verdict   billing.Verdict
}

func (e *QuotaExhaustedError) Error() string {
	return "quota exhausted for " + e.Service.String()
}

func (e *QuotaExhaustedError) Unwrap() error {
	return ErrQuotaExhausted
}
