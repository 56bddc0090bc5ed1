// Package backend talks to the hosted reasoning service that powers the
// agents. Every agent call funnels through the Client interface; the studio
// implementation speaks the OpenAI-compatible completion API the studio
// endpoints expose.
package backend

import (
	"context"
	"errors"
)

// Client is the reasoning-service surface the agents consume.
type Client interface {
	// Generate sends one prompt and returns the raw completion text.
	Generate(ctx context.Context, req Request) (string, error)
	// Name identifies the backend and its default model, for audit rows.
	Name() string
}

// Request is a single prompt→completion exchange.
type Request struct {
	System      string
	Prompt      string
	Model       string // empty means the configured default
	MaxTokens   int
	Temperature float64
}

// ErrQuotaExhausted is returned once the monthly call budget is spent.
// It is permanent: retrying cannot help until the quota resets.
var ErrQuotaExhausted = errors.New("backend: monthly quota exhausted")
