// Package ai provides the text-generation provider boundary.
package ai

import (
	"context"
	"errors"
)

// ErrTransient indicates a retryable generation service failure
// (network error, timeout, rate limit, upstream 5xx).
var ErrTransient = errors.New("ai: transient provider failure")

// GenerateRequest contains the prompt and generation parameters for a
// single completion call.
type GenerateRequest struct {
	Prompt       string
	MaxNewTokens int
	Temperature  float64
}

// GenerateResponse contains the generated text.
type GenerateResponse struct {
	Text string
}

// Provider generates text from a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}
