// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for chat completions.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request. Zero-valued fields in opts
	// fall back to the provider's configured defaults.
	Chat(ctx context.Context, messages []ChatMessage, opts CallOptions) (LLMResponse, error)
}

// CallOptions carries per-call generation parameters.
type CallOptions struct {
	// Temperature overrides the provider temperature when non-nil.
	Temperature *float32

	// MaxTokens overrides the provider output limit when non-zero.
	MaxTokens uint32

	// Format requests a response format. Providers without native
	// support ignore it.
	Format *ResponseFormat
}

// WithTemperature returns a copy of opts with the temperature set.
func (o CallOptions) WithTemperature(t float32) CallOptions {
	o.Temperature = &t
	return o
}

// WithMaxTokens returns a copy of opts with the output limit set.
func (o CallOptions) WithMaxTokens(n uint32) CallOptions {
	o.MaxTokens = n
	return o
}

// WithFormat returns a copy of opts with the response format set.
func (o CallOptions) WithFormat(f *ResponseFormat) CallOptions {
	o.Format = f
	return o
}

func (o CallOptions) temperatureOr(def float32) float32 {
	if o.Temperature != nil {
		return *o.Temperature
	}
	return def
}

func (o CallOptions) maxTokensOr(def uint32) uint32 {
	if o.MaxTokens != 0 {
		return o.MaxTokens
	}
	return def
}
