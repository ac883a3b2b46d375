// LLMClient - Simple wrapper around providers.

package llm

import (
	"context"
	"fmt"
)

// Client wraps a Provider with a simple interface.
// A single Client is created at process start and shared by every
// planning and summarizing call.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// ChatWithUsage sends a chat completion request and returns content with token usage.
func (c *Client) ChatWithUsage(ctx context.Context, messages []ChatMessage, opts CallOptions) (string, *TokenUsage, error) {
	if c == nil || c.provider == nil {
		return "", nil, fmt.Errorf("llm client not configured")
	}
	response, err := c.provider.Chat(ctx, messages, opts)
	if err != nil {
		return "", nil, err
	}
	return response.Content, response.Usage, nil
}

// Provider returns the underlying provider, or nil for a nil client.
func (c *Client) Provider() Provider {
	if c == nil {
		return nil
	}
	return c.provider
}

// Describe returns "provider/model" for logs and CLI banners.
func (c *Client) Describe() string {
	if c == nil || c.provider == nil {
		return "none"
	}
	return c.provider.Name() + "/" + c.provider.Model()
}
