// Package llm defines the blocking completion-service contract the workflow
// engine reasons against, plus provider implementations for Anthropic and
// OpenAI. The engine treats the service as an opaque request/response call:
// it must tolerate responses with no tool calls and non-JSON content.
package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one entry in the conversation sent to the completion service.
// Role is "system", "user", or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolSchema describes one callable tool offered to the completion service.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is one tool invocation requested by the completion service.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Request contains all parameters for one completion call.
type Request struct {
	// Model selects the provider model; empty uses the provider default.
	Model string `json:"model,omitempty"`

	// System sets the assistant's behavior. Providers that have no
	// separate system slot fold it into the message list.
	System string `json:"system,omitempty"`

	// Messages is the conversation in chronological order.
	Messages []Message `json:"messages"`

	// Tools are the callable tool schemas offered for this request.
	Tools []ToolSchema `json:"tools,omitempty"`

	// Temperature controls sampling randomness.
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens bounds the generated response length.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Response is the completion service's reply. ToolCalls may be empty and
// Content may be arbitrary non-JSON text; callers parse defensively.
type Response struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	TokensUsed int        `json:"tokens_used"`
	Model      string     `json:"model"`
}

// CompletionClient is the injected completion-service dependency. The engine
// never constructs a concrete provider itself, so tests can substitute a
// deterministic fake.
//
// Implementations must be safe for concurrent use. Calls block until the
// service responds; timeouts belong to the client, not the caller.
type CompletionClient interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// Hook observes completion calls for audit and debugging. It must never be
// used for control flow; errors raised by a hook are ignored.
type Hook interface {
	OnCompletion(ctx context.Context, req *Request, resp *Response, err error, elapsed time.Duration)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, req *Request, resp *Response, err error, elapsed time.Duration)

func (f HookFunc) OnCompletion(ctx context.Context, req *Request, resp *Response, err error, elapsed time.Duration) {
	f(ctx, req, resp, err, elapsed)
}

// Observed wraps a client so every call is reported to the hook.
func Observed(client CompletionClient, hook Hook) CompletionClient {
	if hook == nil {
		return client
	}
	return &observedClient{client: client, hook: hook}
}

type observedClient struct {
	client CompletionClient
	hook   Hook
}

func (c *observedClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	resp, err := c.client.Complete(ctx, req)
	c.hook.OnCompletion(ctx, req, resp, err, time.Since(start))
	return resp, err
}

func (c *observedClient) Name() string { return c.client.Name() }
