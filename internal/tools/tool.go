// Package tools defines the typed tool capability model: a registry of named
// callables split into read-only data tools and state-changing action tools,
// plus a parallel executor with timeout, retry, and panic isolation.
//
// Category is a type distinction, not a string tag. A tool is executable as a
// plan step exactly when it satisfies ActionTool; callers check with a type
// assertion instead of consulting a lookup table.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ExecContext carries the workflow identity into tool invocations.
type ExecContext struct {
	// AgentID is the actor the workflow acts on behalf of.
	AgentID string `json:"agent_id"`

	// ConversationID scopes the invocation to one conversation thread.
	ConversationID string `json:"conversation_id,omitempty"`

	// TriggerID identifies the event that started the workflow run.
	TriggerID string `json:"trigger_id,omitempty"`

	// Metadata is free-form per-run context.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is the uniform outcome of a tool invocation. Failures are expressed
// through the payload, never through panics; an invocation-level error return
// is reserved for infrastructure faults (timeout, panic, cancellation).
type Result struct {
	// Success reports whether the tool did what it was asked.
	Success bool `json:"success"`

	// Data is the tool's output payload when Success is true.
	Data any `json:"data,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`
}

// Tool is the common surface of every registered capability.
type Tool interface {
	// Name returns the tool name used for LLM function calling and plan
	// steps. Must be alphanumeric/underscore.
	Name() string

	// Description returns a natural-language description used by the
	// reasoning step to decide when to call the tool.
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() json.RawMessage
}

// DataTool is a read-only, side-effect-free capability. Data tools are
// assumed idempotent within one workflow run, which is what makes the
// per-run result cache sound.
type DataTool interface {
	Tool

	// Fetch reads and returns data. It must not mutate external state.
	Fetch(ctx context.Context, args map[string]any, ec ExecContext) (*Result, error)
}

// ActionTool is a capability that causes externally visible state change.
// Only action tools are directly executable as plan steps by the loop
// controller without a fresh reasoning pass.
type ActionTool interface {
	Tool

	// Perform executes the action exactly once.
	Perform(ctx context.Context, args map[string]any, ec ExecContext) (*Result, error)
}

// IsAction reports whether the tool causes state change.
func IsAction(t Tool) bool {
	_, ok := t.(ActionTool)
	return ok
}

// Errorf builds a failed Result from a format string.
func Errorf(format string, args ...any) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Ok builds a successful Result carrying data.
func Ok(data any) *Result {
	return &Result{Success: true, Data: data}
}
