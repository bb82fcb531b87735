package tools

import (
	"context"
	"sync"
)

// Registry manages available tools with thread-safe registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry by its name.
// If a tool with the same name already exists, it is replaced.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool from the registry by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Lookup returns a tool by name and whether it was found. Callers that need
// the category use a type assertion on the returned value.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// IsActionTool reports whether the named tool exists and causes state change.
// The loop controller uses this to validate plan steps without executing them.
func (r *Registry) IsActionTool(name string) bool {
	tool, ok := r.Lookup(name)
	if !ok {
		return false
	}
	return IsAction(tool)
}

// DataTools returns all registered data tools whose names appear in names.
// Unknown names and action tools are skipped; the caller curates the subset
// it exposes to the reasoning step.
func (r *Registry) DataTools(names []string) []DataTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DataTool, 0, len(names))
	for _, name := range names {
		if dt, ok := r.tools[name].(DataTool); ok {
			out = append(out, dt)
		}
	}
	return out
}

// Execute runs a tool by name with the given arguments. A missing tool or a
// tool-level failure is expressed through the Result payload, not an error;
// the error return is reserved for infrastructure faults.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, ec ExecContext) (*Result, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return Errorf("tool not found: %s", name), nil
	}
	switch t := tool.(type) {
	case DataTool:
		return t.Fetch(ctx, args, ec)
	case ActionTool:
		return t.Perform(ctx, args, ec)
	default:
		return Errorf("tool %s has no executable category", name), nil
	}
}
