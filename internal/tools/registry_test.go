package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

type fakeDataTool struct {
	name   string
	result *Result
	err    error
	calls  int
}

func (t *fakeDataTool) Name() string            { return t.name }
func (t *fakeDataTool) Description() string     { return "fake data tool" }
func (t *fakeDataTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (t *fakeDataTool) Fetch(context.Context, map[string]any, ExecContext) (*Result, error) {
	t.calls++
	return t.result, t.err
}

type fakeActionTool struct {
	name   string
	result *Result
	err    error
	calls  int
}

func (t *fakeActionTool) Name() string            { return t.name }
func (t *fakeActionTool) Description() string     { return "fake action tool" }
func (t *fakeActionTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (t *fakeActionTool) Perform(context.Context, map[string]any, ExecContext) (*Result, error) {
	t.calls++
	return t.result, t.err
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeDataTool{name: "lookup", result: Ok("data")})

	tool, ok := r.Lookup("lookup")
	if !ok {
		t.Fatal("Lookup() did not find registered tool")
	}
	if tool.Name() != "lookup" {
		t.Errorf("Name() = %q, want lookup", tool.Name())
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup() found unregistered tool")
	}

	r.Unregister("lookup")
	if _, ok := r.Lookup("lookup"); ok {
		t.Error("Lookup() found unregistered tool after Unregister")
	}
}

func TestRegistryReplacesOnReRegister(t *testing.T) {
	r := NewRegistry()
	first := &fakeDataTool{name: "dup", result: Ok("first")}
	second := &fakeDataTool{name: "dup", result: Ok("second")}
	r.Register(first)
	r.Register(second)

	res, err := r.Execute(context.Background(), "dup", nil, ExecContext{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Data != "second" {
		t.Errorf("Data = %v, want second", res.Data)
	}
}

func TestRegistryCategoryIsTypeDistinction(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeDataTool{name: "read", result: Ok(nil)})
	r.Register(&fakeActionTool{name: "write", result: Ok(nil)})

	if r.IsActionTool("read") {
		t.Error("IsActionTool(read) = true, want false")
	}
	if !r.IsActionTool("write") {
		t.Error("IsActionTool(write) = false, want true")
	}
	if r.IsActionTool("missing") {
		t.Error("IsActionTool(missing) = true, want false")
	}
}

func TestRegistryDataToolsCuratesSubset(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeDataTool{name: "a", result: Ok(nil)})
	r.Register(&fakeDataTool{name: "b", result: Ok(nil)})
	r.Register(&fakeActionTool{name: "c", result: Ok(nil)})

	got := r.DataTools([]string{"a", "c", "missing", "b"})
	if len(got) != 2 {
		t.Fatalf("DataTools() = %d tools, want 2 (action tools and unknowns skipped)", len(got))
	}
	if got[0].Name() != "a" || got[1].Name() != "b" {
		t.Errorf("DataTools() order = [%s, %s], want requested order", got[0].Name(), got[1].Name())
	}
}

func TestRegistryExecuteMissingToolIsResultNotError(t *testing.T) {
	r := NewRegistry()
	res, err := r.Execute(context.Background(), "missing", nil, ExecContext{})
	if err != nil {
		t.Fatalf("Execute() error = %v, want failure expressed in the result", err)
	}
	if res.Success {
		t.Error("Success = true for missing tool")
	}
	if !strings.Contains(res.Error, "tool not found") {
		t.Errorf("Error = %q, want tool-not-found message", res.Error)
	}
}

func TestRegistryExecuteDispatchesByCategory(t *testing.T) {
	r := NewRegistry()
	data := &fakeDataTool{name: "read", result: Ok("payload")}
	action := &fakeActionTool{name: "write", result: Ok("done")}
	r.Register(data)
	r.Register(action)

	if res, _ := r.Execute(context.Background(), "read", nil, ExecContext{}); res.Data != "payload" {
		t.Errorf("data tool result = %v", res.Data)
	}
	if res, _ := r.Execute(context.Background(), "write", nil, ExecContext{}); res.Data != "done" {
		t.Errorf("action tool result = %v", res.Data)
	}
	if data.calls != 1 || action.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", data.calls, action.calls)
	}
}
