package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duskpoint/reverie/internal/actors"
	"github.com/duskpoint/reverie/internal/llm"
	"github.com/duskpoint/reverie/internal/tools"
)

// fakeClient is a scripted CompletionClient. Each Complete call pops the next
// response; running out of script is a test bug surfaced as an error.
type fakeClient struct {
	mu        sync.Mutex
	responses []*llm.Response
	requests  []*llm.Request
}

func newFakeClient(responses ...*llm.Response) *fakeClient {
	return &fakeClient{responses: responses}
}

func (f *fakeClient) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("fake client script exhausted after %d calls", len(f.requests))
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func textResponse(content string) *llm.Response {
	return &llm.Response{Content: content, TokensUsed: 10}
}

func toolCallResponse(calls ...llm.ToolCall) *llm.Response {
	return &llm.Response{ToolCalls: calls, TokensUsed: 10}
}

// countingDataTool counts dispatches so tests can assert cache behavior.
type countingDataTool struct {
	name  string
	data  any
	calls atomic.Int32
}

func (t *countingDataTool) Name() string        { return t.name }
func (t *countingDataTool) Description() string { return "test data tool" }
func (t *countingDataTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}

func (t *countingDataTool) Fetch(context.Context, map[string]any, tools.ExecContext) (*tools.Result, error) {
	t.calls.Add(1)
	return tools.Ok(t.data), nil
}

// scriptedActionTool returns its scripted results in order, repeating the last
// one when the script runs out.
type scriptedActionTool struct {
	name    string
	results []*tools.Result
	mu      sync.Mutex
	calls   int
}

func (t *scriptedActionTool) Name() string        { return t.name }
func (t *scriptedActionTool) Description() string { return "test action tool" }
func (t *scriptedActionTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}

func (t *scriptedActionTool) Perform(context.Context, map[string]any, tools.ExecContext) (*tools.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.calls
	t.calls++
	if idx >= len(t.results) {
		idx = len(t.results) - 1
	}
	if idx < 0 {
		return tools.Ok(nil), nil
	}
	return t.results[idx], nil
}

func (t *scriptedActionTool) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func okActionTool(name string) *scriptedActionTool {
	return &scriptedActionTool{name: name, results: []*tools.Result{tools.Ok(nil)}}
}

// newTestRegistry installs the standard test tool set.
func newTestRegistry(extra ...tools.Tool) *tools.Registry {
	r := tools.NewRegistry()
	r.Register(okActionTool("send_message"))
	r.Register(okActionTool("decline_request"))
	r.Register(okActionTool("ignore"))
	r.Register(okActionTool("join_battle"))
	r.Register(okActionTool("create_post"))
	for _, t := range extra {
		r.Register(t)
	}
	return r
}

func newTestExecutor(r *tools.Registry) *tools.Executor {
	return tools.NewExecutor(r, &tools.ExecutorConfig{
		MaxConcurrency: 4,
		DefaultTimeout: time.Second,
		DefaultRetries: 0,
		RetryBackoff:   time.Millisecond,
	})
}

func testActor(id string, heat float64) *actors.Actor {
	return &actors.Actor{
		ID:     id,
		Name:   "Test Actor",
		Morale: 60,
		Energy: 70,
		Heat:   heat,
	}
}

func messageScope(actorID, senderID, content string, isResponse bool, persistence int) Scope {
	return Scope{
		ActorID:        actorID,
		ConversationID: "conv-1",
		Trigger: Trigger{
			Type:       TriggerMessage,
			EventID:    "evt-1",
			UserID:     senderID,
			Timestamp:  time.Now(),
			IsResponse: isResponse,
		},
		Subject: DirectMessage{
			ID:               "msg-1",
			FromID:           senderID,
			Content:          content,
			PersistenceLevel: persistence,
		},
	}
}

func decisionJSON(action string, confidence float64) string {
	return fmt.Sprintf(`{"action": %q, "args": {}, "reasoning": "test", "confidence": %g}`, action, confidence)
}
