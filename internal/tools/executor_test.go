package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// funcDataTool adapts a function to a DataTool for executor tests.
type funcDataTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (*Result, error)
}

func (t *funcDataTool) Name() string            { return t.name }
func (t *funcDataTool) Description() string     { return "func data tool" }
func (t *funcDataTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (t *funcDataTool) Fetch(ctx context.Context, args map[string]any, _ ExecContext) (*Result, error) {
	return t.fn(ctx, args)
}

func newExecutorForTest(r *Registry) *Executor {
	return NewExecutor(r, &ExecutorConfig{
		MaxConcurrency: 3,
		DefaultTimeout: 200 * time.Millisecond,
		DefaultRetries: 1,
		RetryBackoff:   time.Millisecond,
	})
}

func TestExecuteAllReturnsResultsInInputOrder(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("tool_%d", i)
		payload := name
		r.Register(&funcDataTool{name: name, fn: func(context.Context, map[string]any) (*Result, error) {
			return Ok(payload), nil
		}})
	}

	calls := make([]Call, 5)
	for i := range calls {
		calls[i] = Call{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("tool_%d", i)}
	}

	executions := newExecutorForTest(r).ExecuteAll(context.Background(), calls, ExecContext{})
	if len(executions) != 5 {
		t.Fatalf("executions = %d, want 5", len(executions))
	}
	for i, exec := range executions {
		if exec == nil {
			t.Fatalf("executions[%d] is nil, every slot must be populated", i)
		}
		want := fmt.Sprintf("tool_%d", i)
		if exec.ToolName != want || exec.Result == nil || exec.Result.Data != want {
			t.Errorf("executions[%d] = %+v, want %s", i, exec, want)
		}
	}
}

func TestExecuteAllEmptyCalls(t *testing.T) {
	if got := newExecutorForTest(NewRegistry()).ExecuteAll(context.Background(), nil, ExecContext{}); got != nil {
		t.Errorf("ExecuteAll(nil) = %v, want nil", got)
	}
}

func TestExecuteRespectsConcurrencyLimit(t *testing.T) {
	var mu sync.Mutex
	var inFlight, peak int

	r := NewRegistry()
	r.Register(&funcDataTool{name: "slow", fn: func(context.Context, map[string]any) (*Result, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return Ok(nil), nil
	}})

	calls := make([]Call, 10)
	for i := range calls {
		calls[i] = Call{ID: fmt.Sprintf("c%d", i), Name: "slow"}
	}
	newExecutorForTest(r).ExecuteAll(context.Background(), calls, ExecContext{})

	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestExecuteRetriesTransientFaults(t *testing.T) {
	var attempts int
	r := NewRegistry()
	r.Register(&funcDataTool{name: "flaky", fn: func(context.Context, map[string]any) (*Result, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return Ok("recovered"), nil
	}})

	exec := newExecutorForTest(r).Execute(context.Background(), Call{ID: "c1", Name: "flaky"}, ExecContext{})
	if exec.Err != nil {
		t.Fatalf("Execute() fault = %v, want recovery on retry", exec.Err)
	}
	if exec.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", exec.Attempts)
	}
	if exec.Result.Data != "recovered" {
		t.Errorf("Data = %v, want recovered", exec.Result.Data)
	}
}

func TestExecuteDoesNotRetryPermanentFaults(t *testing.T) {
	var attempts int
	r := NewRegistry()
	r.Register(&funcDataTool{name: "broken", fn: func(context.Context, map[string]any) (*Result, error) {
		attempts++
		return nil, errors.New("invalid argument")
	}})

	exec := newExecutorForTest(r).Execute(context.Background(), Call{ID: "c1", Name: "broken"}, ExecContext{})
	if exec.Err == nil {
		t.Fatal("Execute() fault = nil, want execution fault")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (execution faults are not retryable)", attempts)
	}
}

func TestExecuteIsolatesPanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&funcDataTool{name: "bomb", fn: func(context.Context, map[string]any) (*Result, error) {
		panic("kaboom")
	}})

	exec := newExecutorForTest(r).Execute(context.Background(), Call{ID: "c1", Name: "bomb"}, ExecContext{})
	if exec.Err == nil {
		t.Fatal("Execute() fault = nil, want panic fault")
	}
	var toolErr *Error
	if !errors.As(exec.Err, &toolErr) || toolErr.Type != ErrorPanic {
		t.Errorf("fault = %v, want typed panic fault", exec.Err)
	}
	if !strings.Contains(exec.Err.Error(), "kaboom") {
		t.Errorf("fault message %q missing panic value", exec.Err.Error())
	}
}

func TestExecuteTimesOut(t *testing.T) {
	r := NewRegistry()
	r.Register(&funcDataTool{name: "hang", fn: func(ctx context.Context, _ map[string]any) (*Result, error) {
		<-ctx.Done()
		time.Sleep(time.Second)
		return Ok(nil), nil
	}})

	exec := NewExecutor(r, &ExecutorConfig{
		MaxConcurrency: 1,
		DefaultTimeout: 10 * time.Millisecond,
		DefaultRetries: 0,
		RetryBackoff:   time.Millisecond,
	}).Execute(context.Background(), Call{ID: "c1", Name: "hang"}, ExecContext{})

	if exec.Err == nil {
		t.Fatal("Execute() fault = nil, want timeout")
	}
	var toolErr *Error
	if !errors.As(exec.Err, &toolErr) || toolErr.Type != ErrorTimeout {
		t.Errorf("fault = %v, want timeout fault", exec.Err)
	}
}

func TestToResultFlattensFaults(t *testing.T) {
	ok := &Execution{Result: Ok("data")}
	if res := ok.ToResult(); !res.Success || res.Data != "data" {
		t.Errorf("ToResult() = %+v, want passthrough", res)
	}

	faulted := &Execution{Err: NewError("x", errors.New("boom"))}
	if res := faulted.ToResult(); res.Success || res.Error == "" {
		t.Errorf("ToResult() = %+v, want failed result", res)
	}

	empty := &Execution{}
	if res := empty.ToResult(); res.Success {
		t.Errorf("ToResult() = %+v, want failure for missing result", res)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorType
	}{
		{errors.New("dial tcp: connection refused"), ErrorNetwork},
		{errors.New("context deadline exceeded"), ErrorTimeout},
		{errors.New("field missing"), ErrorExecution},
		{fmt.Errorf("wrapped: %w", ErrToolNotFound), ErrorNotFound},
		{fmt.Errorf("wrapped: %w", ErrToolPanic), ErrorPanic},
	}
	for _, tc := range cases {
		if got := NewError("t", tc.err).Type; got != tc.want {
			t.Errorf("classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(errors.New("network unreachable")) {
		t.Error("network fault should be retryable")
	}
	if IsRetryable(errors.New("schema mismatch")) {
		t.Error("execution fault should not be retryable")
	}
	if IsRetryable(NewError("t", errors.New("boom")).WithType(ErrorPanic)) {
		t.Error("panic fault should not be retryable")
	}
	if !IsRetryable(NewError("t", errors.New("boom")).WithType(ErrorTimeout)) {
		t.Error("timeout fault should be retryable")
	}
}

func TestExecutionHookReportsOutcomes(t *testing.T) {
	r := NewRegistry()
	r.Register(&funcDataTool{name: "fine", fn: func(context.Context, map[string]any) (*Result, error) {
		return Ok("data"), nil
	}})
	r.Register(&funcDataTool{name: "refused", fn: func(context.Context, map[string]any) (*Result, error) {
		return Errorf("not allowed"), nil
	}})
	r.Register(&funcDataTool{name: "faulty", fn: func(context.Context, map[string]any) (*Result, error) {
		return nil, errors.New("invalid argument")
	}})

	var mu sync.Mutex
	type report struct {
		tool   string
		status string
	}
	var reports []report
	e := NewExecutor(r, &ExecutorConfig{
		MaxConcurrency: 3,
		DefaultTimeout: 200 * time.Millisecond,
		DefaultRetries: 0,
		RetryBackoff:   time.Millisecond,
		Hook: func(tool, status string, _ time.Duration) {
			mu.Lock()
			reports = append(reports, report{tool, status})
			mu.Unlock()
		},
	})

	e.Execute(context.Background(), Call{ID: "c1", Name: "fine"}, ExecContext{})
	e.Execute(context.Background(), Call{ID: "c2", Name: "refused"}, ExecContext{})
	e.Execute(context.Background(), Call{ID: "c3", Name: "faulty"}, ExecContext{})
	e.ReportCached("fine")

	mu.Lock()
	defer mu.Unlock()
	want := []report{
		{"fine", "success"},
		{"refused", "error"},
		{"faulty", "error"},
		{"fine", "cached"},
	}
	if len(reports) != len(want) {
		t.Fatalf("reports = %v, want %v", reports, want)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Errorf("reports[%d] = %v, want %v", i, reports[i], want[i])
		}
	}
}

func TestExecutionHookUnsetIsSafe(t *testing.T) {
	r := NewRegistry()
	r.Register(&funcDataTool{name: "fine", fn: func(context.Context, map[string]any) (*Result, error) {
		return Ok("data"), nil
	}})
	e := newExecutorForTest(r)

	exec := e.Execute(context.Background(), Call{ID: "c1", Name: "fine"}, ExecContext{})
	if exec.Err != nil || exec.Result == nil || !exec.Result.Success {
		t.Errorf("Execute() = %+v, want success without a hook", exec)
	}
	e.ReportCached("fine")
}
