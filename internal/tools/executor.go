package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// ExecutionHook observes finished tool executions. status is "success",
// "error", or "cached". Must never be used for control flow.
type ExecutionHook func(tool, status string, elapsed time.Duration)

// ExecutorConfig configures the parallel tool executor.
type ExecutorConfig struct {
	// MaxConcurrency limits the number of parallel tool executions.
	// Default: 5
	MaxConcurrency int

	// DefaultTimeout bounds a single tool execution.
	// Default: 30s
	DefaultTimeout time.Duration

	// DefaultRetries is the number of retries for retryable faults.
	// Default: 1
	DefaultRetries int

	// RetryBackoff is the initial backoff between retries.
	// Default: 100ms
	RetryBackoff time.Duration

	// Hook, when set, is called once per finished execution.
	Hook ExecutionHook
}

// DefaultExecutorConfig returns the default executor configuration.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		MaxConcurrency: 5,
		DefaultTimeout: 30 * time.Second,
		DefaultRetries: 1,
		RetryBackoff:   100 * time.Millisecond,
	}
}

// Call is one requested tool invocation.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// Execution is the outcome of one Call, successful or not. Result and Err
// are mutually exclusive; Err is reserved for infrastructure faults.
type Execution struct {
	CallID   string
	ToolName string
	Result   *Result
	Err      error
	Duration time.Duration
	Attempts int
}

// Executor dispatches tool calls in parallel with a concurrency semaphore,
// per-call timeouts, retry on transient faults, and panic isolation.
type Executor struct {
	registry *Registry
	config   *ExecutorConfig
	sem      chan struct{}
}

// NewExecutor creates a parallel tool executor over the given registry.
// If config is nil, DefaultExecutorConfig is used.
func NewExecutor(registry *Registry, config *ExecutorConfig) *Executor {
	if config == nil {
		config = DefaultExecutorConfig()
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultExecutorConfig().MaxConcurrency
	}
	return &Executor{
		registry: registry,
		config:   config,
		sem:      make(chan struct{}, config.MaxConcurrency),
	}
}

// Registry returns the executor's underlying registry.
func (e *Executor) Registry() *Registry { return e.registry }

// ExecuteAll dispatches every call concurrently and joins before returning.
// Results are returned in input order; every slot is populated, so partial
// completion is not a valid outcome.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call, ec ExecContext) []*Execution {
	if len(calls) == 0 {
		return nil
	}

	results := make([]*Execution, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c Call) {
			defer wg.Done()
			results[idx] = e.Execute(ctx, c, ec)
		}(i, call)
	}
	wg.Wait()
	return results
}

// Execute runs a single tool call with retry and timeout handling.
func (e *Executor) Execute(ctx context.Context, call Call, ec ExecContext) *Execution {
	exec := e.execute(ctx, call, ec)
	if e.config.Hook != nil {
		status := "success"
		if exec.Err != nil || exec.Result == nil || !exec.Result.Success {
			status = "error"
		}
		e.config.Hook(exec.ToolName, status, exec.Duration)
	}
	return exec
}

// ReportCached reports a call served from a per-run cache instead of a
// dispatch, so hook consumers see the full call volume.
func (e *Executor) ReportCached(tool string) {
	if e.config.Hook != nil {
		e.config.Hook(tool, "cached", 0)
	}
}

func (e *Executor) execute(ctx context.Context, call Call, ec ExecContext) *Execution {
	start := time.Now()
	exec := &Execution{CallID: call.ID, ToolName: call.Name}

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		exec.Err = NewError(call.Name, ctx.Err()).WithType(ErrorTimeout).WithCallID(call.ID)
		exec.Duration = time.Since(start)
		return exec
	}

	var lastErr error
	for attempt := 0; attempt <= e.config.DefaultRetries; attempt++ {
		exec.Attempts = attempt + 1

		result, err := e.executeWithTimeout(ctx, call, ec)
		if err == nil {
			exec.Result = result
			exec.Duration = time.Since(start)
			return exec
		}
		lastErr = err

		if !IsRetryable(err) || ctx.Err() != nil || attempt >= e.config.DefaultRetries {
			break
		}

		backoff := e.config.RetryBackoff * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = NewError(call.Name, ctx.Err()).WithType(ErrorTimeout).WithCallID(call.ID)
		}
	}

	exec.Err = lastErr
	exec.Duration = time.Since(start)
	return exec
}

func (e *Executor) executeWithTimeout(ctx context.Context, call Call, ec ExecContext) (*Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.config.DefaultTimeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				done <- outcome{err: NewError(call.Name, fmt.Errorf("panic: %v\n%s", r, stack)).
					WithType(ErrorPanic).
					WithCallID(call.ID)}
			}
		}()

		result, err := e.registry.Execute(execCtx, call.Name, call.Args, ec)
		if err != nil {
			done <- outcome{err: NewError(call.Name, err).WithCallID(call.ID)}
			return
		}
		done <- outcome{result: result}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, NewError(call.Name, ctx.Err()).
				WithType(ErrorTimeout).
				WithCallID(call.ID).
				WithMessage("context cancelled")
		}
		return nil, NewError(call.Name, ErrToolTimeout).
			WithType(ErrorTimeout).
			WithCallID(call.ID).
			WithMessage(fmt.Sprintf("execution timed out after %s", e.config.DefaultTimeout))
	}
}

// ToResult flattens an Execution into a Result payload, converting
// infrastructure faults into failed results so the reasoning step always
// sees a uniform shape.
func (x *Execution) ToResult() *Result {
	if x.Err != nil {
		return &Result{Success: false, Error: x.Err.Error()}
	}
	if x.Result == nil {
		return &Result{Success: false, Error: "tool produced no result"}
	}
	return x.Result
}
