package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubClient struct {
	resp *Response
	err  error
}

func (c *stubClient) Complete(context.Context, *Request) (*Response, error) {
	return c.resp, c.err
}

func (c *stubClient) Name() string { return "stub" }

func TestObservedReportsEveryCall(t *testing.T) {
	inner := &stubClient{resp: &Response{Content: "ok", TokensUsed: 7}}

	var gotReq *Request
	var gotResp *Response
	var gotErr error
	var gotElapsed time.Duration
	client := Observed(inner, HookFunc(func(_ context.Context, req *Request, resp *Response, err error, elapsed time.Duration) {
		gotReq, gotResp, gotErr, gotElapsed = req, resp, err, elapsed
	}))

	req := &Request{Messages: []Message{{Role: "user", Content: "hi"}}}
	resp, err := client.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want passthrough", resp.Content)
	}
	if gotReq != req || gotResp != resp || gotErr != nil {
		t.Errorf("hook saw req=%p resp=%p err=%v, want the call's own values", gotReq, gotResp, gotErr)
	}
	if gotElapsed < 0 {
		t.Errorf("elapsed = %v, want non-negative", gotElapsed)
	}
	if client.Name() != "stub" {
		t.Errorf("Name() = %q, want delegation to the wrapped client", client.Name())
	}
}

func TestObservedReportsFailures(t *testing.T) {
	boom := errors.New("boom")
	inner := &stubClient{err: boom}

	var gotErr error
	client := Observed(inner, HookFunc(func(_ context.Context, _ *Request, _ *Response, err error, _ time.Duration) {
		gotErr = err
	}))

	if _, err := client.Complete(context.Background(), &Request{}); !errors.Is(err, boom) {
		t.Fatalf("Complete() error = %v, want boom", err)
	}
	if !errors.Is(gotErr, boom) {
		t.Errorf("hook error = %v, want the call's error", gotErr)
	}
}

func TestObservedNilHookReturnsClientUnchanged(t *testing.T) {
	inner := &stubClient{resp: &Response{Content: "ok"}}
	if got := Observed(inner, nil); got != CompletionClient(inner) {
		t.Errorf("Observed(client, nil) = %T, want the original client", got)
	}
}
