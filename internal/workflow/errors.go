package workflow

import (
	"errors"
	"fmt"
)

// Fatal conditions. Everything else in the taxonomy is absorbed into state
// fields (Result, Reasoning.Confidence, Loop.ContinueReason) so the loop
// controller remains the single place that decides whether to retry.
var (
	// ErrActorNotFound aborts the run: there is nobody to reason for.
	ErrActorNotFound = errors.New("actor not found")

	// ErrNoCompletionClient indicates the engine was built without an
	// injected completion client.
	ErrNoCompletionClient = errors.New("no completion client configured")

	// ErrNoSubject indicates a trigger arrived without a subject.
	ErrNoSubject = errors.New("trigger has no subject")
)

// NodeError wraps a fatal failure inside a node with its position in the run.
type NodeError struct {
	Node      Step
	Iteration int
	Cause     error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("workflow %s failed (iteration %d): %v", e.Node, e.Iteration, e.Cause)
}

func (e *NodeError) Unwrap() error { return e.Cause }
