package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/duskpoint/reverie/internal/tools"
)

// Controller evaluates the prioritized continuation rules after each Act.
// It is a pure function of state: first matching rule wins, every evaluation
// appends exactly one history entry for the iteration just completed.
type Controller struct {
	registry *tools.Registry
	log      *slog.Logger
}

// NewController creates the loop-check node.
func NewController(registry *tools.Registry, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{registry: registry, log: log}
}

// Check applies the rules and produces the transition delta. The returned
// delta always carries the history entry and the bumped iteration counter; the
// rules only choose the next step and the reason.
func (c *Controller) Check(ctx context.Context, state *State) (*Delta, error) {
	completed := state.Loop.Iteration + 1

	d := &Delta{
		Iteration: &completed,
		History: []HistoryEntry{{
			Iteration:   completed,
			Observation: state.Observation,
			Reasoning:   state.Reasoning,
			Action:      state.Action,
			Result:      state.Result,
			Timestamp:   time.Now(),
		}},
	}

	step, reason := c.decide(state, completed, d)
	d.Step = step
	d.ContinueReason = reason

	c.log.Debug("loop check",
		"actor_id", state.Scope.ActorID,
		"iteration", completed,
		"next_step", step,
		"reason", reason)
	return d, nil
}

// decide picks the transition. Rules, in priority order:
//
//  1. iteration budget exhausted         → stop
//  2. heat at or above the ceiling       → stop
//  3. goal achieved                      → stop
//  4. plan steps remain                  → continue (Act fast-path or Observe)
//  5. last action failed                 → continue, retry reasoning
//  6. low decision confidence            → continue, re-observe
//  7. persistent sender after a decline  → continue, re-observe
//  8. nothing else applies               → stop
func (c *Controller) decide(state *State, completed int, d *Delta) (Step, ContinueReason) {
	if completed >= state.Loop.MaxIterations {
		return StepComplete, ReasonGoalNotMet
	}

	if state.Observation != nil && state.Observation.Actor != nil &&
		state.Observation.Actor.Heat >= HeatCeiling {
		return StepComplete, ReasonGoalNotMet
	}

	if state.Action != nil && state.Action.GoalAchieved {
		return StepComplete, ReasonGoalAchieved
	}

	// A failed step abandons the plan: the failure rule below routes back
	// to reasoning instead of blindly executing the next step.
	if plan := currentPlan(state); len(plan) > 1 && completed < len(plan) && lastSucceeded(state) {
		next := plan[completed]
		if c.registry.IsActionTool(next.Tool) {
			// Pre-committed action step: skip Observe/Reason and
			// synthesize the decision from the plan entry.
			c.synthesize(state, d, plan, next)
			return StepAct, ReasonNewInfo
		}
		return StepObserve, ReasonNewInfo
	}

	if state.Result != nil && !state.Result.Success {
		// The prior observation stays in place so the retry sees the
		// failure context.
		return StepReason, ReasonToolFailure
	}

	if state.Reasoning != nil && state.Reasoning.Confidence < LowConfidenceFloor {
		return StepObserve, ReasonLowConfidence
	}

	if state.Scope.Trigger.IsResponse && isDecline(state.Action) {
		return StepObserve, ReasonUserPersistence
	}

	return StepComplete, ReasonGoalNotMet
}

// synthesize fabricates the next iteration's reasoning and action from a plan
// entry, carrying the prior confidence forward.
func (c *Controller) synthesize(state *State, d *Delta, plan []PlanStep, next PlanStep) {
	confidence := 0.5
	if state.Reasoning != nil {
		confidence = state.Reasoning.Confidence
	}
	decision := &Decision{
		Action:     next.Tool,
		Args:       next.Args,
		Reasoning:  next.Description,
		Confidence: confidence,
		Plan:       plan,
	}
	d.Reasoning = &Reasoning{
		Decision:    decision,
		Confidence:  confidence,
		Synthesized: true,
	}
	d.Action = &Action{
		Type:    next.Tool,
		Target:  resolveTarget(next.Args, state.Scope.Subject),
		Content: contentFromArgs(next.Args),
		Metadata: ActionMetadata{
			Args:       next.Args,
			Plan:       plan,
			Confidence: confidence,
		},
	}
}

func currentPlan(state *State) []PlanStep {
	if state.Action == nil {
		return nil
	}
	return state.Action.Metadata.Plan
}

func lastSucceeded(state *State) bool {
	return state.Result == nil || state.Result.Success
}

func isDecline(action *Action) bool {
	if action == nil {
		return false
	}
	return action.Type == "decline" || action.Type == "decline_request"
}
