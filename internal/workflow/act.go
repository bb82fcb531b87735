package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/duskpoint/reverie/internal/actors"
	"github.com/duskpoint/reverie/internal/tools"
)

// Heat costs per action type. Unlisted actions pay the default; ignoring is
// free so a worn-down actor always has an exit.
const defaultHeatCost = 3

var heatCosts = map[string]float64{
	"send_message":    2,
	"conversation":    2,
	"decline_request": 1,
	"decline":         1,
	"ignore":          0,
	"join_battle":     15,
	"create_post":     5,
}

// HeatCostFor returns the heat cost of an action type.
func HeatCostFor(actionType string) float64 {
	if c, ok := heatCosts[actionType]; ok {
		return c
	}
	return defaultHeatCost
}

// Actuator executes exactly one action per iteration and applies its side
// effects: heat accounting, the action record, and coherence telemetry. All
// of those are advisory; only the engine-level contract (one attempt, one
// history entry) is strict.
type Actuator struct {
	registry *tools.Registry
	store    actors.Store
	log      *slog.Logger
}

// NewActuator creates the Act node.
func NewActuator(registry *tools.Registry, store actors.Store, log *slog.Logger) *Actuator {
	if log == nil {
		log = slog.Default()
	}
	return &Actuator{registry: registry, store: store, log: log}
}

// Act executes the decided action. Execution failure is not fatal: it becomes
// a failed Result for the loop controller to judge.
func (a *Actuator) Act(ctx context.Context, state *State) (*Delta, error) {
	if state.Action == nil {
		return nil, fmt.Errorf("act requires a decided action")
	}
	action := *state.Action

	toolResult, err := a.registry.Execute(ctx, action.Type, action.Metadata.Args, execContext(state.Scope))
	if err != nil {
		// Infrastructure fault, absorbed the same way as a tool failure.
		toolResult = &tools.Result{Success: false, Error: err.Error()}
	}

	result := &Result{
		Success: toolResult.Success,
		Data:    toolResult.Data,
		Error:   toolResult.Error,
	}

	var observation *Observation
	if result.Success {
		result.HeatCost = HeatCostFor(action.Type)
		observation = a.applyHeat(ctx, state, result.HeatCost)
		result.Coherence = coherenceFor(state, action)
	}
	a.recordAction(ctx, state, &action, result)

	action.GoalAchieved = result.Success && planSatisfied(state, &action)

	return &Delta{
		Step:            StepLoopCheck,
		Action:          &action,
		Result:          result,
		Observation:     observation,
		ExecutedActions: []string{action.Type},
	}, nil
}

// planSatisfied reports whether this successful action completes the goal: a
// single-step decision is always complete, a multi-step plan only on its last
// step.
func planSatisfied(state *State, action *Action) bool {
	if len(action.Metadata.Plan) <= 1 {
		return true
	}
	return state.Loop.Iteration+1 >= len(action.Metadata.Plan)
}

// applyHeat charges the action's heat cost, persists it, and returns a
// refreshed observation so later iterations reason from the new heat. The
// write is non-fatal; in-memory state is updated regardless.
func (a *Actuator) applyHeat(ctx context.Context, state *State, cost float64) *Observation {
	if cost == 0 || state.Observation == nil || state.Observation.Actor == nil {
		return nil
	}

	updated := *state.Observation
	actor := *state.Observation.Actor
	actor.Heat = actors.ClampResource(actor.Heat + cost)
	updated.Actor = &actor

	if a.store != nil {
		if err := a.store.UpdateHeat(ctx, actor.ID, actor.Heat); err != nil {
			a.log.Warn("heat write failed", "actor_id", actor.ID, "error", err)
		}
	}
	return &updated
}

// recordAction persists one record per attempted action, successful or not.
// A write failure is logged and swallowed: the action already happened,
// losing the record must not unwind the run.
func (a *Actuator) recordAction(ctx context.Context, state *State, action *Action, result *Result) {
	if a.store == nil {
		return
	}
	rec := &actors.ActionRecord{
		AgentID:    state.Scope.ActorID,
		ActionType: action.Type,
		TargetID:   action.Target,
		Metadata: map[string]any{
			"content":    action.Content,
			"success":    result.Success,
			"heat_cost":  result.HeatCost,
			"iteration":  state.Loop.Iteration,
			"confidence": action.Metadata.Confidence,
			"coherence":  result.Coherence,
		},
	}
	if err := a.store.RecordAction(ctx, rec); err != nil {
		a.log.Warn("action record write failed",
			"actor_id", state.Scope.ActorID, "action", action.Type, "error", err)
	}
}

// coherenceFor scores how in-character the chosen action is, on the same
// [0, 100] scale as the stored actor coherence. It blends the decision
// confidence with the alignment between the action type and the actor's
// identity axes. Purely advisory telemetry.
func coherenceFor(state *State, action Action) float64 {
	score := action.Metadata.Confidence
	if state.Observation == nil || state.Observation.Actor == nil {
		return 100 * clamp01(score)
	}
	id := state.Observation.Actor.Identity

	switch action.Type {
	case "join_battle":
		score += 0.15 * -id.PowerHarmony
		score += 0.1 * id.OrderChaos
	case "send_message", "conversation", "create_post":
		score += 0.15 * id.SelfCommunity
	case "decline_request", "decline":
		score += 0.1 * -id.SelfCommunity
	case "ignore":
		score += 0.1 * -id.LogicEmotion
	}
	return 100 * clamp01(score)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
