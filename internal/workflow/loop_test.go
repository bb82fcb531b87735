package workflow

import (
	"context"
	"testing"
)

func newCheckState(mutate func(*State)) *State {
	state := NewState(messageScope("luna", "user-1", "hi", false, 0), DefaultMaxIterations)
	state.Step = StepLoopCheck
	state.Observation = &Observation{Actor: testActor("luna", 10), Summary: "trigger: message"}
	state.Reasoning = &Reasoning{Confidence: 0.8, Decision: &Decision{Action: "send_message", Confidence: 0.8}}
	state.Action = &Action{Type: "send_message", Target: "user-1", Metadata: ActionMetadata{Confidence: 0.8}}
	state.Result = &Result{Success: true, HeatCost: 2}
	if mutate != nil {
		mutate(state)
	}
	return state
}

func checkOnce(t *testing.T, state *State) *Delta {
	t.Helper()
	controller := NewController(newTestRegistry(), nil)
	d, err := controller.Check(context.Background(), state)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	return d
}

func TestCheckIterationBudgetExhausted(t *testing.T) {
	state := newCheckState(func(s *State) {
		s.Loop.Iteration = DefaultMaxIterations - 1
		// Even an unfinished plan cannot outrank the budget.
		s.Action.Metadata.Plan = make([]PlanStep, 10)
	})
	d := checkOnce(t, state)
	if d.Step != StepComplete || d.ContinueReason != ReasonGoalNotMet {
		t.Errorf("got (%q, %q), want (complete, goal_not_met)", d.Step, d.ContinueReason)
	}
}

func TestCheckHeatCeiling(t *testing.T) {
	state := newCheckState(func(s *State) {
		s.Observation.Actor.Heat = HeatCeiling
		s.Action.GoalAchieved = true
	})
	d := checkOnce(t, state)
	if d.Step != StepComplete || d.ContinueReason != ReasonGoalNotMet {
		t.Errorf("got (%q, %q), want (complete, goal_not_met): heat outranks the goal rule",
			d.Step, d.ContinueReason)
	}
}

func TestCheckGoalAchieved(t *testing.T) {
	state := newCheckState(func(s *State) {
		s.Action.GoalAchieved = true
	})
	d := checkOnce(t, state)
	if d.Step != StepComplete || d.ContinueReason != ReasonGoalAchieved {
		t.Errorf("got (%q, %q), want (complete, goal_achieved)", d.Step, d.ContinueReason)
	}
}

func TestCheckPlanFastPathToAct(t *testing.T) {
	plan := []PlanStep{
		{Step: 1, Tool: "send_message", Args: map[string]any{"content": "a"}},
		{Step: 2, Tool: "create_post", Args: map[string]any{"content": "b"}},
	}
	state := newCheckState(func(s *State) {
		s.Action.Metadata.Plan = plan
	})
	d := checkOnce(t, state)
	if d.Step != StepAct || d.ContinueReason != ReasonNewInfo {
		t.Fatalf("got (%q, %q), want (act, new_info)", d.Step, d.ContinueReason)
	}
	if d.Action == nil || d.Action.Type != "create_post" {
		t.Errorf("synthesized action = %+v, want create_post", d.Action)
	}
	if d.Reasoning == nil || !d.Reasoning.Synthesized {
		t.Errorf("synthesized reasoning missing or not marked")
	}
	if d.Reasoning.Confidence != 0.8 {
		t.Errorf("synthesized confidence = %v, want carried-over 0.8", d.Reasoning.Confidence)
	}
}

func TestCheckPlanNonActionStepForcesReobservation(t *testing.T) {
	plan := []PlanStep{
		{Step: 1, Tool: "send_message"},
		{Step: 2, Tool: "get_relationship"}, // data tool, not directly executable
	}
	state := newCheckState(func(s *State) {
		s.Action.Metadata.Plan = plan
	})
	d := checkOnce(t, state)
	if d.Step != StepObserve || d.ContinueReason != ReasonNewInfo {
		t.Errorf("got (%q, %q), want (observe, new_info)", d.Step, d.ContinueReason)
	}
	if d.Action != nil {
		t.Errorf("no action must be synthesized for a non-action plan step")
	}
}

func TestCheckFailedActionRetriesReasoning(t *testing.T) {
	state := newCheckState(func(s *State) {
		s.Result = &Result{Success: false, Error: "downstream unavailable"}
	})
	d := checkOnce(t, state)
	if d.Step != StepReason || d.ContinueReason != ReasonToolFailure {
		t.Errorf("got (%q, %q), want (reason, tool_failure)", d.Step, d.ContinueReason)
	}
	if d.Observation != nil {
		t.Errorf("delta must not replace the observation on a failure retry")
	}
}

func TestCheckFailedPlanStepOutranksPlanContinuation(t *testing.T) {
	state := newCheckState(func(s *State) {
		s.Loop.Iteration = 1
		s.Action.Metadata.Plan = []PlanStep{
			{Step: 1, Tool: "send_message"},
			{Step: 2, Tool: "create_post"},
			{Step: 3, Tool: "join_battle"},
		}
		s.Result = &Result{Success: false, Error: "boom"}
	})
	d := checkOnce(t, state)
	if d.Step != StepReason || d.ContinueReason != ReasonToolFailure {
		t.Errorf("got (%q, %q), want (reason, tool_failure): a failed step abandons the plan",
			d.Step, d.ContinueReason)
	}
}

func TestCheckLowConfidenceReobserves(t *testing.T) {
	state := newCheckState(func(s *State) {
		s.Reasoning.Confidence = 0.2
	})
	d := checkOnce(t, state)
	if d.Step != StepObserve || d.ContinueReason != ReasonLowConfidence {
		t.Errorf("got (%q, %q), want (observe, low_confidence)", d.Step, d.ContinueReason)
	}
}

func TestCheckPersistentSenderContinues(t *testing.T) {
	state := newCheckState(func(s *State) {
		s.Scope.Trigger.IsResponse = true
		s.Action.Type = "decline_request"
	})
	d := checkOnce(t, state)
	if d.Step != StepObserve || d.ContinueReason != ReasonUserPersistence {
		t.Errorf("got (%q, %q), want (observe, user_persistence)", d.Step, d.ContinueReason)
	}
}

func TestCheckDefaultStops(t *testing.T) {
	d := checkOnce(t, newCheckState(nil))
	if d.Step != StepComplete || d.ContinueReason != ReasonGoalNotMet {
		t.Errorf("got (%q, %q), want (complete, goal_not_met)", d.Step, d.ContinueReason)
	}
}

func TestCheckAlwaysAppendsHistoryAndBumpsIteration(t *testing.T) {
	cases := []func(*State){
		nil,
		func(s *State) { s.Action.GoalAchieved = true },
		func(s *State) { s.Result = &Result{Success: false} },
		func(s *State) { s.Loop.Iteration = DefaultMaxIterations },
	}
	for i, mutate := range cases {
		state := newCheckState(mutate)
		before := state.Loop.Iteration
		d := checkOnce(t, state)
		if len(d.History) != 1 {
			t.Errorf("case %d: history entries = %d, want 1", i, len(d.History))
			continue
		}
		if d.Iteration == nil || *d.Iteration != before+1 {
			t.Errorf("case %d: iteration delta = %v, want %d", i, d.Iteration, before+1)
		}
		if d.History[0].Iteration != before+1 {
			t.Errorf("case %d: history iteration = %d, want %d", i, d.History[0].Iteration, before+1)
		}
	}
}
