package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duskpoint/reverie/internal/actors"
	"github.com/duskpoint/reverie/internal/llm"
	"github.com/duskpoint/reverie/internal/tools"
)

// Reasoner runs the two-phase reasoning protocol: an information-gathering
// phase offering a curated subset of data tools, then a decision phase that
// must emit a single structured decision. Parsing failures never propagate;
// the fallback decision keeps the workflow moving.
type Reasoner struct {
	client   llm.CompletionClient
	registry *tools.Registry
	executor *tools.Executor
	store    actors.Store
	log      *slog.Logger

	temperature float64
	maxTokens   int
}

// NewReasoner creates the Reason node. The completion client is an injected
// dependency; tests substitute a deterministic fake.
func NewReasoner(client llm.CompletionClient, executor *tools.Executor, store actors.Store, log *slog.Logger) *Reasoner {
	if log == nil {
		log = slog.Default()
	}
	return &Reasoner{
		client:      client,
		registry:    executor.Registry(),
		executor:    executor,
		store:       store,
		log:         log,
		temperature: 0.7,
		maxTokens:   1024,
	}
}

// Reason executes both phases and produces the iteration's decision.
func (r *Reasoner) Reason(ctx context.Context, state *State) (*Delta, error) {
	if r.client == nil {
		return nil, ErrNoCompletionClient
	}
	if state.Observation == nil || state.Observation.Actor == nil {
		return nil, fmt.Errorf("reason requires an observation")
	}

	actor := state.Observation.Actor
	messages := []llm.Message{
		{Role: "user", Content: r.userPrompt(state)},
	}
	system := r.systemPrompt(actor)
	schemas := r.toolSchemas(dataToolNamesFor(state.Scope))

	// Phase 1: information gathering.
	gather, err := r.client.Complete(ctx, &llm.Request{
		System:      system,
		Messages:    messages,
		Tools:       schemas,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("gathering completion failed: %w", err)
	}
	tokens := gather.TokensUsed

	var decision *Decision
	var parsed bool
	transcript := append([]llm.Message{}, messages...)
	transcript = append(transcript, llm.Message{Role: "assistant", Content: gather.Content})

	if len(gather.ToolCalls) == 0 {
		// Degenerate path: no information requested, the text is the
		// decision. It must still parse into the structured shape.
		decision, parsed = ParseDecision(gather.Content)
	} else {
		// Phase 2: every requested call dispatched concurrently; all
		// results, success and failure alike, are joined and summarized.
		results := r.dispatchToolCalls(ctx, state, gather.ToolCalls)
		summary := summarizeToolResults(gather.ToolCalls, results)
		transcript = append(transcript, llm.Message{Role: "user", Content: summary})

		// Phase 3: decision.
		decideMsgs := make([]llm.Message, 0, len(transcript)+1)
		decideMsgs = append(decideMsgs, transcript...)
		decideMsgs = append(decideMsgs, llm.Message{Role: "user", Content: decisionInstruction})
		decide, err := r.client.Complete(ctx, &llm.Request{
			System:      system,
			Messages:    decideMsgs,
			Temperature: r.temperature,
			MaxTokens:   r.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("decision completion failed: %w", err)
		}
		tokens += decide.TokensUsed
		transcript = append(transcript, llm.Message{Role: "assistant", Content: decide.Content})
		decision, parsed = ParseDecision(decide.Content)
	}

	if !parsed {
		r.log.Warn("decision parse failed, using fallback",
			"actor_id", actor.ID, "iteration", state.Loop.Iteration)
	}

	target := resolveTarget(decision.Args, state.Scope.Subject)
	action := &Action{
		Type:    decision.Action,
		Target:  target,
		Content: contentFromArgs(decision.Args),
		Metadata: ActionMetadata{
			Args:       decision.Args,
			Plan:       decision.Plan,
			Confidence: decision.Confidence,
		},
		GoalAchieved: false,
	}

	r.recordIdentityObservation(state.Scope)

	return &Delta{
		Step: StepAct,
		Reasoning: &Reasoning{
			Transcript: transcript,
			Decision:   decision,
			Confidence: decision.Confidence,
			TokensUsed: tokens,
		},
		Action: action,
	}, nil
}

// dispatchToolCalls executes requested tool calls concurrently with per-run
// memoization. A cache hit returns the prior result without re-dispatching,
// and identical (tool, args) pairs within one batch share a single dispatch.
func (r *Reasoner) dispatchToolCalls(ctx context.Context, state *State, calls []llm.ToolCall) []*tools.Result {
	cache := state.Cache()
	results := make([]*tools.Result, len(calls))

	var pending []tools.Call
	pendingKeys := make([]string, 0, len(calls))
	slots := make(map[string][]int, len(calls))

	for i, tc := range calls {
		key := Key(tc.Name, tc.Arguments)
		if cached, ok := cache.Get(key); ok {
			results[i] = cached
			r.executor.ReportCached(tc.Name)
			continue
		}
		if _, seen := slots[key]; !seen {
			id := tc.ID
			if id == "" {
				id = uuid.NewString()
			}
			pending = append(pending, tools.Call{ID: id, Name: tc.Name, Args: tc.Arguments})
			pendingKeys = append(pendingKeys, key)
		}
		slots[key] = append(slots[key], i)
	}

	if len(pending) > 0 {
		ec := execContext(state.Scope)
		executed := r.executor.ExecuteAll(ctx, pending, ec)
		for j, exec := range executed {
			key := pendingKeys[j]
			res := exec.ToResult()
			cache.Put(key, res)
			for _, i := range slots[key] {
				results[i] = res
			}
		}
	}

	return results
}

func execContext(scope Scope) tools.ExecContext {
	return tools.ExecContext{
		AgentID:        scope.ActorID,
		ConversationID: scope.ConversationID,
		TriggerID:      scope.Trigger.EventID,
	}
}

// recordIdentityObservation captures what the triggering user's message
// reveals about them. Best-effort and non-blocking: a failure here must
// never fail the reasoning step.
func (r *Reasoner) recordIdentityObservation(scope Scope) {
	if r.store == nil || scope.Subject == nil {
		return
	}
	excerpt := truncate(scope.Subject.Excerpt(), maxExcerptLen)
	if excerpt == "" || scope.Subject.SenderID() == "" {
		return
	}
	obs := &actors.IdentityObservation{
		ActorID:   scope.ActorID,
		SubjectID: scope.Subject.SenderID(),
		Content:   excerpt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.RecordObservation(ctx, obs); err != nil {
			r.log.Warn("identity observation write failed", "error", err)
		}
	}()
}

// resolveTarget picks the action target: explicit id in args, then subject
// id, then the subject's embedded sender id, then the "unknown" sentinel.
// Never empty: downstream persistence requires a non-null target.
func resolveTarget(args map[string]any, subject Subject) string {
	for _, key := range []string{"target_id", "target", "id"} {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	if subject != nil {
		if id := subject.SubjectID(); id != "" {
			return id
		}
		if id := subject.SenderID(); id != "" {
			return id
		}
	}
	return "unknown"
}

func contentFromArgs(args map[string]any) string {
	for _, key := range []string{"content", "message", "text"} {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// dataToolNamesFor curates the data-tool subset offered for a trigger. The
// full catalogue is never surfaced, to bound prompt size.
func dataToolNamesFor(scope Scope) []string {
	names := []string{"get_actor_profile"}
	switch scope.Subject.(type) {
	case Battle:
		names = append(names, "get_battle_details", "get_relationship")
	case Post, Comment:
		names = append(names, "get_post_context", "get_relationship")
	case DirectMessage:
		names = append(names, "get_relationship")
	case Proposal:
		names = append(names, "get_post_context")
	}
	return names
}

func (r *Reasoner) toolSchemas(names []string) []llm.ToolSchema {
	dataTools := r.registry.DataTools(names)
	schemas := make([]llm.ToolSchema, 0, len(dataTools))
	for _, dt := range dataTools {
		schemas = append(schemas, llm.ToolSchema{
			Name:        dt.Name(),
			Description: dt.Description(),
			Parameters:  dt.Schema(),
		})
	}
	return schemas
}

func summarizeToolResults(calls []llm.ToolCall, results []*tools.Result) string {
	var b strings.Builder
	b.WriteString("Tool results:\n")
	for i, call := range calls {
		res := results[i]
		if res == nil {
			fmt.Fprintf(&b, "- %s: no result\n", call.Name)
			continue
		}
		if !res.Success {
			fmt.Fprintf(&b, "- %s: FAILED: %s\n", call.Name, res.Error)
			continue
		}
		payload, err := json.Marshal(res.Data)
		if err != nil {
			payload = []byte(fmt.Sprintf("%v", res.Data))
		}
		fmt.Fprintf(&b, "- %s: %s\n", call.Name, truncate(string(payload), 600))
	}
	return b.String()
}

const decisionInstruction = `Decide what to do. Respond with a single JSON object:
{"action": "<tool name>", "args": {...}, "reasoning": "<why>", "confidence": <0..1>, "plan": [{"step": 1, "tool": "...", "args": {...}, "description": "..."}]}
Include "plan" only when the goal needs multiple steps. Respond with the JSON object only.`

// systemPrompt encodes the actor's identity and the fixed decision framework:
// how axis values map to behavioral tendencies and how relationship history
// and request persistence should weigh.
func (r *Reasoner) systemPrompt(actor *actors.Actor) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, an autonomous resident of a persistent social simulation.\n\n", displayName(actor))
	b.WriteString("Your identity axes (each in [-1, 1]):\n")
	fmt.Fprintf(&b, "- order(-1)/chaos(+1): %.2f: %s\n",
		actor.Identity.OrderChaos, axisTendency(actor.Identity.OrderChaos, "you favor rules and predictability", "you thrive on disruption and surprise"))
	fmt.Fprintf(&b, "- self(-1)/community(+1): %.2f: %s\n",
		actor.Identity.SelfCommunity, axisTendency(actor.Identity.SelfCommunity, "you put your own interests first", "you weigh the group's good heavily"))
	fmt.Fprintf(&b, "- logic(-1)/emotion(+1): %.2f: %s\n",
		actor.Identity.LogicEmotion, axisTendency(actor.Identity.LogicEmotion, "you argue from evidence", "you react from feeling"))
	fmt.Fprintf(&b, "- power(-1)/harmony(+1): %.2f: %s\n",
		actor.Identity.PowerHarmony, axisTendency(actor.Identity.PowerHarmony, "you seek leverage and status", "you defuse conflict where possible"))
	fmt.Fprintf(&b, "- tradition(-1)/innovation(+1): %.2f: %s\n\n",
		actor.Identity.TraditionInnovation, axisTendency(actor.Identity.TraditionInnovation, "you defend how things have been done", "you chase the new"))

	b.WriteString("Decision framework:\n")
	b.WriteString("- Stay in character; let the axes bias tone and choice.\n")
	b.WriteString("- High heat or rage means you are worn down: prefer low-effort responses (decline, ignore).\n")
	b.WriteString("- Weigh relationship history when it is available from tools.\n")
	b.WriteString("- A first polite request deserves a polite answer, even when declining.\n")
	b.WriteString("- Repeated identical requests after a decline justify escalating firmness, ending in ignoring the sender.\n")
	b.WriteString("- Commit to one action per turn. Plan multiple steps only when the goal truly needs them.\n")

	return b.String()
}

func (r *Reasoner) userPrompt(state *State) string {
	actor := state.Observation.Actor
	var b strings.Builder
	b.WriteString(state.Observation.Summary)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Your state: morale %.0f, energy %.0f, heat %.0f, rage %.0f.\n",
		actor.Morale, actor.Energy, actor.Heat, actor.Rage)
	if state.Loop.Iteration > 0 {
		fmt.Fprintf(&b, "This is iteration %d of the current cycle (reason: %s).\n",
			state.Loop.Iteration+1, state.Loop.ContinueReason)
	}
	if state.Result != nil && !state.Result.Success {
		fmt.Fprintf(&b, "Your previous action failed: %s. Decide how to proceed.\n", state.Result.Error)
	}
	b.WriteString("Gather what you need with the available tools, then decide.")
	return b.String()
}

func axisTendency(v float64, negative, positive string) string {
	switch {
	case v <= -0.3:
		return negative
	case v >= 0.3:
		return positive
	default:
		return "you are balanced on this axis"
	}
}

func displayName(actor *actors.Actor) string {
	if actor.Name != "" {
		return actor.Name
	}
	return actor.ID
}
