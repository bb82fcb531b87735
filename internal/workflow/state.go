// Package workflow implements the perceive-reason-act decision loop that
// drives one autonomous actor through a single triggered cycle.
//
// One run is a single logical sequence of node transitions:
//
//	trigger → Observe → Reason → Act → LoopCheck → (Observe|Reason|Act|Complete)
//
// Each node returns a partial state delta that the engine merges into the
// aggregate; no two nodes of the same run ever execute concurrently. The only
// true concurrency is the reasoning step's information-gathering phase, where
// requested data-tool calls are dispatched in parallel and joined before the
// decision phase begins.
package workflow

import (
	"time"

	"github.com/duskpoint/reverie/internal/actors"
	"github.com/duskpoint/reverie/internal/llm"
)

// Step names the node the engine dispatches to next.
type Step string

const (
	StepObserve   Step = "observe"
	StepReason    Step = "reason"
	StepAct       Step = "act"
	StepLoopCheck Step = "loop_check"
	StepComplete  Step = "complete"
)

// TriggerType classifies the event that started the run.
type TriggerType string

const (
	TriggerMessage  TriggerType = "message"
	TriggerMention  TriggerType = "mention"
	TriggerComment  TriggerType = "comment"
	TriggerBattle   TriggerType = "battle"
	TriggerProposal TriggerType = "proposal"
	TriggerTick     TriggerType = "tick"
)

// Trigger is the event that starts one workflow run.
type Trigger struct {
	Type      TriggerType `json:"type"`
	EventID   string      `json:"event_id,omitempty"`
	Schedule  string      `json:"schedule,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`

	// IsResponse flags that this cycle was provoked by a reply to a prior
	// decline, feeding the escalation rule.
	IsResponse bool `json:"is_response"`
}

// Visibility is the feed visibility of a subject.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityInGroup   Visibility = "in_group"
	VisibilityDirect    Visibility = "direct"
)

// Subject is the object a trigger concerns. It is a closed union: the loop
// treats subjects opaquely and the Observe/Reason nodes pattern-match on the
// concrete type.
type Subject interface {
	// SubjectID identifies the subject for target resolution.
	SubjectID() string

	// SenderID is the embedded sender/author id, or "" when absent.
	SenderID() string

	// Kind is the wire name of the subject variant.
	Kind() string

	// Excerpt is a short content excerpt for the situation summary.
	Excerpt() string

	// FeedVisibility reports who can see the subject.
	FeedVisibility() Visibility
}

// Post is a feed post subject.
type Post struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id"`
	CommunityID string     `json:"community_id,omitempty"`
	Content     string     `json:"content"`
	Visibility  Visibility `json:"visibility"`
}

func (p Post) SubjectID() string { return p.ID }
func (p Post) SenderID() string  { return p.AuthorID }
func (p Post) Kind() string      { return "post" }
func (p Post) Excerpt() string   { return p.Content }
func (p Post) FeedVisibility() Visibility {
	if p.Visibility == "" {
		return VisibilityPublic
	}
	return p.Visibility
}

// Comment is a reply on a post.
type Comment struct {
	ID       string `json:"id"`
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
}

func (c Comment) SubjectID() string          { return c.ID }
func (c Comment) SenderID() string           { return c.AuthorID }
func (c Comment) Kind() string               { return "comment" }
func (c Comment) Excerpt() string            { return c.Content }
func (c Comment) FeedVisibility() Visibility { return VisibilityPublic }

// Battle is a contest subject.
type Battle struct {
	ID           string `json:"id"`
	ChallengerID string `json:"challenger_id"`
	OpponentID   string `json:"opponent_id,omitempty"`
	Stakes       string `json:"stakes,omitempty"`
	Status       string `json:"status,omitempty"`
}

func (b Battle) SubjectID() string          { return b.ID }
func (b Battle) SenderID() string           { return b.ChallengerID }
func (b Battle) Kind() string               { return "battle" }
func (b Battle) Excerpt() string            { return b.Stakes }
func (b Battle) FeedVisibility() Visibility { return VisibilityPublic }

// DirectMessage is a private message subject.
type DirectMessage struct {
	ID      string `json:"id"`
	FromID  string `json:"from_id"`
	Content string `json:"content"`

	// PersistenceLevel counts how many times the sender has repeated
	// essentially the same request.
	PersistenceLevel int `json:"persistence_level,omitempty"`
}

func (m DirectMessage) SubjectID() string          { return m.ID }
func (m DirectMessage) SenderID() string           { return m.FromID }
func (m DirectMessage) Kind() string               { return "message" }
func (m DirectMessage) Excerpt() string            { return m.Content }
func (m DirectMessage) FeedVisibility() Visibility { return VisibilityDirect }

// Proposal is a governance proposal subject.
type Proposal struct {
	ID          string `json:"id"`
	ProposerID  string `json:"proposer_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (p Proposal) SubjectID() string          { return p.ID }
func (p Proposal) SenderID() string           { return p.ProposerID }
func (p Proposal) Kind() string               { return "proposal" }
func (p Proposal) Excerpt() string            { return p.Title }
func (p Proposal) FeedVisibility() Visibility { return VisibilityPublic }

// Scope is the immutable identity of one run.
type Scope struct {
	ActorID        string  `json:"actor_id"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Trigger        Trigger `json:"trigger"`
	Subject        Subject `json:"-"`
}

// Observation is the minimal situational snapshot produced by Observe.
type Observation struct {
	Actor     *actors.Actor `json:"actor"`
	Summary   string        `json:"summary"`
	Timestamp time.Time     `json:"timestamp"`
}

// PlanStep is one pre-committed future tool invocation.
type PlanStep struct {
	Step        int            `json:"step"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	Description string         `json:"description,omitempty"`
}

// Reasoning is the output of one reasoning pass.
type Reasoning struct {
	Transcript   []llm.Message `json:"transcript"`
	Decision     *Decision     `json:"decision"`
	Confidence   float64       `json:"confidence"`
	Alternatives []string      `json:"alternatives,omitempty"`
	TokensUsed   int           `json:"tokens_used"`

	// Synthesized marks reasoning fabricated from a plan step instead of a
	// completion call.
	Synthesized bool `json:"synthesized,omitempty"`
}

// ActionMetadata carries the decision context attached to an action.
type ActionMetadata struct {
	Args       map[string]any `json:"args,omitempty"`
	Plan       []PlanStep     `json:"plan,omitempty"`
	Confidence float64        `json:"confidence"`
}

// Action is the single externally visible effect chosen for this iteration.
type Action struct {
	Type         string         `json:"type"`
	Target       string         `json:"target"`
	Content      string         `json:"content,omitempty"`
	Metadata     ActionMetadata `json:"metadata"`
	GoalAchieved bool           `json:"goal_achieved"`
}

// Result is the outcome of executing one action.
type Result struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data,omitempty"`
	Error     string  `json:"error,omitempty"`
	HeatCost  float64 `json:"heat_cost"`
	Coherence float64 `json:"coherence,omitempty"`
}

// ContinueReason explains a loop-controller transition.
type ContinueReason string

const (
	ReasonGoalAchieved    ContinueReason = "goal_achieved"
	ReasonGoalNotMet      ContinueReason = "goal_not_met"
	ReasonNewInfo         ContinueReason = "new_info"
	ReasonToolFailure     ContinueReason = "tool_failure"
	ReasonLowConfidence   ContinueReason = "low_confidence"
	ReasonUserPersistence ContinueReason = "user_persistence"
)

// HistoryEntry is an immutable snapshot of one completed iteration.
type HistoryEntry struct {
	Iteration   int          `json:"iteration"`
	Observation *Observation `json:"observation,omitempty"`
	Reasoning   *Reasoning   `json:"reasoning,omitempty"`
	Action      *Action      `json:"action,omitempty"`
	Result      *Result      `json:"result,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// LoopState tracks iteration control.
type LoopState struct {
	// Iteration is the number of completed iterations.
	Iteration int `json:"iteration"`

	// MaxIterations caps the run.
	MaxIterations int `json:"max_iterations"`

	History        []HistoryEntry `json:"history"`
	ContinueReason ContinueReason `json:"continue_reason,omitempty"`
}

// State is the single mutable aggregate threaded through every node. Nodes
// never mutate it directly; they return a Delta that the engine applies.
type State struct {
	Scope Scope `json:"scope"`
	Step  Step  `json:"step"`

	Observation *Observation `json:"observation,omitempty"`
	Reasoning   *Reasoning   `json:"reasoning,omitempty"`
	Action      *Action      `json:"action,omitempty"`
	Result      *Result      `json:"result,omitempty"`

	Loop LoopState `json:"loop"`

	// ExecutedActions is the ordered log of tool names attempted by Act,
	// one per iteration.
	ExecutedActions []string `json:"executed_actions"`

	// Metadata is free-form per-run scratch.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Errors is the ordered log of fatal conditions.
	Errors []string `json:"errors,omitempty"`

	// cache memoizes data-tool results for the lifetime of this run only.
	cache *ToolCache
}

// NewState creates the aggregate for one run.
func NewState(scope Scope, maxIterations int) *State {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &State{
		Scope:    scope,
		Step:     StepObserve,
		Loop:     LoopState{MaxIterations: maxIterations},
		Metadata: make(map[string]any),
		cache:    NewToolCache(),
	}
}

// Cache returns the run-private tool cache.
func (s *State) Cache() *ToolCache { return s.cache }

// Delta is a partial state update returned by a node. Zero-valued fields
// leave the aggregate untouched; slices append and maps merge.
type Delta struct {
	Step Step

	Observation *Observation
	Reasoning   *Reasoning
	Action      *Action
	Result      *Result

	ExecutedActions []string
	History         []HistoryEntry
	Errors          []string
	Metadata        map[string]any

	// Iteration, when set, replaces the completed-iteration counter.
	Iteration *int

	ContinueReason ContinueReason
}

// Apply merges a delta into the aggregate.
func (s *State) Apply(d *Delta) {
	if d == nil {
		return
	}
	if d.Step != "" {
		s.Step = d.Step
	}
	if d.Observation != nil {
		s.Observation = d.Observation
	}
	if d.Reasoning != nil {
		s.Reasoning = d.Reasoning
	}
	if d.Action != nil {
		s.Action = d.Action
	}
	if d.Result != nil {
		s.Result = d.Result
	}
	s.ExecutedActions = append(s.ExecutedActions, d.ExecutedActions...)
	s.Loop.History = append(s.Loop.History, d.History...)
	s.Errors = append(s.Errors, d.Errors...)
	for k, v := range d.Metadata {
		s.Metadata[k] = v
	}
	if d.Iteration != nil {
		s.Loop.Iteration = *d.Iteration
	}
	if d.ContinueReason != "" {
		s.Loop.ContinueReason = d.ContinueReason
	}
}

// DefaultMaxIterations caps a run when the caller does not specify a limit.
const DefaultMaxIterations = 5

// HeatCeiling is the stress level at which the loop stops for cooldown.
const HeatCeiling = 80.0

// LowConfidenceFloor triggers re-observation when a decision lands under it.
const LowConfidenceFloor = 0.4
