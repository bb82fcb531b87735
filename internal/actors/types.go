// Package actors defines the actor resource model and its persistence
// interfaces. An actor is the autonomous entity a workflow reasons and acts
// on behalf of: a five-axis identity vector plus a set of bounded resource
// fields (morale, energy, coherence, heat, rage) that gate behavior.
package actors

import (
	"time"
)

// Identity is the five-axis personality encoding shaping tone and decision
// bias. Each axis is a real number in [-1, 1]; the sign picks the pole.
type Identity struct {
	// OrderChaos: -1 = rigid order, +1 = pure chaos
	OrderChaos float64 `json:"order_chaos"`

	// SelfCommunity: -1 = self-interested, +1 = community-first
	SelfCommunity float64 `json:"self_community"`

	// LogicEmotion: -1 = cold logic, +1 = raw emotion
	LogicEmotion float64 `json:"logic_emotion"`

	// PowerHarmony: -1 = power-seeking, +1 = harmony-seeking
	PowerHarmony float64 `json:"power_harmony"`

	// TraditionInnovation: -1 = traditionalist, +1 = innovator
	TraditionInnovation float64 `json:"tradition_innovation"`
}

// Clamped returns a copy with every axis clamped to [-1, 1].
func (id Identity) Clamped() Identity {
	id.OrderChaos = ClampAxis(id.OrderChaos)
	id.SelfCommunity = ClampAxis(id.SelfCommunity)
	id.LogicEmotion = ClampAxis(id.LogicEmotion)
	id.PowerHarmony = ClampAxis(id.PowerHarmony)
	id.TraditionInnovation = ClampAxis(id.TraditionInnovation)
	return id
}

// Actor is the persistent resource state of one autonomous entity.
//
// Heat and rage are monotonically clamped to [0, 100] on every update; they
// are never stored or read as negative or above 100.
type Actor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Identity    Identity `json:"identity"`
	Morale      float64  `json:"morale"`
	Energy      float64  `json:"energy"`
	Coherence   float64  `json:"coherence"`
	Heat        float64  `json:"heat"`
	Rage        float64  `json:"rage"`
	CommunityID string   `json:"community_id,omitempty"`
}

// ClampResource clamps a resource value (morale, energy, heat, rage,
// coherence) to [0, 100].
func ClampResource(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampAxis clamps an identity axis to [-1, 1].
func ClampAxis(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// ActionRecord is the durable trace of one Act invocation. One record is
// inserted per attempted action, successful or not.
type ActionRecord struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id"`
	ActionType string         `json:"action_type"`
	TargetID   string         `json:"target_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// IdentityObservation records what a triggering user's message revealed about
// them. Writes are best-effort: a failed insert never fails the workflow.
type IdentityObservation struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	SubjectID string    `json:"subject_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
