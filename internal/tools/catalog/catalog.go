// Package catalog provides the built-in tool set the reasoning step works
// with: read-only lookups over the simulation world and the action tools that
// produce externally visible effects. The loop itself never depends on these
// concrete tools, only on their registry contract.
package catalog

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/duskpoint/reverie/internal/tools"
)

// Relationship summarizes the history between two actors.
type Relationship struct {
	ActorID      string  `json:"actor_id"`
	OtherID      string  `json:"other_id"`
	Affinity     float64 `json:"affinity"`
	Interactions int     `json:"interactions"`
	LastTone     string  `json:"last_tone,omitempty"`
}

// BattleDetails describes a contest an actor may join.
type BattleDetails struct {
	ID           string   `json:"id"`
	ChallengerID string   `json:"challenger_id"`
	OpponentID   string   `json:"opponent_id,omitempty"`
	Stakes       string   `json:"stakes,omitempty"`
	Status       string   `json:"status"`
	Participants []string `json:"participants,omitempty"`
}

// PostContext carries a post and its recent comment thread.
type PostContext struct {
	PostID   string   `json:"post_id"`
	AuthorID string   `json:"author_id"`
	Content  string   `json:"content"`
	Comments []string `json:"comments,omitempty"`
}

// Profile is the public view of an actor exposed to reasoning.
type Profile struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	CommunityID string         `json:"community_id,omitempty"`
	Traits      map[string]any `json:"traits,omitempty"`
}

// World is the read side of the simulation the data tools consume.
type World interface {
	ActorProfile(ctx context.Context, id string) (*Profile, error)
	Relationship(ctx context.Context, actorID, otherID string) (*Relationship, error)
	BattleDetails(ctx context.Context, battleID string) (*BattleDetails, error)
	PostContext(ctx context.Context, postID string) (*PostContext, error)
}

// Effector is the write side: every action tool funnels its effect through
// one of these calls. Implementations own delivery, fan-out, and persistence.
type Effector interface {
	SendMessage(ctx context.Context, fromID, toID, content string) (string, error)
	DeclineRequest(ctx context.Context, fromID, requestID, reason string) error
	JoinBattle(ctx context.Context, actorID, battleID string) error
	CreatePost(ctx context.Context, authorID, content, visibility string) (string, error)
}

// Register installs the full built-in catalog on a registry.
func Register(r *tools.Registry, world World, effector Effector) {
	r.Register(&ActorProfileTool{World: world})
	r.Register(&RelationshipTool{World: world})
	r.Register(&BattleDetailsTool{World: world})
	r.Register(&PostContextTool{World: world})

	r.Register(&SendMessageTool{Effector: effector})
	r.Register(&DeclineRequestTool{Effector: effector})
	r.Register(&IgnoreTool{})
	r.Register(&JoinBattleTool{Effector: effector})
	r.Register(&CreatePostTool{Effector: effector})
}

// schemaFor reflects a JSON Schema from an args struct. Schemas are inlined
// (no $ref) because completion providers require self-contained parameter
// objects.
func schemaFor(v any) json.RawMessage {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""
	b, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return b
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
