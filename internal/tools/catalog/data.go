package catalog

import (
	"context"
	"encoding/json"

	"github.com/duskpoint/reverie/internal/tools"
)

type actorProfileArgs struct {
	ActorID string `json:"actor_id" jsonschema:"description=Actor id to look up. Defaults to the caller."`
}

// ActorProfileTool returns the public profile of an actor.
type ActorProfileTool struct {
	World World
}

func (t *ActorProfileTool) Name() string { return "get_actor_profile" }
func (t *ActorProfileTool) Description() string {
	return "Look up an actor's public profile: name, community, visible traits."
}
func (t *ActorProfileTool) Schema() json.RawMessage { return schemaFor(&actorProfileArgs{}) }

func (t *ActorProfileTool) Fetch(ctx context.Context, args map[string]any, ec tools.ExecContext) (*tools.Result, error) {
	id := stringArg(args, "actor_id")
	if id == "" {
		id = ec.AgentID
	}
	profile, err := t.World.ActorProfile(ctx, id)
	if err != nil {
		return tools.Errorf("profile lookup failed: %v", err), nil
	}
	return tools.Ok(profile), nil
}

type relationshipArgs struct {
	OtherID string `json:"other_id" jsonschema:"required,description=The other actor or user id."`
}

// RelationshipTool returns the interaction history between the calling actor
// and another party.
type RelationshipTool struct {
	World World
}

func (t *RelationshipTool) Name() string { return "get_relationship" }
func (t *RelationshipTool) Description() string {
	return "Fetch your relationship with another actor or user: affinity, interaction count, last tone."
}
func (t *RelationshipTool) Schema() json.RawMessage { return schemaFor(&relationshipArgs{}) }

func (t *RelationshipTool) Fetch(ctx context.Context, args map[string]any, ec tools.ExecContext) (*tools.Result, error) {
	other := stringArg(args, "other_id")
	if other == "" {
		return tools.Errorf("other_id is required"), nil
	}
	rel, err := t.World.Relationship(ctx, ec.AgentID, other)
	if err != nil {
		return tools.Errorf("relationship lookup failed: %v", err), nil
	}
	return tools.Ok(rel), nil
}

type battleDetailsArgs struct {
	BattleID string `json:"battle_id" jsonschema:"required,description=Battle id to inspect."`
}

// BattleDetailsTool returns the state of a contest.
type BattleDetailsTool struct {
	World World
}

func (t *BattleDetailsTool) Name() string { return "get_battle_details" }
func (t *BattleDetailsTool) Description() string {
	return "Inspect a battle: challenger, opponent, stakes, status, participants."
}
func (t *BattleDetailsTool) Schema() json.RawMessage { return schemaFor(&battleDetailsArgs{}) }

func (t *BattleDetailsTool) Fetch(ctx context.Context, args map[string]any, _ tools.ExecContext) (*tools.Result, error) {
	id := stringArg(args, "battle_id")
	if id == "" {
		return tools.Errorf("battle_id is required"), nil
	}
	battle, err := t.World.BattleDetails(ctx, id)
	if err != nil {
		return tools.Errorf("battle lookup failed: %v", err), nil
	}
	return tools.Ok(battle), nil
}

type postContextArgs struct {
	PostID string `json:"post_id" jsonschema:"required,description=Post id to fetch with its recent comments."`
}

// PostContextTool returns a post and its recent comment thread.
type PostContextTool struct {
	World World
}

func (t *PostContextTool) Name() string { return "get_post_context" }
func (t *PostContextTool) Description() string {
	return "Fetch a post and its recent comments for context."
}
func (t *PostContextTool) Schema() json.RawMessage { return schemaFor(&postContextArgs{}) }

func (t *PostContextTool) Fetch(ctx context.Context, args map[string]any, _ tools.ExecContext) (*tools.Result, error) {
	id := stringArg(args, "post_id")
	if id == "" {
		return tools.Errorf("post_id is required"), nil
	}
	pc, err := t.World.PostContext(ctx, id)
	if err != nil {
		return tools.Errorf("post lookup failed: %v", err), nil
	}
	return tools.Ok(pc), nil
}
