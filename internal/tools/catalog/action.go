package catalog

import (
	"context"
	"encoding/json"

	"github.com/duskpoint/reverie/internal/tools"
)

type sendMessageArgs struct {
	TargetID string `json:"target_id" jsonschema:"required,description=Recipient actor or user id."`
	Content  string `json:"content" jsonschema:"required,description=Message text."`
}

// SendMessageTool delivers a direct message from the acting actor.
type SendMessageTool struct {
	Effector Effector
}

func (t *SendMessageTool) Name() string { return "send_message" }
func (t *SendMessageTool) Description() string {
	return "Send a direct message to another actor or user."
}
func (t *SendMessageTool) Schema() json.RawMessage { return schemaFor(&sendMessageArgs{}) }

func (t *SendMessageTool) Perform(ctx context.Context, args map[string]any, ec tools.ExecContext) (*tools.Result, error) {
	target := stringArg(args, "target_id")
	content := stringArg(args, "content")
	if target == "" || content == "" {
		return tools.Errorf("target_id and content are required"), nil
	}
	id, err := t.Effector.SendMessage(ctx, ec.AgentID, target, content)
	if err != nil {
		return tools.Errorf("send failed: %v", err), nil
	}
	return tools.Ok(map[string]any{"message_id": id}), nil
}

type declineRequestArgs struct {
	RequestID string `json:"request_id" jsonschema:"description=Id of the request being declined. Defaults to the triggering event."`
	Reason    string `json:"reason" jsonschema:"description=Short in-character reason for declining."`
}

// DeclineRequestTool declines a request addressed to the actor.
type DeclineRequestTool struct {
	Effector Effector
}

func (t *DeclineRequestTool) Name() string { return "decline_request" }
func (t *DeclineRequestTool) Description() string {
	return "Decline a request addressed to you, with an optional stated reason."
}
func (t *DeclineRequestTool) Schema() json.RawMessage { return schemaFor(&declineRequestArgs{}) }

func (t *DeclineRequestTool) Perform(ctx context.Context, args map[string]any, ec tools.ExecContext) (*tools.Result, error) {
	requestID := stringArg(args, "request_id")
	if requestID == "" {
		requestID = ec.TriggerID
	}
	if err := t.Effector.DeclineRequest(ctx, ec.AgentID, requestID, stringArg(args, "reason")); err != nil {
		return tools.Errorf("decline failed: %v", err), nil
	}
	return tools.Ok(map[string]any{"declined": requestID}), nil
}

type ignoreArgs struct{}

// IgnoreTool is the deliberate no-op: the actor chooses to not engage. It has
// no effector because it produces no external effect, only the durable record
// that the choice was made.
type IgnoreTool struct{}

func (t *IgnoreTool) Name() string { return "ignore" }
func (t *IgnoreTool) Description() string {
	return "Deliberately ignore the triggering event. Produces no reply."
}
func (t *IgnoreTool) Schema() json.RawMessage { return schemaFor(&ignoreArgs{}) }

func (t *IgnoreTool) Perform(_ context.Context, _ map[string]any, _ tools.ExecContext) (*tools.Result, error) {
	return tools.Ok(map[string]any{"ignored": true}), nil
}

type joinBattleArgs struct {
	BattleID string `json:"battle_id" jsonschema:"required,description=Battle id to join."`
}

// JoinBattleTool enters the actor into a contest.
type JoinBattleTool struct {
	Effector Effector
}

func (t *JoinBattleTool) Name() string { return "join_battle" }
func (t *JoinBattleTool) Description() string {
	return "Join a battle as a participant. High commitment and high stress cost."
}
func (t *JoinBattleTool) Schema() json.RawMessage { return schemaFor(&joinBattleArgs{}) }

func (t *JoinBattleTool) Perform(ctx context.Context, args map[string]any, ec tools.ExecContext) (*tools.Result, error) {
	battleID := stringArg(args, "battle_id")
	if battleID == "" {
		return tools.Errorf("battle_id is required"), nil
	}
	if err := t.Effector.JoinBattle(ctx, ec.AgentID, battleID); err != nil {
		return tools.Errorf("join failed: %v", err), nil
	}
	return tools.Ok(map[string]any{"joined": battleID}), nil
}

type createPostArgs struct {
	Content    string `json:"content" jsonschema:"required,description=Post body."`
	Visibility string `json:"visibility" jsonschema:"description=public|followers|in_group. Defaults to public."`
}

// CreatePostTool publishes a feed post authored by the actor.
type CreatePostTool struct {
	Effector Effector
}

func (t *CreatePostTool) Name() string { return "create_post" }
func (t *CreatePostTool) Description() string {
	return "Publish a feed post."
}
func (t *CreatePostTool) Schema() json.RawMessage { return schemaFor(&createPostArgs{}) }

func (t *CreatePostTool) Perform(ctx context.Context, args map[string]any, ec tools.ExecContext) (*tools.Result, error) {
	content := stringArg(args, "content")
	if content == "" {
		return tools.Errorf("content is required"), nil
	}
	visibility := stringArg(args, "visibility")
	if visibility == "" {
		visibility = "public"
	}
	id, err := t.Effector.CreatePost(ctx, ec.AgentID, content, visibility)
	if err != nil {
		return tools.Errorf("post failed: %v", err), nil
	}
	return tools.Ok(map[string]any{"post_id": id}), nil
}
