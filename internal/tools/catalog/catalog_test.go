package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/duskpoint/reverie/internal/tools"
)

func seededWorld() *MemoryWorld {
	w := NewMemoryWorld()
	w.PutProfile(&Profile{ID: "luna", Name: "Luna", CommunityID: "guild"})
	w.PutProfile(&Profile{ID: "kai", Name: "Kai"})
	w.PutRelationship(&Relationship{ActorID: "luna", OtherID: "user-1", Affinity: -0.4, Interactions: 7, LastTone: "tense"})
	w.PutBattle(&BattleDetails{ID: "b1", ChallengerID: "kai", Status: "open", Stakes: "territory"})
	w.PutPost(&PostContext{PostID: "p1", AuthorID: "kai", Content: "anyone up for a raid?", Comments: []string{"count me in"}})
	return w
}

func TestRegisterInstallsFullCatalog(t *testing.T) {
	r := tools.NewRegistry()
	w := seededWorld()
	Register(r, w, w)

	for _, name := range []string{"get_actor_profile", "get_relationship", "get_battle_details", "get_post_context"} {
		if r.IsActionTool(name) {
			t.Errorf("%s registered as an action tool", name)
		}
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("%s not registered", name)
		}
	}
	for _, name := range []string{"send_message", "decline_request", "ignore", "join_battle", "create_post"} {
		if !r.IsActionTool(name) {
			t.Errorf("%s not registered as an action tool", name)
		}
	}
}

func TestSchemasAreSelfContained(t *testing.T) {
	r := tools.NewRegistry()
	w := seededWorld()
	Register(r, w, w)

	for _, name := range []string{"get_relationship", "send_message", "join_battle", "create_post"} {
		tool, ok := r.Lookup(name)
		if !ok {
			t.Fatalf("%s not registered", name)
		}
		raw := tool.Schema()

		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err != nil {
			t.Fatalf("%s schema is not valid JSON: %v", name, err)
		}
		if schema["type"] != "object" {
			t.Errorf("%s schema type = %v, want object", name, schema["type"])
		}
		if _, ok := schema["properties"]; !ok {
			t.Errorf("%s schema has no properties", name)
		}
		if strings.Contains(string(raw), "$ref") {
			t.Errorf("%s schema contains $ref, providers require inlined schemas", name)
		}
	}
}

func TestRequiredFieldsAppearInSchema(t *testing.T) {
	tool := &SendMessageTool{}
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"target_id": false, "content": false}
	for _, f := range schema.Required {
		want[f] = true
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("required field %q missing from schema", f)
		}
	}
}

func TestActorProfileToolDefaultsToCaller(t *testing.T) {
	w := seededWorld()
	tool := &ActorProfileTool{World: w}
	ec := tools.ExecContext{AgentID: "luna"}

	res, err := tool.Fetch(context.Background(), map[string]any{}, ec)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if p := res.Data.(*Profile); p.ID != "luna" {
		t.Errorf("profile = %+v, want the caller's own profile", p)
	}

	res, _ = tool.Fetch(context.Background(), map[string]any{"actor_id": "kai"}, ec)
	if p := res.Data.(*Profile); p.ID != "kai" {
		t.Errorf("profile = %+v, want kai", p)
	}

	res, _ = tool.Fetch(context.Background(), map[string]any{"actor_id": "ghost"}, ec)
	if res.Success {
		t.Error("lookup of unknown actor succeeded")
	}
}

func TestRelationshipToolNeutralForStrangers(t *testing.T) {
	w := seededWorld()
	tool := &RelationshipTool{World: w}
	ec := tools.ExecContext{AgentID: "luna"}

	res, _ := tool.Fetch(context.Background(), map[string]any{"other_id": "user-1"}, ec)
	if rel := res.Data.(*Relationship); rel.Affinity != -0.4 || rel.Interactions != 7 {
		t.Errorf("relationship = %+v", rel)
	}

	res, _ = tool.Fetch(context.Background(), map[string]any{"other_id": "stranger"}, ec)
	if !res.Success {
		t.Fatalf("unknown pair must be neutral, not a failure: %+v", res)
	}
	if rel := res.Data.(*Relationship); rel.LastTone != "neutral" || rel.Affinity != 0 {
		t.Errorf("relationship = %+v, want neutral defaults", rel)
	}

	if res, _ := tool.Fetch(context.Background(), map[string]any{}, ec); res.Success {
		t.Error("missing other_id accepted")
	}
}

func TestDataToolLookupFailuresAreResults(t *testing.T) {
	w := seededWorld()
	ec := tools.ExecContext{AgentID: "luna"}

	battle := &BattleDetailsTool{World: w}
	if res, err := battle.Fetch(context.Background(), map[string]any{"battle_id": "nope"}, ec); err != nil || res.Success {
		t.Errorf("battle lookup = %+v, %v, want failed result and nil error", res, err)
	}

	post := &PostContextTool{World: w}
	if res, err := post.Fetch(context.Background(), map[string]any{"post_id": "nope"}, ec); err != nil || res.Success {
		t.Errorf("post lookup = %+v, %v, want failed result and nil error", res, err)
	}

	res, _ := post.Fetch(context.Background(), map[string]any{"post_id": "p1"}, ec)
	if pc := res.Data.(*PostContext); pc.AuthorID != "kai" || len(pc.Comments) != 1 {
		t.Errorf("post context = %+v", pc)
	}
}

func TestSendMessageTool(t *testing.T) {
	w := seededWorld()
	tool := &SendMessageTool{Effector: w}
	ec := tools.ExecContext{AgentID: "luna"}

	res, err := tool.Perform(context.Background(), map[string]any{"target_id": "user-1", "content": "not interested"}, ec)
	if err != nil || !res.Success {
		t.Fatalf("Perform() = %+v, %v", res, err)
	}
	msgs := w.Messages()
	if len(msgs) != 1 || msgs[0].FromID != "luna" || msgs[0].ToID != "user-1" || msgs[0].Content != "not interested" {
		t.Errorf("messages = %+v", msgs)
	}

	if res, _ := tool.Perform(context.Background(), map[string]any{"target_id": "user-1"}, ec); res.Success {
		t.Error("empty content accepted")
	}
}

func TestDeclineRequestDefaultsToTrigger(t *testing.T) {
	w := seededWorld()
	tool := &DeclineRequestTool{Effector: w}
	ec := tools.ExecContext{AgentID: "luna", TriggerID: "evt-7"}

	res, err := tool.Perform(context.Background(), map[string]any{"reason": "busy"}, ec)
	if err != nil || !res.Success {
		t.Fatalf("Perform() = %+v, %v", res, err)
	}
	declines := w.Declines()
	if len(declines) != 1 || declines[0] != "luna/evt-7" {
		t.Errorf("declines = %v, want the triggering event id", declines)
	}
}

func TestIgnoreToolAlwaysSucceeds(t *testing.T) {
	tool := &IgnoreTool{}
	res, err := tool.Perform(context.Background(), nil, tools.ExecContext{})
	if err != nil || !res.Success {
		t.Fatalf("Perform() = %+v, %v", res, err)
	}
	data := res.Data.(map[string]any)
	if data["ignored"] != true {
		t.Errorf("data = %v", data)
	}
}

func TestJoinBattleTool(t *testing.T) {
	w := seededWorld()
	tool := &JoinBattleTool{Effector: w}
	ec := tools.ExecContext{AgentID: "luna"}

	res, err := tool.Perform(context.Background(), map[string]any{"battle_id": "b1"}, ec)
	if err != nil || !res.Success {
		t.Fatalf("Perform() = %+v, %v", res, err)
	}
	b, _ := w.BattleDetails(context.Background(), "b1")
	if len(b.Participants) != 1 || b.Participants[0] != "luna" {
		t.Errorf("participants = %v", b.Participants)
	}

	if res, _ := tool.Perform(context.Background(), map[string]any{"battle_id": "nope"}, ec); res.Success {
		t.Error("joining an unknown battle succeeded")
	}
}

func TestCreatePostToolDefaultsVisibility(t *testing.T) {
	w := seededWorld()
	tool := &CreatePostTool{Effector: w}
	ec := tools.ExecContext{AgentID: "luna"}

	res, err := tool.Perform(context.Background(), map[string]any{"content": "quiet day"}, ec)
	if err != nil || !res.Success {
		t.Fatalf("Perform() = %+v, %v", res, err)
	}
	id := res.Data.(map[string]any)["post_id"].(string)
	pc, err := w.PostContext(context.Background(), id)
	if err != nil || pc.AuthorID != "luna" || pc.Content != "quiet day" {
		t.Errorf("post = %+v, %v", pc, err)
	}

	if res, _ := tool.Perform(context.Background(), map[string]any{}, ec); res.Success {
		t.Error("empty content accepted")
	}
}
