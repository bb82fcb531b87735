package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/duskpoint/reverie/internal/actors"
)

func TestObserveMissingActorIsFatal(t *testing.T) {
	o := NewObserver(actors.NewMemoryStore(), nil)
	state := NewState(messageScope("ghost", "user-1", "hi", false, 0), DefaultMaxIterations)

	_, err := o.Observe(context.Background(), state)
	if !errors.Is(err, ErrActorNotFound) {
		t.Fatalf("Observe() error = %v, want ErrActorNotFound", err)
	}
}

func TestObserveFallsBackToCoreFields(t *testing.T) {
	store := actors.NewMemoryStore()
	store.Put(&actors.Actor{ID: "luna", Name: "Luna", Morale: 60, Heat: 30})
	store.FailGet = true

	o := NewObserver(store, nil)
	state := NewState(messageScope("luna", "user-1", "hi", false, 0), DefaultMaxIterations)

	d, err := o.Observe(context.Background(), state)
	if err != nil {
		t.Fatalf("Observe() error = %v, want core-field fallback", err)
	}
	actor := d.Observation.Actor
	if actor.Heat != 30 || actor.Name != "Luna" {
		t.Errorf("core actor = %+v, want heat 30 and name preserved", actor)
	}
	// GetCore never returns the wide fields.
	if actor.Morale != 0 {
		t.Errorf("Morale = %v, want 0 from the reduced field set", actor.Morale)
	}
	if d.Step != StepReason {
		t.Errorf("Step = %q, want %q", d.Step, StepReason)
	}
}

func TestObserveSummaryContents(t *testing.T) {
	store := actors.NewMemoryStore()
	store.Put(testActor("luna", 0))

	o := NewObserver(store, nil)
	state := NewState(messageScope("luna", "user-1", "please join my guild", true, 2), DefaultMaxIterations)

	d, err := o.Observe(context.Background(), state)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	summary := d.Observation.Summary
	for _, want := range []string{"message", "please join my guild", "follow-up", "2 time(s)"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestObserveTruncatesLongExcerpts(t *testing.T) {
	store := actors.NewMemoryStore()
	store.Put(testActor("luna", 0))

	long := strings.Repeat("x", 2*maxExcerptLen)
	o := NewObserver(store, nil)
	state := NewState(messageScope("luna", "user-1", long, false, 0), DefaultMaxIterations)

	d, err := o.Observe(context.Background(), state)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if len(d.Observation.Summary) > maxSummaryLen+3 {
		t.Errorf("summary length = %d, want <= %d", len(d.Observation.Summary), maxSummaryLen)
	}
	if strings.Contains(d.Observation.Summary, long) {
		t.Error("excerpt was not truncated")
	}
}

func TestObserveCommunityDigest(t *testing.T) {
	store := actors.NewMemoryStore()
	store.Put(&actors.Actor{ID: "luna", Name: "Luna", CommunityID: "guild-1"})
	store.AddMember("guild-1", "luna")
	store.AddMember("guild-1", "author-1")

	scope := Scope{
		ActorID: "luna",
		Trigger: Trigger{Type: TriggerMention},
		Subject: Post{
			ID:          "post-1",
			AuthorID:    "author-1",
			CommunityID: "guild-1",
			Content:     "guild meeting tonight",
			Visibility:  VisibilityInGroup,
		},
	}
	o := NewObserver(store, nil)
	state := NewState(scope, DefaultMaxIterations)

	d, err := o.Observe(context.Background(), state)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if !strings.Contains(d.Observation.Summary, "share this community") {
		t.Errorf("summary missing shared-community note:\n%s", d.Observation.Summary)
	}
}

func TestObservePublicPostSkipsMembershipLookup(t *testing.T) {
	store := actors.NewMemoryStore()
	store.Put(testActor("luna", 0))

	scope := Scope{
		ActorID: "luna",
		Trigger: Trigger{Type: TriggerMention},
		Subject: Post{ID: "post-1", AuthorID: "author-1", Content: "hello world"},
	}
	o := NewObserver(store, nil)
	state := NewState(scope, DefaultMaxIterations)

	d, err := o.Observe(context.Background(), state)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if strings.Contains(d.Observation.Summary, "community") {
		t.Errorf("public post must not carry a community note:\n%s", d.Observation.Summary)
	}
}

func TestObserveTickTriggerSummary(t *testing.T) {
	store := actors.NewMemoryStore()
	store.Put(testActor("luna", 10))

	o := NewObserver(store, nil)
	scope := Scope{
		ActorID: "luna",
		Trigger: Trigger{Type: TriggerTick, Schedule: "0 * * * *", Timestamp: time.Now()},
	}
	state := NewState(scope, DefaultMaxIterations)

	d, err := o.Observe(context.Background(), state)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	summary := d.Observation.Summary
	if !strings.Contains(summary, "tick") {
		t.Errorf("summary missing trigger type:\n%s", summary)
	}
	if !strings.Contains(summary, "0 * * * *") {
		t.Errorf("summary missing the schedule:\n%s", summary)
	}
	if strings.Contains(summary, "Subject:") {
		t.Errorf("tick trigger has no subject, summary = %s", summary)
	}
}
