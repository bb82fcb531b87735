package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duskpoint/reverie/internal/actors"
)

// maxSummaryLen bounds the situation summary handed to the reasoning step.
const maxSummaryLen = 1200

// maxExcerptLen bounds the subject excerpt inside the summary.
const maxExcerptLen = 280

// Observer builds the minimal per-iteration situational snapshot: the actor's
// resource state plus a short textual digest. It never pre-fetches relational
// detail; the one relational lookup it performs is community membership for
// in-group posts.
type Observer struct {
	store actors.Store
	log   *slog.Logger
}

// NewObserver creates the Observe node.
func NewObserver(store actors.Store, log *slog.Logger) *Observer {
	if log == nil {
		log = slog.Default()
	}
	return &Observer{store: store, log: log}
}

// Observe reads the actor and assembles the situation summary. The only
// fatal outcome is a missing actor.
func (o *Observer) Observe(ctx context.Context, state *State) (*Delta, error) {
	scope := state.Scope

	actor, err := o.store.Get(ctx, scope.ActorID)
	if errors.Is(err, actors.ErrActorNotFound) {
		return nil, ErrActorNotFound
	}
	if err != nil {
		// Schema drift on the wide row: retry with the reduced,
		// guaranteed-safe field set before giving up.
		o.log.Warn("actor fetch failed, retrying with core fields",
			"actor_id", scope.ActorID, "error", err)
		actor, err = o.store.GetCore(ctx, scope.ActorID)
		if errors.Is(err, actors.ErrActorNotFound) {
			return nil, ErrActorNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("actor core fetch failed: %w", err)
		}
	}

	communityNote := o.communityDigest(ctx, actor, scope)
	summary := buildSummary(scope, communityNote)

	return &Delta{
		Step: StepReason,
		Observation: &Observation{
			Actor:     actor,
			Summary:   summary,
			Timestamp: time.Now(),
		},
	}, nil
}

// communityDigest resolves membership of both the actor and the triggering
// user when the subject is an in-group post. Any other subject yields "".
func (o *Observer) communityDigest(ctx context.Context, actor *actors.Actor, scope Scope) string {
	post, ok := scope.Subject.(Post)
	if !ok || post.FeedVisibility() != VisibilityInGroup || post.CommunityID == "" {
		return ""
	}

	actorIn, err := o.store.IsMember(ctx, post.CommunityID, actor.ID)
	if err != nil {
		o.log.Warn("membership lookup failed", "community_id", post.CommunityID, "error", err)
		return ""
	}
	authorIn, err := o.store.IsMember(ctx, post.CommunityID, post.AuthorID)
	if err != nil {
		o.log.Warn("membership lookup failed", "community_id", post.CommunityID, "error", err)
		return ""
	}

	switch {
	case actorIn && authorIn:
		return "You and the author share this community."
	case actorIn:
		return "This is your community; the author is an outsider."
	case authorIn:
		return "The author posted inside their community; you are an outsider."
	default:
		return "Neither you nor the author belongs to this community."
	}
}

func buildSummary(scope Scope, communityNote string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trigger: %s", scope.Trigger.Type)
	if scope.Trigger.IsResponse {
		b.WriteString(" (follow-up to a prior decline)")
	}
	b.WriteString("\n")
	if scope.Trigger.Type == TriggerTick && scope.Trigger.Schedule != "" {
		fmt.Fprintf(&b, "Scheduled check-in (%s); no external event to react to.\n",
			scope.Trigger.Schedule)
	}

	if scope.Subject != nil {
		fmt.Fprintf(&b, "Subject: %s, visibility %s\n",
			scope.Subject.Kind(), scope.Subject.FeedVisibility())
		if excerpt := truncate(scope.Subject.Excerpt(), maxExcerptLen); excerpt != "" {
			fmt.Fprintf(&b, "Excerpt: %q\n", excerpt)
		}
		if dm, ok := scope.Subject.(DirectMessage); ok && dm.PersistenceLevel > 0 {
			fmt.Fprintf(&b, "The sender has repeated this request %d time(s) before.\n",
				dm.PersistenceLevel)
		}
	}
	if communityNote != "" {
		b.WriteString(communityNote)
		b.WriteString("\n")
	}

	return truncate(b.String(), maxSummaryLen)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary.
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
