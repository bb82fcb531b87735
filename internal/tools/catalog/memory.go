package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryWorld is an in-memory World and Effector, used by tests and the
// single-binary demo mode.
type MemoryWorld struct {
	mu            sync.Mutex
	profiles      map[string]*Profile
	relationships map[string]*Relationship
	battles       map[string]*BattleDetails
	posts         map[string]*PostContext

	messages []SentMessage
	declines []string
	joins    []string
}

// SentMessage records one delivered message.
type SentMessage struct {
	ID      string
	FromID  string
	ToID    string
	Content string
}

// NewMemoryWorld creates an empty in-memory world.
func NewMemoryWorld() *MemoryWorld {
	return &MemoryWorld{
		profiles:      make(map[string]*Profile),
		relationships: make(map[string]*Relationship),
		battles:       make(map[string]*BattleDetails),
		posts:         make(map[string]*PostContext),
	}
}

// Seed helpers.

func (w *MemoryWorld) PutProfile(p *Profile) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.profiles[p.ID] = p
}

func (w *MemoryWorld) PutRelationship(r *Relationship) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.relationships[r.ActorID+"/"+r.OtherID] = r
}

func (w *MemoryWorld) PutBattle(b *BattleDetails) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.battles[b.ID] = b
}

func (w *MemoryWorld) PutPost(p *PostContext) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posts[p.PostID] = p
}

// World implementation.

func (w *MemoryWorld) ActorProfile(_ context.Context, id string) (*Profile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.profiles[id]
	if !ok {
		return nil, fmt.Errorf("no profile for %s", id)
	}
	return p, nil
}

func (w *MemoryWorld) Relationship(_ context.Context, actorID, otherID string) (*Relationship, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.relationships[actorID+"/"+otherID]; ok {
		return r, nil
	}
	// Unknown pairs are neutral, not errors.
	return &Relationship{ActorID: actorID, OtherID: otherID, LastTone: "neutral"}, nil
}

func (w *MemoryWorld) BattleDetails(_ context.Context, battleID string) (*BattleDetails, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.battles[battleID]
	if !ok {
		return nil, fmt.Errorf("no battle %s", battleID)
	}
	return b, nil
}

func (w *MemoryWorld) PostContext(_ context.Context, postID string) (*PostContext, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.posts[postID]
	if !ok {
		return nil, fmt.Errorf("no post %s", postID)
	}
	return p, nil
}

// Effector implementation.

func (w *MemoryWorld) SendMessage(_ context.Context, fromID, toID, content string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := SentMessage{ID: uuid.NewString(), FromID: fromID, ToID: toID, Content: content}
	w.messages = append(w.messages, msg)
	return msg.ID, nil
}

func (w *MemoryWorld) DeclineRequest(_ context.Context, fromID, requestID, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.declines = append(w.declines, fromID+"/"+requestID)
	return nil
}

func (w *MemoryWorld) JoinBattle(_ context.Context, actorID, battleID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.battles[battleID]
	if !ok {
		return fmt.Errorf("no battle %s", battleID)
	}
	b.Participants = append(b.Participants, actorID)
	w.joins = append(w.joins, actorID+"/"+battleID)
	return nil
}

func (w *MemoryWorld) CreatePost(_ context.Context, authorID, content, _ string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := uuid.NewString()
	w.posts[id] = &PostContext{PostID: id, AuthorID: authorID, Content: content}
	return id, nil
}

// Messages returns a snapshot of delivered messages.
func (w *MemoryWorld) Messages() []SentMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]SentMessage, len(w.messages))
	copy(out, w.messages)
	return out
}

// Declines returns a snapshot of recorded declines.
func (w *MemoryWorld) Declines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.declines))
	copy(out, w.declines)
	return out
}
