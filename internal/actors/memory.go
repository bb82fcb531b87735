package actors

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation for tests and local
// development. All operations are safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	actors       map[string]*Actor
	memberships  map[string]map[string]bool // communityID -> memberID -> present
	actions      []*ActionRecord
	observations []*IdentityObservation

	// FailGet forces Get to return ErrFieldShape, exercising the reduced
	// field-set fallback path.
	FailGet bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		actors:      make(map[string]*Actor),
		memberships: make(map[string]map[string]bool),
	}
}

// Put inserts or replaces an actor.
func (s *MemoryStore) Put(actor *Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *actor
	cp.Identity = cp.Identity.Clamped()
	cp.Heat = ClampResource(cp.Heat)
	cp.Rage = ClampResource(cp.Rage)
	s.actors[cp.ID] = &cp
}

// AddMember registers memberID in communityID.
func (s *MemoryStore) AddMember(communityID, memberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.memberships[communityID]
	if m == nil {
		m = make(map[string]bool)
		s.memberships[communityID] = m
	}
	m[memberID] = true
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailGet {
		return nil, ErrFieldShape
	}
	actor, ok := s.actors[id]
	if !ok {
		return nil, ErrActorNotFound
	}
	cp := *actor
	return &cp, nil
}

func (s *MemoryStore) GetCore(ctx context.Context, id string) (*Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actor, ok := s.actors[id]
	if !ok {
		return nil, ErrActorNotFound
	}
	return &Actor{
		ID:       actor.ID,
		Name:     actor.Name,
		Identity: actor.Identity,
		Heat:     actor.Heat,
		Rage:     actor.Rage,
	}, nil
}

func (s *MemoryStore) UpdateHeat(ctx context.Context, id string, heat float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actor, ok := s.actors[id]
	if !ok {
		return ErrActorNotFound
	}
	actor.Heat = ClampResource(heat)
	return nil
}

func (s *MemoryStore) RecordAction(ctx context.Context, rec *ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.actions = append(s.actions, &cp)
	return nil
}

func (s *MemoryStore) RecordObservation(ctx context.Context, obs *IdentityObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *obs
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.observations = append(s.observations, &cp)
	return nil
}

func (s *MemoryStore) IsMember(ctx context.Context, communityID, memberID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memberships[communityID][memberID], nil
}

func (s *MemoryStore) Close() error { return nil }

// Actions returns a snapshot of recorded actions, oldest first.
func (s *MemoryStore) Actions() []*ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ActionRecord, len(s.actions))
	copy(out, s.actions)
	return out
}

// Observations returns a snapshot of recorded identity observations.
func (s *MemoryStore) Observations() []*IdentityObservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*IdentityObservation, len(s.observations))
	copy(out, s.observations)
	return out
}
