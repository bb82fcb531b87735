package actors

import (
	"context"
	"errors"
)

// Common sentinel errors for actor storage.
var (
	// ErrActorNotFound indicates the actor id does not exist in the store.
	ErrActorNotFound = errors.New("actor not found")

	// ErrFieldShape indicates the stored row does not match the full field
	// set (schema drift). Callers should retry with GetCore.
	ErrFieldShape = errors.New("actor row does not match expected field shape")
)

// Store is the persistence interface for actor state, action records, and
// identity observations.
//
// Implementations: PostgresStore for production, SQLiteStore for embedded
// deployments, MemoryStore for tests.
type Store interface {
	// Get returns the full actor row. Returns ErrActorNotFound if the id
	// does not exist and ErrFieldShape if the row cannot be scanned into
	// the full field set.
	Get(ctx context.Context, id string) (*Actor, error)

	// GetCore returns the actor using the reduced, guaranteed-safe field
	// set (id, name, identity, heat, rage). Used as the fallback when Get
	// fails with a field-shape mismatch.
	GetCore(ctx context.Context, id string) (*Actor, error)

	// UpdateHeat writes the actor's heat, clamped to [0, 100].
	UpdateHeat(ctx context.Context, id string, heat float64) error

	// RecordAction inserts one durable action record.
	RecordAction(ctx context.Context, rec *ActionRecord) error

	// RecordObservation inserts one identity observation.
	RecordObservation(ctx context.Context, obs *IdentityObservation) error

	// IsMember reports whether the given actor or user belongs to the
	// community.
	IsMember(ctx context.Context, communityID, memberID string) (bool, error)

	// Close releases any underlying resources.
	Close() error
}
