package actors

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. It uses the
// pure-Go modernc.org/sqlite driver so builds need no cgo.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite store at the given path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent workflow runs.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		identity TEXT NOT NULL DEFAULT '{}',
		morale REAL NOT NULL DEFAULT 50,
		energy REAL NOT NULL DEFAULT 50,
		coherence REAL NOT NULL DEFAULT 50,
		heat REAL NOT NULL DEFAULT 0,
		rage REAL NOT NULL DEFAULT 0,
		community_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS community_members (
		community_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		PRIMARY KEY (community_id, member_id)
	);

	CREATE TABLE IF NOT EXISTS action_records (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_action_records_agent ON action_records(agent_id, created_at);

	CREATE TABLE IF NOT EXISTS identity_observations (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put inserts or replaces an actor row. Primarily used for seeding.
func (s *SQLiteStore) Put(ctx context.Context, actor *Actor) error {
	identity, err := json.Marshal(actor.Identity.Clamped())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO actors (id, name, identity, morale, energy, coherence, heat, rage, community_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		actor.ID, actor.Name, string(identity),
		ClampResource(actor.Morale), ClampResource(actor.Energy), ClampResource(actor.Coherence),
		ClampResource(actor.Heat), ClampResource(actor.Rage), actor.CommunityID,
	)
	return err
}

// AddMember registers memberID in communityID.
func (s *SQLiteStore) AddMember(ctx context.Context, communityID, memberID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO community_members (community_id, member_id) VALUES (?, ?)`,
		communityID, memberID,
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Actor, error) {
	var actor Actor
	var identityJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, identity, morale, energy, coherence, heat, rage, community_id
		FROM actors WHERE id = ?`, id).Scan(
		&actor.ID, &actor.Name, &identityJSON,
		&actor.Morale, &actor.Energy, &actor.Coherence,
		&actor.Heat, &actor.Rage, &actor.CommunityID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFieldShape, err)
	}
	if err := json.Unmarshal([]byte(identityJSON), &actor.Identity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFieldShape, err)
	}
	actor.Identity = actor.Identity.Clamped()
	actor.Heat = ClampResource(actor.Heat)
	actor.Rage = ClampResource(actor.Rage)
	return &actor, nil
}

func (s *SQLiteStore) GetCore(ctx context.Context, id string) (*Actor, error) {
	var actor Actor
	var identityJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, identity, heat, rage FROM actors WHERE id = ?`, id).Scan(
		&actor.ID, &actor.Name, &identityJSON, &actor.Heat, &actor.Rage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get actor core fields: %w", err)
	}
	if err := json.Unmarshal([]byte(identityJSON), &actor.Identity); err == nil {
		actor.Identity = actor.Identity.Clamped()
	}
	actor.Heat = ClampResource(actor.Heat)
	actor.Rage = ClampResource(actor.Rage)
	return &actor, nil
}

func (s *SQLiteStore) UpdateHeat(ctx context.Context, id string, heat float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE actors SET heat = MIN(MAX(?, 0), 100) WHERE id = ?`,
		ClampResource(heat), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update heat: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrActorNotFound
	}
	return nil
}

func (s *SQLiteStore) RecordAction(ctx context.Context, rec *ActionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO action_records (id, agent_id, action_type, target_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AgentID, rec.ActionType, rec.TargetID, string(metadata), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordObservation(ctx context.Context, obs *IdentityObservation) error {
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity_observations (id, actor_id, subject_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		obs.ID, obs.ActorID, obs.SubjectID, obs.Content, obs.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identity observation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsMember(ctx context.Context, communityID, memberID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM community_members WHERE community_id = ? AND member_id = ?`,
		communityID, memberID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
