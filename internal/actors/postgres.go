package actors

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB

	// Prepared statements for the hot paths
	stmtGet        *sql.Stmt
	stmtGetCore    *sql.Stmt
	stmtUpdateHeat *sql.Stmt
	stmtIsMember   *sql.Stmt
}

// PostgresConfig holds connection settings for PostgreSQL.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPostgresConfig returns default connection settings.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// NewPostgresStore opens a PostgreSQL-backed store from a DSN.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	if config == nil || config.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := store.prepare(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return store, nil
}

// NewPostgresStoreFromDB wraps an existing connection. Migrations are not
// run; the caller owns the schema. Used by tests with sqlmock.
func NewPostgresStoreFromDB(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db}
	if err := store.prepare(); err != nil {
		return nil, err
	}
	return store, nil
}

// DB exposes the underlying connection for related stores.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		identity JSONB NOT NULL DEFAULT '{}',
		morale DOUBLE PRECISION NOT NULL DEFAULT 50,
		energy DOUBLE PRECISION NOT NULL DEFAULT 50,
		coherence DOUBLE PRECISION NOT NULL DEFAULT 50,
		heat DOUBLE PRECISION NOT NULL DEFAULT 0,
		rage DOUBLE PRECISION NOT NULL DEFAULT 0,
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
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_action_records_agent ON action_records(agent_id, created_at);

	CREATE TABLE IF NOT EXISTS identity_observations (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *PostgresStore) prepare() error {
	var err error
	s.stmtGet, err = s.db.Prepare(`
		SELECT id, name, identity, morale, energy, coherence, heat, rage, community_id
		FROM actors WHERE id = $1`)
	if err != nil {
		return err
	}
	s.stmtGetCore, err = s.db.Prepare(`
		SELECT id, name, identity, heat, rage FROM actors WHERE id = $1`)
	if err != nil {
		return err
	}
	s.stmtUpdateHeat, err = s.db.Prepare(`
		UPDATE actors SET heat = LEAST(GREATEST($2, 0), 100) WHERE id = $1`)
	if err != nil {
		return err
	}
	s.stmtIsMember, err = s.db.Prepare(`
		SELECT EXISTS(SELECT 1 FROM community_members WHERE community_id = $1 AND member_id = $2)`)
	if err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Actor, error) {
	var actor Actor
	var identityJSON []byte
	err := s.stmtGet.QueryRowContext(ctx, id).Scan(
		&actor.ID, &actor.Name, &identityJSON,
		&actor.Morale, &actor.Energy, &actor.Coherence,
		&actor.Heat, &actor.Rage, &actor.CommunityID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActorNotFound
	}
	if err != nil {
		// Scan failures on the wide row indicate schema drift; signal the
		// caller to retry with the reduced field set.
		return nil, fmt.Errorf("%w: %v", ErrFieldShape, err)
	}
	if err := json.Unmarshal(identityJSON, &actor.Identity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFieldShape, err)
	}
	actor.Identity = actor.Identity.Clamped()
	actor.Heat = ClampResource(actor.Heat)
	actor.Rage = ClampResource(actor.Rage)
	return &actor, nil
}

func (s *PostgresStore) GetCore(ctx context.Context, id string) (*Actor, error) {
	var actor Actor
	var identityJSON []byte
	err := s.stmtGetCore.QueryRowContext(ctx, id).Scan(
		&actor.ID, &actor.Name, &identityJSON, &actor.Heat, &actor.Rage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get actor core fields: %w", err)
	}
	if err := json.Unmarshal(identityJSON, &actor.Identity); err == nil {
		actor.Identity = actor.Identity.Clamped()
	}
	actor.Heat = ClampResource(actor.Heat)
	actor.Rage = ClampResource(actor.Rage)
	return &actor, nil
}

func (s *PostgresStore) UpdateHeat(ctx context.Context, id string, heat float64) error {
	res, err := s.stmtUpdateHeat.ExecContext(ctx, id, ClampResource(heat))
	if err != nil {
		return fmt.Errorf("failed to update heat: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrActorNotFound
	}
	return nil
}

func (s *PostgresStore) RecordAction(ctx context.Context, rec *ActionRecord) error {
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
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.AgentID, rec.ActionType, rec.TargetID, metadata, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action record: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordObservation(ctx context.Context, obs *IdentityObservation) error {
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity_observations (id, actor_id, subject_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		obs.ID, obs.ActorID, obs.SubjectID, obs.Content, obs.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identity observation: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsMember(ctx context.Context, communityID, memberID string) (bool, error) {
	var exists bool
	if err := s.stmtIsMember.QueryRowContext(ctx, communityID, memberID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmtGet, s.stmtGetCore, s.stmtUpdateHeat, s.stmtIsMember} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
