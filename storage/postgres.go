package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"listing_scrooper/models"
)

// PostgresStore keeps intake drafts for the property-creation flow.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS intake_drafts (
			id UUID PRIMARY KEY,
			fingerprint TEXT NOT NULL UNIQUE,
			source_url TEXT NOT NULL,
			address TEXT,
			city TEXT,
			state TEXT,
			zip TEXT,
			price TEXT,
			agent_name TEXT,
			agent_email TEXT,
			record JSONB NOT NULL,
			snapshot_key TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// UpsertDraft stores d keyed by fingerprint. Re-extracting the same property
// refreshes the stored record but keeps the draft id and any values the
// newer extraction left empty.
func (s *PostgresStore) UpsertDraft(ctx context.Context, d *models.IntakeDraft) error {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		id = uuid.New()
	}
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	query := `
		INSERT INTO intake_drafts (
			id, fingerprint, source_url, address, city, state, zip, price,
			agent_name, agent_email, record, snapshot_key, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			address = COALESCE(NULLIF(EXCLUDED.address, ''), intake_drafts.address),
			city = COALESCE(NULLIF(EXCLUDED.city, ''), intake_drafts.city),
			state = COALESCE(NULLIF(EXCLUDED.state, ''), intake_drafts.state),
			zip = COALESCE(NULLIF(EXCLUDED.zip, ''), intake_drafts.zip),
			price = COALESCE(NULLIF(EXCLUDED.price, ''), intake_drafts.price),
			agent_name = COALESCE(NULLIF(EXCLUDED.agent_name, ''), intake_drafts.agent_name),
			agent_email = COALESCE(NULLIF(EXCLUDED.agent_email, ''), intake_drafts.agent_email),
			record = EXCLUDED.record,
			snapshot_key = COALESCE(NULLIF(EXCLUDED.snapshot_key, ''), intake_drafts.snapshot_key),
			updated_at = EXCLUDED.updated_at
		RETURNING id::text, created_at`

	return s.pool.QueryRow(ctx, query,
		id, d.Fingerprint, d.SourceURL, d.Address, d.City, d.State, d.Zip, d.Price,
		d.AgentName, d.AgentEmail, []byte(d.Record), d.SnapshotKey, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID, &d.CreatedAt)
}

func (s *PostgresStore) GetDraftByFingerprint(ctx context.Context, fingerprint string) (*models.IntakeDraft, error) {
	query := `
		SELECT id::text, fingerprint, source_url, COALESCE(address, ''), COALESCE(city, ''),
			COALESCE(state, ''), COALESCE(zip, ''), COALESCE(price, ''), COALESCE(agent_name, ''),
			COALESCE(agent_email, ''), record, COALESCE(snapshot_key, ''), created_at, updated_at
		FROM intake_drafts WHERE fingerprint = $1`

	var d models.IntakeDraft
	var record []byte
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&d.ID, &d.Fingerprint, &d.SourceURL, &d.Address, &d.City, &d.State, &d.Zip, &d.Price,
		&d.AgentName, &d.AgentEmail, &record, &d.SnapshotKey, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Record = record
	return &d, nil
}
