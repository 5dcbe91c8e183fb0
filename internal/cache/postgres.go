package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores the blob as a JSONB row in PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a PostgreSQL cache backend.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// EnsureSchema creates the cache table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS cache_blobs (
			name TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := b.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	return nil
}

// LoadBlob reads the cache blob.
func (b *PostgresBackend) LoadBlob(ctx context.Context) ([]byte, error) {
	query := `
		SELECT data::text
		FROM cache_blobs
		WHERE name = $1
	`

	var data string
	if err := b.pool.QueryRow(ctx, query, BlobName).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoBlob
		}
		return nil, fmt.Errorf("load postgres cache: %w", err)
	}
	return []byte(data), nil
}

// SaveBlob upserts the cache blob.
func (b *PostgresBackend) SaveBlob(ctx context.Context, blob []byte) error {
	query := `
		INSERT INTO cache_blobs (name, data, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (name) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := b.pool.Exec(ctx, query, BlobName, string(blob)); err != nil {
		return fmt.Errorf("save postgres cache: %w", err)
	}
	return nil
}

// Ping checks the pool connection.
func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Name returns "postgres".
func (b *PostgresBackend) Name() string {
	return "postgres"
}
