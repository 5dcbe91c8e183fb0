package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteBackend stores the blob in a local SQLite database.
type SQLiteBackend struct {
	conn *sqlx.DB
	path string
}

// sqlitePragmas run on every new connection of the pool.
const sqlitePragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// OpenSQLite opens or creates a SQLite database at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	conn, err := sqlx.Open("sqlite", path+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}

	b := &SQLiteBackend{conn: conn, path: path}
	if err := b.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sqlite cache: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_blobs (
		name TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := b.conn.Exec(schema)
	return err
}

// LoadBlob reads the cache blob.
func (b *SQLiteBackend) LoadBlob(ctx context.Context) ([]byte, error) {
	var data string
	err := b.conn.GetContext(ctx, &data, "SELECT data FROM cache_blobs WHERE name = ?", BlobName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoBlob
		}
		return nil, fmt.Errorf("load sqlite cache: %w", err)
	}
	return []byte(data), nil
}

// SaveBlob replaces the cache blob.
func (b *SQLiteBackend) SaveBlob(ctx context.Context, blob []byte) error {
	_, err := b.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache_blobs (name, data, updated_at) VALUES (?, ?, ?)",
		BlobName, string(blob), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save sqlite cache: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.conn.PingContext(ctx)
}

// Name returns "sqlite".
func (b *SQLiteBackend) Name() string {
	return "sqlite"
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.conn.Close()
}
