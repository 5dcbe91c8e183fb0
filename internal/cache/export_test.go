package cache

import "context"

// SQLitePragma reads a pragma through the backend's own pool.
func SQLitePragma(ctx context.Context, b *SQLiteBackend, name string) (string, error) {
	var value string
	err := b.conn.GetContext(ctx, &value, "PRAGMA "+name)
	return value, err
}
