package cache

import (
	"context"
	"errors"
	"sync"
)

// BlobName is the name under which the cache blob is stored.
const BlobName = "weatherDataCache"

// ErrNoBlob is returned by a Backend that has never stored a blob.
var ErrNoBlob = errors.New("cache blob not found")

// Backend stores the whole cache as a single blob.
type Backend interface {
	LoadBlob(ctx context.Context) ([]byte, error)
	SaveBlob(ctx context.Context, blob []byte) error
	Ping(ctx context.Context) error
	Name() string
}

// MemoryBackend keeps the blob in process memory. Used for tests and when
// no durable storage is configured.
type MemoryBackend struct {
	mu    sync.RWMutex
	blob  []byte
	saves int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// NewMemoryBackendWithBlob creates an in-memory backend holding blob.
func NewMemoryBackendWithBlob(blob []byte) *MemoryBackend {
	return &MemoryBackend{blob: append([]byte(nil), blob...)}
}

// LoadBlob returns a copy of the stored blob.
func (b *MemoryBackend) LoadBlob(_ context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.blob == nil {
		return nil, ErrNoBlob
	}
	return append([]byte(nil), b.blob...), nil
}

// SaveBlob replaces the stored blob.
func (b *MemoryBackend) SaveBlob(_ context.Context, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.blob = append([]byte(nil), blob...)
	b.saves++
	return nil
}

// Ping always succeeds.
func (b *MemoryBackend) Ping(_ context.Context) error {
	return nil
}

// Name returns "memory".
func (b *MemoryBackend) Name() string {
	return "memory"
}

// Saves returns how many times a blob was written.
func (b *MemoryBackend) Saves() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.saves
}
