// Package cache persists forecast payloads per location and model.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/weather"
)

// DefaultTTL is how long a cached forecast stays valid.
const DefaultTTL = time.Hour

// ErrCorruptBlob is reported when the stored blob cannot be decoded.
var ErrCorruptBlob = errors.New("corrupt cache blob")

// Config holds configuration for the cache store.
type Config struct {
	// Backend stores the blob (default: MemoryBackend).
	Backend Backend

	// TTL is the validity of an entry (default: 1 hour).
	TTL time.Duration

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time

	Logger zerolog.Logger
}

type entry struct {
	payload   *weather.RawForecastResponse
	fetchedAt time.Time
}

// blobEntry is the stored shape of one entry.
type blobEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Store is a forecast cache keyed by location and model. Every Put writes
// the complete set of entries to the backend as one blob.
//
// Payloads returned by Get are shared and must not be modified.
type Store struct {
	backend Backend
	ttl     time.Duration
	clock   func() time.Time
	logger  zerolog.Logger

	mu      sync.Mutex
	entries map[string]entry

	// writeMu serialises snapshot-and-save so an older snapshot never
	// replaces a newer one.
	writeMu       sync.Mutex
	lastPersisted time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates an empty store. Call Load to restore persisted entries.
func New(cfg Config) *Store {
	backend := cfg.Backend
	if backend == nil {
		backend = NewMemoryBackend()
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Store{
		backend: backend,
		ttl:     ttl,
		clock:   clock,
		logger:  cfg.Logger,
		entries: make(map[string]entry),
	}
}

// Key returns the cache key of a location and model. Coordinates use their
// shortest exact decimal form, so equal floats always share a key.
func Key(loc weather.Location, modelID string) string {
	return strconv.FormatFloat(loc.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(loc.Lon, 'f', -1, 64) + "," +
		modelID
}

// Get returns the payload for loc and model if present and younger than the TTL.
// Stale entries are kept until overwritten.
func (s *Store) Get(loc weather.Location, modelID string) (*weather.RawForecastResponse, bool) {
	key := Key(loc, modelID)

	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()

	if !ok || s.clock().Sub(e.fetchedAt) >= s.ttl {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return e.payload, true
}

// Put stores payload for loc and model with the current time and persists
// the cache. Payloads Load would reject are refused and nothing is written.
func (s *Store) Put(ctx context.Context, loc weather.Location, modelID string, payload *weather.RawForecastResponse) error {
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("cache put %s: %w", modelID, err)
	}

	s.mu.Lock()
	s.entries[Key(loc, modelID)] = entry{payload: payload, fetchedAt: s.clock()}
	s.mu.Unlock()

	return s.Persist(ctx)
}

// Persist writes all entries to the backend.
func (s *Store) Persist(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	blob, err := s.snapshot()
	if err != nil {
		return err
	}
	if err := s.backend.SaveBlob(ctx, blob); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	s.lastPersisted = s.clock()
	return nil
}

func (s *Store) snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]blobEntry, len(s.entries))
	for key, e := range s.entries {
		data, err := json.Marshal(e.payload)
		if err != nil {
			return nil, fmt.Errorf("encode cache entry %s: %w", key, err)
		}
		out[key] = blobEntry{Data: data, Timestamp: e.fetchedAt.UnixMilli()}
	}

	blob, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode cache: %w", err)
	}
	return blob, nil
}

// Load replaces the in-memory entries with the persisted blob. A missing or
// corrupt blob leaves the cache empty; only backend read failures are
// returned, and the store stays usable either way.
func (s *Store) Load(ctx context.Context) error {
	blob, err := s.backend.LoadBlob(ctx)
	if err != nil {
		s.reset()
		if errors.Is(err, ErrNoBlob) {
			s.logger.Debug().Str("backend", s.backend.Name()).Msg("no persisted cache")
			return nil
		}
		return fmt.Errorf("load cache: %w", err)
	}

	var stored map[string]blobEntry
	if err := json.Unmarshal(blob, &stored); err != nil {
		s.reset()
		s.logger.Warn().
			Err(fmt.Errorf("%w: %w", ErrCorruptBlob, err)).
			Str("backend", s.backend.Name()).
			Msg("discarding persisted cache")
		return nil
	}

	entries := make(map[string]entry, len(stored))
	for key, be := range stored {
		payload, err := weather.DecodeForecast(be.Data)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("skipping corrupt cache entry")
			continue
		}
		entries[key] = entry{payload: payload, fetchedAt: time.UnixMilli(be.Timestamp)}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Info().
		Str("backend", s.backend.Name()).
		Int("entries", len(entries)).
		Msg("cache loaded")
	return nil
}

func (s *Store) reset() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Stats summarises the cache for operators.
type Stats struct {
	Backend       string        `json:"backend"`
	Entries       int           `json:"entries"`
	FreshEntries  int           `json:"freshEntries"`
	Hits          uint64        `json:"hits"`
	Misses        uint64        `json:"misses"`
	TTL           time.Duration `json:"ttl"`
	LastPersisted *time.Time    `json:"lastPersisted,omitempty"`
}

// Stats returns current cache statistics.
func (s *Store) Stats() Stats {
	now := s.clock()

	s.mu.Lock()
	stats := Stats{
		Backend: s.backend.Name(),
		Entries: len(s.entries),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		TTL:     s.ttl,
	}
	for _, e := range s.entries {
		if now.Sub(e.fetchedAt) < s.ttl {
			stats.FreshEntries++
		}
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	if !s.lastPersisted.IsZero() {
		t := s.lastPersisted
		stats.LastPersisted = &t
	}
	s.writeMu.Unlock()

	return stats
}

// EntryInfo describes one cache entry.
type EntryInfo struct {
	Key       string        `json:"key"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Age       time.Duration `json:"age"`
	Fresh     bool          `json:"fresh"`
	Timesteps int           `json:"timesteps"`
}

// Entries lists all entries, most recently fetched first.
func (s *Store) Entries() []EntryInfo {
	now := s.clock()

	s.mu.Lock()
	out := make([]EntryInfo, 0, len(s.entries))
	for key, e := range s.entries {
		age := now.Sub(e.fetchedAt)
		out = append(out, EntryInfo{
			Key:       key,
			FetchedAt: e.fetchedAt,
			Age:       age,
			Fresh:     age < s.ttl,
			Timesteps: e.payload.Hourly.Len(),
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FetchedAt.Equal(out[j].FetchedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].FetchedAt.After(out[j].FetchedAt)
	})
	return out
}
