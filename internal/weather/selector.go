package weather

import (
	"context"
	"sync"
	"sync/atomic"
)

// PanelSource prepares panel views.
type PanelSource interface {
	Panel(ctx context.Context, sel Selection) (*PanelView, error)
}

// Selector serializes the results of successive selections of one client.
// Every Select starts a new generation; a result whose generation is no
// longer current is discarded with ErrSuperseded, so a slow earlier request
// never overwrites the data of a later one.
type Selector struct {
	source     PanelSource
	generation atomic.Uint64
}

// NewSelector creates a selector over source.
func NewSelector(source PanelSource) *Selector {
	return &Selector{source: source}
}

// Begin starts a new generation and returns its number.
func (s *Selector) Begin() uint64 {
	return s.generation.Add(1)
}

// IsCurrent reports whether gen is still the latest generation.
func (s *Selector) IsCurrent(gen uint64) bool {
	return s.generation.Load() == gen
}

// Select runs one selection and returns its view unless a newer selection
// began before it finished.
func (s *Selector) Select(ctx context.Context, sel Selection) (*PanelView, error) {
	gen := s.Begin()
	view, err := s.source.Panel(ctx, sel)
	if !s.IsCurrent(gen) {
		return nil, ErrSuperseded
	}
	return view, err
}

// DefaultMaxSelectors bounds the number of selectors kept by a SelectorSet.
const DefaultMaxSelectors = 1024

// SelectorSet hands out one Selector per client key.
type SelectorSet struct {
	mu        sync.Mutex
	source    PanelSource
	limit     int
	selectors map[string]*Selector
	order     []string
}

// NewSelectorSet creates a set holding at most limit selectors. Once full, the
// oldest key is dropped.
func NewSelectorSet(source PanelSource, limit int) *SelectorSet {
	if limit <= 0 {
		limit = DefaultMaxSelectors
	}
	return &SelectorSet{
		source:    source,
		limit:     limit,
		selectors: make(map[string]*Selector),
	}
}

// Get returns the selector for key, creating it on first use.
func (s *SelectorSet) Get(key string) *Selector {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sel, ok := s.selectors[key]; ok {
		return sel
	}

	if len(s.order) >= s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.selectors, oldest)
	}

	sel := NewSelector(s.source)
	s.selectors[key] = sel
	s.order = append(s.order, key)
	return sel
}

// Len returns the number of tracked selectors.
func (s *SelectorSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selectors)
}
