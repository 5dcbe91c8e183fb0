package models

// CacheSummary is the cache overview of the status endpoint.
type CacheSummary struct {
	Backend          string     `json:"backend"`
	Entries          int        `json:"entries"`
	FreshEntries     int        `json:"freshEntries"`
	Hits             uint64     `json:"hits"`
	Misses           uint64     `json:"misses"`
	HitRatio         string     `json:"hitRatio"`
	TTL              string     `json:"ttl"`
	LastPersisted    *Timestamp `json:"lastPersisted,omitempty"`
	LastPersistedAgo string     `json:"lastPersistedAgo,omitempty"`
}

// CacheEntry is one forecast cache entry.
type CacheEntry struct {
	Key        string    `json:"key"`
	FetchedAt  Timestamp `json:"fetchedAt"`
	Age        string    `json:"age"`
	AgeSeconds int64     `json:"ageSeconds"`
	Fresh      bool      `json:"fresh"`
	Timesteps  string    `json:"timesteps"`
}

// CacheReport is the response of the cache admin endpoint.
type CacheReport struct {
	Summary CacheSummary `json:"summary"`
	Entries []CacheEntry `json:"entries"`
}
