package handler

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/api/models"
	"github.com/fogcast/fogcast/internal/api/response"
	"github.com/fogcast/fogcast/internal/cache"
)

// CacheHandler handles the operator cache endpoints.
type CacheHandler struct {
	cache CacheAdmin
	now   func() time.Time
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(c CacheAdmin) *CacheHandler {
	return &CacheHandler{cache: c, now: time.Now}
}

// GetCache handles GET /v1/admin/cache.
func (h *CacheHandler) GetCache(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	infos := h.cache.Entries()

	report := models.CacheReport{
		Summary: cacheSummary(h.cache.Stats(), now),
		Entries: make([]models.CacheEntry, 0, len(infos)),
	}
	for _, e := range infos {
		report.Entries = append(report.Entries, models.CacheEntry{
			Key:        e.Key,
			FetchedAt:  models.Timestamp(e.FetchedAt),
			Age:        humanize.RelTime(now.Add(-e.Age), now, "ago", "from now"),
			AgeSeconds: int64(e.Age / time.Second),
			Fresh:      e.Fresh,
			Timesteps:  humanize.Comma(int64(e.Timesteps)),
		})
	}
	response.JSON(w, r, http.StatusOK, report)
}

// PersistCache handles POST /v1/admin/cache/persist. It writes the current
// entries to the backend and returns the updated summary.
func (h *CacheHandler) PersistCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Persist(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("manual cache persist failed")
		response.ServiceUnavailable(w, r, "cache backend rejected the write")
		return
	}
	zerolog.Ctx(r.Context()).Info().Msg("cache persisted on request")
	response.JSON(w, r, http.StatusOK, cacheSummary(h.cache.Stats(), h.now()))
}

func cacheSummary(stats cache.Stats, now time.Time) models.CacheSummary {
	summary := models.CacheSummary{
		Backend:       stats.Backend,
		Entries:       stats.Entries,
		FreshEntries:  stats.FreshEntries,
		Hits:          stats.Hits,
		Misses:        stats.Misses,
		HitRatio:      "n/a",
		TTL:           stats.TTL.String(),
		LastPersisted: models.TimestampPtr(stats.LastPersisted),
	}
	if lookups := stats.Hits + stats.Misses; lookups > 0 {
		pct := float64(stats.Hits) / float64(lookups) * 100
		// FtoaWithDigits truncates.
		summary.HitRatio = fmt.Sprintf("%s%%", humanize.FtoaWithDigits(math.Round(pct*10)/10, 1))
	}
	if stats.LastPersisted != nil {
		summary.LastPersistedAgo = humanize.RelTime(*stats.LastPersisted, now, "ago", "from now")
	}
	return summary
}
