package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/weather"
)

// ErrFixtureServed marks a target whose vendor fetch failed, so the service
// answered with the fixture and the cache was not refreshed.
var ErrFixtureServed = errors.New("vendor unavailable, fixture served")

// ForecastSource resolves unified data through the cache.
type ForecastSource interface {
	GetUnifiedData(ctx context.Context, loc weather.Location, model weather.ModelSpec, useFixture bool) (*weather.UnifiedData, error)
}

// WarmJob requests every configured target so that stale cache entries are
// fetched again before a user asks for them.
type WarmJob struct {
	config WarmConfig
	source ForecastSource
	logger zerolog.Logger

	metrics *WarmMetrics
}

// WarmMetrics tracks warm job statistics across runs.
type WarmMetrics struct {
	mu sync.RWMutex

	TotalRuns       int64
	SuccessfulWarms int64
	FailedWarms     int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration

	CacheHits int64
	Refreshed int64
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config WarmConfig
	Source ForecastSource
	Logger zerolog.Logger
}

// NewWarmJob creates a new cache warm job.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	return &WarmJob{
		config:  cfg.Config.withDefaults(),
		source:  cfg.Source,
		logger:  cfg.Logger,
		metrics: &WarmMetrics{},
	}
}

// Config returns the effective configuration.
func (j *WarmJob) Config() WarmConfig {
	return j.config
}

// WarmResult contains the result of one run.
type WarmResult struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalTargets int
	Successful   int
	Failed       int
	Errors       []WarmError

	// CacheHits counts targets that were still fresh.
	CacheHits int

	// Refreshed counts targets fetched live and stored.
	Refreshed int
}

// WarmError represents a failed target.
type WarmError struct {
	Target WarmTarget
	Error  string
}

// Run warms all configured targets.
func (j *WarmJob) Run(ctx context.Context) *WarmResult {
	return j.run(ctx, j.config)
}

// RunTargets warms the given models for the given locations with the job's
// concurrency and timeout.
func (j *WarmJob) RunTargets(ctx context.Context, locations []weather.Location, models []string) *WarmResult {
	cfg := j.config
	cfg.Locations = locations
	cfg.Models = models
	return j.run(ctx, cfg)
}

func (j *WarmJob) run(ctx context.Context, cfg WarmConfig) *WarmResult {
	startTime := time.Now()
	targets := cfg.Targets()
	result := &WarmResult{
		RunID:        uuid.NewString(),
		StartTime:    startTime,
		TotalTargets: len(targets),
	}

	logger := j.logger.With().Str("run_id", result.RunID).Logger()

	logger.Info().
		Int("total_targets", result.TotalTargets).
		Int("concurrency", cfg.Concurrency).
		Msg("starting cache warm job")

	targetsChan := make(chan WarmTarget, len(targets))
	resultsChan := make(chan targetResult, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmWorker(ctx, cfg.Timeout, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		switch {
		case tr.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, WarmError{Target: tr.target, Error: tr.err.Error()})
		case tr.provenance == weather.ProvenanceCache:
			result.Successful++
			result.CacheHits++
		default:
			result.Successful++
			result.Refreshed++
		}
	}

	// Targets never picked up because the context ended count as failed.
	if skipped := result.TotalTargets - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("cache_hits", result.CacheHits).
		Int("refreshed", result.Refreshed).
		Msg("cache warm job completed")

	return result
}

type targetResult struct {
	target     WarmTarget
	provenance weather.Provenance
	err        error
}

func (j *WarmJob) warmWorker(ctx context.Context, timeout time.Duration, targets <-chan WarmTarget, results chan<- targetResult) {
	for target := range targets {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.warmTarget(ctx, timeout, target)
		}
	}
}

func (j *WarmJob) warmTarget(ctx context.Context, timeout time.Duration, target WarmTarget) targetResult {
	res := targetResult{target: target}

	model, err := weather.FindModel(target.ModelID)
	if err != nil {
		res.err = err
		return res
	}
	if j.source == nil {
		res.err = errors.New("no forecast source configured")
		return res
	}

	targetCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := j.source.GetUnifiedData(targetCtx, target.Location, model, false)
	switch {
	case err != nil:
		res.err = err
	case data.Provenance == weather.ProvenanceFixture:
		res.err = ErrFixtureServed
	default:
		res.provenance = data.Provenance
	}

	if res.err != nil {
		j.logger.Warn().Err(res.err).Str("target", target.String()).Msg("cache warm failed")
	}
	return res
}

func (j *WarmJob) updateMetrics(result *WarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulWarms += int64(result.Successful)
	j.metrics.FailedWarms += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
	j.metrics.CacheHits += int64(result.CacheHits)
	j.metrics.Refreshed += int64(result.Refreshed)
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmJob) GetMetrics() WarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		SuccessfulWarms: j.metrics.SuccessfulWarms,
		FailedWarms:     j.metrics.FailedWarms,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
		CacheHits:       j.metrics.CacheHits,
		Refreshed:       j.metrics.Refreshed,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *WarmJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"successful_warms":  m.SuccessfulWarms,
		"failed_warms":      m.FailedWarms,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
		"cache_hits":        m.CacheHits,
		"refreshed":         m.Refreshed,
	}
}
