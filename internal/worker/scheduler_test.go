package worker_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/fogcast/internal/worker"
)

func TestScheduler_RunsImmediately(t *testing.T) {
	src := &fakeSource{}
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config: worker.WarmConfig{Locations: testLocations()},
		Source: src,
		Logger: zerolog.Nop(),
	})

	s := worker.NewScheduler(job, 30*time.Minute, zerolog.Nop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool {
		return job.GetMetrics().TotalRuns >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_Stop(t *testing.T) {
	job := worker.NewWarmJob(worker.WarmJobConfig{Source: &fakeSource{}, Logger: zerolog.Nop()})

	s := worker.NewScheduler(job, time.Second, zerolog.Nop())
	require.NoError(t, s.Start())
	s.Stop()

	assert.False(t, s.IsRunning())
}
