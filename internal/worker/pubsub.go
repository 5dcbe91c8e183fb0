package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/weather"
)

// Job types accepted on the subscription.
const (
	JobTypeCacheWarm   = "cache_warm"
	JobTypeHealthCheck = "health_check"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	jobs             *JobHandler
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	WarmJob          *WarmJob
	Logger           zerolog.Logger
}

// JobMessage represents a worker job message.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Models overrides the configured models of a cache_warm job.
	Models []string `json:"models,omitempty"`

	// Locations restricts a cache_warm job to the named preset locations.
	Locations []string `json:"locations,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A warm run touches every target, so keep few messages outstanding.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		jobs:             NewJobHandler(cfg.WarmJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if h.jobs.Handle(logger.WithContext(ctx), msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// JobHandler decodes and runs job messages independent of the transport.
type JobHandler struct {
	warm   *WarmJob
	logger zerolog.Logger
}

// NewJobHandler creates a handler running jobs on warm.
func NewJobHandler(warm *WarmJob, logger zerolog.Logger) *JobHandler {
	return &JobHandler{warm: warm, logger: logger}
}

// Handle runs the job encoded in data and reports whether the message should
// be acknowledged. Malformed payloads are redelivered; unknown job types are
// acknowledged so they are not.
func (h *JobHandler) Handle(ctx context.Context, data []byte) bool {
	startTime := time.Now()
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &h.logger
	}

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return false
	}

	var err error
	switch msg.JobType {
	case JobTypeCacheWarm:
		err = h.handleCacheWarm(ctx, msg)
	case JobTypeHealthCheck:
		err = h.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return true
	}

	if err != nil {
		logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}

func (h *JobHandler) handleCacheWarm(ctx context.Context, msg JobMessage) error {
	cfg := h.warm.Config()

	locations := cfg.Locations
	if len(msg.Locations) > 0 {
		locations = locations[:0:0]
		for _, name := range msg.Locations {
			loc, ok := weather.FindLocation(name)
			if !ok {
				return fmt.Errorf("unknown location %q", name)
			}
			locations = append(locations, loc)
		}
	}

	models := cfg.Models
	if len(msg.Models) > 0 {
		models = msg.Models
	}

	result := h.warm.RunTargets(ctx, locations, models)

	// Consider it successful unless most targets failed.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many warm failures: %d/%d", result.Failed, result.TotalTargets)
	}
	return nil
}

// handleHealthCheck warms the station location with the default model to
// verify vendor connectivity.
func (h *JobHandler) handleHealthCheck(ctx context.Context) error {
	result := h.warm.RunTargets(ctx,
		[]weather.Location{weather.StationCoverage},
		[]string{weather.DefaultModelID},
	)
	if result.Failed > 0 {
		if len(result.Errors) > 0 {
			return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
		}
		return fmt.Errorf("health check failed: %w", ctx.Err())
	}
	return nil
}
