package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/telemetry"
)

// Job types carried in Pub/Sub messages.
const (
	JobIngestReadings   = "ingest_readings"
	JobRefreshEstimates = "refresh_estimates"
	JobHealthCheck      = "health_check"
)

// Dispatch errors.
var (
	ErrUnknownJobType = errors.New("unknown job type")
	ErrInvalidMessage = errors.New("invalid job message")
)

// JobMessage is the body of a worker Pub/Sub message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Dispatcher runs jobs named by JobMessage payloads.
type Dispatcher struct {
	ingest  *IngestJob
	refresh *RefreshJob
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher. Either job may be nil, in which case
// its job type fails.
func NewDispatcher(ingest *IngestJob, refresh *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{ingest: ingest, refresh: refresh, logger: logger}
}

// Dispatch decodes data and runs the job it names.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) (string, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	switch msg.JobType {
	case JobIngestReadings:
		return msg.JobType, d.runIngest(ctx)
	case JobRefreshEstimates:
		return msg.JobType, d.runRefresh(ctx)
	case JobHealthCheck:
		return msg.JobType, d.runHealthCheck(ctx)
	default:
		return msg.JobType, fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

func (d *Dispatcher) runIngest(ctx context.Context) error {
	if d.ingest == nil {
		return errors.New("ingest job not configured")
	}
	_, err := d.ingest.Run(ctx)
	return err
}

func (d *Dispatcher) runRefresh(ctx context.Context) error {
	if d.refresh == nil {
		return errors.New("refresh job not configured")
	}

	result := d.refresh.Run(ctx)

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return result.SaveErr
}

// healthCheckPoint is central Pune.
var healthCheckPoint = geo.Point{Lat: 18.5204, Lon: 73.8567}

func (d *Dispatcher) runHealthCheck(ctx context.Context) error {
	if d.refresh == nil {
		return errors.New("refresh job not configured")
	}

	d.logger.Debug().Msg("running health check")

	healthCheckJob := NewRefreshJob(RefreshJobConfig{
		Config: RefreshConfig{
			Targets: []RefreshTarget{
				{Name: "health-check", Priority: 1, Points: []geo.Point{healthCheckPoint}},
			},
			Concurrency: 1,
			Timeout:     10 * time.Second,
		},
		Logger:    d.logger,
		Estimator: d.refresh.estimator,
		Clock:     d.refresh.clock,
	})

	if result := healthCheckJob.Run(ctx); result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler feeds Pub/Sub messages to a Dispatcher.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	metrics          *telemetry.JobMetrics
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher

	// Metrics is optional.
	Metrics *telemetry.JobMetrics

	Logger zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Ingest runs are serialised, so few messages are worth holding.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handle(ctx, msg.ID, msg.PublishTime, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handle runs one message and reports whether it should be acked.
// Malformed messages and unknown job types are acked so they are not
// redelivered; job failures are nacked for retry.
func (h *PubSubHandler) handle(ctx context.Context, id string, published time.Time, data []byte) bool {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", id).
		Str("publish_time", published.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	jobType, err := h.dispatcher.Dispatch(ctx, data)
	if h.metrics != nil && jobType != "" {
		h.metrics.RecordJob(ctx, jobType, time.Since(startTime), err)
	}

	switch {
	case errors.Is(err, ErrInvalidMessage):
		logger.Error().Err(err).Msg("dropping malformed message")
		return true
	case errors.Is(err, ErrUnknownJobType):
		logger.Warn().Str("job_type", jobType).Msg("unknown job type")
		return true
	case err != nil:
		logger.Error().Err(err).Str("job_type", jobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", jobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}
