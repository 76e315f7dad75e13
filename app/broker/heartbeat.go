package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/vurg/notification-service/app/metrics"
)

// HeartbeatPayload is the liveness message published to the status topic.
const HeartbeatPayload = "alive"

const heartbeatTimeout = 10 * time.Second

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Heartbeat publishes HeartbeatPayload once per connect and, when interval is
// positive, on a fixed schedule.
type Heartbeat struct {
	publisher Publisher
	topic     string
	interval  time.Duration
	cron      gocron.Scheduler
	metrics   *metrics.Metrics
	logger    logrus.FieldLogger
}

// NewHeartbeat creates the heartbeat and its scheduler.
func NewHeartbeat(publisher Publisher, topic string, interval time.Duration, m *metrics.Metrics, logger logrus.FieldLogger) (*Heartbeat, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating heartbeat scheduler: %w", err)
	}
	return &Heartbeat{
		publisher: publisher,
		topic:     topic,
		interval:  interval,
		cron:      cron,
		metrics:   m,
		logger:    logger.WithField("topic", topic),
	}, nil
}

// Start schedules the periodic beat. A zero interval means one-shot only.
func (h *Heartbeat) Start() error {
	if h.interval <= 0 {
		return nil
	}
	_, err := h.cron.NewJob(
		gocron.DurationJob(h.interval),
		gocron.NewTask(h.Beat),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling heartbeat: %w", err)
	}
	h.cron.Start()
	h.logger.WithField("interval", h.interval).Info("heartbeat scheduled")
	return nil
}

// Stop shuts the scheduler down.
func (h *Heartbeat) Stop() error {
	return h.cron.Shutdown()
}

// Beat publishes one heartbeat. Failures are logged and counted only.
func (h *Heartbeat) Beat() {
	ctx, cancel := context.WithTimeout(context.Background(), heartbeatTimeout)
	defer cancel()

	if err := h.publisher.Publish(ctx, h.topic, []byte(HeartbeatPayload)); err != nil {
		h.metrics.Heartbeats.WithLabelValues("error").Inc()
		h.logger.WithError(err).Warn("heartbeat publish failed")
		return
	}
	h.metrics.Heartbeats.WithLabelValues("ok").Inc()
	h.logger.Debug("heartbeat published")
}
