package queue

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vurg/notification-service/app/entity"
	"github.com/vurg/notification-service/app/service"
)

// Receiver parses and classifies a raw payload.
type Receiver interface {
	Receive(ctx context.Context, payload []byte) (entity.AppointmentEvent, service.Outcome, bool)
}

type BookingConsumer struct {
	receiver Receiver
	pool     *Pool
	acks     *ackSequencer
	logger   logrus.FieldLogger
}

// NewBookingConsumer constructs a consumer that feeds broker deliveries into
// the worker pool.
func NewBookingConsumer(receiver Receiver, pool *Pool, logger logrus.FieldLogger) *BookingConsumer {
	return &BookingConsumer{
		receiver: receiver,
		pool:     pool,
		acks:     newAckSequencer(),
		logger:   logger,
	}
}

// Run starts the consumer loop and blocks until context cancellation or the
// delivery channel closes.
func (c *BookingConsumer) Run(ctx context.Context, deliveries <-chan Delivery) error {
	c.logger.Info("booking consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("booking consumer shutting down")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Info("delivery channel closed")
				return nil
			}
			c.process(ctx, d)
		}
	}
}

// process parses a delivery and hands eligible work to the pool. Rejected
// messages are acked as soon as every earlier message has been, since
// redelivery cannot fix them.
func (c *BookingConsumer) process(ctx context.Context, d Delivery) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	msgCtx := service.WithMessageID(ctx, d.ID)
	done := c.acks.track(d.ack)

	ev, _, ok := c.receiver.Receive(msgCtx, d.Payload)
	if !ok {
		done()
		return
	}

	if err := c.pool.Submit(msgCtx, ev, done); err != nil {
		// Left unacked; a persistent session redelivers it after restart.
		c.logger.WithError(err).WithField("message_id", d.ID).Warn("delivery not queued")
	}
}
