package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vurg/notification-service/app/dto"
	"github.com/vurg/notification-service/app/entity"
	"github.com/vurg/notification-service/app/filter"
	"github.com/vurg/notification-service/app/metrics"
	"github.com/vurg/notification-service/app/provider"
)

// Outcome is the terminal state of one message in the pipeline.
type Outcome string

const (
	OutcomeRejectedParse    Outcome = "rejected_parse"
	OutcomeRejectedFilter   Outcome = "rejected_filter"
	OutcomeRejectedArtifact Outcome = "rejected_artifact"
	OutcomeSent             Outcome = "sent"
	OutcomeSendFailed       Outcome = "send_failed"
)

type Authorizer interface {
	Decide(ev entity.AppointmentEvent) filter.Decision
}

type ArtifactGenerator interface {
	Generate(ev entity.AppointmentEvent) (entity.Attachment, error)
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Dispatcher runs parse, authorize, artifact, and send for each booking
// message. Every failure ends in a logged terminal outcome; nothing is
// returned to the caller as an error.
type Dispatcher struct {
	authorizer Authorizer
	artifacts  ArtifactGenerator
	composer   *Composer
	sender     Sender
	metrics    *metrics.Metrics
	logger     logrus.FieldLogger
}

// NewDispatcher wires the pipeline stages.
func NewDispatcher(authorizer Authorizer, artifacts ArtifactGenerator, composer *Composer, sender Sender, m *metrics.Metrics, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		authorizer: authorizer,
		artifacts:  artifacts,
		composer:   composer,
		sender:     sender,
		metrics:    m,
		logger:     logger,
	}
}

// Handle processes one raw payload to completion.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) Outcome {
	ev, outcome, ok := d.Receive(ctx, payload)
	if !ok {
		return outcome
	}
	return d.Dispatch(ctx, ev)
}

// Receive parses the payload. When ok is false the message has already been
// rejected and outcome is terminal.
func (d *Dispatcher) Receive(ctx context.Context, payload []byte) (ev entity.AppointmentEvent, outcome Outcome, ok bool) {
	log := d.log(ctx)

	ev, err := dto.ParseBooking(payload)
	if err != nil {
		log.WithError(err).WithField("bytes", len(payload)).Warn("booking message rejected")
		d.record(OutcomeRejectedParse, "parse_error")
		return entity.AppointmentEvent{}, OutcomeRejectedParse, false
	}

	fields := logrus.Fields{"recipient": ev.PatientEmail, "status": ev.Status, "date": ev.Date, "time": ev.Time}
	switch ev.Status {
	case entity.StatusBooked:
		log.WithFields(fields).Info("booking made")
	case entity.StatusCanceled:
		log.WithFields(fields).Info("booking cancelled")
	default:
		log.WithFields(fields).Warn("invalid appointment status")
	}
	return ev, "", true
}

// Dispatch authorizes a parsed event and, when eligible, builds the artifact
// and sends the notification.
func (d *Dispatcher) Dispatch(ctx context.Context, ev entity.AppointmentEvent) Outcome {
	log := d.log(ctx).WithFields(logrus.Fields{"recipient": ev.PatientEmail, "status": ev.Status})

	decision := d.authorizer.Decide(ev)
	if !decision.Eligible {
		log.WithField("reason", decision.Reason).Info("notification not processed")
		d.record(OutcomeRejectedFilter, string(decision.Reason))
		return OutcomeRejectedFilter
	}

	attachment, err := d.buildArtifact(ev)
	if err != nil {
		log.WithError(err).Error("calendar artifact failed, notification dropped")
		d.record(OutcomeRejectedArtifact, "artifact_error")
		return OutcomeRejectedArtifact
	}

	subject, body, err := d.composer.Compose(ev)
	if err != nil {
		log.WithError(err).Error("compose failed, notification dropped")
		d.record(OutcomeSendFailed, "compose_error")
		return OutcomeSendFailed
	}

	start := time.Now()
	err = d.send(ctx, Notification{
		Recipient:   ev.PatientEmail,
		Subject:     subject,
		Body:        body,
		Attachments: []entity.Attachment{attachment},
	})
	if err != nil {
		d.metrics.SendDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		reason := failureReason(err)
		log.WithError(err).WithField("reason", reason).Error("notification delivery failed")
		d.record(OutcomeSendFailed, reason)
		return OutcomeSendFailed
	}

	d.metrics.SendDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	log.WithField("subject", subject).Info("notification sent")
	d.record(OutcomeSent, "")
	return OutcomeSent
}

func (d *Dispatcher) buildArtifact(ev entity.AppointmentEvent) (att entity.Attachment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("artifact generator panicked: %v", r)
		}
	}()
	return d.artifacts.Generate(ev)
}

func (d *Dispatcher) send(ctx context.Context, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	return d.sender.Send(ctx, n)
}

func (d *Dispatcher) record(outcome Outcome, reason string) {
	d.metrics.Dispatch.WithLabelValues(string(outcome), reason).Inc()
}

func (d *Dispatcher) log(ctx context.Context) logrus.FieldLogger {
	if id, ok := MessageIDFromContext(ctx); ok {
		return d.logger.WithField("message_id", id)
	}
	return d.logger
}

func failureReason(err error) string {
	if kind := provider.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "prepare"
}
