package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vurg/notification-service/app/entity"
	"github.com/vurg/notification-service/app/preparer"
	"github.com/vurg/notification-service/app/provider"
)

type fakePreparer struct {
	raw []byte
	err error
	got preparer.Message
}

func (p *fakePreparer) Prepare(_ context.Context, msg preparer.Message) ([]byte, error) {
	p.got = msg
	if p.err != nil {
		return nil, p.err
	}
	return p.raw, nil
}

type fakeProvider struct {
	errs  []error
	calls int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) SendRaw(_ context.Context, _ string, _ []byte) error {
	p.calls++
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func validNotification() Notification {
	return Notification{
		Recipient:   "alex@ok.com",
		Subject:     SubjectConfirmation,
		Body:        "Hello Alex",
		Attachments: []entity.Attachment{{Filename: "appointment.ics", Data: []byte("ics")}},
	}
}

func TestEmailServiceSendSuccess(t *testing.T) {
	t.Parallel()

	prep := &fakePreparer{raw: []byte("raw")}
	prov := &fakeProvider{}
	svc := NewEmailService(prep, prov, nil, quietLogger())

	if err := svc.Send(context.Background(), validNotification()); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if prov.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", prov.calls)
	}
	if len(prep.got.Attachments) != 1 || prep.got.Recipient != "alex@ok.com" {
		t.Fatalf("unexpected prepared message: %+v", prep.got)
	}
}

func TestEmailServiceSendPrepareFailure(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{}
	svc := NewEmailService(&fakePreparer{err: errors.New("prepare failed")}, prov, nil, quietLogger())

	if err := svc.Send(context.Background(), validNotification()); err == nil {
		t.Fatalf("expected error")
	}
	if prov.calls != 0 {
		t.Fatalf("provider must not be called after prepare failure")
	}
}

func TestEmailServiceSendValidation(t *testing.T) {
	t.Parallel()

	svc := NewEmailService(&fakePreparer{raw: []byte("raw")}, &fakeProvider{}, nil, quietLogger())

	for _, mutate := range []func(*Notification){
		func(n *Notification) { n.Recipient = "" },
		func(n *Notification) { n.Subject = "" },
		func(n *Notification) { n.Body = "" },
	} {
		n := validNotification()
		mutate(&n)
		if err := svc.Send(context.Background(), n); !errors.Is(err, ErrInvalidNotification) {
			t.Fatalf("expected ErrInvalidNotification, got %v", err)
		}
	}
}

func TestEmailServiceNoRetryByDefault(t *testing.T) {
	t.Parallel()

	transient := provider.NewDeliveryError("fake", provider.KindTransport, errors.New("timeout"))
	prov := &fakeProvider{errs: []error{transient}}
	svc := NewEmailService(&fakePreparer{raw: []byte("raw")}, prov, NoRetry{}, quietLogger())

	if err := svc.Send(context.Background(), validNotification()); !errors.Is(err, provider.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if prov.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", prov.calls)
	}
}

func TestBackoffRetryRetriesTransportOnly(t *testing.T) {
	t.Parallel()

	transient := provider.NewDeliveryError("fake", provider.KindTransport, errors.New("timeout"))
	prov := &fakeProvider{errs: []error{transient, transient}}
	retry := NewBackoffRetry(3, time.Millisecond, 5*time.Millisecond, quietLogger())
	svc := NewEmailService(&fakePreparer{raw: []byte("raw")}, prov, retry, quietLogger())

	if err := svc.Send(context.Background(), validNotification()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if prov.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", prov.calls)
	}

	rejected := provider.NewDeliveryError("fake", provider.KindProvider, errors.New("invalid recipient"))
	prov = &fakeProvider{errs: []error{rejected}}
	svc = NewEmailService(&fakePreparer{raw: []byte("raw")}, prov, retry, quietLogger())
	if err := svc.Send(context.Background(), validNotification()); !errors.Is(err, provider.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if prov.calls != 1 {
		t.Fatalf("provider errors must not be retried, got %d attempts", prov.calls)
	}
}

func TestNewRetryPolicy(t *testing.T) {
	t.Parallel()

	if _, ok := NewRetryPolicy(0, time.Second, time.Minute, quietLogger()).(NoRetry); !ok {
		t.Fatalf("expected NoRetry for 0 attempts")
	}
	if _, ok := NewRetryPolicy(3, time.Second, time.Minute, quietLogger()).(*BackoffRetry); !ok {
		t.Fatalf("expected BackoffRetry for 3 attempts")
	}
}
