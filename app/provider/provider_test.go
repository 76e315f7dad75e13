package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

type fakeSES struct {
	err   error
	input *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESProviderSendRaw(t *testing.T) {
	t.Parallel()

	api := &fakeSES{}
	p := &SESProvider{client: api, source: "clinic@example.com"}

	if err := p.SendRaw(context.Background(), "alex@ok.com", []byte("raw")); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}
	if got := api.input.Destination.ToAddresses; len(got) != 1 || got[0] != "alex@ok.com" {
		t.Fatalf("unexpected destination %v", got)
	}
	if string(api.input.Content.Raw.Data) != "raw" {
		t.Fatalf("unexpected raw data %q", api.input.Content.Raw.Data)
	}
}

func TestSESProviderClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "api error", err: &smithy.GenericAPIError{Code: "MessageRejected", Message: "Email address is not verified"}, want: ErrProvider},
		{name: "network error", err: errors.New("dial tcp: i/o timeout"), want: ErrTransport},
	}

	for _, tc := range tests {
		p := &SESProvider{client: &fakeSES{err: tc.err}, source: "clinic@example.com"}
		err := p.SendRaw(context.Background(), "alex@ok.com", []byte("raw"))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSESProviderValidation(t *testing.T) {
	t.Parallel()

	p := &SESProvider{client: &fakeSES{}, source: "clinic@example.com"}
	if err := p.SendRaw(context.Background(), "", []byte("raw")); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
	if err := p.SendRaw(context.Background(), "alex@ok.com", nil); err == nil {
		t.Fatalf("expected error for empty content")
	}
}

func TestDeliveryErrorIs(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	err := fmt.Errorf("dispatch: %w", NewDeliveryError("gmail", KindCredential, base))

	if !errors.Is(err, ErrDelivery) || !errors.Is(err, ErrCredential) {
		t.Fatalf("expected delivery+credential match for %v", err)
	}
	if errors.Is(err, ErrTransport) || errors.Is(err, ErrProvider) {
		t.Fatalf("unexpected kind match for %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if KindOf(err) != KindCredential {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
	if NewDeliveryError("gmail", KindTransport, nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestClassifySMTP(t *testing.T) {
	t.Parallel()

	if got := classifySMTP(errors.New("dial tcp: connection refused")); got != KindTransport {
		t.Fatalf("expected transport, got %s", got)
	}
	if got := classifySMTP(&mail.SendError{Reason: mail.ErrSMTPRcptTo}); got != KindProvider {
		t.Fatalf("expected provider, got %s", got)
	}
}

func TestNoopProvider(t *testing.T) {
	t.Parallel()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p := NewNoopProvider(logger)
	if err := p.SendRaw(context.Background(), "alex@ok.com", []byte("raw")); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}
	if p.Name() != "noop" {
		t.Fatalf("unexpected name %q", p.Name())
	}
}
