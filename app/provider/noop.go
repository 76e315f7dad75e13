package provider

import (
	"context"

	"github.com/sirupsen/logrus"
)

// NoopProvider is a stubbed provider that pretends to send emails.
type NoopProvider struct {
	logger logrus.FieldLogger
}

// NewNoopProvider constructs a no-op email provider.
func NewNoopProvider(logger logrus.FieldLogger) *NoopProvider {
	return &NoopProvider{logger: logger}
}

func (p *NoopProvider) Name() string { return "noop" }

// SendRaw logs the delivery and returns nil without sending.
func (p *NoopProvider) SendRaw(_ context.Context, recipient string, raw []byte) error {
	p.logger.WithFields(logrus.Fields{"recipient": recipient, "bytes": len(raw)}).Info("noop provider: message discarded")
	return nil
}
