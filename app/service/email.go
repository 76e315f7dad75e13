package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vurg/notification-service/app/entity"
	"github.com/vurg/notification-service/app/preparer"
	"github.com/vurg/notification-service/app/provider"
)

// Notification is one composed outbound message.
type Notification struct {
	Recipient   string
	Subject     string
	Body        string
	Attachments []entity.Attachment
}

type EmailService struct {
	preparer preparer.EmailPreparer
	provider provider.EmailProvider
	retry    RetryPolicy
	logger   logrus.FieldLogger
}

// NewEmailService builds the email service with dependencies.
func NewEmailService(preparer preparer.EmailPreparer, provider provider.EmailProvider, retry RetryPolicy, logger logrus.FieldLogger) *EmailService {
	if retry == nil {
		retry = NoRetry{}
	}
	return &EmailService{preparer: preparer, provider: provider, retry: retry, logger: logger}
}

// Send prepares the MIME message and hands it to the provider.
func (s *EmailService) Send(ctx context.Context, n Notification) error {
	if n.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidNotification)
	}
	if n.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidNotification)
	}
	if n.Body == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidNotification)
	}

	raw, err := s.preparer.Prepare(ctx, preparer.Message{
		Recipient:   n.Recipient,
		Subject:     n.Subject,
		Content:     n.Body,
		Attachments: n.Attachments,
	})
	if err != nil {
		return fmt.Errorf("prepare email content: %w", err)
	}

	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.provider.SendRaw(ctx, n.Recipient, raw)
	}); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"provider":  s.provider.Name(),
		"recipient": n.Recipient,
		"subject":   n.Subject,
	}).Debug("email delivered")
	return nil
}
