package preparer

import (
	"context"
	"fmt"
	"strings"
)

type HeaderValidator struct{}

// NewHeaderValidator creates a step that rejects messages with missing or
// unsafe header values.
func NewHeaderValidator() *HeaderValidator {
	return &HeaderValidator{}
}

// Prepare validates recipient, subject, and attachment names.
func (v *HeaderValidator) Prepare(_ context.Context, msg *Message) error {
	if strings.TrimSpace(msg.Recipient) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.ContainsAny(msg.Recipient, "\r\n") {
		return fmt.Errorf("recipient contains invalid characters")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("subject contains invalid characters")
	}
	for _, att := range msg.Attachments {
		if strings.TrimSpace(att.Filename) == "" || strings.ContainsAny(att.Filename, "\r\n/\\") {
			return fmt.Errorf("attachment filename %q is invalid", att.Filename)
		}
	}
	return nil
}
