package preparer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

type MIMEPreparer struct {
	source string
}

// NewMIMEPreparer creates a preparer that renders a plain-text MIME message
// with attachments from the given sender address.
func NewMIMEPreparer(source string) *MIMEPreparer {
	return &MIMEPreparer{source: source}
}

// Prepare renders the message into msg.Raw.
func (p *MIMEPreparer) Prepare(_ context.Context, msg *Message) error {
	if strings.TrimSpace(p.source) == "" {
		return fmt.Errorf("source email is required")
	}

	m := mail.NewMsg()
	if err := m.From(p.source); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.Recipient); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.Recipient, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Content)

	for _, att := range msg.Attachments {
		opts := []mail.FileOption{}
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		if err := m.AttachReader(att.Filename, bytes.NewReader(att.Data), opts...); err != nil {
			return fmt.Errorf("attach %s: %w", att.Filename, err)
		}
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return fmt.Errorf("render mime message: %w", err)
	}
	msg.Raw = buf.Bytes()
	return nil
}
