package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vurg/notification-service/app/credential"
)

// GmailSendScope is the OAuth scope needed to send mail as the authorized
// account.
const GmailSendScope = gmail.GmailSendScope

type GmailProvider struct {
	service *gmail.Service
	userID  string
}

// NewGmailProvider builds a provider that sends through the Gmail API. The
// caller supplies authentication, normally option.WithHTTPClient over a
// credential.Manager transport.
func NewGmailProvider(ctx context.Context, opts ...option.ClientOption) (*GmailProvider, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailProvider{service: svc, userID: "me"}, nil
}

func (p *GmailProvider) Name() string { return "gmail" }

// SendRaw sends a prepared MIME message as the authorized user.
func (p *GmailProvider) SendRaw(ctx context.Context, recipient string, raw []byte) error {
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if len(raw) == 0 {
		return fmt.Errorf("raw content is required")
	}

	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := p.service.Users.Messages.Send(p.userID, msg).Context(ctx).Do(); err != nil {
		return NewDeliveryError(p.Name(), classifyGmail(err), fmt.Errorf("gmail send: %w", err))
	}
	return nil
}

func classifyGmail(err error) Kind {
	var credErr *credential.Error
	if errors.As(err, &credErr) {
		return KindCredential
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return KindCredential
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized {
			return KindCredential
		}
		return KindProvider
	}
	return KindTransport
}
