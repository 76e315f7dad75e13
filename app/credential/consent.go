package credential

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const consentSuccessHTML = `<!DOCTYPE html><html><body>
<h2>Authorization complete</h2>
<p>The notification service can now send email. You can close this tab.</p>
</body></html>`

// LoadOAuthConfig reads an installed-app client secrets file.
func LoadOAuthConfig(path, redirectURL string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return cfg, nil
}

type consentResult struct {
	token *oauth2.Token
	err   error
}

// Consent runs the one-time interactive authorization code flow.
type Consent struct {
	config *oauth2.Config
	state  string
	logger logrus.FieldLogger
}

// NewConsent prepares a consent flow with a random state value.
func NewConsent(config *oauth2.Config, logger logrus.FieldLogger) (*Consent, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate oauth state: %w", err)
	}
	return &Consent{config: config, state: hex.EncodeToString(buf), logger: logger}, nil
}

// AuthURL is the page the operator opens to grant access.
func (c *Consent) AuthURL() string {
	return c.config.AuthCodeURL(c.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Await serves the callback on addr until a code is exchanged or ctx ends.
func (c *Consent) Await(ctx context.Context, addr string) (*oauth2.Token, error) {
	results := make(chan consentResult, 1)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/callback", c.callback(results))

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			results <- consentResult{err: fmt.Errorf("callback server: %w", err)}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			c.logger.WithError(err).Warn("callback server shutdown failed")
		}
	}()

	select {
	case res := <-results:
		return res.token, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Consent) callback(results chan<- consentResult) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		report := func(res consentResult) {
			select {
			case results <- res:
			default:
			}
		}

		if ctx.QueryParam("state") != c.state {
			report(consentResult{err: errors.New("oauth callback state mismatch")})
			return ctx.String(http.StatusBadRequest, "state mismatch")
		}

		code := ctx.QueryParam("code")
		if code == "" {
			msg := ctx.QueryParam("error")
			if msg == "" {
				msg = "no code in callback"
			}
			report(consentResult{err: fmt.Errorf("oauth callback error: %s", msg)})
			return ctx.String(http.StatusBadRequest, "authorization failed: "+msg)
		}

		tok, err := c.config.Exchange(ctx.Request().Context(), code)
		if err != nil {
			report(consentResult{err: fmt.Errorf("exchange code: %w", err)})
			return ctx.String(http.StatusInternalServerError, "failed to exchange code")
		}

		report(consentResult{token: tok})
		return ctx.HTML(http.StatusOK, consentSuccessHTML)
	}
}
