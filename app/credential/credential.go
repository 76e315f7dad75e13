// Package credential manages the OAuth token used by the outbound email
// provider: loading it from a store, refreshing it when expired, and
// persisting the result.
package credential

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// State is the lifecycle state of the stored credential.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthorized      State = "authorized"
	StateExpired         State = "expired"
)

var (
	ErrConsentRequired = errors.New("no usable credential stored, run the authorize command")
	ErrRefreshDenied   = errors.New("credential refresh denied, re-consent required")
)

// Error is returned when a usable credential could not be obtained.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("credential %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Store persists a single OAuth token. Load returns (nil, nil) when nothing
// has been stored yet.
type Store interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Persist(ctx context.Context, tok *oauth2.Token) error
	Delete(ctx context.Context) error
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
}

// OAuthRefresher refreshes tokens against the provider's token endpoint.
type OAuthRefresher struct {
	config *oauth2.Config
}

// NewOAuthRefresher constructs a refresher for the given client config.
func NewOAuthRefresher(config *oauth2.Config) *OAuthRefresher {
	return &OAuthRefresher{config: config}
}

// Refresh forces a refresh-token grant.
func (r *OAuthRefresher) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	// Only the refresh token is passed so the token source cannot return the
	// expired access token.
	src := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})
	return src.Token()
}
