// Package userinfo retrieves profile claims from the OpenID Connect
// UserInfo endpoint using an access token
package userinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zitadel/oidc/v3/pkg/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-device-client/internal/discovery"
	"github.com/wrale/oauth2-device-client/internal/oauth"
)

// ErrMissingAccessToken is returned when no access token is supplied
var ErrMissingAccessToken = errors.New("missing access token")

// Profile holds the claims returned by the UserInfo endpoint
type Profile struct {
	oidc.UserInfo
}

// DisplayName returns the most human friendly name available
func (p *Profile) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.PreferredUsername != "":
		return p.PreferredUsername
	default:
		return p.Subject
	}
}

// Fetcher calls the UserInfo endpoint
type Fetcher struct {
	client *oauth.Client
	logger *zap.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithLogger sets the fetcher logger
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a UserInfo fetcher using client as transport
func NewFetcher(client *oauth.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchProfile retrieves the profile of the token's subject. Failures are not retried.
func (f *Fetcher) FetchProfile(ctx context.Context, md *discovery.Metadata, accessToken string) (*Profile, error) {
	if accessToken == "" {
		return nil, ErrMissingAccessToken
	}

	// The oauth2 transport adds "Authorization: Bearer <token>" on top of the base client
	base := f.client.HTTPClient()
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	authed := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), src)
	client := f.client.Clone(oauth.WithHTTPClient(authed))

	f.logger.Info("calling userinfo endpoint", zap.String("url", md.UserinfoEndpoint))

	var body []byte
	if err := client.GetJSON(ctx, md.UserinfoEndpoint, nil, &body); err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile.UserInfo); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}

	f.logger.Debug("userinfo received",
		zap.String("sub", profile.Subject),
		zap.String("name", profile.Name),
	)

	return &profile, nil
}
