package deviceflow

import (
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultPollInterval applies when the server omits interval, per RFC 8628 section 3.2
	DefaultPollInterval = 5 * time.Second

	// DefaultExpiresIn applies when the server omits expires_in
	DefaultExpiresIn = 5 * time.Minute
)

// ClientConfig identifies the OAuth client running the flow
type ClientConfig struct {
	DiscoveryURL string
	ClientID     string
	ClientSecret string
	Scope        string
}

// Confidential reports whether the client authenticates with a secret
func (c ClientConfig) Confidential() bool {
	return c.ClientSecret != ""
}

// DeviceAuthorization represents the device authorization response per RFC 8628 section 3.2
type DeviceAuthorization struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri,omitempty"`
	ExpiresIn       int    `json:"expires_in"` // Lifetime in seconds
	Interval        int    `json:"interval"`   // Poll interval in seconds

	// Optional per RFC 8628 section 3.3.1, includes the user code
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`

	IssuedAt time.Time `json:"-"`
}

// PollInterval returns the minimum wait between token requests
func (d *DeviceAuthorization) PollInterval() time.Duration {
	if d.Interval <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(d.Interval) * time.Second
}

// Deadline returns the instant after which the device code is no longer valid
func (d *DeviceAuthorization) Deadline() time.Time {
	if d.IssuedAt.IsZero() {
		return time.Time{}
	}
	expiresIn := time.Duration(d.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = DefaultExpiresIn
	}
	return d.IssuedAt.Add(expiresIn)
}

// DisplayURI returns the URI to show to the user, preferring the complete form
func (d *DeviceAuthorization) DisplayURI() string {
	if d.VerificationURIComplete != "" {
		return d.VerificationURIComplete
	}
	return d.VerificationURI
}

// TokenResponse represents the successful token response per RFC 8628 section 3.5
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`

	// Absolute expiry, receipt time plus expires_in. Zero when expires_in is absent.
	Expiry time.Time `json:"expiry,omitempty"`
}

// ExpiryMillis returns Expiry in Unix milliseconds, or 0 when unknown
func (t *TokenResponse) ExpiryMillis() int64 {
	if t.Expiry.IsZero() {
		return 0
	}
	return t.Expiry.UnixMilli()
}

// Token converts the response into an oauth2.Token
func (t *TokenResponse) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
	extra := map[string]any{}
	if t.Scope != "" {
		extra["scope"] = t.Scope
	}
	if t.IDToken != "" {
		extra["id_token"] = t.IDToken
	}
	if len(extra) == 0 {
		return tok
	}
	return tok.WithExtra(extra)
}

func (t *TokenResponse) setExpiry(receivedAt time.Time) {
	if t.ExpiresIn > 0 {
		t.Expiry = receivedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}
