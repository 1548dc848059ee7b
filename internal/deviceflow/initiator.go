package deviceflow

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/internal/discovery"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/validation"
)

// Initiator requests device and user codes per RFC 8628 section 3.1
type Initiator struct {
	client *oauth.Client
	opts   options
}

// NewInitiator creates a device authorization initiator
func NewInitiator(client *oauth.Client, opts ...Option) *Initiator {
	return &Initiator{
		client: client,
		opts:   newOptions(opts),
	}
}

// Initiate starts a device authorization. Failures are not retried.
func (i *Initiator) Initiate(ctx context.Context, md *discovery.Metadata, clientID, scope string) (*DeviceAuthorization, error) {
	form := url.Values{"client_id": {clientID}}
	if scope != "" {
		form.Set("scope", scope)
	}

	i.opts.logger.Info("calling device authorization endpoint",
		zap.String("url", md.DeviceAuthorizationEndpoint),
		zap.String("client_id", clientID),
		zap.String("scope", scope),
	)

	var da DeviceAuthorization
	if err := i.client.PostForm(ctx, md.DeviceAuthorizationEndpoint, form, &da); err != nil {
		return nil, fmt.Errorf("requesting device code: %w", err)
	}
	da.IssuedAt = i.opts.clock.Now()

	if err := validateAuthorization(&da); err != nil {
		return nil, err
	}

	if da.Interval <= 0 {
		da.Interval = int(DefaultPollInterval.Seconds())
	}
	if da.ExpiresIn <= 0 {
		da.ExpiresIn = int(DefaultExpiresIn.Seconds())
	}

	i.opts.logger.Debug("device authorization issued",
		zap.String("user_code", da.UserCode),
		zap.String("verification_uri", da.DisplayURI()),
		zap.Int("expires_in", da.ExpiresIn),
		zap.Int("interval", da.Interval),
	)

	return &da, nil
}

func validateAuthorization(da *DeviceAuthorization) error {
	if da.DeviceCode == "" {
		return fmt.Errorf("%w: missing device_code", ErrInvalidDeviceAuthorization)
	}
	if err := validation.ValidateUserCode(da.UserCode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDeviceAuthorization, err)
	}
	if da.VerificationURI == "" && da.VerificationURIComplete == "" {
		return fmt.Errorf("%w: missing verification_uri", ErrInvalidDeviceAuthorization)
	}
	for _, uri := range []string{da.VerificationURI, da.VerificationURIComplete} {
		if uri == "" {
			continue
		}
		if err := validation.ValidateVerificationURI(uri); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDeviceAuthorization, err)
		}
	}
	return nil
}
