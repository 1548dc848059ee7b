package deviceflow

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/zitadel/oidc/v3/pkg/oidc"
	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/internal/discovery"
	"github.com/wrale/oauth2-device-client/internal/oauth"
)

// Poller polls the token endpoint per RFC 8628 section 3.4 until the user
// approves or denies the request, or the device code expires
type Poller struct {
	client *oauth.Client
	cfg    ClientConfig
	opts   options
}

// NewPoller creates a token poller for the given client
func NewPoller(client *oauth.Client, cfg ClientConfig, opts ...Option) *Poller {
	return &Poller{
		client: client,
		cfg:    cfg,
		opts:   newOptions(opts),
	}
}

// tokenRequest builds the device access token request per RFC 8628 section 3.4
func (p *Poller) tokenRequest(deviceCode string) url.Values {
	form := url.Values{
		"grant_type":  {string(oidc.GrantTypeDeviceCode)},
		"client_id":   {p.cfg.ClientID},
		"device_code": {deviceCode},
	}
	if p.cfg.Confidential() {
		form.Set("client_secret", p.cfg.ClientSecret)
	}
	return form
}

// Poll blocks until a token is issued or polling reaches a terminal state.
// It returns at most one TokenResponse.
func (p *Poller) Poll(ctx context.Context, md *discovery.Metadata, da *DeviceAuthorization) (*TokenResponse, error) {
	if da == nil || da.DeviceCode == "" {
		return nil, fmt.Errorf("%w: missing device_code", ErrInvalidDeviceAuthorization)
	}

	interval := da.PollInterval()
	deadline := da.Deadline()
	form := p.tokenRequest(da.DeviceCode)
	log := p.opts.logger.With(zap.String("token_endpoint", md.TokenEndpoint))

	log.Info("polling token endpoint",
		zap.Duration("interval", interval),
		zap.Time("deadline", deadline),
		zap.Bool("confidential", p.cfg.Confidential()),
	)

	failures := 0
	for attempt := 1; ; attempt++ {
		p.transition(StateWaiting)
		pollInterval.Set(interval.Seconds())

		wait := interval
		if !deadline.IsZero() {
			if remaining := deadline.Sub(p.opts.clock.Now()); remaining < wait {
				wait = max(remaining, 0)
			}
		}
		if err := p.sleep(ctx, wait); err != nil {
			p.finish(StateFailed)
			return nil, err
		}

		if !deadline.IsZero() && !p.opts.clock.Now().Before(deadline) {
			log.Warn("device code lifetime elapsed", zap.Int("attempts", attempt-1))
			p.finish(StateExpired)
			return nil, fmt.Errorf("polling stopped after %d attempts: %w", attempt-1, ErrDeadlineExceeded)
		}

		p.transition(StatePolling)

		var tok TokenResponse
		err := p.client.PostForm(ctx, md.TokenEndpoint, form, &tok)
		if err == nil && tok.AccessToken != "" {
			tok.setExpiry(p.opts.clock.Now())
			pollAttempts.WithLabelValues("success").Inc()
			log.Info("token issued",
				zap.Int("attempts", attempt),
				zap.String("token_type", tok.TokenType),
				zap.Int("expires_in", tok.ExpiresIn),
			)
			p.finish(StateSuccess)
			return &tok, nil
		}
		if err == nil {
			err = errMissingAccessToken
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.finish(StateFailed)
			return nil, ctxErr
		}

		perr := ClassifyError(err)
		for _, obs := range p.opts.pollObservers {
			obs(perr)
		}
		fields := []zap.Field{
			zap.Int("attempt", attempt),
			zap.String("error_code", perr.Code),
			zap.Duration("interval", interval),
		}

		switch perr.Kind {
		case KindAuthorizationPending:
			failures = 0
			pollAttempts.WithLabelValues(ErrorCodeAuthorizationPending).Inc()
			log.Debug("authorization pending", fields...)

		case KindSlowDown:
			failures = 0
			interval += p.opts.slowDownIncrement
			pollAttempts.WithLabelValues(ErrorCodeSlowDown).Inc()
			log.Info("slowing down", append(fields, zap.Duration("new_interval", interval))...)

		case KindAccessDenied:
			pollAttempts.WithLabelValues(ErrorCodeAccessDenied).Inc()
			log.Warn("authorization denied", fields...)
			p.finish(StateDenied)
			return nil, perr

		case KindExpiredToken:
			pollAttempts.WithLabelValues(ErrorCodeExpiredToken).Inc()
			log.Warn("device code expired", fields...)
			p.finish(StateExpired)
			return nil, perr

		default:
			if !perr.Transport() {
				// the server answered, so the transport failure streak ends
				failures = 0
				pollAttempts.WithLabelValues("unrecognized").Inc()
				log.Warn("unrecognized error code", append(fields, zap.String("error_description", perr.Description))...)
				continue
			}
			failures++
			pollAttempts.WithLabelValues("transport").Inc()
			log.Warn("transport failure", append(fields, zap.Int("consecutive_failures", failures), zap.Error(err))...)
			if limit := p.opts.maxTransientFailures; limit > 0 && failures >= limit {
				p.finish(StateFailed)
				return nil, fmt.Errorf("%w (%d): %w", ErrTooManyFailures, failures, perr)
			}
		}
	}
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case <-p.opts.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) transition(s State) {
	for _, obs := range p.opts.observers {
		obs(s)
	}
}

func (p *Poller) finish(s State) {
	pollResults.WithLabelValues(s.String()).Inc()
	p.transition(s)
}
