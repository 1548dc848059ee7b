package deviceflow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/internal/discovery"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/userinfo"
)

// DisplayFunc presents the user code and verification URI to the user
type DisplayFunc func(ctx context.Context, da *DeviceAuthorization) error

// Result is the outcome of a completed flow
type Result struct {
	Metadata      *discovery.Metadata
	Authorization *DeviceAuthorization
	Token         *TokenResponse
	Profile       *userinfo.Profile
}

// Flow runs discovery, device authorization, token polling and the
// profile fetch in order. Only one run may be active at a time.
type Flow struct {
	cfg       ClientConfig
	resolver  *discovery.Resolver
	initiator *Initiator
	poller    *Poller
	fetcher   *userinfo.Fetcher
	logger    *zap.Logger

	mu      sync.RWMutex
	state   State
	auth    *DeviceAuthorization
	lastErr error
	cancel  context.CancelFunc
}

// NewFlow creates a flow for the given client. The client transport is
// shared by the initiator and the poller.
func NewFlow(cfg ClientConfig, client *oauth.Client, resolver *discovery.Resolver, fetcher *userinfo.Fetcher, opts ...Option) *Flow {
	f := &Flow{
		cfg:      cfg,
		resolver: resolver,
		fetcher:  fetcher,
	}
	opts = append(opts, WithObserver(f.setState))
	f.initiator = NewInitiator(client, opts...)
	f.poller = NewPoller(client, cfg, opts...)
	f.logger = newOptions(opts).logger
	return f
}

// Run executes the flow. display is called once the user code is known.
func (f *Flow) Run(ctx context.Context, display DisplayFunc) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.mu.Lock()
	if f.cancel != nil {
		f.mu.Unlock()
		return nil, ErrFlowRunning
	}
	f.cancel = cancel
	f.state = StateIdle
	f.auth = nil
	f.lastErr = nil
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.cancel = nil
		f.mu.Unlock()
	}()

	md, err := f.resolver.Resolve(ctx, f.cfg.DiscoveryURL)
	if err != nil {
		return nil, f.fail(fmt.Errorf("resolving metadata: %w", err))
	}

	da, err := f.initiator.Initiate(ctx, md, f.cfg.ClientID, f.cfg.Scope)
	if err != nil {
		return nil, f.fail(fmt.Errorf("initiating device authorization: %w", err))
	}

	f.mu.Lock()
	f.auth = da
	f.mu.Unlock()

	if display != nil {
		if err := display(ctx, da); err != nil {
			return nil, f.fail(fmt.Errorf("displaying user code: %w", err))
		}
	}

	token, err := f.poller.Poll(ctx, md, da)
	if err != nil {
		return nil, f.fail(fmt.Errorf("polling for token: %w", err))
	}

	profile, err := f.fetcher.FetchProfile(ctx, md, token.AccessToken)
	if err != nil {
		return nil, f.fail(fmt.Errorf("fetching profile: %w", err))
	}

	return &Result{
		Metadata:      md,
		Authorization: da,
		Token:         token,
		Profile:       profile,
	}, nil
}

// Cancel aborts a running flow. It reports whether a run was cancelled.
func (f *Flow) Cancel() bool {
	f.mu.RLock()
	cancel := f.cancel
	f.mu.RUnlock()
	if cancel == nil {
		return false
	}
	f.logger.Info("device flow cancelled")
	cancel()
	return true
}

// State returns the current polling state
func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Authorization returns a copy of the active device authorization, if any
func (f *Flow) Authorization() *DeviceAuthorization {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.auth == nil {
		return nil
	}
	da := *f.auth
	return &da
}

// Err returns the error that ended the last run
func (f *Flow) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// CheckHealth verifies the flow's backing services are reachable
func (f *Flow) CheckHealth(ctx context.Context) error {
	return f.resolver.CheckHealth(ctx)
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) fail(err error) error {
	f.mu.Lock()
	if f.state != StateDenied && f.state != StateExpired {
		f.state = StateFailed
	}
	f.lastErr = err
	f.mu.Unlock()
	return err
}
