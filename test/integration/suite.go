// Package integration exercises the full device flow against a scripted
// authorization server and, when Docker is available, a real Redis.
package integration

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/discovery"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/oauthtest"
	"github.com/wrale/oauth2-device-client/internal/userinfo"
)

// ServiceTimeout bounds every integration test
const ServiceTimeout = 60 * time.Second

// TestSuite provides shared functionality for integration tests
type TestSuite struct {
	T      *testing.T
	Ctx    context.Context
	Server *oauthtest.Server
	Clock  *oauthtest.Clock
	Client *oauth.Client
}

// NewSuite starts a scripted authorization server with a timeout context
func NewSuite(t *testing.T, opts ...oauthtest.Option) *TestSuite {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ServiceTimeout)
	t.Cleanup(cancel)

	return &TestSuite{
		T:      t,
		Ctx:    ctx,
		Server: oauthtest.NewServer(t, opts...),
		Clock:  oauthtest.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		Client: oauth.NewClient(oauth.WithLogger(zaptest.NewLogger(t))),
	}
}

// Flow builds a device flow against the suite server
func (s *TestSuite) Flow(cfg deviceflow.ClientConfig, resolverOpts ...discovery.Option) *deviceflow.Flow {
	s.T.Helper()

	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = s.Server.DiscoveryURL()
	}
	logger := zaptest.NewLogger(s.T)
	resolverOpts = append([]discovery.Option{discovery.WithLogger(logger)}, resolverOpts...)

	return deviceflow.NewFlow(cfg, s.Client,
		discovery.NewResolver(s.Client, resolverOpts...),
		userinfo.NewFetcher(s.Client, userinfo.WithLogger(logger)),
		deviceflow.WithClock(s.Clock),
		deviceflow.WithLogger(logger),
	)
}
