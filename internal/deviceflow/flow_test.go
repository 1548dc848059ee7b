package deviceflow

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/oauth2-device-client/internal/discovery"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/oauthtest"
	"github.com/wrale/oauth2-device-client/internal/userinfo"
)

func newTestFlow(t *testing.T, srv *oauthtest.Server, cfg ClientConfig, opts ...Option) (*Flow, *oauthtest.Clock) {
	t.Helper()
	clock := oauthtest.NewClock(epoch)
	client := oauth.NewClient()
	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = srv.DiscoveryURL()
	}
	opts = append([]Option{WithClock(clock)}, opts...)
	f := NewFlow(cfg, client, discovery.NewResolver(client), userinfo.NewFetcher(client), opts...)
	return f, clock
}

func TestFlowRun(t *testing.T) {
	srv := oauthtest.NewServer(t,
		oauthtest.WithTokenReplies(
			oauthtest.Pending(),
			oauthtest.SlowDown(),
			oauthtest.Success("access-123", 3600),
		),
		oauthtest.WithUserInfo(map[string]any{
			"sub":      "u-1",
			"name":     "Alice",
			"nickname": "ally",
		}),
	)
	f, clock := newTestFlow(t, srv, ClientConfig{ClientID: "device-client", Scope: "openid profile"})

	var displayed *DeviceAuthorization
	res, err := f.Run(context.Background(), func(ctx context.Context, da *DeviceAuthorization) error {
		displayed = da
		assert.Equal(t, StateIdle, f.State())
		return nil
	})
	require.NoError(t, err)

	require.NotNil(t, displayed)
	assert.Equal(t, oauthtest.DefaultUserCode, displayed.UserCode)
	assert.Equal(t, srv.URL+oauthtest.TokenPath, res.Metadata.TokenEndpoint)
	assert.Equal(t, "access-123", res.Token.AccessToken)
	assert.Equal(t, "Alice", res.Profile.Name)
	assert.Equal(t, "ally", res.Profile.Nickname)
	assert.Equal(t, StateSuccess, f.State())
	assert.NoError(t, f.Err())

	assert.Equal(t, 1, srv.DiscoveryCalls())
	assert.Equal(t, 3, srv.TokenCalls())
	assert.Equal(t, seconds(5, 5, 10), clock.Waits())
	assert.Equal(t, []string{"Bearer access-123"}, srv.UserInfoAuthorizations())

	got := f.Authorization()
	require.NotNil(t, got)
	got.UserCode = "changed"
	assert.Equal(t, oauthtest.DefaultUserCode, f.Authorization().UserCode, "Authorization() must return a copy")
}

func TestFlowRunDenied(t *testing.T) {
	srv := oauthtest.NewServer(t, oauthtest.WithTokenReplies(oauthtest.Denied()))
	f, _ := newTestFlow(t, srv, ClientConfig{ClientID: "device-client"})

	res, err := f.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, StateDenied, f.State())
	assert.Equal(t, err, f.Err())
	assert.Empty(t, srv.UserInfoAuthorizations(), "userinfo must not be called")
}

func TestFlowRunExpired(t *testing.T) {
	srv := oauthtest.NewServer(t, oauthtest.WithTokenReplies(oauthtest.Expired()))
	f, _ := newTestFlow(t, srv, ClientConfig{ClientID: "device-client"})

	_, err := f.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Equal(t, StateExpired, f.State())
}

func TestFlowRunDiscoveryFailure(t *testing.T) {
	srv := oauthtest.NewServer(t, oauthtest.WithDiscovery(func(base string) map[string]any {
		return map[string]any{"issuer": base, "token_endpoint": base + oauthtest.TokenPath}
	}))
	f, _ := newTestFlow(t, srv, ClientConfig{ClientID: "device-client"})

	_, err := f.Run(context.Background(), func(context.Context, *DeviceAuthorization) error {
		t.Error("display must not be called")
		return nil
	})

	var merr *discovery.MalformedMetadataError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Missing, discovery.FieldDeviceAuthorizationEndpoint)
	assert.Equal(t, StateFailed, f.State())
	assert.Empty(t, srv.DeviceForms())
}

func TestFlowRunUserInfoFailure(t *testing.T) {
	srv := oauthtest.NewServer(t, oauthtest.WithDiscovery(func(base string) map[string]any {
		doc := oauthtest.DefaultDiscovery(base)
		doc["userinfo_endpoint"] = base + "/missing"
		return doc
	}))
	f, _ := newTestFlow(t, srv, ClientConfig{ClientID: "device-client"})

	_, err := f.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching profile")
	assert.Equal(t, StateFailed, f.State())
	assert.Equal(t, 1, srv.TokenCalls())
}

func TestFlowDisplayError(t *testing.T) {
	srv := oauthtest.NewServer(t)
	f, _ := newTestFlow(t, srv, ClientConfig{ClientID: "device-client"})

	boom := errors.New("terminal closed")
	_, err := f.Run(context.Background(), func(context.Context, *DeviceAuthorization) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, srv.TokenCalls())
	assert.Equal(t, StateFailed, f.State())
}

func TestFlowCancel(t *testing.T) {
	srv := oauthtest.NewServer(t, oauthtest.WithTokenReplies(oauthtest.Pending()))
	f, _ := newTestFlow(t, srv, ClientConfig{ClientID: "device-client"})

	assert.False(t, f.Cancel(), "nothing to cancel before Run")

	_, err := f.Run(context.Background(), func(context.Context, *DeviceAuthorization) error {
		assert.True(t, f.Cancel())
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, f.State())
	assert.Equal(t, 0, srv.TokenCalls())
	assert.False(t, f.Cancel(), "run already finished")
}

func TestFlowRejectsConcurrentRun(t *testing.T) {
	srv := oauthtest.NewServer(t)
	f, _ := newTestFlow(t, srv, ClientConfig{ClientID: "device-client"})

	var nested error
	_, err := f.Run(context.Background(), func(ctx context.Context, _ *DeviceAuthorization) error {
		_, nested = f.Run(ctx, nil)
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrFlowRunning)

	// A finished flow can run again
	_, err = f.Run(context.Background(), nil)
	assert.NoError(t, err)
}

func TestFlowRunDisplayConsumesLifetime(t *testing.T) {
	srv := oauthtest.NewServer(t, oauthtest.WithDeviceResponse(http.StatusOK, func(base string) map[string]any {
		resp := oauthtest.DefaultDeviceResponse(base)
		resp["expires_in"] = 30
		return resp
	}))
	f, clock := newTestFlow(t, srv, ClientConfig{ClientID: "device-client"})

	_, err := f.Run(context.Background(), func(context.Context, *DeviceAuthorization) error {
		// the user takes a while to read the code
		clock.Advance(28 * time.Second)
		return nil
	})

	assert.ErrorIs(t, err, ErrDeadlineExceeded)
	assert.Equal(t, StateExpired, f.State())
	assert.Equal(t, 0, srv.TokenCalls())
	assert.Equal(t, seconds(2), clock.Waits())
}
