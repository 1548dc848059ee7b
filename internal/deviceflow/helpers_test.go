package deviceflow

import (
	"sync"
	"testing"
	"time"

	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/wrale/oauth2-device-client/internal/discovery"
	"github.com/wrale/oauth2-device-client/internal/oauthtest"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testMetadata(srv *oauthtest.Server) *discovery.Metadata {
	return &discovery.Metadata{
		DiscoveryConfiguration: oidc.DiscoveryConfiguration{
			Issuer:                      srv.URL,
			DeviceAuthorizationEndpoint: srv.URL + oauthtest.DevicePath,
			TokenEndpoint:               srv.URL + oauthtest.TokenPath,
			UserinfoEndpoint:            srv.URL + oauthtest.UserInfoPath,
		},
	}
}

func testAuthorization(clock *oauthtest.Clock, expiresIn, interval int) *DeviceAuthorization {
	return &DeviceAuthorization{
		DeviceCode:      oauthtest.DefaultDeviceCode,
		UserCode:        oauthtest.DefaultUserCode,
		VerificationURI: "https://example.com/device",
		ExpiresIn:       expiresIn,
		Interval:        interval,
		IssuedAt:        clock.Now(),
	}
}

// stateRecorder collects observed state transitions
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) observe(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *stateRecorder) last(t *testing.T) State {
	t.Helper()
	states := r.all()
	if len(states) == 0 {
		t.Fatal("no state transitions observed")
	}
	return states[len(states)-1]
}

func seconds(n ...int) []time.Duration {
	out := make([]time.Duration, len(n))
	for i, s := range n {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}
