package main

import (
	"bytes"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/oauth"
)

func TestConsoleShowCode(t *testing.T) {
	tests := []struct {
		name     string
		da       *deviceflow.DeviceAuthorization
		want     []string
		wantNone []string
	}{
		{
			name: "complete uri",
			da: &deviceflow.DeviceAuthorization{
				UserCode:                "U1",
				VerificationURI:         "https://x/verify",
				VerificationURIComplete: "https://x/verify?u=U1",
			},
			want:     []string{"User code: U1\n", "Please visit this URL:\nhttps://x/verify?u=U1\n"},
			wantNone: []string{"enter the code above"},
		},
		{
			name: "code printed as issued",
			da: &deviceflow.DeviceAuthorization{
				UserCode:        "ABCDEFGH",
				VerificationURI: "https://x/verify",
			},
			want:     []string{"User code: ABCDEFGH\n", "https://x/verify\nand enter the code above.\n"},
			wantNone: []string{"ABCD-EFGH"},
		},
		{
			name: "non-ascii code",
			da: &deviceflow.DeviceAuthorization{
				UserCode:        "ÄÖÜÄÖ",
				VerificationURI: "https://x/verify",
			},
			want: []string{"User code: ÄÖÜÄÖ\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := &console{out: &out}

			require.NoError(t, c.showCode(tt.da))

			got := out.String()
			assert.True(t, utf8.ValidString(got), "console output is not valid UTF-8")
			for _, s := range tt.want {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.wantNone {
				assert.NotContains(t, got, s)
			}
			assert.Contains(t, got, "Waiting for authorization\n")
		})
	}
}

func TestConsolePollProgress(t *testing.T) {
	pending := &deviceflow.PollError{Kind: deviceflow.KindAuthorizationPending, Code: deviceflow.ErrorCodeAuthorizationPending}
	slow := &deviceflow.PollError{Kind: deviceflow.KindSlowDown, Code: deviceflow.ErrorCodeSlowDown}
	transport := deviceflow.ClassifyError(&oauth.TransportError{StatusCode: 502, Err: errors.New("bad gateway")})

	tests := []struct {
		name   string
		polls  []*deviceflow.PollError
		states []deviceflow.State
		want   string
	}{
		{
			name:   "immediate success",
			states: []deviceflow.State{deviceflow.StateWaiting, deviceflow.StatePolling, deviceflow.StateSuccess},
			want:   "Done.\n",
		},
		{
			name:   "pending and slow down",
			polls:  []*deviceflow.PollError{pending, slow, transport},
			states: []deviceflow.State{deviceflow.StatePolling, deviceflow.StateSuccess},
			want:   "authorization_pending...slow_down...unknown...Done.\n",
		},
		{
			name:   "stopped",
			polls:  []*deviceflow.PollError{pending},
			states: []deviceflow.State{deviceflow.StatePolling, deviceflow.StateExpired},
			want:   "authorization_pending...Stopped.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := &console{out: &out}
			for _, p := range tt.polls {
				c.pollFailed(p)
			}
			for _, s := range tt.states {
				c.progress(s)
			}
			assert.Equal(t, tt.want, out.String())
		})
	}
}
