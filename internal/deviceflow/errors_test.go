package deviceflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/wrale/oauth2-device-client/internal/oauth"
)

func oauthError(code, description string) error {
	return &oauth.TransportError{
		Method:     "POST",
		URL:        "https://as.example.com/token",
		StatusCode: 400,
		OAuth:      &oauth.ErrorResponse{Error: code, ErrorDescription: description},
		Err:        errors.New("unexpected status 400"),
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      ErrorKind
		wantCode      string
		wantSentinel  error
		wantTransport bool
		wantDisplay   string
	}{
		{
			name:         "authorization pending",
			err:          oauthError(ErrorCodeAuthorizationPending, ""),
			wantKind:     KindAuthorizationPending,
			wantCode:     ErrorCodeAuthorizationPending,
			wantSentinel: ErrAuthorizationPending,
			wantDisplay:  ErrorCodeAuthorizationPending,
		},
		{
			name:         "slow down",
			err:          oauthError(ErrorCodeSlowDown, "back off"),
			wantKind:     KindSlowDown,
			wantCode:     ErrorCodeSlowDown,
			wantSentinel: ErrSlowDown,
		},
		{
			name:         "access denied",
			err:          oauthError(ErrorCodeAccessDenied, ""),
			wantKind:     KindAccessDenied,
			wantCode:     ErrorCodeAccessDenied,
			wantSentinel: ErrAccessDenied,
		},
		{
			name:         "expired token",
			err:          fmt.Errorf("wrapped: %w", oauthError(ErrorCodeExpiredToken, "")),
			wantKind:     KindExpiredToken,
			wantCode:     ErrorCodeExpiredToken,
			wantSentinel: ErrExpiredToken,
		},
		{
			name:          "unrecognized code",
			err:           oauthError("invalid_grant", ""),
			wantKind:      KindUnknown,
			wantCode:      "invalid_grant",
			wantTransport: false,
			wantDisplay:   "invalid_grant",
		},
		{
			name:          "non oauth status",
			err:           &oauth.TransportError{Method: "POST", StatusCode: 502, Err: errors.New("unexpected status 502")},
			wantKind:      KindUnknown,
			wantTransport: true,
			wantDisplay:   "unknown",
		},
		{
			name:          "network failure",
			err:           errors.New("connection refused"),
			wantKind:      KindUnknown,
			wantTransport: true,
			wantDisplay:   "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := ClassifyError(tt.err)
			if perr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", perr.Kind, tt.wantKind)
			}
			if perr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", perr.Code, tt.wantCode)
			}
			if perr.Transport() != tt.wantTransport {
				t.Errorf("Transport() = %v, want %v", perr.Transport(), tt.wantTransport)
			}
			if tt.wantDisplay != "" && perr.DisplayCode() != tt.wantDisplay {
				t.Errorf("DisplayCode() = %q, want %q", perr.DisplayCode(), tt.wantDisplay)
			}
			if tt.wantSentinel != nil && !errors.Is(perr, tt.wantSentinel) {
				t.Errorf("errors.Is(%v, %v) = false", perr, tt.wantSentinel)
			}
			if !errors.Is(perr, tt.err) {
				t.Errorf("PollError does not wrap the original error")
			}
		})
	}
}

func TestPollErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *PollError
		want string
	}{
		{
			name: "known code with description",
			err:  &PollError{Kind: KindAccessDenied, Code: ErrorCodeAccessDenied, Description: "user said no"},
			want: "access_denied: user said no",
		},
		{
			name: "unrecognized code",
			err:  &PollError{Kind: KindUnknown, Code: "invalid_grant"},
			want: "unrecognized error invalid_grant",
		},
		{
			name: "transport failure",
			err:  &PollError{Kind: KindUnknown, Err: errors.New("connection reset")},
			want: "transport failure: connection reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPollErrorAs(t *testing.T) {
	err := fmt.Errorf("polling for token: %w", ClassifyError(oauthError(ErrorCodeAccessDenied, "nope")))

	var perr *PollError
	if !errors.As(err, &perr) {
		t.Fatal("errors.As(*PollError) = false")
	}
	if perr.Description != "nope" {
		t.Errorf("Description = %q, want nope", perr.Description)
	}

	terr, ok := oauth.AsTransportError(err)
	if !ok {
		t.Fatal("AsTransportError() = false")
	}
	if terr.ErrorCode() != ErrorCodeAccessDenied {
		t.Errorf("ErrorCode() = %q", terr.ErrorCode())
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := map[State]bool{
		StateIdle:    false,
		StateWaiting: false,
		StatePolling: false,
		StateSuccess: true,
		StateDenied:  true,
		StateExpired: true,
		StateFailed:  true,
	}
	for s, want := range terminal {
		if got := s.Terminal(); got != want {
			t.Errorf("%v.Terminal() = %v, want %v", s, got, want)
		}
	}
	if State(99).String() != "UNKNOWN" {
		t.Errorf("State(99).String() = %q", State(99).String())
	}
}
