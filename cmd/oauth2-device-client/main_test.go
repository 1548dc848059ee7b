package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/oauthtest"
)

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-version"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("run(-version) = %d, want %d", code, exitOK)
	}
	if got := stdout.String(); got != Version+"\n" {
		t.Errorf("stdout = %q, want %q", got, Version+"\n")
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{"unknown flag", []string{"-nope"}, "flag provided but not defined"},
		{"missing configuration", nil, "DISCOVERY_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tt.args, &stdout, &stderr); code != exitUsage {
				t.Errorf("run() = %d, want %d", code, exitUsage)
			}
			if !bytes.Contains(stderr.Bytes(), []byte(tt.wantStderr)) {
				t.Errorf("stderr = %q, want containing %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestRunEndToEnd(t *testing.T) {
	srv := oauthtest.NewServer(t, oauthtest.WithDeviceResponse(http.StatusOK, func(base string) map[string]any {
		return map[string]any{
			"device_code":               "D1",
			"user_code":                 "U1",
			"verification_uri":          base + "/verify",
			"verification_uri_complete": base + "/verify?u=U1",
			"interval":                  1,
			"expires_in":                60,
		}
	}))

	clearEnv(t)
	t.Setenv("SHOW_QR", "false")
	path := writeConfigFile(t, fmt.Sprintf("discovery_url = %q\nclient_id = %q\n", srv.DiscoveryURL(), "device-client"))

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-config", path}, &stdout, &stderr); code != exitOK {
		t.Fatalf("run() = %d, want %d; stderr: %s", code, exitOK, stderr.String())
	}
	for _, want := range []string{"User code: U1", srv.URL + "/verify?u=U1", "Welcome Alice!", "Nickname: ally"} {
		if !bytes.Contains(stdout.Bytes(), []byte(want)) {
			t.Errorf("stdout missing %q:\n%s", want, stdout.String())
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("polling for token: %w", deviceflow.ErrAccessDenied), exitDenied},
		{fmt.Errorf("polling for token: %w", deviceflow.ErrExpiredToken), exitExpired},
		{deviceflow.ErrDeadlineExceeded, exitExpired},
		{deviceflow.ErrTooManyFailures, exitFailure},
		{errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
