// Package discovery resolves authorization server metadata from a discovery
// document (RFC 8414 / OpenID Connect Discovery)
package discovery

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// Field names the device flow cannot run without
const (
	FieldDeviceAuthorizationEndpoint = "device_authorization_endpoint"
	FieldTokenEndpoint               = "token_endpoint"
	FieldUserinfoEndpoint            = "userinfo_endpoint"
)

// MalformedMetadataError reports a discovery document that lacks required
// endpoints or cannot be parsed
type MalformedMetadataError struct {
	URL     string
	Missing []string
	Cause   error
}

func (e *MalformedMetadataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed discovery document at %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("malformed discovery document at %s: missing %s", e.URL, strings.Join(e.Missing, ", "))
}

func (e *MalformedMetadataError) Unwrap() error {
	return e.Cause
}

// Metadata holds the authorization server endpoints. Fields outside the
// typed configuration are kept verbatim in Raw.
type Metadata struct {
	oidc.DiscoveryConfiguration
	Raw map[string]json.RawMessage `json:"-"`
}

// Field returns the raw JSON value of a discovery field
func (m *Metadata) Field(name string) (json.RawMessage, bool) {
	v, ok := m.Raw[name]
	return v, ok
}

// parseMetadata decodes and validates a discovery document
func parseMetadata(source string, body []byte) (*Metadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedMetadataError{URL: source, Cause: fmt.Errorf("decoding document: %w", err)}
	}

	md := &Metadata{Raw: raw}
	if err := json.Unmarshal(body, &md.DiscoveryConfiguration); err != nil {
		return nil, &MalformedMetadataError{URL: source, Cause: fmt.Errorf("decoding configuration: %w", err)}
	}

	required := map[string]string{
		FieldDeviceAuthorizationEndpoint: md.DeviceAuthorizationEndpoint,
		FieldTokenEndpoint:               md.TokenEndpoint,
		FieldUserinfoEndpoint:            md.UserinfoEndpoint,
	}

	var missing []string
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
			continue
		}
		if u, err := url.Parse(value); err != nil || !u.IsAbs() {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MalformedMetadataError{URL: source, Missing: missing}
	}

	return md, nil
}
