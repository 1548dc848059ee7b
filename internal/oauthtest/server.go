// Package oauthtest provides a scripted authorization server and a manual
// clock for exercising device flow clients without a real provider.
package oauthtest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const (
	// DeviceCodeGrantType is the RFC 8628 grant type the token endpoint accepts
	DeviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	DiscoveryPath = "/.well-known/openid-configuration"
	DevicePath    = "/device/code"
	TokenPath     = "/token"
	UserInfoPath  = "/userinfo"
)

// Values from the RFC 8628 section 3.2 example
const (
	DefaultUserCode    = "WDJB-MJHT"
	DefaultDeviceCode  = "GmRhmhcxhwAzkoEqiMEg_DnyEysNkuNhszIySk9eS"
	DefaultAccessToken = "SlAV32hkKG"
)

// Server is a fake authorization server speaking discovery, device
// authorization, token and userinfo.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	discovery      func(base string) map[string]any
	device         func(base string) map[string]any
	deviceStatus   int
	replies        []TokenReply
	userInfo       map[string]any
	discoveryCalls int
	deviceForms    []url.Values
	tokenForms     []url.Values
	userInfoAuth   []string
}

// Option customises a Server
type Option func(*Server)

// WithDiscovery replaces the discovery document. The function receives
// the server base URL.
func WithDiscovery(fn func(base string) map[string]any) Option {
	return func(s *Server) { s.discovery = fn }
}

// WithDeviceResponse replaces the device authorization body
func WithDeviceResponse(status int, fn func(base string) map[string]any) Option {
	return func(s *Server) {
		s.deviceStatus = status
		s.device = fn
	}
}

// WithTokenReplies scripts the token endpoint. Replies are consumed in
// order and the last one repeats.
func WithTokenReplies(replies ...TokenReply) Option {
	return func(s *Server) { s.replies = append([]TokenReply(nil), replies...) }
}

// WithUserInfo sets the claims returned by the userinfo endpoint
func WithUserInfo(claims map[string]any) Option {
	return func(s *Server) { s.userInfo = claims }
}

// NewServer starts a fake server that is closed when the test ends
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		discovery:    DefaultDiscovery,
		device:       DefaultDeviceResponse,
		deviceStatus: http.StatusOK,
		replies:      []TokenReply{Success(DefaultAccessToken, 3600)},
		userInfo: map[string]any{
			"sub":      "248289761001",
			"name":     "Alice",
			"nickname": "ally",
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get(DiscoveryPath, s.handleDiscovery)
	r.Post(DevicePath, s.handleDevice)
	r.Post(TokenPath, s.handleToken)
	r.Get(UserInfoPath, s.handleUserInfo)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// DiscoveryURL returns the absolute discovery document URL
func (s *Server) DiscoveryURL() string {
	return s.URL + DiscoveryPath
}

// DefaultDiscovery advertises every endpoint of the fake server
func DefaultDiscovery(base string) map[string]any {
	return map[string]any{
		"issuer":                        base,
		"device_authorization_endpoint": base + DevicePath,
		"token_endpoint":                base + TokenPath,
		"userinfo_endpoint":             base + UserInfoPath,
		"grant_types_supported":         []string{DeviceCodeGrantType},
	}
}

// DefaultDeviceResponse mirrors the RFC 8628 section 3.2 example
func DefaultDeviceResponse(base string) map[string]any {
	return map[string]any{
		"device_code":               DefaultDeviceCode,
		"user_code":                 DefaultUserCode,
		"verification_uri":          base + "/device",
		"verification_uri_complete": base + "/device?user_code=" + DefaultUserCode,
		"expires_in":                1800,
		"interval":                  5,
	}
}

// DiscoveryCalls reports how often the discovery document was served
func (s *Server) DiscoveryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discoveryCalls
}

// DeviceForms returns the device authorization requests received
func (s *Server) DeviceForms() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.deviceForms...)
}

// TokenForms returns the token requests received, in order
func (s *Server) TokenForms() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.tokenForms...)
}

// TokenCalls reports how many token requests were received
func (s *Server) TokenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokenForms)
}

// UserInfoAuthorizations returns the Authorization headers seen by userinfo
func (s *Server) UserInfoAuthorizations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userInfoAuth...)
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.discoveryCalls++
	fn := s.discovery
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, fn(s.URL))
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return
	}

	s.mu.Lock()
	s.deviceForms = append(s.deviceForms, r.PostForm)
	status, fn := s.deviceStatus, s.device
	s.mu.Unlock()

	if r.PostForm.Get("client_id") == "" {
		writeError(w, http.StatusBadRequest, "invalid_client", "The client_id parameter is REQUIRED")
		return
	}

	writeJSON(w, status, fn(s.URL))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return
	}

	s.mu.Lock()
	s.tokenForms = append(s.tokenForms, r.PostForm)
	s.mu.Unlock()

	for key, values := range r.PostForm {
		if len(values) > 1 {
			writeError(w, http.StatusBadRequest, "invalid_request",
				"Parameters MUST NOT be included more than once: "+key)
			return
		}
	}
	if r.PostForm.Get("grant_type") != DeviceCodeGrantType {
		writeError(w, http.StatusBadRequest, "unsupported_grant_type",
			"Only "+DeviceCodeGrantType+" is supported")
		return
	}
	if r.PostForm.Get("device_code") == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "The device_code parameter is REQUIRED")
		return
	}
	if r.PostForm.Get("client_id") == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "The client_id parameter is REQUIRED")
		return
	}

	reply := s.nextReply()
	if reply.Raw != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(reply.Status)
		_, _ = w.Write([]byte(reply.Raw))
		return
	}
	writeJSON(w, reply.Status, reply.Body)
}

func (s *Server) nextReply() TokenReply {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")

	s.mu.Lock()
	s.userInfoAuth = append(s.userInfoAuth, auth)
	claims := s.userInfo
	s.mu.Unlock()

	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") == "" {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeError(w, http.StatusUnauthorized, "invalid_token", "Bearer token required")
		return
	}

	writeJSON(w, http.StatusOK, claims)
}
