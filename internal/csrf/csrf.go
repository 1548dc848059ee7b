// Package csrf protects the status server's state-changing forms
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FormField is the form parameter carrying the token
const FormField = "csrf_token"

// DefaultExpiry is how long an issued token stays valid
const DefaultExpiry = 15 * time.Minute

var (
	// ErrInvalidToken indicates a missing or invalid CSRF token
	ErrInvalidToken = errors.New("invalid csrf token")

	// ErrTokenExpired indicates the CSRF token has expired
	ErrTokenExpired = errors.New("csrf token expired")
)

// Store provides token storage operations
type Store interface {
	// SaveToken stores a CSRF token with expiry
	SaveToken(ctx context.Context, token string, expiresIn time.Duration) error

	// ValidateToken checks if a token exists and is valid
	ValidateToken(ctx context.Context, token string) error

	// CheckHealth verifies the store is operational
	CheckHealth(ctx context.Context) error
}

// Manager handles CSRF token generation and validation
type Manager struct {
	store     Store
	secret    []byte
	expiresIn time.Duration
	logger    *zap.Logger
}

// NewManager creates a new CSRF token manager. A nil secret is replaced
// with a random one, which invalidates tokens on restart.
func NewManager(store Store, secret []byte, expiresIn time.Duration, logger *zap.Logger) (*Manager, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating csrf secret: %w", err)
		}
	}
	if expiresIn <= 0 {
		expiresIn = DefaultExpiry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     store,
		secret:    secret,
		expiresIn: expiresIn,
		logger:    logger,
	}, nil
}

// GenerateToken creates and stores a new signed token
func (m *Manager) GenerateToken(ctx context.Context) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}

	token := base64.URLEncoding.EncodeToString(tokenBytes)
	fullToken := token + "." + base64.URLEncoding.EncodeToString(m.sign(token))

	if err := m.store.SaveToken(ctx, fullToken, m.expiresIn); err != nil {
		return "", fmt.Errorf("saving token: %w", err)
	}

	return fullToken, nil
}

// ValidateToken checks the signature, then the store
func (m *Manager) ValidateToken(ctx context.Context, token string) error {
	value, sig, ok := strings.Cut(token, ".")
	if !ok || value == "" {
		return ErrInvalidToken
	}

	actualSig, err := base64.URLEncoding.DecodeString(sig)
	if err != nil {
		return ErrInvalidToken
	}
	if !hmac.Equal(m.sign(value), actualSig) {
		return ErrInvalidToken
	}

	if err := m.store.ValidateToken(ctx, token); err != nil {
		return fmt.Errorf("validating token: %w", err)
	}

	return nil
}

// Protect rejects unsafe requests without a valid token in FormField
func (m *Manager) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if err := m.ValidateToken(r.Context(), r.PostFormValue(FormField)); err != nil {
			m.logger.Warn("rejected request with invalid csrf token",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			http.Error(w, "invalid or expired form token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CheckHealth verifies the CSRF manager is operational
func (m *Manager) CheckHealth(ctx context.Context) error {
	if err := m.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("csrf store health check failed: %w", err)
	}
	return nil
}

func (m *Manager) sign(value string) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(value))
	return h.Sum(nil)
}
