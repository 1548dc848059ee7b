package csrf

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore keeps tokens in process. It is used when no Redis is configured.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

// SaveToken stores a token and prunes expired ones
func (s *MemoryStore) SaveToken(_ context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return errors.New("empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for t, exp := range s.tokens {
		if !now.Before(exp) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = now.Add(expiresIn)
	return nil
}

// ValidateToken checks that a token was issued and has not expired
func (s *MemoryStore) ValidateToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.tokens[token]
	if !ok {
		return ErrInvalidToken
	}
	if !s.now().Before(exp) {
		delete(s.tokens, token)
		return ErrTokenExpired
	}
	return nil
}

// CheckHealth always succeeds
func (s *MemoryStore) CheckHealth(context.Context) error {
	return nil
}
