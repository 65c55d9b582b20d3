package mock

import (
	"context"
	"sync"
	"time"
)

// TokenStore keeps revoked token IDs in memory.
type TokenStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{revoked: make(map[string]time.Time)}
}

func (s *TokenStore) Revoke(ctx context.Context, jti string, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = time.Now().Add(expiration)
	return nil
}

func (s *TokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.revoked[jti]
	return ok && time.Now().Before(deadline), nil
}
