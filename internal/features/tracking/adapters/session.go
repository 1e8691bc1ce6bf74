package adapter

import (
	"context"
	"sync"
	"time"
)

// refreshFunc obtains a fresh bearer token and reports its lifetime.
type refreshFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// tokenSession caches one OAuth bearer token per adapter instance. The token
// lives in process memory only and is refreshed under a single-writer lock so
// concurrent fetches never trigger duplicate refreshes.
type tokenSession struct {
	mu      sync.Mutex
	token   string
	expiry  time.Time
	refresh refreshFunc
}

func newTokenSession(refresh refreshFunc) *tokenSession {
	return &tokenSession{refresh: refresh}
}

// expirySlack is subtracted from the advertised lifetime so a token is never
// used right at its edge.
const expirySlack = 60 * time.Second

// Token returns the cached token, refreshing it when missing or expired.
func (s *tokenSession) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiry) {
		return s.token, nil
	}

	token, ttl, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiry = time.Now().Add(ttl - expirySlack)
	return s.token, nil
}

// Invalidate drops the cached token so the next Token call refreshes. Used
// after a 401 to force exactly one refresh-and-retry.
func (s *tokenSession) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiry = time.Time{}
}
