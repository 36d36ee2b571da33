package credentials

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const sessionSize = 64

// Session caches secrets read from a vault for a limited time, so that a
// protected secret is authenticated once per session. A zero TTL disables
// the cache.
type Session struct {
	vault *Vault
	cache *expirable.LRU[string, string]
}

// NewSession returns a session over v.
func NewSession(v *Vault, ttl time.Duration) *Session {
	s := &Session{vault: v}
	if ttl > 0 {
		s.cache = expirable.NewLRU[string, string](sessionSize, nil, ttl)
	}
	return s
}

// Get returns the secret, from the cache when it is still fresh.
func (s *Session) Get(ctx context.Context, name string) (string, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(name); ok {
			return v, nil
		}
	}
	v, err := s.vault.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Add(name, v)
	}
	return v, nil
}

// Forget drops name from the cache.
func (s *Session) Forget(name string) {
	if s.cache != nil {
		s.cache.Remove(name)
	}
}

// Lock empties the cache.
func (s *Session) Lock() {
	if s.cache != nil {
		s.cache.Purge()
	}
}
