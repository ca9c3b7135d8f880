package gauth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

var ErrTokenExpired = errors.New("token invalid or expired")

// Store keeps uploaded keys in memory under opaque tokens with a TTL.
// Expired entries are dropped on access; nothing is ever written to disk.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]storeEntry
	now     func() time.Time
}

type storeEntry struct {
	key     *Key
	expires time.Time
}

// NewStore creates a store whose tokens live for ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		entries: make(map[string]storeEntry),
		now:     time.Now,
	}
}

// Store saves a key and returns the opaque token that resolves to it until
// the TTL elapses.
func (s *Store) Store(key *Key) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = storeEntry{key: key, expires: s.now().Add(s.ttl)}
	return token, nil
}

// Resolve returns the key a token refers to, or ErrTokenExpired when the
// token is unknown or past its TTL. Expired entries are removed.
func (s *Store) Resolve(token string) (*Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return nil, ErrTokenExpired
	}
	if s.now().After(entry.expires) {
		delete(s.entries, token)
		return nil, ErrTokenExpired
	}
	return entry.key, nil
}

// Expire drops a token immediately.
func (s *Store) Expire(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
}

// TTL reports the configured token lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
