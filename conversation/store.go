package conversation

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Store maps conversation keys to their live record. Records untouched for
// the configured TTL expire.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewStore creates a store. A zero ttl disables expiry and a zero
// cleanupInterval disables the background janitor.
func NewStore(ttl, cleanupInterval time.Duration) *Store {
	return &Store{cache: cache.New(ttl, cleanupInterval)}
}

// Get returns the live record for key.
func (s *Store) Get(key Key) (*Conversation, bool) {
	x, ok := s.cache.Get(key.String())
	if !ok {
		return nil, false
	}
	return x.(*Conversation), true
}

// Phase returns the phase of the live record for key, PhaseNone if absent.
func (s *Store) Phase(key Key) Phase {
	conv, ok := s.Get(key)
	if !ok {
		return PhaseNone
	}
	return conv.Phase()
}

// replace installs a fresh record for key and closes the one it displaces.
func (s *Store) replace(conv *Conversation) {
	s.mu.Lock()
	prev, hadPrev := s.Get(conv.Key)
	s.cache.Set(conv.Key.String(), conv, cache.DefaultExpiration)
	s.mu.Unlock()

	if hadPrev && prev != conv {
		prev.close()
	}
}

// isCurrent reports whether conv is still the live record for its key.
func (s *Store) isCurrent(conv *Conversation) bool {
	cur, ok := s.Get(conv.Key)
	return ok && cur == conv
}

// touch refreshes the expiry of conv if it is still live.
func (s *Store) touch(conv *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isCurrent(conv) {
		s.cache.Set(conv.Key.String(), conv, cache.DefaultExpiration)
	}
}

// remove deletes conv if it is still the live record and reports whether it did.
func (s *Store) remove(conv *Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrent(conv) {
		return false
	}
	s.cache.Delete(conv.Key.String())
	return true
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
