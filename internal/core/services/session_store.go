package services

import (
	"time"

	"village-registry/internal/core/domain"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultSessionTTL is how long a login stays valid without a configured TTL
const DefaultSessionTTL = 8 * time.Hour

// SessionStore caches logged-in sessions with their role sets
type SessionStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewSessionStore creates a session cache whose entries expire after ttl
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

// TTL returns the session lifetime
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Put stores a session until its expiry
func (s *SessionStore) Put(session *domain.Session) {
	d := time.Until(session.ExpiresAt)
	if d <= 0 {
		return
	}
	s.cache.Set(session.ID, session, d)
}

// Get returns a live session
func (s *SessionStore) Get(id string) (*domain.Session, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	session, ok := v.(*domain.Session)
	return session, ok
}

// Delete ends a session
func (s *SessionStore) Delete(id string) {
	s.cache.Delete(id)
}

// DeleteByUser ends every session of a user and returns how many were ended
func (s *SessionStore) DeleteByUser(userID uint) int {
	n := 0
	for id, item := range s.cache.Items() {
		if session, ok := item.Object.(*domain.Session); ok && session.UserID == userID {
			s.cache.Delete(id)
			n++
		}
	}
	return n
}
