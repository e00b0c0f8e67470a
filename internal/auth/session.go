package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one logged-in browser.
type Session struct {
	Token     string
	Identity  Identity
	ExpiresAt time.Time
}

// SessionStore keeps sessions in memory with TTL expiry. Sessions do not
// survive a restart; users just log in again.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	s := &SessionStore{
		sessions:    make(map[string]Session),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go s.startCleanup()
	return s
}

// Create opens a session for the identity and returns its cookie token.
func (s *SessionStore) Create(id Identity) Session {
	sess := Session{
		Token:     uuid.NewString(),
		Identity:  id,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()

	return sess
}

// Get resolves a cookie token, expiring lazily.
func (s *SessionStore) Get(token string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	if time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, false
	}
	return sess, true
}

// Delete ends a session (logout). Unknown tokens are ignored.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Len reports the number of live sessions, for the metrics endpoint.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// startCleanup runs periodic removal of expired sessions.
func (s *SessionStore) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *SessionStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}

// Stop shuts down the cleanup goroutine.
func (s *SessionStore) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.stopCleanup)
	})
}
