package core

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/jsonbi/internal/tabular"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// ErrPublishInProgress is returned when a session is already being published.
var ErrPublishInProgress = errors.New("publish in progress for this session")

// DefaultSessionTTL is how long a converted table waits for a publish.
const DefaultSessionTTL = 30 * time.Minute

// DefaultMaxSessions caps how many converted tables are held at once.
const DefaultMaxSessions = 100

// Session holds one converted table between preview and publish.
type Session struct {
	ID        string
	FileName  string
	Table     *tabular.Table
	CreatedAt time.Time
	ExpiresAt time.Time

	claimed bool // held by a publish; not swept or evicted
}

// SessionStore is an in-memory, TTL-bounded map of sessions.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	max      int
	now      func() time.Time
}

// NewSessionStore creates a store. Non-positive arguments use the defaults.
func NewSessionStore(ttl time.Duration, maxSessions int) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		max:      maxSessions,
		now:      time.Now,
	}
}

// Put stores t under a new session id. When the store is full the oldest
// unclaimed session is evicted.
func (s *SessionStore) Put(fileName string, t *tabular.Table) *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		FileName:  fileName,
		Table:     t,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)
	for len(s.sessions) >= s.max {
		if !s.evictOldestLocked() {
			break
		}
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the live session for id or ErrSessionNotFound.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.liveLocked(id)
}

// Claim marks the session for id as being published. Only one caller can
// hold a claim; others get ErrPublishInProgress until Unclaim or Delete.
func (s *SessionStore) Claim(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.liveLocked(id)
	if err != nil {
		return nil, err
	}
	if sess.claimed {
		return nil, ErrPublishInProgress
	}
	sess.claimed = true
	return sess, nil
}

// Unclaim releases a claim taken by Claim, leaving the session in place.
func (s *SessionStore) Unclaim(id string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.claimed = false
	}
	s.mu.Unlock()
}

func (s *SessionStore) liveLocked(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		if !sess.claimed {
			delete(s.sessions, id)
		}
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes id. Unknown ids are ignored.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sweep removes expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// Len returns the number of stored sessions, expired ones included until swept.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) sweepLocked(now time.Time) int {
	removed := 0
	for id, sess := range s.sessions {
		if !sess.claimed && !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// evictOldestLocked removes the oldest unclaimed session and reports
// whether one was found.
func (s *SessionStore) evictOldestLocked() bool {
	var oldest *Session
	for _, sess := range s.sessions {
		if sess.claimed {
			continue
		}
		if oldest == nil || sess.CreatedAt.Before(oldest.CreatedAt) {
			oldest = sess
		}
	}
	if oldest == nil {
		return false
	}
	delete(s.sessions, oldest.ID)
	return true
}
