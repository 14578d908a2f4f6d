package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryStore keeps session state in process memory, keyed by a cookie ID.
// Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	opts     cookieOptions
	now      func() time.Time
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		opts:     newCookieOptions(opts),
		now:      time.Now,
	}
}

// Load looks up the session named by the request cookie.
func (s *MemoryStore) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return New("", State{}), nil
	}

	s.mu.RLock()
	entry, ok := s.sessions[cookie.Value]
	s.mu.RUnlock()

	if !ok || s.now().After(entry.expiresAt) {
		return New("", State{}), nil
	}
	return New(cookie.Value, entry.state), nil
}

// Save stores the session state, or deletes it when empty.
func (s *MemoryStore) Save(w http.ResponseWriter, _ *http.Request, sess *Session) error {
	if !sess.Modified() {
		return nil
	}

	state := sess.State()
	if state.Empty() {
		if sess.ID != "" {
			s.mu.Lock()
			delete(s.sessions, sess.ID)
			s.mu.Unlock()
		}
		s.opts.clear(w)
		return nil
	}

	now := s.now()
	stale := sess.rotate()

	s.mu.Lock()
	if stale != "" {
		delete(s.sessions, stale)
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
		// Expired entries are swept whenever a session is created.
		s.deleteExpiredLocked(now)
	}
	s.sessions[sess.ID] = memoryEntry{state: state, expiresAt: now.Add(s.opts.ttl)}
	s.mu.Unlock()

	s.opts.set(w, sess.ID)
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) deleteExpiredLocked(now time.Time) {
	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
}
