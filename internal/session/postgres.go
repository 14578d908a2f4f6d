package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-spotify-stats/internal/db"
)

// Repository is the storage used by PostgresStore. *db.SessionRepository implements it.
type Repository interface {
	Upsert(ctx context.Context, session *db.Session) error
	Get(ctx context.Context, id string) (*db.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PostgresStore keeps session state in the database, keyed by a cookie ID.
type PostgresStore struct {
	repo Repository
	opts cookieOptions
	now  func() time.Time
}

// NewPostgresStore creates a database-backed session store.
func NewPostgresStore(repo Repository, opts ...Option) *PostgresStore {
	return &PostgresStore{
		repo: repo,
		opts: newCookieOptions(opts),
		now:  time.Now,
	}
}

// Load reads the session named by the request cookie.
func (s *PostgresStore) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return New("", State{}), nil
	}

	row, err := s.repo.Get(r.Context(), cookie.Value)
	if errors.Is(err, db.ErrNotFound) {
		return New("", State{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var state State
	if err := json.Unmarshal(row.State, &state); err != nil {
		// Unreadable rows are treated like missing ones.
		return New("", State{}), nil
	}
	return New(row.ID, state), nil
}

// Save writes the session row, or deletes it when the session is empty.
func (s *PostgresStore) Save(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if !sess.Modified() {
		return nil
	}

	ctx := r.Context()
	state := sess.State()

	if state.Empty() {
		if sess.ID != "" {
			if err := s.repo.Delete(ctx, sess.ID); err != nil {
				return err
			}
		}
		s.opts.clear(w)
		return nil
	}

	if stale := sess.rotate(); stale != "" {
		if err := s.repo.Delete(ctx, stale); err != nil {
			return err
		}
	}

	now := s.now()
	if sess.ID == "" {
		sess.ID = uuid.NewString()
		if _, err := s.repo.DeleteExpired(ctx, now); err != nil {
			return err
		}
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	if err := s.repo.Upsert(ctx, &db.Session{
		ID:        sess.ID,
		State:     data,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.ttl),
	}); err != nil {
		return err
	}

	s.opts.set(w, sess.ID)
	return nil
}

// Ensure every store implements Store.
var (
	_ Store = (*CookieStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
