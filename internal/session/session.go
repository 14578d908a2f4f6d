// Package session holds per-visitor state for the web application.
package session

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "session"

	// DefaultTTL is how long a session lives without being saved again.
	DefaultTTL = 24 * time.Hour
)

// State is everything remembered about a visitor between requests.
type State struct {
	Token          *oauth2.Token `json:"token,omitempty"`
	Username       string        `json:"username,omitempty"`
	ProfilePicture string        `json:"profile_pic,omitempty"`
}

// Empty reports whether no field of the state is set.
func (s State) Empty() bool {
	return s.Token == nil && s.Username == "" && s.ProfilePicture == ""
}

// Session is the handle for one visitor's state during a single request.
// It is not safe for concurrent use.
type Session struct {
	// ID identifies the session in server-side stores. Empty until first saved.
	ID string

	state    State
	modified bool
	renew    bool
}

// New returns a session wrapping the given state.
func New(id string, state State) *Session {
	return &Session{ID: id, state: state}
}

// State returns a copy of the session state.
func (s *Session) State() State {
	return s.state
}

// Token returns the cached OAuth token, or nil if there is none.
func (s *Session) Token() *oauth2.Token {
	return s.state.Token
}

// SetToken stores an OAuth token.
func (s *Session) SetToken(token *oauth2.Token) {
	s.state.Token = token
	s.modified = true
}

// RemoveToken drops the OAuth token, leaving other fields in place.
// Removing an absent token is a no-op.
func (s *Session) RemoveToken() {
	if s.state.Token == nil {
		return
	}
	s.state.Token = nil
	s.modified = true
}

// Username returns the visitor's display name.
func (s *Session) Username() string {
	return s.state.Username
}

// ProfilePicture returns the visitor's profile picture URL.
func (s *Session) ProfilePicture() string {
	return s.state.ProfilePicture
}

// Populate replaces the whole state at once.
// Server-side stores save a populated session under a fresh ID.
func (s *Session) Populate(state State) {
	s.state = state
	s.modified = true
	s.renew = true
}

// Clear removes every field of the session.
func (s *Session) Clear() {
	if s.state.Empty() {
		return
	}
	s.state = State{}
	s.modified = true
}

// Authenticated reports whether the session holds a token.
func (s *Session) Authenticated() bool {
	return s.state.Token != nil
}

// Modified reports whether the state changed since it was loaded.
func (s *Session) Modified() bool {
	return s.modified
}

// rotate forgets the ID of a repopulated session and returns the ID to discard.
func (s *Session) rotate() string {
	if !s.renew {
		return ""
	}
	old := s.ID
	s.ID = ""
	s.renew = false
	return old
}

// Store loads and saves sessions for HTTP requests.
type Store interface {
	// Load returns the session for the request. A missing, expired or
	// invalid session yields an empty one rather than an error.
	Load(r *http.Request) (*Session, error)

	// Save persists the session and writes the cookie. Unmodified sessions
	// are left alone; empty sessions are deleted.
	Save(w http.ResponseWriter, r *http.Request, s *Session) error
}

// cookieOptions are shared by every store.
type cookieOptions struct {
	ttl    time.Duration
	secure bool
}

func (o cookieOptions) set(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(o.ttl.Seconds()),
	})
}

func (o cookieOptions) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   o.secure,
		MaxAge:   -1,
	})
}

// Option configures a store.
type Option func(*cookieOptions)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(o *cookieOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithSecureCookie marks the session cookie as HTTPS-only.
func WithSecureCookie(secure bool) Option {
	return func(o *cookieOptions) {
		o.secure = secure
	}
}

func newCookieOptions(opts []Option) cookieOptions {
	o := cookieOptions{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
