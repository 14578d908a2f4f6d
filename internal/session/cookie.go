package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrEmptySecret is returned when a cookie store is created without a signing secret.
var ErrEmptySecret = errors.New("session secret must not be empty")

// CookieStore keeps the whole session state in a signed browser cookie.
type CookieStore struct {
	secret []byte
	opts   cookieOptions
}

type cookieClaims struct {
	State State `json:"state"`
	jwt.RegisteredClaims
}

// NewCookieStore creates a store that signs cookies with HS256.
func NewCookieStore(secret []byte, opts ...Option) (*CookieStore, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &CookieStore{secret: secret, opts: newCookieOptions(opts)}, nil
}

// Load decodes the session cookie. Tampered or expired cookies yield an empty session.
func (s *CookieStore) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return New("", State{}), nil
	}

	state, err := s.decode(cookie.Value)
	if err != nil {
		return New("", State{}), nil
	}
	return New("", state), nil
}

// Save re-signs the session into the cookie, or expires the cookie when the session is empty.
func (s *CookieStore) Save(w http.ResponseWriter, _ *http.Request, sess *Session) error {
	if !sess.Modified() {
		return nil
	}

	state := sess.State()
	if state.Empty() {
		s.opts.clear(w)
		return nil
	}

	value, err := s.encode(state)
	if err != nil {
		return err
	}
	s.opts.set(w, value)
	return nil
}

func (s *CookieStore) encode(state State) (string, error) {
	now := time.Now()
	claims := cookieClaims{
		State: state,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.ttl)),
		},
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing session cookie: %w", err)
	}
	return value, nil
}

func (s *CookieStore) decode(value string) (State, error) {
	var claims cookieClaims
	token, err := jwt.ParseWithClaims(value, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return State{}, fmt.Errorf("parsing session cookie: %w", err)
	}
	if !token.Valid {
		return State{}, errors.New("invalid session cookie")
	}
	return claims.State, nil
}
