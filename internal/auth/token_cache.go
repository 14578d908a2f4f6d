package auth

import (
	"errors"

	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-stats/internal/session"
)

// TokenCache reads and writes the OAuth token kept in a visitor's session.
type TokenCache struct {
	sess *session.Session
}

// NewTokenCache returns a TokenCache bound to one session.
func NewTokenCache(sess *session.Session) *TokenCache {
	return &TokenCache{sess: sess}
}

// Load returns the cached token.
// Returns nil if the session holds no token.
func (c *TokenCache) Load() *oauth2.Token {
	return c.sess.Token()
}

// Save stores the token in the session.
func (c *TokenCache) Save(token *oauth2.Token) error {
	if token == nil {
		return errors.New("cannot save nil token")
	}
	c.sess.SetToken(token)
	return nil
}

// Delete removes the cached token.
// Returns without error if there is no token.
func (c *TokenCache) Delete() {
	c.sess.RemoveToken()
}

// TokenSource is anything that can report its current token, such as a
// Spotify client whose transport refreshes expired tokens.
type TokenSource interface {
	Token() (*oauth2.Token, error)
}

// Sync saves the source's token if the client refreshed it since it was cached.
// It reports whether the cached token changed.
func (c *TokenCache) Sync(src TokenSource) bool {
	cached := c.Load()
	if cached == nil {
		return false
	}

	current, err := src.Token()
	if err != nil || current == nil || current.AccessToken == cached.AccessToken {
		return false
	}

	refreshed := *current
	// Refresh responses may omit the refresh token.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cached.RefreshToken
	}
	return c.Save(&refreshed) == nil
}
