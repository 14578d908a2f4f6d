// Package auth implements the Spotify OAuth2 login flow for web sessions.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-stats/internal/session"
)

// DefaultProfilePicture is shown for users without a Spotify profile image.
const DefaultProfilePicture = "/static/default-avatar.svg"

// Scopes are the permissions requested from the user.
var Scopes = []string{
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserReadRecentlyPlayed,
}

var (
	// ErrAuthExchange is returned when the authorization code cannot be turned into a session.
	ErrAuthExchange = errors.New("authorization failed")

	// ErrMissingCode is returned when the callback carries no code parameter.
	ErrMissingCode = fmt.Errorf("%w: missing code parameter", ErrAuthExchange)

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = fmt.Errorf("%w: OAuth state mismatch", ErrAuthExchange)

	// ErrProviderDenied is returned when Spotify reports an error on the callback.
	ErrProviderDenied = fmt.Errorf("%w: denied by provider", ErrAuthExchange)
)

// Authorizer builds authorization URLs and exchanges codes for tokens.
// *spotifyauth.Authenticator implements it.
type Authorizer interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// UserFetcher loads the profile belonging to a token.
type UserFetcher interface {
	CurrentUser(ctx context.Context, token *oauth2.Token) (*spotify.PrivateUser, error)
}

// NewAuthenticator creates a Spotify authenticator requesting Scopes.
func NewAuthenticator(clientID, clientSecret, redirectURI string) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithScopes(Scopes...),
	)
}

// Controller drives the login, callback and logout steps against a visitor's session.
type Controller struct {
	auth           Authorizer
	users          UserFetcher
	defaultPicture string
	log            logrus.FieldLogger
}

// Option configures a Controller.
type Option func(*Controller)

// WithDefaultPicture sets the placeholder used when a user has no images.
func WithDefaultPicture(url string) Option {
	return func(c *Controller) {
		if url != "" {
			c.defaultPicture = url
		}
	}
}

// WithLogger sets the logger used for auth events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// NewController creates a Controller.
func NewController(auth Authorizer, users UserFetcher, opts ...Option) *Controller {
	c := &Controller{
		auth:           auth,
		users:          users,
		defaultPicture: DefaultProfilePicture,
		log:            logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeginLogin returns the Spotify URL the browser should be sent to.
// The consent dialog is always shown so users can switch accounts.
func (c *Controller) BeginLogin(state string) string {
	return c.auth.AuthURL(state, spotifyauth.ShowDialog)
}

// HandleCallback completes the login from the callback query parameters.
// Any previous session state is cleared first; the session is populated only
// if both the code exchange and the profile lookup succeed.
// An empty expectedState skips the state check.
func (c *Controller) HandleCallback(ctx context.Context, sess *session.Session, query url.Values, expectedState string) error {
	sess.Clear()

	if expectedState != "" && query.Get("state") != expectedState {
		return ErrStateMismatch
	}

	if errMsg := query.Get("error"); errMsg != "" {
		return fmt.Errorf("%w: %s", ErrProviderDenied, errMsg)
	}

	code := query.Get("code")
	if code == "" {
		return ErrMissingCode
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: exchanging code for token: %w", ErrAuthExchange, err)
	}

	user, err := c.users.CurrentUser(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: fetching user profile: %w", ErrAuthExchange, err)
	}

	username := user.DisplayName
	if username == "" {
		username = user.ID
	}

	picture := c.defaultPicture
	if len(user.Images) > 0 && user.Images[0].URL != "" {
		picture = user.Images[0].URL
	}

	sess.Populate(session.State{
		Token:          token,
		Username:       username,
		ProfilePicture: picture,
	})

	c.log.WithField("user", username).Info("user logged in")
	return nil
}

// Logout removes the token and then every other session field.
// Logging out an empty session is a no-op.
func (c *Controller) Logout(sess *session.Session) {
	NewTokenCache(sess).Delete()
	sess.Clear()
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
