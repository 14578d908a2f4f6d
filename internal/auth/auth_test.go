package auth

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-stats/internal/session"
)

type fakeAuthorizer struct {
	token     *oauth2.Token
	err       error
	exchanged []string
}

func (f *fakeAuthorizer) AuthURL(state string, opts ...oauth2.AuthCodeOption) string {
	return NewAuthenticator("test-client-id", "test-client-secret", "http://127.0.0.1:8080/callback").AuthURL(state, opts...)
}

func (f *fakeAuthorizer) Exchange(_ context.Context, code string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.exchanged = append(f.exchanged, code)
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type fakeUsers struct {
	user *spotify.PrivateUser
	err  error
}

func (f *fakeUsers) CurrentUser(_ context.Context, _ *oauth2.Token) (*spotify.PrivateUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestController(a *fakeAuthorizer, u *fakeUsers) *Controller {
	return NewController(a, u, WithLogger(quietLogger()))
}

func testToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "test-access-token",
		TokenType:    "Bearer",
		RefreshToken: "test-refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func userWithImages(name string, images ...string) *spotify.PrivateUser {
	user := &spotify.PrivateUser{}
	user.ID = "user-id"
	user.DisplayName = name
	for _, u := range images {
		user.Images = append(user.Images, spotify.Image{URL: u})
	}
	return user
}

func TestBeginLogin(t *testing.T) {
	c := newTestController(&fakeAuthorizer{}, &fakeUsers{})

	raw := c.BeginLogin("abc123")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("BeginLogin() returned invalid URL %q: %v", raw, err)
	}

	q := u.Query()
	checks := map[string]string{
		"client_id":     "test-client-id",
		"redirect_uri":  "http://127.0.0.1:8080/callback",
		"state":         "abc123",
		"show_dialog":   "true",
		"response_type": "code",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}

	scopes := q.Get("scope")
	for _, scope := range []string{"user-top-read", "user-read-recently-played"} {
		if !strings.Contains(scopes, scope) {
			t.Errorf("scope = %q, missing %q", scopes, scope)
		}
	}
}

func TestHandleCallback_Success(t *testing.T) {
	tests := []struct {
		name        string
		user        *spotify.PrivateUser
		wantName    string
		wantPicture string
	}{
		{
			name:        "user with images",
			user:        userWithImages("Listener", "https://i.scdn.co/first.jpg", "https://i.scdn.co/second.jpg"),
			wantName:    "Listener",
			wantPicture: "https://i.scdn.co/first.jpg",
		},
		{
			name:        "user without images",
			user:        userWithImages("Listener"),
			wantName:    "Listener",
			wantPicture: DefaultProfilePicture,
		},
		{
			name:        "user without display name",
			user:        userWithImages(""),
			wantName:    "user-id",
			wantPicture: DefaultProfilePicture,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAuthorizer{token: testToken()}
			c := newTestController(a, &fakeUsers{user: tt.user})
			sess := session.New("", session.State{})

			query := url.Values{"code": {"the-code"}, "state": {"s"}}
			if err := c.HandleCallback(context.Background(), sess, query, "s"); err != nil {
				t.Fatalf("HandleCallback() error = %v", err)
			}

			if len(a.exchanged) != 1 || a.exchanged[0] != "the-code" {
				t.Errorf("exchanged codes = %v, want [the-code]", a.exchanged)
			}
			if sess.Token() == nil || sess.Token().AccessToken != "test-access-token" {
				t.Errorf("Token() = %v, want test-access-token", sess.Token())
			}
			if sess.Username() != tt.wantName {
				t.Errorf("Username() = %q, want %q", sess.Username(), tt.wantName)
			}
			if sess.ProfilePicture() != tt.wantPicture {
				t.Errorf("ProfilePicture() = %q, want %q", sess.ProfilePicture(), tt.wantPicture)
			}
		})
	}
}

func TestHandleCallback_CustomDefaultPicture(t *testing.T) {
	c := NewController(&fakeAuthorizer{token: testToken()}, &fakeUsers{user: userWithImages("x")},
		WithDefaultPicture("https://example.com/none.png"), WithLogger(quietLogger()))
	sess := session.New("", session.State{})

	if err := c.HandleCallback(context.Background(), sess, url.Values{"code": {"c"}}, ""); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if got := sess.ProfilePicture(); got != "https://example.com/none.png" {
		t.Errorf("ProfilePicture() = %q, want custom default", got)
	}
}

func TestHandleCallback_EmptyDefaultPictureKeepsBuiltIn(t *testing.T) {
	c := NewController(&fakeAuthorizer{token: testToken()}, &fakeUsers{user: userWithImages("x")},
		WithDefaultPicture(""), WithLogger(quietLogger()))
	sess := session.New("", session.State{})

	if err := c.HandleCallback(context.Background(), sess, url.Values{"code": {"c"}}, ""); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if got := sess.ProfilePicture(); got != DefaultProfilePicture {
		t.Errorf("ProfilePicture() = %q, want %q", got, DefaultProfilePicture)
	}
}

func TestHandleCallback_Failures(t *testing.T) {
	stale := session.State{
		Token:          &oauth2.Token{AccessToken: "stale"},
		Username:       "old user",
		ProfilePicture: "old.png",
	}

	tests := []struct {
		name     string
		query    url.Values
		expected string
		auth     *fakeAuthorizer
		users    *fakeUsers
		wantErr  error
	}{
		{
			name:    "missing code",
			query:   url.Values{},
			auth:    &fakeAuthorizer{token: testToken()},
			users:   &fakeUsers{user: userWithImages("x")},
			wantErr: ErrMissingCode,
		},
		{
			name:     "state mismatch",
			query:    url.Values{"code": {"c"}, "state": {"evil"}},
			expected: "good",
			auth:     &fakeAuthorizer{token: testToken()},
			users:    &fakeUsers{user: userWithImages("x")},
			wantErr:  ErrStateMismatch,
		},
		{
			name:    "provider error",
			query:   url.Values{"error": {"access_denied"}},
			auth:    &fakeAuthorizer{token: testToken()},
			users:   &fakeUsers{user: userWithImages("x")},
			wantErr: ErrProviderDenied,
		},
		{
			name:    "exchange rejected",
			query:   url.Values{"code": {"expired"}},
			auth:    &fakeAuthorizer{err: errors.New("invalid_grant")},
			users:   &fakeUsers{user: userWithImages("x")},
			wantErr: ErrAuthExchange,
		},
		{
			name:    "profile lookup fails",
			query:   url.Values{"code": {"c"}},
			auth:    &fakeAuthorizer{token: testToken()},
			users:   &fakeUsers{err: errors.New("boom")},
			wantErr: ErrAuthExchange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(tt.auth, tt.users)
			sess := session.New("id", stale)

			err := c.HandleCallback(context.Background(), sess, tt.query, tt.expected)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HandleCallback() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrAuthExchange) {
				t.Errorf("HandleCallback() error = %v, want it to match ErrAuthExchange", err)
			}
			if !sess.State().Empty() {
				t.Errorf("session state = %+v, want empty after failed callback", sess.State())
			}
		})
	}
}

func TestBeginLoginThenCallbackWithoutCode(t *testing.T) {
	c := newTestController(&fakeAuthorizer{token: testToken()}, &fakeUsers{user: userWithImages("x")})
	sess := session.New("", session.State{})

	_ = c.BeginLogin("state")
	if sess.Modified() {
		t.Fatal("BeginLogin() modified the session")
	}

	if err := c.HandleCallback(context.Background(), sess, url.Values{"state": {"state"}}, "state"); !errors.Is(err, ErrMissingCode) {
		t.Fatalf("HandleCallback() error = %v, want ErrMissingCode", err)
	}
	if sess.Authenticated() {
		t.Error("session is authenticated after callback without code")
	}
}

func TestLogout(t *testing.T) {
	c := newTestController(&fakeAuthorizer{}, &fakeUsers{})
	sess := session.New("id", session.State{
		Token:          testToken(),
		Username:       "Listener",
		ProfilePicture: "p.png",
	})

	c.Logout(sess)
	if !sess.State().Empty() {
		t.Fatalf("state after Logout() = %+v, want empty", sess.State())
	}

	// Second logout must be a silent no-op.
	c.Logout(sess)
	if !sess.State().Empty() {
		t.Errorf("state after second Logout() = %+v, want empty", sess.State())
	}
}

func TestGenerateState(t *testing.T) {
	state1, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	if len(state1) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("GenerateState() length = %d, want 32", len(state1))
	}

	state2, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	if state1 == state2 {
		t.Error("GenerateState() returned same value twice")
	}
}
