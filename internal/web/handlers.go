package web

import (
	"bytes"
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-stats/internal/auth"
	"github.com/justestif/go-spotify-stats/internal/session"
	spotifyapi "github.com/justestif/go-spotify-stats/internal/spotify"
	"github.com/justestif/go-spotify-stats/internal/stats"
)

const (
	appTitle        = "Spotify Stats"
	stateCookieName = "oauth_state"
)

// StatsClient reads listening data for one authenticated user.
// *spotifyapi.Client implements it.
type StatsClient interface {
	TopTracks(ctx context.Context, timeRange spotify.Range) ([]spotify.FullTrack, error)
	TopArtists(ctx context.Context, timeRange spotify.Range) ([]spotify.FullArtist, error)
	RecentlyPlayed(ctx context.Context) ([]spotify.RecentlyPlayedItem, error)
	Token() (*oauth2.Token, error)
}

// ClientFunc returns a StatsClient authenticated with token.
type ClientFunc func(ctx context.Context, token *oauth2.Token) StatsClient

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	flow      *auth.Controller
	sessions  session.Store
	connect   ClientFunc
	templates *Templates
	log       logrus.FieldLogger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(flow *auth.Controller, sessions session.Store, connect ClientFunc, templates *Templates, log logrus.FieldLogger) *Handlers {
	return &Handlers{
		flow:      flow,
		sessions:  sessions,
		connect:   connect,
		templates: templates,
		log:       log,
	}
}

// Home handles the landing page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSession(r)

	h.render(w, http.StatusOK, "home", HomePageData{
		PageData:      h.pageData(r, sess, appTitle),
		Authenticated: sess.Authenticated(),
	})
}

// TopTracks shows the user's top tracks for every time range (GET /top/tracks).
func (h *Handlers) TopTracks(w http.ResponseWriter, r *http.Request) {
	sess, client, ok := h.authorize(w, r)
	if !ok {
		return
	}

	windows := make([]TrackWindow, 0, len(spotifyapi.TimeRanges))
	for _, timeRange := range spotifyapi.TimeRanges {
		items, err := client.TopTracks(r.Context(), timeRange)
		if err != nil {
			h.upstreamFailure(w, r, sess, err)
			return
		}
		windows = append(windows, TrackWindow{
			Label:  rangeLabel(timeRange),
			Tracks: stats.TracksFromTop(items),
		})
	}

	h.persist(w, r, sess, client)
	h.render(w, http.StatusOK, "list", ListPageData{
		PageData:     h.pageData(r, sess, "Top Tracks"),
		TrackWindows: windows,
	})
}

// TopArtists shows the user's top artists for every time range (GET /top/artists).
func (h *Handlers) TopArtists(w http.ResponseWriter, r *http.Request) {
	sess, client, ok := h.authorize(w, r)
	if !ok {
		return
	}

	windows := make([]ArtistWindow, 0, len(spotifyapi.TimeRanges))
	for _, timeRange := range spotifyapi.TimeRanges {
		items, err := client.TopArtists(r.Context(), timeRange)
		if err != nil {
			h.upstreamFailure(w, r, sess, err)
			return
		}
		windows = append(windows, ArtistWindow{
			Label:   rangeLabel(timeRange),
			Artists: stats.Artists(items),
		})
	}

	h.persist(w, r, sess, client)
	h.render(w, http.StatusOK, "list", ListPageData{
		PageData:      h.pageData(r, sess, "Top Artists"),
		ArtistWindows: windows,
	})
}

// Recents shows the user's recently played tracks (GET /recents).
func (h *Handlers) Recents(w http.ResponseWriter, r *http.Request) {
	sess, client, ok := h.authorize(w, r)
	if !ok {
		return
	}

	items, err := client.RecentlyPlayed(r.Context())
	if err != nil {
		h.upstreamFailure(w, r, sess, err)
		return
	}

	h.persist(w, r, sess, client)
	h.render(w, http.StatusOK, "recents", RecentsPageData{
		PageData: h.pageData(r, sess, "Recently Played"),
		Tracks:   stats.TracksFromRecent(items),
	})
}

// Login initiates the Spotify OAuth flow (GET /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	// Generate state for CSRF protection
	state, err := auth.GenerateState()
	if err != nil {
		h.log.WithError(err).Error("generating oauth state")
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	// Store state in cookie for validation on callback
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, h.flow.BeginLogin(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback).
// Failures leave the visitor logged out on the home page.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSession(r)

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	var err error
	if stateCookie, cookieErr := r.Cookie(stateCookieName); cookieErr != nil || stateCookie.Value == "" {
		sess.Clear()
		err = auth.ErrStateMismatch
	} else {
		err = h.flow.HandleCallback(r.Context(), sess, r.URL.Query(), stateCookie.Value)
	}

	if err != nil {
		h.log.WithError(err).Warn("login failed")
	}

	h.saveSession(w, r, sess)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout clears the session and redirects to home (GET /logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSession(r)
	h.flow.Logout(sess)
	h.saveSession(w, r, sess)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// authorize loads the session and builds a client for its token.
// Visitors without a token are sent to the home page.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request) (*session.Session, StatsClient, bool) {
	sess := h.loadSession(r)
	token := auth.NewTokenCache(sess).Load()
	if token == nil {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return nil, nil, false
	}
	return sess, h.connect(r.Context(), token), true
}

// upstreamFailure answers a failed Spotify call. A rejected token ends the
// session; anything else renders an error page instead of partial data.
func (h *Handlers) upstreamFailure(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if spotifyapi.Unauthorized(err) {
		h.log.WithError(err).Warn("spotify rejected session token")
		h.flow.Logout(sess)
		h.saveSession(w, r, sess)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	h.log.WithError(err).WithField("path", r.URL.Path).Error("spotify request failed")
	h.render(w, http.StatusBadGateway, "error", ErrorPageData{
		PageData: h.pageData(r, sess, "Something went wrong"),
		Message:  "Spotify could not be reached. Please try again later.",
	})
}

// persist writes back a token the client refreshed during the request.
func (h *Handlers) persist(w http.ResponseWriter, r *http.Request, sess *session.Session, client StatsClient) {
	if auth.NewTokenCache(sess).Sync(client) {
		h.log.Debug("saved refreshed token")
	}
	h.saveSession(w, r, sess)
}

func (h *Handlers) loadSession(r *http.Request) *session.Session {
	sess, err := h.sessions.Load(r)
	if err != nil {
		h.log.WithError(err).Error("loading session")
		return session.New("", session.State{})
	}
	return sess
}

func (h *Handlers) saveSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := h.sessions.Save(w, r, sess); err != nil {
		h.log.WithError(err).Error("saving session")
	}
}

func (h *Handlers) pageData(r *http.Request, sess *session.Session, title string) PageData {
	data := PageData{
		Title:       title,
		CurrentPath: r.URL.Path,
	}
	if sess.Authenticated() {
		data.User = &UserData{
			Name:           sess.Username(),
			ProfilePicture: sess.ProfilePicture(),
		}
	}
	return data
}

func (h *Handlers) render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.templates.Render(&buf, page, data); err != nil {
		h.log.WithError(err).WithField("page", page).Error("rendering template")
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func rangeLabel(r spotify.Range) string {
	switch r {
	case spotify.LongTermRange:
		return "All Time"
	case spotify.MediumTermRange:
		return "Last 6 Months"
	case spotify.ShortTermRange:
		return "Last 4 Weeks"
	default:
		return string(r)
	}
}
