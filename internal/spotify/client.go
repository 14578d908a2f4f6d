// Package spotify provides read access to a user's Spotify listening data.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// PageSize is the number of items requested from top-items endpoints.
const PageSize = 50

// ErrUpstream wraps every failed call to the Spotify API.
var ErrUpstream = errors.New("spotify request failed")

// TimeRanges lists the top-items windows from longest to shortest.
var TimeRanges = []spotify.Range{
	spotify.LongTermRange,
	spotify.MediumTermRange,
	spotify.ShortTermRange,
}

// Client wraps the Spotify API client with the reads used by the stats pages.
type Client struct {
	api *spotify.Client
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// TopTracks returns the user's top tracks for a time range.
func (c *Client) TopTracks(ctx context.Context, timeRange spotify.Range) ([]spotify.FullTrack, error) {
	page, err := c.api.CurrentUsersTopTracks(ctx, spotify.Timerange(timeRange), spotify.Limit(PageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: fetching top tracks (%s): %w", ErrUpstream, timeRange, err)
	}
	return page.Tracks, nil
}

// TopArtists returns the user's top artists for a time range.
func (c *Client) TopArtists(ctx context.Context, timeRange spotify.Range) ([]spotify.FullArtist, error) {
	page, err := c.api.CurrentUsersTopArtists(ctx, spotify.Timerange(timeRange), spotify.Limit(PageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: fetching top artists (%s): %w", ErrUpstream, timeRange, err)
	}
	return page.Artists, nil
}

// RecentlyPlayed returns the user's play history with Spotify's default page size.
func (c *Client) RecentlyPlayed(ctx context.Context) ([]spotify.RecentlyPlayedItem, error) {
	items, err := c.api.PlayerRecentlyPlayed(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching recently played: %w", ErrUpstream, err)
	}
	return items, nil
}

// CurrentUser returns the authenticated user's profile.
func (c *Client) CurrentUser(ctx context.Context) (*spotify.PrivateUser, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: getting current user: %w", ErrUpstream, err)
	}
	return user, nil
}

// Token returns the token currently used by the client, which may have been refreshed.
func (c *Client) Token() (*oauth2.Token, error) {
	return c.api.Token()
}

// Unauthorized reports whether err came from Spotify rejecting the access token.
func Unauthorized(err error) bool {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 401
	}
	// The accounts service answers a revoked refresh token with 400 or 401.
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		return status == http.StatusBadRequest || status == http.StatusUnauthorized
	}
	return false
}

// Connector creates authenticated clients from session tokens.
type Connector struct {
	auth *spotifyauth.Authenticator
	opts []spotify.ClientOption
}

// NewConnector returns a Connector that authenticates requests with auth.
func NewConnector(auth *spotifyauth.Authenticator, opts ...spotify.ClientOption) *Connector {
	return &Connector{auth: auth, opts: opts}
}

// Connect returns a client for the token. Expired tokens are refreshed on use.
func (c *Connector) Connect(ctx context.Context, token *oauth2.Token) *Client {
	return New(spotify.New(c.auth.Client(ctx, token), c.opts...))
}

// CurrentUser fetches the profile that owns token.
func (c *Connector) CurrentUser(ctx context.Context, token *oauth2.Token) (*spotify.PrivateUser, error) {
	return c.Connect(ctx, token).CurrentUser(ctx)
}
