// Package stats converts Spotify listening data into flat display records.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/zmb3/spotify/v2"
)

// ErrMalformedPayload is returned when a cached or raw envelope cannot be decoded.
var ErrMalformedPayload = errors.New("malformed payload")

// Track is a track ready for display.
type Track struct {
	Name     string `json:"name" yaml:"name"`
	Artists  string `json:"artists" yaml:"artists"` // Comma-separated artist names
	ImageURL string `json:"image_url" yaml:"image_url"`
	LinkURL  string `json:"link_url" yaml:"link_url"`
}

// Artist is an artist ready for display.
type Artist struct {
	Name     string `json:"name" yaml:"name"`
	ImageURL string `json:"image_url" yaml:"image_url"`
	LinkURL  string `json:"link_url" yaml:"link_url"`
}

// Kind selects which envelope shape a payload has.
type Kind string

// Envelope kinds.
const (
	KindTopTracks Kind = "tracks"
	KindRecent    Kind = "recents"
	KindArtists   Kind = "artists"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTopTracks, KindRecent, KindArtists:
		return k, nil
	default:
		return "", fmt.Errorf("unknown kind %q (want tracks, recents or artists)", s)
	}
}

// TracksFromTop converts top-items tracks, preserving order.
func TracksFromTop(items []spotify.FullTrack) []Track {
	return lo.Map(items, func(t spotify.FullTrack, _ int) Track {
		return Track{
			Name:     t.Name,
			Artists:  JoinArtists(t.Artists),
			ImageURL: firstImage(t.Album.Images),
			LinkURL:  t.ExternalURLs["spotify"],
		}
	})
}

// TracksFromRecent unwraps play history entries and converts their tracks.
func TracksFromRecent(items []spotify.RecentlyPlayedItem) []Track {
	return lo.Map(items, func(item spotify.RecentlyPlayedItem, _ int) Track {
		t := item.Track
		return Track{
			Name:     t.Name,
			Artists:  JoinArtists(t.Artists),
			ImageURL: firstImage(t.Album.Images),
			LinkURL:  t.ExternalURLs["spotify"],
		}
	})
}

// Artists converts top-items artists, preserving order.
func Artists(items []spotify.FullArtist) []Artist {
	return lo.Map(items, func(a spotify.FullArtist, _ int) Artist {
		return Artist{
			Name:     a.Name,
			ImageURL: firstImage(a.Images),
			LinkURL:  a.ExternalURLs["spotify"],
		}
	})
}

// JoinArtists returns artist names joined by ", ".
// An artist without a name contributes an empty string.
func JoinArtists(artists []spotify.SimpleArtist) string {
	names := lo.Map(artists, func(a spotify.SimpleArtist, _ int) string {
		return a.Name
	})
	return strings.Join(names, ", ")
}

// firstImage returns the first image URL, or "" for an empty list.
func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// envelope is the paging wrapper shared by every listing endpoint.
type envelope[T any] struct {
	Items *[]T `json:"items"`
}

func decodeItems[T any](data []byte) ([]T, error) {
	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if env.Items == nil {
		return nil, fmt.Errorf("%w: missing items list", ErrMalformedPayload)
	}
	return *env.Items, nil
}

// DecodeTopTracks decodes a top-tracks envelope and converts its items.
func DecodeTopTracks(data []byte) ([]Track, error) {
	items, err := decodeItems[spotify.FullTrack](data)
	if err != nil {
		return nil, err
	}
	return TracksFromTop(items), nil
}

// DecodeRecentlyPlayed decodes a recently-played envelope and converts its items.
func DecodeRecentlyPlayed(data []byte) ([]Track, error) {
	items, err := decodeItems[spotify.RecentlyPlayedItem](data)
	if err != nil {
		return nil, err
	}
	return TracksFromRecent(items), nil
}

// DecodeTopArtists decodes a top-artists envelope and converts its items.
func DecodeTopArtists(data []byte) ([]Artist, error) {
	items, err := decodeItems[spotify.FullArtist](data)
	if err != nil {
		return nil, err
	}
	return Artists(items), nil
}

// Decode converts an envelope of the given kind.
// The result is a []Track for tracks and recents, and []Artist for artists.
func Decode(kind Kind, data []byte) (any, error) {
	switch kind {
	case KindTopTracks:
		return DecodeTopTracks(data)
	case KindRecent:
		return DecodeRecentlyPlayed(data)
	case KindArtists:
		return DecodeTopArtists(data)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}
