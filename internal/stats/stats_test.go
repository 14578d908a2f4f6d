package stats

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/zmb3/spotify/v2"
)

func TestDecodeTopArtists(t *testing.T) {
	data := []byte(`{"items":[{"name":"A","images":[{"url":"u1"}],"external_urls":{"spotify":"l1"}}]}`)

	got, err := DecodeTopArtists(data)
	if err != nil {
		t.Fatalf("DecodeTopArtists() error = %v", err)
	}

	want := []Artist{{Name: "A", ImageURL: "u1", LinkURL: "l1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeTopArtists() = %+v, want %+v", got, want)
	}
}

func TestDecodeRecentlyPlayed(t *testing.T) {
	data := []byte(`{"items":[{"track":{"name":"T","artists":[{"name":"X"},{"name":"Y"}],` +
		`"album":{"images":[{"url":"u"}]},"external_urls":{"spotify":"l"}}}]}`)

	got, err := DecodeRecentlyPlayed(data)
	if err != nil {
		t.Fatalf("DecodeRecentlyPlayed() error = %v", err)
	}

	want := []Track{{Name: "T", Artists: "X, Y", ImageURL: "u", LinkURL: "l"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeRecentlyPlayed() = %+v, want %+v", got, want)
	}
}

func TestDecodeTopTracksPreservesOrder(t *testing.T) {
	const n = 50

	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"name":"track-%02d","artists":[{"name":"a"}],"album":{"images":[]},"external_urls":{"spotify":"l%d"}}`, i, i)
	}
	data := []byte(`{"items":[` + strings.Join(items, ",") + `]}`)

	got, err := DecodeTopTracks(data)
	if err != nil {
		t.Fatalf("DecodeTopTracks() error = %v", err)
	}

	if len(got) != n {
		t.Fatalf("DecodeTopTracks() returned %d tracks, want %d", len(got), n)
	}
	for i, track := range got {
		if want := fmt.Sprintf("track-%02d", i); track.Name != want {
			t.Errorf("track %d Name = %q, want %q", i, track.Name, want)
		}
		if want := fmt.Sprintf("l%d", i); track.LinkURL != want {
			t.Errorf("track %d LinkURL = %q, want %q", i, track.LinkURL, want)
		}
	}
}

func TestEmptyImagesYieldEmptyURL(t *testing.T) {
	tests := []struct {
		name   string
		decode func([]byte) (string, error)
		data   string
	}{
		{
			name: "top track with empty album images",
			decode: func(b []byte) (string, error) {
				tracks, err := DecodeTopTracks(b)
				if err != nil {
					return "", err
				}
				return tracks[0].ImageURL, nil
			},
			data: `{"items":[{"name":"T","artists":[],"album":{"images":[]},"external_urls":{"spotify":"l"}}]}`,
		},
		{
			name: "top track without album",
			decode: func(b []byte) (string, error) {
				tracks, err := DecodeTopTracks(b)
				if err != nil {
					return "", err
				}
				return tracks[0].ImageURL, nil
			},
			data: `{"items":[{"name":"T","artists":[],"external_urls":{"spotify":"l"}}]}`,
		},
		{
			name: "recently played with empty album images",
			decode: func(b []byte) (string, error) {
				tracks, err := DecodeRecentlyPlayed(b)
				if err != nil {
					return "", err
				}
				return tracks[0].ImageURL, nil
			},
			data: `{"items":[{"track":{"name":"T","artists":[],"album":{"images":[]},"external_urls":{"spotify":"l"}}}]}`,
		},
		{
			name: "artist with no images",
			decode: func(b []byte) (string, error) {
				artists, err := DecodeTopArtists(b)
				if err != nil {
					return "", err
				}
				return artists[0].ImageURL, nil
			},
			data: `{"items":[{"name":"A","images":[],"external_urls":{"spotify":"l"}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if got != "" {
				t.Errorf("ImageURL = %q, want empty", got)
			}
		})
	}
}

func TestJoinArtists(t *testing.T) {
	tests := []struct {
		name    string
		artists []spotify.SimpleArtist
		want    string
	}{
		{"no artists", nil, ""},
		{"single artist", []spotify.SimpleArtist{{Name: "Artist One"}}, "Artist One"},
		{
			name:    "multiple artists",
			artists: []spotify.SimpleArtist{{Name: "Artist A"}, {Name: "Artist B"}, {Name: "Artist C"}},
			want:    "Artist A, Artist B, Artist C",
		},
		{
			name:    "artist without name",
			artists: []spotify.SimpleArtist{{Name: "X"}, {}},
			want:    "X, ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinArtists(tt.artists); got != tt.want {
				t.Errorf("JoinArtists() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `not json`},
		{"missing items", `{"total":0}`},
		{"items not a list", `{"items":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, kind := range []Kind{KindTopTracks, KindRecent, KindArtists} {
				_, err := Decode(kind, []byte(tt.data))
				if !errors.Is(err, ErrMalformedPayload) {
					t.Errorf("Decode(%s) error = %v, want ErrMalformedPayload", kind, err)
				}
			}
		})
	}
}

func TestDecodeEmptyItems(t *testing.T) {
	got, err := DecodeTopTracks([]byte(`{"items":[]}`))
	if err != nil {
		t.Fatalf("DecodeTopTracks() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("DecodeTopTracks() = %v, want empty", got)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"tracks", KindTopTracks, false},
		{"Recents", KindRecent, false},
		{" artists ", KindArtists, false},
		{"albums", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
