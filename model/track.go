package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrEmptyURL   = errors.New("track url is empty")
	ErrInvalidURL = errors.New("track url is invalid")
)

// Track is the unit of playback requested by the host. Values are immutable once handed
// to the controller.
type Track struct {
	URL             string   `json:"url"`
	Title           string   `json:"title,omitempty"`
	Artist          string   `json:"artist,omitempty"`
	Album           string   `json:"album,omitempty"`
	Description     string   `json:"description,omitempty"`
	Artwork         string   `json:"artwork,omitempty"`
	Duration        *float64 `json:"duration,omitempty"` // seconds, optional hint
	IsLive          bool     `json:"isLive,omitempty"`
	UseSpatialAudio bool     `json:"useSpatialAudio,omitempty"`
}

// Mode selects the backend variant for this track.
func (t *Track) Mode() PlaybackMode {
	if t.IsLive || t.UseSpatialAudio {
		return StreamBacked
	}
	return FileBacked
}

// Equal reports whether two tracks describe the same resource and metadata.
func (t *Track) Equal(o *Track) bool {
	if t == nil || o == nil {
		return t == o
	}
	if (t.Duration == nil) != (o.Duration == nil) {
		return false
	}
	if t.Duration != nil && *t.Duration != *o.Duration {
		return false
	}
	return t.URL == o.URL &&
		t.Title == o.Title &&
		t.Artist == o.Artist &&
		t.Album == o.Album &&
		t.Description == o.Description &&
		t.Artwork == o.Artwork &&
		t.IsLive == o.IsLive &&
		t.UseSpatialAudio == o.UseSpatialAudio
}

// Location is a parsed track URL.
type Location struct {
	Scheme string // "file", "http", "https" or "minio"
	Path   string // local path for file URLs, object key for minio
	Bucket string // minio only
	Raw    string
}

// Validate rejects tracks whose URL cannot be loaded.
func (t *Track) Validate() error {
	if t == nil {
		return ErrEmptyURL
	}
	_, err := ParseLocation(t.URL)
	return err
}

// IsRemote reports whether the resource needs to be fetched before file playback.
func (l Location) IsRemote() bool {
	return l.Scheme != "file"
}

// ParseLocation validates a track URL. Bare paths are treated as local files.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, ErrEmptyURL
	}
	if !strings.Contains(raw, "://") {
		return Location{Scheme: "file", Path: raw, Raw: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return Location{}, fmt.Errorf("%w: file url without path", ErrInvalidURL)
		}
		return Location{Scheme: "file", Path: p, Raw: raw}, nil
	case "http", "https":
		if u.Host == "" {
			return Location{}, fmt.Errorf("%w: missing host", ErrInvalidURL)
		}
		return Location{Scheme: strings.ToLower(u.Scheme), Path: u.Path, Raw: raw}, nil
	case "minio", "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("%w: object url needs bucket and key", ErrInvalidURL)
		}
		return Location{Scheme: "minio", Bucket: u.Host, Path: key, Raw: raw}, nil
	default:
		return Location{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
}

// TrackMetadata is the host supplied override for the now playing display.
type TrackMetadata struct {
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	ArtworkURI string   `json:"artworkUri,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
}

const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
)

// WithDefaults fills missing title and artist.
func (m TrackMetadata) WithDefaults() TrackMetadata {
	if m.Title == "" {
		m.Title = UnknownTitle
	}
	if m.Artist == "" {
		m.Artist = UnknownArtist
	}
	return m
}
