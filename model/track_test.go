package model

import (
	"errors"
	"testing"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw     string
		scheme  string
		path    string
		bucket  string
		wantErr error
	}{
		{raw: "/music/a.mp3", scheme: "file", path: "/music/a.mp3"},
		{raw: "file:///music/b.wav", scheme: "file", path: "/music/b.wav"},
		{raw: "https://cdn.example.com/x.mp3", scheme: "https", path: "/x.mp3"},
		{raw: "minio://tracks/albums/c.flac", scheme: "minio", bucket: "tracks", path: "albums/c.flac"},
		{raw: "", wantErr: ErrEmptyURL},
		{raw: "   ", wantErr: ErrEmptyURL},
		{raw: "ftp://host/a.mp3", wantErr: ErrInvalidURL},
		{raw: "http:///nohost.mp3", wantErr: ErrInvalidURL},
		{raw: "minio://bucket-only", wantErr: ErrInvalidURL},
	}

	for _, tt := range tests {
		loc, err := ParseLocation(tt.raw)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseLocation(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLocation(%q) unexpected error: %v", tt.raw, err)
			continue
		}
		if loc.Scheme != tt.scheme || loc.Path != tt.path || loc.Bucket != tt.bucket {
			t.Errorf("ParseLocation(%q) = %+v", tt.raw, loc)
		}
	}
}

func TestTrackMode(t *testing.T) {
	if (&Track{URL: "a.mp3"}).Mode() != FileBacked {
		t.Error("plain track should be file backed")
	}
	if (&Track{URL: "a.mp3", IsLive: true}).Mode() != StreamBacked {
		t.Error("live track should be stream backed")
	}
	if (&Track{URL: "a.mp3", UseSpatialAudio: true}).Mode() != StreamBacked {
		t.Error("spatial track should be stream backed")
	}
}

func TestTrackEqual(t *testing.T) {
	d1, d2 := 10.0, 12.0
	a := &Track{URL: "a.mp3", Title: "A", Duration: &d1}
	b := &Track{URL: "a.mp3", Title: "A", Duration: &d1}
	c := &Track{URL: "a.mp3", Title: "A", Duration: &d2}

	if !a.Equal(b) {
		t.Error("identical tracks should be equal")
	}
	if a.Equal(c) {
		t.Error("different durations should not be equal")
	}
	if a.Equal(nil) {
		t.Error("track should not equal nil")
	}
}

func TestMetadataDefaults(t *testing.T) {
	m := TrackMetadata{}.WithDefaults()
	if m.Title != UnknownTitle || m.Artist != UnknownArtist {
		t.Errorf("defaults not applied: %+v", m)
	}
	m = TrackMetadata{Title: "Song", Artist: "Band"}.WithDefaults()
	if m.Title != "Song" || m.Artist != "Band" {
		t.Errorf("explicit values overwritten: %+v", m)
	}
}

func TestAmbientModeStatus(t *testing.T) {
	if got := AmbientModeStatus(true); got != "ambientMode:true" {
		t.Errorf("AmbientModeStatus(true) = %q", got)
	}
}

func TestTrackValidate(t *testing.T) {
	var nilTrack *Track
	if !errors.Is(nilTrack.Validate(), ErrEmptyURL) {
		t.Fatal("nil track should be rejected")
	}
	if err := (&Track{URL: "https://cdn.example.com/a.mp3"}).Validate(); err != nil {
		t.Fatalf("valid track rejected: %v", err)
	}
	if !errors.Is((&Track{URL: "gopher://x/y"}).Validate(), ErrInvalidURL) {
		t.Fatal("unsupported scheme accepted")
	}
}
