package models

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// AudioFormat is the encoding tag of a playable locator.
type AudioFormat string

const (
	FormatMP3       AudioFormat = "mp3"
	FormatAAC       AudioFormat = "aac"
	FormatWAV       AudioFormat = "wav"
	FormatOGG       AudioFormat = "ogg"
	FormatFLAC      AudioFormat = "flac"
	FormatOpus      AudioFormat = "opus"
	FormatStreaming AudioFormat = "streaming" // resolved by a remote catalog
)

// Formats lists every known [AudioFormat].
var Formats = []AudioFormat{FormatMP3, FormatAAC, FormatWAV, FormatOGG, FormatFLAC, FormatOpus, FormatStreaming}

// Valid reports whether f is one of [Formats].
func (f AudioFormat) Valid() bool {
	return slices.Contains(Formats, f)
}

// FormatFromPath infers an [AudioFormat] from a file extension.
func FormatFromPath(path string) (AudioFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return FormatMP3, true
	case ".m4a", ".aac":
		return FormatAAC, true
	case ".wav":
		return FormatWAV, true
	case ".ogg", ".oga":
		return FormatOGG, true
	case ".flac":
		return FormatFLAC, true
	case ".opus":
		return FormatOpus, true
	default:
		return "", false
	}
}

// Source identifies where a track came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceAudius Source = "audius"
)

// Settings keys persisted in the settings table.
const (
	SettingRecentlyPlayed    = "recently_played"
	SettingAudioQuality      = "audio_quality"
	SettingCrossfadeDuration = "crossfade_duration"
	SettingEqualizerEnabled  = "equalizer_enabled"
	SettingCacheClearedDate  = "cache_cleared_date"
	SettingAppTheme          = "app_theme"
	SettingVolume            = "volume"
)

// Track is a single playable audio item, local or remote. Identity is ID.
type Track struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Artist     string         `json:"artist"`
	Album      string         `json:"album,omitempty"`
	Duration   *float64       `json:"duration,omitempty"` // seconds, nil until known
	Artwork    string         `json:"artwork,omitempty"`
	URL        string         `json:"url"`
	Format     AudioFormat    `json:"format"`
	IsLocal    bool           `json:"isLocal"`
	Source     Source         `json:"source,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IsLiked    bool           `json:"isLiked"`
	DateAdded  time.Time      `json:"dateAdded"`
	LastPlayed *time.Time     `json:"lastPlayed,omitempty"`
}

// Validate checks the fields the library store requires.
func (t Track) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("track id is required")
	case t.Title == "":
		return fmt.Errorf("track %s: title is required", t.ID)
	case t.Artist == "":
		return fmt.Errorf("track %s: artist is required", t.ID)
	case t.URL == "":
		return fmt.Errorf("track %s: url is required", t.ID)
	case !t.Format.Valid():
		return fmt.Errorf("track %s: unknown format %q", t.ID, t.Format)
	}
	return nil
}

// DurationSeconds returns the known duration or 0.
func (t Track) DurationSeconds() float64 {
	if t.Duration == nil {
		return 0
	}
	return *t.Duration
}

// Clone returns a deep copy that shares no pointers or maps with t.
func (t Track) Clone() Track {
	c := t
	if t.Duration != nil {
		d := *t.Duration
		c.Duration = &d
	}
	if t.LastPlayed != nil {
		lp := *t.LastPlayed
		c.LastPlayed = &lp
	}
	if t.Metadata != nil {
		c.Metadata = maps.Clone(t.Metadata)
	}
	return c
}

// CloneTracks deep-copies a slice of tracks.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}

// Seconds returns a pointer to s, for optional durations.
func Seconds(s float64) *float64 {
	return &s
}

// TrackUpdate is a partial update reported by a metadata extractor.
// Nil or empty fields leave the stored value unchanged.
type TrackUpdate struct {
	ID       string
	Title    string
	Artist   string
	Album    string
	Duration *float64
	Artwork  string
	Tags     map[string]any
}

// Apply merges u into t and reports whether anything changed.
func (u TrackUpdate) Apply(t *Track) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&t.Title, u.Title)
	set(&t.Artist, u.Artist)
	set(&t.Album, u.Album)
	set(&t.Artwork, u.Artwork)

	if u.Duration != nil && *u.Duration > 0 && (t.Duration == nil || *t.Duration != *u.Duration) {
		t.Duration = Seconds(*u.Duration)
		changed = true
	}

	if len(u.Tags) > 0 {
		if t.Metadata == nil {
			t.Metadata = make(map[string]any, len(u.Tags))
		}
		for k, v := range u.Tags {
			t.Metadata[k] = v
		}
		changed = true
	}
	return changed
}

// Playlist is a named, ordered collection of track ids.
type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CoverArt    string    `json:"coverArt,omitempty"`
	Tracks      []string  `json:"tracks"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// Validate checks the fields the library store requires.
func (p Playlist) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("playlist id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("playlist %s: name is required", p.ID)
	}
	return nil
}

// Contains reports whether the playlist references trackID.
func (p Playlist) Contains(trackID string) bool {
	return slices.Contains(p.Tracks, trackID)
}

// PlaylistExport is a playlist with its resolved tracks, used by exporters.
type PlaylistExport struct {
	Playlist Playlist
	Tracks   []Track
}
