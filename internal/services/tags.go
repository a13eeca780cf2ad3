package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/desertthunder/melodify/internal/backend"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/dhowden/tag"
)

// TagReader is a [MetadataExtractor] for local files. Tags come from ID3, MP4, FLAC and Ogg
// headers; the duration is measured by decoding the stream header.
type TagReader struct {
	// Probe measures duration in seconds. Defaults to [backend.ProbeDuration].
	Probe func(path string) (float64, error)
}

// NewTagReader creates a TagReader with the default duration probe.
func NewTagReader() *TagReader {
	return &TagReader{Probe: backend.ProbeDuration}
}

// Extract reads the file behind locator. The update's ID is left empty for the caller to fill.
func (r *TagReader) Extract(ctx context.Context, locator string) (models.TrackUpdate, error) {
	path, err := localPath(locator)
	if err != nil {
		return models.TrackUpdate{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.TrackUpdate{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return models.TrackUpdate{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var u models.TrackUpdate
	if m, err := tag.ReadFrom(f); err == nil {
		u = fromTags(m)
	}

	if r.Probe != nil {
		if d, err := r.Probe(path); err == nil && d > 0 {
			u.Duration = models.Seconds(d)
		}
	}
	return u, nil
}

func fromTags(m tag.Metadata) models.TrackUpdate {
	u := models.TrackUpdate{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Tags:   map[string]any{},
	}
	if u.Artist == "" {
		u.Artist = strings.TrimSpace(m.AlbumArtist())
	}

	if g := m.Genre(); g != "" {
		u.Tags["genre"] = g
	}
	if y := m.Year(); y > 0 {
		u.Tags["year"] = y
	}
	if n, total := m.Track(); n > 0 {
		u.Tags["track_number"] = n
		if total > 0 {
			u.Tags["track_total"] = total
		}
	}
	if d, _ := m.Disc(); d > 0 {
		u.Tags["disc_number"] = d
	}
	if c := m.Composer(); c != "" {
		u.Tags["composer"] = c
	}
	if aa := m.AlbumArtist(); aa != "" {
		u.Tags["album_artist"] = aa
	}
	if m.Picture() != nil {
		u.Tags["has_artwork"] = true
	}
	u.Tags["tag_format"] = string(m.Format())

	return u
}

func localPath(locator string) (string, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return "", fmt.Errorf("%w: remote locator %s", shared.ErrInvalidInput, locator)
	}
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return "", err
		}
		return u.Path, nil
	}
	return locator, nil
}
