package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
	th "github.com/desertthunder/melodify/internal/testing"
)

func sampleExport() *models.PlaylistExport {
	return &models.PlaylistExport{
		Playlist: models.Playlist{
			ID:          "test123",
			Name:        "Test Playlist",
			Description: "A test playlist",
			CoverArt:    "https://example.com/cover.jpg",
			Tracks:      []string{"track1", "track2"},
			Updated:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		Tracks: []models.Track{
			{
				ID:       "track1",
				Title:    "Song One",
				Artist:   "Artist One",
				Album:    "Album One",
				Duration: models.Seconds(180),
				URL:      "/music/one.mp3",
				Format:   models.FormatMP3,
				Source:   models.SourceLocal,
				IsLiked:  true,
			},
			{
				ID:     "audius-2",
				Title:  "Song, Two",
				Artist: "Artist Two",
				URL:    "https://host/v1/tracks/2/stream",
				Format: models.FormatStreaming,
				Source: models.SourceAudius,
			},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "ID,Title,Artist,Album,Duration,Format,Source,URL" {
			t.Errorf("unexpected headers: %s", lines[0])
		}
		if lines[1] != "track1,Song One,Artist One,Album One,180,mp3,local,/music/one.mp3" {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if !strings.Contains(lines[2], `"Song, Two"`) || !strings.Contains(lines[2], "Artist Two,,,streaming") {
			t.Errorf("expected quoted title and empty album/duration, got: %s", lines[2])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleExport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Test Playlist",
			"![Cover](https://example.com/cover.jpg)",
			"**Description**: A test playlist",
			"**Tracks**: 2",
			"**Length**: 3:00",
			"**Updated**: 2024-05-01",
			"1. Artist One - Song One (Album One) [3:00] ♥",
			"2. Artist Two - Song, Two [--:--]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown without cover", func(t *testing.T) {
		export := sampleExport()
		export.Playlist.CoverArt = ""
		data, _ := ExportToMarkdown(export)
		if strings.Contains(string(data), "![Cover]") {
			t.Error("expected no cover line")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Playlist: Test Playlist", "Description: A test playlist", "Tracks: 2", "2. Artist Two - Song, Two"} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("Export dispatch", func(t *testing.T) {
		for _, format := range []string{"csv", "md", "markdown", "TXT", "text"} {
			if _, err := Export(sampleExport(), format); err != nil {
				t.Errorf("Export(%q) error = %v", format, err)
			}
		}
		if _, err := Export(sampleExport(), "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(sampleExport().Playlist)
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}
		if !strings.Contains(string(data), `"name": "Test Playlist"`) {
			t.Errorf("unexpected metadata %s", data)
		}
	})
}

func TestWriteExport(t *testing.T) {
	t.Run("WithCustomPath", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "exports", "road")

		result, err := WriteExport(sampleExport(), "markdown", base)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if result.TracksFile != base+"_tracks.md" {
			t.Errorf("unexpected tracks file %s", result.TracksFile)
		}

		th.AssertFileExists(t, result.TracksFile)
		th.AssertFileExists(t, result.MetadataFile)

		if content := th.MustReadFile(t, result.TracksFile); !strings.Contains(content, "# Test Playlist") {
			t.Errorf("unexpected markdown content: %s", content)
		}
		if content := th.MustReadFile(t, result.MetadataFile); !strings.Contains(content, "test123") {
			t.Errorf("unexpected metadata content: %s", content)
		}
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "road")
		if _, err := WriteExport(sampleExport(), "xml", base); err == nil {
			t.Fatal("expected error for unknown format")
		}
	})
}
