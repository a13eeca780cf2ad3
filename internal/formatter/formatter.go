// package formatter exports playlists to CSV, Markdown and plain text, and writes them to disk.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
)

// Format names accepted by [Export] and [WriteExport].
const (
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatText     = "txt"
)

// Formats lists every export format.
var Formats = []string{FormatCSV, FormatMarkdown, FormatText}

// ExportToCSV converts a PlaylistExport to CSV with columns: ID, Title, Artist, Album, Duration, Format, Source, URL
func ExportToCSV(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "Format", "Source", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		duration := ""
		if track.Duration != nil {
			duration = strconv.FormatFloat(*track.Duration, 'f', -1, 64)
		}
		record := []string{
			track.ID,
			track.Title,
			track.Artist,
			track.Album,
			duration,
			string(track.Format),
			string(track.Source),
			track.URL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to Markdown with the cover art when the playlist has one
func ExportToMarkdown(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if export.Playlist.CoverArt != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", export.Playlist.CoverArt)
	}

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Length**: %s\n", shared.FormatDuration(totalSeconds(export.Tracks)))
	if !export.Playlist.Updated.IsZero() {
		fmt.Fprintf(&buf, "**Updated**: %s\n", export.Playlist.Updated.Format(time.DateOnly))
	}
	buf.WriteString("\n## Tracks\n\n")

	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		liked := ""
		if track.IsLiked {
			liked = " ♥"
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]%s\n", i+1, track.Artist, track.Title, albumPart,
			shared.FormatDuration(track.DurationSeconds()), liked)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text
func ExportToText(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Title)
	}

	return buf.Bytes(), nil
}

// Export renders export in the named format.
func Export(export *models.PlaylistExport, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown, "markdown":
		return ExportToMarkdown(export)
	case FormatText, "text":
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q (want one of %s)",
			shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without resolved tracks)
func ToMetadataJSON(playlist models.Playlist) ([]byte, error) {
	return shared.MarshalJSON(playlist, true)
}

// ExportResult contains the paths of files created by [WriteExport]
type ExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteExport writes a playlist in the named format with an accompanying metadata JSON file.
//
// Defaults to the playlist ID as the base filename & creates {base}_tracks.{ext} and {base}_metadata.json
func WriteExport(export *models.PlaylistExport, format, basePath string) (*ExportResult, error) {
	if basePath == "" {
		basePath = export.Playlist.ID
	}

	data, err := Export(export, format)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(basePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tracksFile := fmt.Sprintf("%s_tracks.%s", basePath, extension(format))
	if err := os.WriteFile(tracksFile, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export.Playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := basePath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &ExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

func extension(format string) string {
	switch strings.ToLower(format) {
	case "markdown":
		return FormatMarkdown
	case "text":
		return FormatText
	default:
		return strings.ToLower(format)
	}
}

func totalSeconds(tracks []models.Track) float64 {
	var total float64
	for _, t := range tracks {
		total += t.DurationSeconds()
	}
	return total
}
