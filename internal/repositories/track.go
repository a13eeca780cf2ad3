package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/melodify/internal/models"
)

const trackColumns = `id, title, artist, album, duration, artwork, url, format, isLocal, source, metadata, isLiked, dateAdded, lastPlayed`

// TrackRepository persists [models.Track] rows.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Save upserts a track by id, overwriting every column. A zero DateAdded is stamped with now.
//
// The row is updated in place so membership rows referencing it survive.
func (r *TrackRepository) Save(ctx context.Context, track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if track.DateAdded.IsZero() {
		track.DateAdded = time.Now()
	}
	if track.Source == "" {
		track.Source = models.SourceLocal
	}

	var metadata sql.NullString
	if len(track.Metadata) > 0 {
		b, err := json.Marshal(track.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	var duration sql.NullFloat64
	if track.Duration != nil {
		duration = sql.NullFloat64{Float64: *track.Duration, Valid: true}
	}

	query := `
		INSERT INTO tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			duration = excluded.duration,
			artwork = excluded.artwork,
			url = excluded.url,
			format = excluded.format,
			isLocal = excluded.isLocal,
			source = excluded.source,
			metadata = excluded.metadata,
			isLiked = excluded.isLiked,
			dateAdded = excluded.dateAdded,
			lastPlayed = excluded.lastPlayed
	`

	_, err := r.db.ExecContext(ctx, query,
		track.ID,
		track.Title,
		track.Artist,
		nullString(track.Album),
		duration,
		nullString(track.Artwork),
		track.URL,
		string(track.Format),
		boolInt(track.IsLocal),
		string(track.Source),
		metadata,
		boolInt(track.IsLiked),
		formatTime(track.DateAdded),
		nullTime(track.LastPlayed),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}
	return nil
}

// Get retrieves a track by ID.
func (r *TrackRepository) Get(ctx context.Context, id string) (*models.Track, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	track, err := scanTrack(row)
	if err != nil {
		return nil, err
	}
	return &track, nil
}

// List returns every track, newest first.
//
// Supported criteria: "source" (string), "format" (string), "liked" (bool), "local" (bool),
// "query" (string, title/artist/album substring).
func (r *TrackRepository) List(ctx context.Context, criteria map[string]any) ([]models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE 1 = 1`
	args := []any{}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	if format, ok := criteria["format"].(string); ok && format != "" {
		query += " AND format = ?"
		args = append(args, format)
	}

	if liked, ok := criteria["liked"].(bool); ok && liked {
		query += " AND isLiked = 1"
	}

	if local, ok := criteria["local"].(bool); ok {
		query += " AND isLocal = ?"
		args = append(args, boolInt(local))
	}

	if q, ok := criteria["query"].(string); ok && q != "" {
		query += " AND (title LIKE ? OR artist LIKE ? OR album LIKE ?)"
		like := "%" + q + "%"
		args = append(args, like, like, like)
	}

	query += " ORDER BY dateAdded DESC, rowid DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	return collectTracks(rows)
}

// SetLiked flips the liked flag without touching other columns.
func (r *TrackRepository) SetLiked(ctx context.Context, id string, liked bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tracks SET isLiked = ? WHERE id = ?`, boolInt(liked), id)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found: %s", id)
	}
	return nil
}

// Delete removes a track and every membership row referencing it in one transaction.
func (r *TrackRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE track_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete track membership: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete track: %w", err)
		}
		return nil
	})
}

func collectTracks(rows *sql.Rows) ([]models.Track, error) {
	tracks := []models.Track{}
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// scanTrack scans the columns listed in trackColumns into a [models.Track].
func scanTrack(row rowScanner) (models.Track, error) {
	var (
		track      models.Track
		album      sql.NullString
		duration   sql.NullFloat64
		artwork    sql.NullString
		format     string
		isLocal    int
		source     string
		metadata   sql.NullString
		isLiked    int
		dateAdded  string
		lastPlayed sql.NullString
	)

	err := row.Scan(&track.ID, &track.Title, &track.Artist, &album, &duration, &artwork, &track.URL,
		&format, &isLocal, &source, &metadata, &isLiked, &dateAdded, &lastPlayed)
	if isNotFound(err) {
		return track, fmt.Errorf("track not found: %w", err)
	}
	if err != nil {
		return track, fmt.Errorf("failed to scan track: %w", err)
	}

	track.Album = album.String
	track.Artwork = artwork.String
	track.Format = models.AudioFormat(format)
	track.IsLocal = isLocal != 0
	track.Source = models.Source(source)
	track.IsLiked = isLiked != 0

	if duration.Valid {
		track.Duration = models.Seconds(duration.Float64)
	}

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &track.Metadata); err != nil {
			return track, fmt.Errorf("failed to decode metadata for %s: %w", track.ID, err)
		}
	}

	if track.DateAdded, err = parseTime(dateAdded); err != nil {
		return track, fmt.Errorf("invalid dateAdded for %s: %w", track.ID, err)
	}

	if lastPlayed.Valid {
		lp, err := parseTime(lastPlayed.String)
		if err != nil {
			return track, fmt.Errorf("invalid lastPlayed for %s: %w", track.ID, err)
		}
		track.LastPlayed = &lp
	}

	return track, nil
}
