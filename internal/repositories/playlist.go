package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/melodify/internal/models"
)

// PlaylistRepository persists [models.Playlist] rows and their ordered membership.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Save upserts the playlist row, deletes its membership and re-inserts one row per entry of
// playlist.Tracks using the slice index as position, all in one transaction.
//
// A zero Created or Updated is stamped with now.
func (r *PlaylistRepository) Save(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if playlist.Created.IsZero() {
		playlist.Created = now
	}
	if playlist.Updated.IsZero() {
		playlist.Updated = now
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO playlists (id, name, description, coverArt, created, updated)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				coverArt = excluded.coverArt,
				created = excluded.created,
				updated = excluded.updated
		`,
			playlist.ID,
			playlist.Name,
			nullString(playlist.Description),
			nullString(playlist.CoverArt),
			formatTime(playlist.Created),
			formatTime(playlist.Updated),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert playlist: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = ?`, playlist.ID); err != nil {
			return fmt.Errorf("failed to clear playlist membership: %w", err)
		}

		if len(playlist.Tracks) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare membership insert: %w", err)
		}
		defer stmt.Close()

		for position, trackID := range playlist.Tracks {
			if _, err := stmt.ExecContext(ctx, playlist.ID, trackID, position); err != nil {
				return fmt.Errorf("failed to insert track %s at position %d: %w", trackID, position, err)
			}
		}
		return nil
	})
}

// Get retrieves a playlist and its ordered track ids.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, coverArt, created, updated
		FROM playlists
		WHERE id = ?
	`, id)

	var (
		p                models.Playlist
		description, art sql.NullString
		created, updated string
	)
	err := row.Scan(&p.ID, &p.Name, &description, &art, &created, &updated)
	if isNotFound(err) {
		return nil, fmt.Errorf("playlist not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	p.Description = description.String
	p.CoverArt = art.String
	if p.Created, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("invalid created for %s: %w", p.ID, err)
	}
	if p.Updated, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("invalid updated for %s: %w", p.ID, err)
	}

	if p.Tracks, err = trackIDs(ctx, r.db, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every playlist, most recently updated first, with track ids ordered by position.
func (r *PlaylistRepository) List(ctx context.Context) ([]models.Playlist, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.coverArt, p.created, p.updated, pt.track_id
		FROM playlists p
		LEFT JOIN playlist_tracks pt ON pt.playlist_id = p.id
		ORDER BY p.updated DESC, p.rowid DESC, pt.position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []models.Playlist{}
	for rows.Next() {
		var (
			id, name         string
			description, art sql.NullString
			created, updated string
			trackID          sql.NullString
		)
		if err := rows.Scan(&id, &name, &description, &art, &created, &updated, &trackID); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}

		if n := len(playlists); n == 0 || playlists[n-1].ID != id {
			p := models.Playlist{ID: id, Name: name, Description: description.String, CoverArt: art.String, Tracks: []string{}}
			if p.Created, err = parseTime(created); err != nil {
				return nil, fmt.Errorf("invalid created for %s: %w", id, err)
			}
			if p.Updated, err = parseTime(updated); err != nil {
				return nil, fmt.Errorf("invalid updated for %s: %w", id, err)
			}
			playlists = append(playlists, p)
		}

		if trackID.Valid {
			last := &playlists[len(playlists)-1]
			last.Tracks = append(last.Tracks, trackID.String)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

// Tracks joins membership to track rows, ordered by position ascending.
func (r *PlaylistRepository) Tracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.artist, t.album, t.duration, t.artwork, t.url, t.format, t.isLocal,
			t.source, t.metadata, t.isLiked, t.dateAdded, t.lastPlayed
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	return collectTracks(rows)
}

// Delete removes a playlist and its membership rows in one transaction.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete playlist membership: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete playlist: %w", err)
		}
		return nil
	})
}

func trackIDs(ctx context.Context, q querier, playlistID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT track_id FROM playlist_tracks WHERE playlist_id = ? ORDER BY position ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist membership: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
