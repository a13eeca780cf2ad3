package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func newTrack(id string, added time.Time) models.Track {
	return models.Track{
		ID:        id,
		Title:     "Title " + id,
		Artist:    "Artist " + id,
		URL:       "/music/" + id + ".mp3",
		Format:    models.FormatMP3,
		IsLocal:   true,
		Source:    models.SourceLocal,
		DateAdded: added,
	}
}

func TestTrackRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Save and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		played := base.Add(time.Hour)
		track := newTrack("a", base)
		track.Album = "Album"
		track.Duration = models.Seconds(183.5)
		track.LastPlayed = &played
		track.Metadata = map[string]any{"genre": "Electronic", "play_count": float64(12)}

		if err := repo.Save(ctx, &track); err != nil {
			t.Fatalf("failed to save track: %v", err)
		}

		got, err := repo.Get(ctx, "a")
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}

		if got.Album != "Album" {
			t.Errorf("expected album Album, got %q", got.Album)
		}
		if got.DurationSeconds() != 183.5 {
			t.Errorf("expected duration 183.5, got %v", got.DurationSeconds())
		}
		if got.LastPlayed == nil || !got.LastPlayed.Equal(played) {
			t.Errorf("expected lastPlayed %v, got %v", played, got.LastPlayed)
		}
		if !got.DateAdded.Equal(base) {
			t.Errorf("expected dateAdded %v, got %v", base, got.DateAdded)
		}
		if got.Metadata["genre"] != "Electronic" {
			t.Errorf("expected metadata genre Electronic, got %v", got.Metadata["genre"])
		}
		if !got.IsLocal {
			t.Error("expected isLocal to round-trip")
		}
	})

	t.Run("Save rejects invalid track", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		track := newTrack("a", base)
		track.Format = "midi"
		if err := NewTrackRepository(db).Save(ctx, &track); err == nil {
			t.Fatal("expected validation error for unknown format")
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, err := NewTrackRepository(db).Get(ctx, "missing")
		if !errors.Is(err, sql.ErrNoRows) {
			t.Fatalf("expected sql.ErrNoRows, got %v", err)
		}
	})

	t.Run("List newest first with criteria", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		for i, id := range []string{"old", "mid", "new"} {
			track := newTrack(id, base.Add(time.Duration(i)*time.Minute))
			track.IsLiked = id == "mid"
			if err := repo.Save(ctx, &track); err != nil {
				t.Fatalf("failed to save %s: %v", id, err)
			}
		}

		all, err := repo.List(ctx, nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		want := []string{"new", "mid", "old"}
		for i, id := range want {
			if all[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, all[i].ID)
			}
		}

		liked, err := repo.List(ctx, map[string]any{"liked": true})
		if err != nil {
			t.Fatalf("failed to list liked: %v", err)
		}
		if len(liked) != 1 || liked[0].ID != "mid" {
			t.Errorf("expected only mid to be liked, got %v", liked)
		}

		matched, err := repo.List(ctx, map[string]any{"query": "Title o"})
		if err != nil {
			t.Fatalf("failed to search: %v", err)
		}
		if len(matched) != 1 || matched[0].ID != "old" {
			t.Errorf("expected query to match old, got %v", matched)
		}

		remote := newTrack("remote", base.Add(time.Hour))
		remote.IsLocal = false
		remote.Format = models.FormatStreaming
		remote.Source = models.SourceAudius
		if err := repo.Save(ctx, &remote); err != nil {
			t.Fatalf("failed to save remote: %v", err)
		}

		local, _ := repo.List(ctx, map[string]any{"local": true})
		if len(local) != 3 {
			t.Errorf("expected 3 local tracks, got %d", len(local))
		}
		streaming, _ := repo.List(ctx, map[string]any{"format": "streaming", "local": false})
		if len(streaming) != 1 || streaming[0].ID != "remote" {
			t.Errorf("expected only remote, got %v", streaming)
		}
	})

	t.Run("SetLiked", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := newTrack("a", base)
		if err := repo.Save(ctx, &track); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		if err := repo.SetLiked(ctx, "a", true); err != nil {
			t.Fatalf("failed to like: %v", err)
		}
		got, _ := repo.Get(ctx, "a")
		if !got.IsLiked {
			t.Error("expected track to be liked")
		}

		if err := repo.SetLiked(ctx, "missing", true); err == nil {
			t.Error("expected error for missing track")
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, db *sql.DB, ids ...string) {
		t.Helper()
		repo := NewTrackRepository(db)
		for i, id := range ids {
			track := newTrack(id, base.Add(time.Duration(i)*time.Second))
			if err := repo.Save(ctx, &track); err != nil {
				t.Fatalf("failed to seed %s: %v", id, err)
			}
		}
	}

	t.Run("Save and Tracks preserves order", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		seed(t, db, "a", "b", "c")

		repo := NewPlaylistRepository(db)
		p := models.Playlist{ID: "p1", Name: "Mix", Tracks: []string{"c", "a", "b"}}
		if err := repo.Save(ctx, &p); err != nil {
			t.Fatalf("failed to save playlist: %v", err)
		}

		tracks, err := repo.Tracks(ctx, "p1")
		if err != nil {
			t.Fatalf("failed to get tracks: %v", err)
		}
		if len(tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(tracks))
		}
		for i, id := range p.Tracks {
			if tracks[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, tracks[i].ID)
			}
		}

		got, err := repo.Get(ctx, "p1")
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if got.Name != "Mix" || len(got.Tracks) != 3 || got.Tracks[0] != "c" {
			t.Errorf("unexpected playlist %+v", got)
		}
	})

	t.Run("Save with empty tracks clears membership", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		seed(t, db, "a")

		repo := NewPlaylistRepository(db)
		p := models.Playlist{ID: "p1", Name: "Mix", Tracks: []string{"a"}}
		if err := repo.Save(ctx, &p); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		p.Tracks = nil
		if err := repo.Save(ctx, &p); err != nil {
			t.Fatalf("failed to save empty: %v", err)
		}

		tracks, _ := repo.Tracks(ctx, "p1")
		if len(tracks) != 0 {
			t.Errorf("expected no tracks, got %d", len(tracks))
		}
	})

	t.Run("List orders by updated descending", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		seed(t, db, "a", "b")

		repo := NewPlaylistRepository(db)
		older := models.Playlist{ID: "older", Name: "Older", Tracks: []string{"b", "a"}, Updated: base}
		newer := models.Playlist{ID: "newer", Name: "Newer", Updated: base.Add(time.Hour)}
		for _, p := range []*models.Playlist{&older, &newer} {
			if err := repo.Save(ctx, p); err != nil {
				t.Fatalf("failed to save %s: %v", p.ID, err)
			}
		}

		playlists, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].ID != "newer" || playlists[1].ID != "older" {
			t.Errorf("unexpected order: %s, %s", playlists[0].ID, playlists[1].ID)
		}
		if len(playlists[0].Tracks) != 0 {
			t.Errorf("expected empty track list for newer, got %v", playlists[0].Tracks)
		}
		if got := playlists[1].Tracks; len(got) != 2 || got[0] != "b" || got[1] != "a" {
			t.Errorf("expected [b a], got %v", got)
		}
	})

	t.Run("Delete removes membership", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		seed(t, db, "a")

		repo := NewPlaylistRepository(db)
		p := models.Playlist{ID: "p1", Name: "Mix", Tracks: []string{"a"}}
		if err := repo.Save(ctx, &p); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := repo.Delete(ctx, "p1"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM playlist_tracks").Scan(&count); err != nil {
			t.Fatalf("failed to count membership: %v", err)
		}
		if count != 0 {
			t.Errorf("expected membership to be removed, got %d rows", count)
		}
	})
}
