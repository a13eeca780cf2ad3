package repositories

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), StoreOpts{Path: ":memory:", Logger: shared.NewLogger(io.Discard)})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("repeated SaveTrack keeps one record with last values", func(t *testing.T) {
		s := setupTestStore(t)

		for i, title := range []string{"First", "Second", "Third"} {
			track := newTrack("same", base)
			track.Title = title
			track.IsLiked = i%2 == 0
			if !s.SaveTrack(ctx, track) {
				t.Fatalf("save %d failed: %v", i, s.LastError())
			}
		}

		all := s.GetAllTracks(ctx)
		if len(all) != 1 {
			t.Fatalf("expected exactly one track, got %d", len(all))
		}
		if all[0].Title != "Third" || !all[0].IsLiked {
			t.Errorf("expected last-written values, got %+v", all[0])
		}
	})

	t.Run("SavePlaylist round trip", func(t *testing.T) {
		s := setupTestStore(t)
		for i, id := range []string{"a", "b", "c", "d"} {
			s.SaveTrack(ctx, newTrack(id, base.Add(time.Duration(i)*time.Second)))
		}

		p := models.Playlist{ID: "p", Name: "Road", Tracks: []string{"d", "b", "a", "c"}}
		if !s.SavePlaylist(ctx, p) {
			t.Fatalf("save failed: %v", s.LastError())
		}

		tracks := s.GetPlaylistTracks(ctx, "p")
		if len(tracks) != len(p.Tracks) {
			t.Fatalf("expected %d tracks, got %d", len(p.Tracks), len(tracks))
		}
		for i, id := range p.Tracks {
			if tracks[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, tracks[i].ID)
			}
		}
	})

	t.Run("SavePlaylist is atomic when membership insert fails", func(t *testing.T) {
		s := setupTestStore(t)
		for _, id := range []string{"a", "b", "c"} {
			s.SaveTrack(ctx, newTrack(id, base))
		}

		original := models.Playlist{ID: "p", Name: "Before", Tracks: []string{"a", "b"}, Updated: base}
		if !s.SavePlaylist(ctx, original) {
			t.Fatalf("initial save failed: %v", s.LastError())
		}

		broken := models.Playlist{ID: "p", Name: "After", Tracks: []string{"c", "a", "c"}, Updated: base.Add(time.Hour)}
		if s.SavePlaylist(ctx, broken) {
			t.Fatal("expected duplicate membership to fail the save")
		}
		if !errors.Is(s.LastError(), shared.ErrTransactionAborted) {
			t.Errorf("expected ErrTransactionAborted, got %v", s.LastError())
		}

		playlists := s.GetAllPlaylists(ctx)
		if len(playlists) != 1 {
			t.Fatalf("expected one playlist, got %d", len(playlists))
		}
		got := playlists[0]
		if got.Name != "Before" {
			t.Errorf("expected playlist row to be rolled back, got name %q", got.Name)
		}
		if len(got.Tracks) != 2 || got.Tracks[0] != "a" || got.Tracks[1] != "b" {
			t.Errorf("expected membership [a b], got %v", got.Tracks)
		}
	})

	t.Run("SavePlaylist rejects unknown track ids", func(t *testing.T) {
		s := setupTestStore(t)
		s.SaveTrack(ctx, newTrack("a", base))

		if s.SavePlaylist(ctx, models.Playlist{ID: "p", Name: "Ghost", Tracks: []string{"a", "ghost"}}) {
			t.Fatal("expected foreign key failure")
		}
		if len(s.GetAllPlaylists(ctx)) != 0 {
			t.Error("expected no playlist after rolled back insert")
		}
	})

	t.Run("DeleteTrack removes membership", func(t *testing.T) {
		s := setupTestStore(t)
		for _, id := range []string{"a", "b", "c"} {
			s.SaveTrack(ctx, newTrack(id, base))
		}
		s.SavePlaylist(ctx, models.Playlist{ID: "p", Name: "Mix", Tracks: []string{"a", "b", "c"}})

		if !s.DeleteTrack(ctx, "b") {
			t.Fatalf("delete failed: %v", s.LastError())
		}

		if _, ok := s.GetTrack(ctx, "b"); ok {
			t.Error("expected track b to be gone")
		}

		p, ok := s.GetPlaylist(ctx, "p")
		if !ok {
			t.Fatal("expected playlist to remain")
		}
		if len(p.Tracks) != 2 || p.Tracks[0] != "a" || p.Tracks[1] != "c" {
			t.Errorf("expected [a c], got %v", p.Tracks)
		}
	})

	t.Run("DeletePlaylist keeps tracks", func(t *testing.T) {
		s := setupTestStore(t)
		s.SaveTrack(ctx, newTrack("a", base))
		s.SavePlaylist(ctx, models.Playlist{ID: "p", Name: "Mix", Tracks: []string{"a"}})

		if !s.DeletePlaylist(ctx, "p") {
			t.Fatalf("delete failed: %v", s.LastError())
		}
		if len(s.GetAllPlaylists(ctx)) != 0 {
			t.Error("expected no playlists")
		}
		if len(s.GetPlaylistTracks(ctx, "p")) != 0 {
			t.Error("expected no membership")
		}
		if len(s.GetAllTracks(ctx)) != 1 {
			t.Error("expected track to survive playlist deletion")
		}
	})

	t.Run("Settings upsert", func(t *testing.T) {
		s := setupTestStore(t)

		if _, ok := s.GetItem(ctx, models.SettingAppTheme); ok {
			t.Fatal("expected missing key")
		}

		s.SetItem(ctx, models.SettingAppTheme, "light")
		s.SetItem(ctx, models.SettingAppTheme, "dark")

		v, ok := s.GetItem(ctx, models.SettingAppTheme)
		if !ok || v != "dark" {
			t.Errorf("expected dark, got %q (found=%v)", v, ok)
		}

		if all := s.Settings(ctx); len(all) != 1 {
			t.Errorf("expected one setting, got %v", all)
		}
	})

	t.Run("LikeTrack", func(t *testing.T) {
		s := setupTestStore(t)
		s.SaveTrack(ctx, newTrack("a", base))

		if !s.LikeTrack(ctx, "a", true) {
			t.Fatalf("like failed: %v", s.LastError())
		}
		if liked := s.FindTracks(ctx, map[string]any{"liked": true}); len(liked) != 1 {
			t.Errorf("expected one liked track, got %d", len(liked))
		}
		if s.LikeTrack(ctx, "missing", true) {
			t.Error("expected like of missing track to fail")
		}
	})

	t.Run("concurrent transactions are serialized", func(t *testing.T) {
		s := setupTestStore(t)
		for _, id := range []string{"a", "b", "c"} {
			s.SaveTrack(ctx, newTrack(id, base))
		}

		var wg sync.WaitGroup
		orders := [][]string{{"a", "b", "c"}, {"c", "b", "a"}, {"b", "a", "c"}}
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s.SavePlaylist(ctx, models.Playlist{ID: "p", Name: "Mix", Tracks: orders[i%len(orders)]})
			}(i)
		}
		wg.Wait()

		p, ok := s.GetPlaylist(ctx, "p")
		if !ok {
			t.Fatal("expected playlist")
		}
		if len(p.Tracks) != 3 {
			t.Errorf("expected exactly 3 members after concurrent saves, got %v", p.Tracks)
		}
	})
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	quiet := shared.NewLogger(io.Discard)

	t.Run("operations before Init report unavailable", func(t *testing.T) {
		s := NewStore(StoreOpts{Logger: quiet})

		if s.SaveTrack(ctx, newTrack("a", time.Now())) {
			t.Error("expected save to fail before init")
		}
		if got := s.GetAllTracks(ctx); len(got) != 0 {
			t.Error("expected empty result before init")
		}
		if !errors.Is(s.LastError(), shared.ErrStoreUnavailable) {
			t.Errorf("expected ErrStoreUnavailable, got %v", s.LastError())
		}
	})

	t.Run("Init failure is retryable and Close is safe", func(t *testing.T) {
		dir := t.TempDir()
		s := NewStore(StoreOpts{Path: dir, Logger: quiet})

		err := s.Init(ctx)
		if !errors.Is(err, shared.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable opening a directory, got %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("close after failed init: %v", err)
		}

		s.path = filepath.Join(dir, "library.db")
		if err := s.Init(ctx); err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if !s.SetItem(ctx, "k", "v") {
			t.Error("expected store to work after retry")
		}
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		s, err := Open(ctx, StoreOpts{Path: filepath.Join(t.TempDir(), "lib.db"), Logger: quiet, MaxOpenConns: 2})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("first close: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("second close: %v", err)
		}
		if s.SetItem(ctx, "k", "v") {
			t.Error("expected writes to fail after close")
		}
		if !errors.Is(s.LastError(), shared.ErrStoreClosed) {
			t.Errorf("expected ErrStoreClosed, got %v", s.LastError())
		}
	})

	t.Run("data survives reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lib.db")
		s, err := Open(ctx, StoreOpts{Path: path, Logger: quiet})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		s.SaveTrack(ctx, newTrack("a", time.Now()))
		s.Close()

		s, err = Open(ctx, StoreOpts{Path: path, Logger: quiet})
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		defer s.Close()
		if len(s.GetAllTracks(ctx)) != 1 {
			t.Error("expected track to persist across reopen")
		}
	})
}
