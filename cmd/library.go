package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/melodify/internal/formatter"
	"github.com/desertthunder/melodify/internal/history"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/repositories"
	"github.com/desertthunder/melodify/internal/services"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/urfave/cli/v3"
)

// requireArgs returns the positional arguments, failing when fewer than n were given.
func requireArgs(cmd *cli.Command, n int) ([]string, error) {
	args := cmd.Args().Slice()
	if len(args) < n {
		return nil, fmt.Errorf("%w: usage: %s %s", shared.ErrMissingArgument, cmd.FullName(), cmd.ArgsUsage)
	}
	return args, nil
}

// ListTracks prints library tracks matching the filter flags.
func (r *Runner) ListTracks(ctx context.Context, cmd *cli.Command) error {
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	for _, key := range []string{"query", "source", "format"} {
		if v := cmd.String(key); v != "" {
			criteria[key] = v
		}
	}
	if cmd.IsSet("liked") {
		criteria["liked"] = cmd.Bool("liked")
	}

	tracks := store.FindTracks(ctx, criteria)
	if limit := cmd.Int("limit"); limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Tracks (%d)", len(tracks)))
	for i, t := range tracks {
		if err := r.writeTrack(i+1, t); err != nil {
			return err
		}
	}
	return nil
}

// ShowTrack prints a single track.
func (r *Runner) ShowTrack(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	track, ok := store.GetTrack(ctx, args[0])
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, args[0])
	}
	if cmd.Bool("json") {
		return r.writeJSON(track, cmd.Bool("pretty"))
	}

	r.writePlainHeader(track.Title)
	r.writePlain("ID:       %s\n", track.ID)
	r.writePlain("Artist:   %s\n", track.Artist)
	if track.Album != "" {
		r.writePlain("Album:    %s\n", track.Album)
	}
	r.writePlain("Duration: %s\n", shared.FormatDuration(track.DurationSeconds()))
	r.writePlain("Format:   %s\n", track.Format)
	r.writePlain("Source:   %s\n", track.Source)
	r.writePlain("URL:      %s\n", track.URL)
	r.writePlain("Liked:    %t\n", track.IsLiked)
	r.writePlain("Added:    %s\n", track.DateAdded.Format(time.DateTime))
	if track.LastPlayed != nil {
		r.writePlain("Played:   %s\n", track.LastPlayed.Format(time.DateTime))
	}
	if len(track.Metadata) > 0 {
		keys := make([]string, 0, len(track.Metadata))
		for k := range track.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			r.writePlain("  %s: %v\n", k, track.Metadata[k])
		}
	}
	return nil
}

// AddTrack imports a local file, or fetches a catalog track by id, into the library.
func (r *Runner) AddTrack(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	ref := args[0]

	if _, statErr := os.Stat(ref); statErr == nil {
		scanner, err := r.scanner(ctx, 1)
		if err != nil {
			return err
		}
		result := scanner.ImportFile(ctx, ref)
		if result.Err != nil {
			return result.Err
		}
		return r.writePlain("Imported %s - %s (%s)\n", result.Track.Artist, result.Track.Title, result.Track.ID)
	}

	store, err := r.library(ctx)
	if err != nil {
		return err
	}
	track, err := r.catalogClient().GetTrack(ctx, ref)
	if services.IsNotFound(err) {
		return fmt.Errorf("%w: no file or catalog track matches %s", shared.ErrTrackNotFound, ref)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", ref, err)
	}
	if _, err := saveTracks(ctx, store, []models.Track{*track}); err != nil {
		return err
	}
	return r.writePlain("Added %s - %s (%s)\n", track.Artist, track.Title, track.ID)
}

// saveTracks upserts remote tracks, keeping the liked flag and timestamps of tracks already in
// the library. It returns how many tracks were new.
func saveTracks(ctx context.Context, store *repositories.Store, tracks []models.Track) (int, error) {
	created := 0
	for _, t := range tracks {
		if existing, ok := store.GetTrack(ctx, t.ID); ok {
			t.IsLiked = existing.IsLiked
			t.DateAdded = existing.DateAdded
			t.LastPlayed = existing.LastPlayed
		} else {
			created++
		}
		if !store.SaveTrack(ctx, t) {
			return created, fmt.Errorf("failed to save %s: %w", t.ID, store.LastError())
		}
	}
	return created, nil
}

// LikeTrack sets or clears the liked flag.
func (r *Runner) LikeTrack(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	liked := !cmd.Bool("unlike")
	if !store.LikeTrack(ctx, args[0], liked) {
		return fmt.Errorf("failed to update %s: %w", args[0], store.LastError())
	}
	if liked {
		return r.writePlain("Liked %s\n", args[0])
	}
	return r.writePlain("Unliked %s\n", args[0])
}

// DeleteTrack removes a track from the library.
func (r *Runner) DeleteTrack(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	if _, ok := store.GetTrack(ctx, args[0]); !ok {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, args[0])
	}
	if !store.DeleteTrack(ctx, args[0]) {
		return fmt.Errorf("failed to delete %s: %w", args[0], store.LastError())
	}
	return r.writePlain("Deleted %s\n", args[0])
}

// ListPlaylists prints every playlist.
func (r *Runner) ListPlaylists(ctx context.Context, cmd *cli.Command) error {
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	playlists := store.GetAllPlaylists(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	for i, p := range playlists {
		if err := r.writePlain("%3d. %s [%d tracks] (%s)\n", i+1, p.Name, len(p.Tracks), p.ID); err != nil {
			return err
		}
	}
	return nil
}

// ShowPlaylist prints a playlist with its tracks in order.
func (r *Runner) ShowPlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	playlist, ok := store.GetPlaylist(ctx, args[0])
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, args[0])
	}
	tracks := store.GetPlaylistTracks(ctx, playlist.ID)

	if cmd.Bool("json") {
		return r.writeJSON(models.PlaylistExport{Playlist: *playlist, Tracks: tracks}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(playlist.Name)
	if playlist.Description != "" {
		r.writePlain("%s\n\n", playlist.Description)
	}
	for i, t := range tracks {
		if err := r.writeTrack(i+1, t); err != nil {
			return err
		}
	}
	return nil
}

// CreatePlaylist creates an empty playlist and prints its id.
func (r *Runner) CreatePlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	playlist := models.Playlist{
		ID:          shared.GenerateID(),
		Name:        strings.Join(args, " "),
		Description: cmd.String("description"),
		CoverArt:    cmd.String("cover"),
		Tracks:      []string{},
	}
	if !store.SavePlaylist(ctx, playlist) {
		return fmt.Errorf("failed to create playlist: %w", store.LastError())
	}
	return r.writePlain("Created playlist %s (%s)\n", playlist.Name, playlist.ID)
}

// AddToPlaylist appends library tracks to a playlist. Tracks already in it are skipped.
func (r *Runner) AddToPlaylist(ctx context.Context, cmd *cli.Command) error {
	return r.editPlaylist(ctx, cmd, func(store *repositories.Store, p *models.Playlist, ids []string) (int, error) {
		added := 0
		for _, id := range ids {
			if _, ok := store.GetTrack(ctx, id); !ok {
				return 0, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
			}
			if p.Contains(id) {
				continue
			}
			p.Tracks = append(p.Tracks, id)
			added++
		}
		return added, nil
	}, "Added")
}

// RemoveFromPlaylist drops tracks from a playlist.
func (r *Runner) RemoveFromPlaylist(ctx context.Context, cmd *cli.Command) error {
	return r.editPlaylist(ctx, cmd, func(_ *repositories.Store, p *models.Playlist, ids []string) (int, error) {
		before := len(p.Tracks)
		p.Tracks = slices.DeleteFunc(p.Tracks, func(id string) bool { return slices.Contains(ids, id) })
		return before - len(p.Tracks), nil
	}, "Removed")
}

func (r *Runner) editPlaylist(
	ctx context.Context, cmd *cli.Command,
	edit func(*repositories.Store, *models.Playlist, []string) (int, error), verb string,
) error {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	playlist, ok := store.GetPlaylist(ctx, args[0])
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, args[0])
	}

	n, err := edit(store, playlist, args[1:])
	if err != nil {
		return err
	}
	playlist.Updated = time.Now()
	if !store.SavePlaylist(ctx, *playlist) {
		return fmt.Errorf("failed to save playlist: %w", store.LastError())
	}
	return r.writePlain("%s %d track(s), %s now has %d\n", verb, n, playlist.Name, len(playlist.Tracks))
}

// DeletePlaylist removes a playlist. Its tracks stay in the library.
func (r *Runner) DeletePlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	if _, ok := store.GetPlaylist(ctx, args[0]); !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, args[0])
	}
	if !store.DeletePlaylist(ctx, args[0]) {
		return fmt.Errorf("failed to delete playlist: %w", store.LastError())
	}
	return r.writePlain("Deleted playlist %s\n", args[0])
}

// ExportPlaylist writes the playlist tracks and metadata files.
func (r *Runner) ExportPlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	playlist, ok := store.GetPlaylist(ctx, args[0])
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, args[0])
	}
	export := &models.PlaylistExport{Playlist: *playlist, Tracks: store.GetPlaylistTracks(ctx, playlist.ID)}

	base := cmd.String("output")
	if base == "" {
		base = filepath.Join(".", exportName(playlist.Name))
	}

	result, err := formatter.WriteExport(export, cmd.String("format"), base)
	if err != nil {
		return err
	}
	r.logger.Info("playlist exported", "id", playlist.ID, "tracks", len(export.Tracks))
	r.writePlain("Tracks:   %s\n", result.TracksFile)
	return r.writePlain("Metadata: %s\n", result.MetadataFile)
}

// exportName turns a playlist name into a safe file name.
func exportName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '-' || r == '_':
			return '_'
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, strings.ToLower(name))
	if name == "" {
		return "playlist"
	}
	return name
}

// History prints or clears the recently played list.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	recent := history.New(store, r.logger)
	defer recent.Close()
	recent.Load(ctx)

	if cmd.Bool("clear") {
		recent.Clear(ctx)
		return r.writePlain("History cleared\n")
	}

	tracks := recent.Snapshot()
	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Recently played (%d)", len(tracks)))
	for i, t := range tracks {
		if err := r.writeTrack(i+1, t); err != nil {
			return err
		}
	}
	return nil
}

// ListSettings prints every persisted setting.
func (r *Runner) ListSettings(ctx context.Context, cmd *cli.Command) error {
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	settings := store.Settings(ctx)
	delete(settings, models.SettingRecentlyPlayed)
	if cmd.Bool("json") {
		return r.writeJSON(settings, cmd.Bool("pretty"))
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := r.writePlain("%s = %s\n", k, settings[k]); err != nil {
			return err
		}
	}
	return nil
}

// GetSetting prints a single setting.
func (r *Runner) GetSetting(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	value, ok := store.GetItem(ctx, args[0])
	if !ok {
		return fmt.Errorf("%w: setting %s is not set", shared.ErrInvalidArgument, args[0])
	}
	return r.writePlain("%s\n", value)
}

// SetSetting stores a single setting.
func (r *Runner) SetSetting(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	if args[0] == models.SettingRecentlyPlayed {
		return fmt.Errorf("%w: %s is managed by the player, use history --clear", shared.ErrInvalidArgument, args[0])
	}
	value := strings.Join(args[1:], " ")
	if !store.SetItem(ctx, args[0], value) {
		return fmt.Errorf("failed to save setting: %w", store.LastError())
	}
	return r.writePlain("%s = %s\n", args[0], value)
}
