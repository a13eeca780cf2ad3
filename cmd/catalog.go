package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/melodify/internal/models"
	"github.com/urfave/cli/v3"
)

// CatalogSearch searches the remote catalog.
func (r *Runner) CatalogSearch(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")

	tracks, err := r.catalogClient().SearchTracks(ctx, query, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return r.writeCatalogTracks(ctx, cmd, fmt.Sprintf("%s results for %q (%d)", r.catalogClient().Name(), query, len(tracks)), tracks)
}

// CatalogTrending lists the catalog's trending tracks.
func (r *Runner) CatalogTrending(ctx context.Context, cmd *cli.Command) error {
	tracks, err := r.catalogClient().GetTrendingTracks(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to fetch trending tracks: %w", err)
	}
	return r.writeCatalogTracks(ctx, cmd, fmt.Sprintf("Trending on %s (%d)", r.catalogClient().Name(), len(tracks)), tracks)
}

func (r *Runner) writeCatalogTracks(ctx context.Context, cmd *cli.Command, title string, tracks []models.Track) error {
	if cmd.Bool("save") {
		store, err := r.library(ctx)
		if err != nil {
			return err
		}
		created, err := saveTracks(ctx, store, tracks)
		if err != nil {
			return err
		}
		r.logger.Info("saved catalog tracks", "total", len(tracks), "new", created)
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(title)
	for i, t := range tracks {
		if err := r.writeTrack(i+1, t); err != nil {
			return err
		}
	}
	return nil
}
