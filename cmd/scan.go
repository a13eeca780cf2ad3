package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/melodify/internal/shared"
	"github.com/desertthunder/melodify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Scan imports the given folders, or library.paths when none are given, and optionally keeps
// watching them.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	roots := cmd.Args().Slice()
	if len(roots) == 0 {
		roots = r.config.Library.Paths
	}
	if len(roots) == 0 {
		return fmt.Errorf("%w: pass a folder or set library.paths in config.toml", shared.ErrMissingArgument)
	}

	scanner, err := r.scanner(ctx, cmd.Int("workers"))
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 32)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.reportProgress(progress)
	}()

	result, err := scanner.Scan(ctx, progress, roots...)
	if err != nil {
		close(progress)
		wg.Wait()
		return fmt.Errorf("scan failed: %w", err)
	}

	if cmd.Bool("watch") {
		r.writePlain("Watching %d folder(s), press Ctrl+C to stop\n", len(roots))
		err = scanner.Watch(ctx, progress, roots...)
	}
	close(progress)
	wg.Wait()

	r.writeScanSummary(result)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}

// reportProgress logs scanner updates until the channel is closed.
func (r *Runner) reportProgress(progress <-chan tasks.ProgressUpdate) {
	for u := range progress {
		switch u.Phase {
		case tasks.Extract:
			r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
		case tasks.Save:
			if u.Step > 0 && u.Total > 0 && (u.Step == u.Total || u.Step%50 == 0) {
				r.logger.Info("importing", "done", u.Step, "total", u.Total)
			}
		default:
			r.logger.Info(u.Message, "phase", u.Phase)
		}
	}
}

func (r *Runner) writeScanSummary(result *tasks.ScanResult) {
	r.writePlainHeader("Scan complete")
	r.writePlain("Files:   %d\n", result.Files)
	r.writePlain("New:     %d\n", result.Created)
	r.writePlain("Updated: %d\n", result.Updated)
	r.writePlain("Failed:  %d\n", len(result.Failed))
	for _, f := range result.Failed {
		r.writePlain("  %s: %v\n", f.Path, f.Err)
	}
	r.writePlain("Took:    %s\n", result.Duration.Round(time.Millisecond))
}
