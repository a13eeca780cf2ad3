package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/fsnotify/fsnotify"
)

// Watch keeps the library in sync with roots until ctx is cancelled. Run [Scanner.Scan] first to
// import files that already exist.
func (s *Scanner) Watch(ctx context.Context, progress chan<- ProgressUpdate, roots ...string) error {
	if s.library == nil {
		return fmt.Errorf("%w: library not initialized", shared.ErrStoreUnavailable)
	}
	if len(roots) == 0 {
		return fmt.Errorf("%w: at least one directory", shared.ErrMissingArgument)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	dirs := 0
	for _, root := range roots {
		n, err := addTree(w, root)
		if err != nil {
			return err
		}
		dirs += n
	}
	s.sendProgress(progress, watchingUpdate(dirs))
	s.logger.Info("watching library", "roots", roots, "dirs", dirs)

	pending := map[string]struct{}{}
	timer := time.NewTimer(s.settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", "error", err)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			s.handle(ctx, w, ev, pending, progress)
			if len(pending) > 0 {
				timer.Reset(s.settle)
			}

		case <-timer.C:
			s.flush(ctx, pending, progress)
		}
	}
}

func (s *Scanner) handle(ctx context.Context, w *fsnotify.Watcher, ev fsnotify.Event, pending map[string]struct{}, progress chan<- ProgressUpdate) {
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		delete(pending, ev.Name)
		if s.RemoveFile(ctx, ev.Name) {
			s.logger.Info("removed track", "path", ev.Name)
			s.sendProgress(progress, removedUpdate(ev.Name))
		}

	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if _, err := addTree(w, ev.Name); err != nil {
				s.logger.Warn("failed to watch directory", "path", ev.Name, "error", err)
			}
			// Files written before the directory was watched produce no events.
			files, _ := discover(ev.Name)
			for _, f := range files {
				pending[f] = struct{}{}
			}
			return
		}
		fallthrough

	case ev.Has(fsnotify.Write):
		if _, ok := models.FormatFromPath(ev.Name); ok {
			pending[ev.Name] = struct{}{}
		}
	}
}

func (s *Scanner) flush(ctx context.Context, pending map[string]struct{}, progress chan<- ProgressUpdate) {
	total := len(pending)
	step := 0
	for path := range pending {
		delete(pending, path)
		step++

		r := s.ImportFile(ctx, path)
		if r.Err != nil {
			if !errors.Is(r.Err, fs.ErrNotExist) {
				s.logger.Warn("import failed", "path", path, "error", r.Err)
			}
			s.sendProgress(progress, failedUpdate(step, total, r))
			continue
		}
		s.logger.Info("imported track", "path", path, "id", r.Track.ID, "created", r.Created)
		s.sendProgress(progress, savedUpdate(step, total, r))
	}
}

// addTree watches root and every non-hidden directory below it.
func addTree(w *fsnotify.Watcher, root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("failed to watch %s: %w", root, err)
	}
	return n, nil
}
