package tasks

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/services"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/google/uuid"
)

const (
	unknownArtist  = "Unknown Artist"
	defaultWorkers = 4
	maxWorkers     = 16
)

// Library is the subset of the library store used by the scanner.
type Library interface {
	SaveTrack(ctx context.Context, track models.Track) bool
	GetTrack(ctx context.Context, id string) (*models.Track, bool)
	DeleteTrack(ctx context.Context, id string) bool
}

// ScanOpts configures a [Scanner].
type ScanOpts struct {
	Library    Library
	Extractor  services.MetadataExtractor // optional; file names are used without it
	Logger     *log.Logger
	NumWorkers int           // concurrent extractions (default: 4)
	Settle     time.Duration // quiet period before a watched file is imported (default: 500ms)
	Now        func() time.Time
}

// FileResult is the outcome of importing a single file.
type FileResult struct {
	Path    string
	Track   models.Track
	Created bool // false when an existing track was updated
	Err     error
}

// ScanResult summarizes a scan.
type ScanResult struct {
	Roots    []string
	Files    int
	Created  int
	Updated  int
	Failed   []FileResult
	Duration time.Duration
}

// Scanner imports local audio files into the library.
type Scanner struct {
	library   Library
	extractor services.MetadataExtractor
	logger    *log.Logger
	workers   int
	settle    time.Duration
	now       func() time.Time
}

// NewScanner creates a Scanner.
func NewScanner(opts ScanOpts) *Scanner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scanner{
		library:   opts.Library,
		extractor: opts.Extractor,
		logger:    shared.WithLogger(opts.Logger, "component", "scanner"),
		workers:   opts.NumWorkers,
		settle:    opts.Settle,
		now:       opts.Now,
	}
}

// TrackID returns the stable library id of the file at path.
func TrackID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "local-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(path))).String()
}

// TitleFromPath derives a display title from a file name.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Scan walks roots and imports every supported audio file.
func (s *Scanner) Scan(ctx context.Context, progress chan<- ProgressUpdate, roots ...string) (*ScanResult, error) {
	if s.library == nil {
		return nil, fmt.Errorf("%w: library not initialized", shared.ErrStoreUnavailable)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: at least one directory", shared.ErrMissingArgument)
	}

	start := s.now()
	result := &ScanResult{Roots: roots}

	var files []string
	for _, root := range roots {
		found, err := discover(root)
		if err != nil {
			return nil, err
		}
		s.sendProgress(progress, discoverUpdate(root, len(found)))
		files = append(files, found...)
	}
	result.Files = len(files)

	jobs := make(chan string, len(files))
	results := make(chan FileResult, len(files))

	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go s.worker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, path := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- path:
				s.sendProgress(progress, extractUpdate(i+1, len(files), path))
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	step := 0
	for r := range results {
		step++
		switch {
		case r.Err != nil:
			result.Failed = append(result.Failed, r)
			s.sendProgress(progress, failedUpdate(step, len(files), r))
		case r.Created:
			result.Created++
			s.sendProgress(progress, savedUpdate(step, len(files), r))
		default:
			result.Updated++
			s.sendProgress(progress, savedUpdate(step, len(files), r))
		}
	}

	result.Duration = s.now().Sub(start)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	s.logger.Info("scan complete", "files", result.Files, "created", result.Created,
		"updated", result.Updated, "failed", len(result.Failed))
	return result, nil
}

func (s *Scanner) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan string, results chan<- FileResult) {
	defer wg.Done()
	for path := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- s.ImportFile(ctx, path)
	}
}

// ImportFile imports or refreshes a single file. Liked flags, date added and last played of an
// existing track are kept.
func (s *Scanner) ImportFile(ctx context.Context, path string) FileResult {
	result := FileResult{Path: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		result.Err = fmt.Errorf("failed to resolve %s: %w", path, err)
		return result
	}
	result.Path = abs

	if _, err := os.Stat(abs); err != nil {
		result.Err = fmt.Errorf("failed to read %s: %w", abs, err)
		return result
	}

	format, ok := models.FormatFromPath(abs)
	if !ok {
		result.Err = fmt.Errorf("%w: unsupported file type %s", shared.ErrInvalidInput, filepath.Ext(abs))
		return result
	}

	id := TrackID(abs)
	track := models.Track{
		ID:        id,
		Title:     TitleFromPath(abs),
		Artist:    unknownArtist,
		URL:       abs,
		Format:    format,
		IsLocal:   true,
		Source:    models.SourceLocal,
		DateAdded: s.now(),
	}
	result.Created = true
	if existing, found := s.library.GetTrack(ctx, id); found {
		track = existing.Clone()
		track.URL = abs
		track.Format = format
		result.Created = false
	}

	if s.extractor != nil {
		u, err := s.extractor.Extract(ctx, abs)
		if err != nil {
			s.logger.Warn("metadata unavailable", "path", abs, "error", err)
		} else {
			u.Apply(&track)
		}
	}

	if !s.library.SaveTrack(ctx, track) {
		result.Err = fmt.Errorf("%w: %s", shared.ErrStoreWriteFailed, abs)
		return result
	}

	result.Track = track
	return result
}

// RemoveFile deletes the track imported from path, if any.
func (s *Scanner) RemoveFile(ctx context.Context, path string) bool {
	id := TrackID(path)
	if _, found := s.library.GetTrack(ctx, id); !found {
		return false
	}
	return s.library.DeleteTrack(ctx, id)
}

// sendProgress sends a progress update through the channel without blocking.
func (s *Scanner) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}
	if !info.IsDir() {
		if _, ok := models.FormatFromPath(root); ok {
			return []string{root}, nil
		}
		return nil, fmt.Errorf("%w: %s is not a directory or audio file", shared.ErrInvalidInput, root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := models.FormatFromPath(path); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}
