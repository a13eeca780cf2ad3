package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/backend"
	"github.com/desertthunder/melodify/internal/history"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/playback"
	"github.com/desertthunder/melodify/internal/repositories"
	"github.com/desertthunder/melodify/internal/services"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/desertthunder/melodify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The library store, catalog client and playback engine are opened lazily so commands that do
// not need them never touch the database, the network or an audio device.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      io.ReadCloser

	store     *repositories.Store
	catalog   services.Catalog
	extractor services.MetadataExtractor
	backend   backend.Backend

	engine  *playback.Engine
	history *history.Recent

	ownsStore   bool
	ownsBackend bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.ReadCloser
	Store      *repositories.Store
	Catalog    services.Catalog
	Extractor  services.MetadataExtractor
	Backend    backend.Backend
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: time.Duration(opts.Config.Catalog.TimeoutSeconds) * time.Second}
	}
	if opts.Extractor == nil {
		opts.Extractor = services.NewTagReader()
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		store:      opts.Store,
		catalog:    opts.Catalog,
		extractor:  opts.Extractor,
		backend:    opts.Backend,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, tracksCommand, playlistsCommand, historyCommand, scanCommand,
		catalogCommand, settingsCommand, shellCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// library returns the store, opening the configured database on first use.
func (r *Runner) library(ctx context.Context) (*repositories.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	store, err := repositories.Open(ctx, repositories.StoreOpts{
		Path:         r.config.Database.Path,
		MaxOpenConns: r.config.Database.MaxOpenConns,
		MaxIdleConns: r.config.Database.MaxIdleConns,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	r.store, r.ownsStore = store, true
	return store, nil
}

// catalogClient returns the remote catalog, creating an Audius client from config on first use.
func (r *Runner) catalogClient() services.Catalog {
	if r.catalog == nil {
		c := r.config.Catalog
		r.catalog = services.NewAudius(services.AudiusOpts{
			AppName:           c.AppName,
			DiscoveryURL:      c.DiscoveryURL,
			RequestsPerSecond: c.RequestsPerSecond,
			Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
			TrendingWindow:    c.TrendingWindow,
			HTTPClient:        r.httpClient,
			Logger:            r.logger,
		})
	}
	return r.catalog
}

// player returns the playback engine, wiring the backend, store and history on first use.
func (r *Runner) player(ctx context.Context) (*playback.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	store, err := r.library(ctx)
	if err != nil {
		return nil, err
	}

	if r.backend == nil {
		b, err := backend.Select(r.config.Player, r.config.MPD, r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open playback backend: %w", err)
		}
		r.backend, r.ownsBackend = b, true
	}

	r.history = history.New(store, r.logger)
	r.history.Load(ctx)

	r.engine = playback.NewEngine(playback.EngineOpts{
		Backend: r.backend,
		Store:   store,
		History: r.history,
		Logger:  r.logger,
		Volume:  r.savedVolume(ctx, store),
	})
	return r.engine, nil
}

// savedVolume prefers the persisted volume setting over the configured default.
func (r *Runner) savedVolume(ctx context.Context, store *repositories.Store) float64 {
	if raw, ok := store.GetItem(ctx, models.SettingVolume); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 && v <= 1 {
			return v
		}
	}
	return r.config.Player.DefaultVolume
}

func (r *Runner) scanner(ctx context.Context, workers int) (*tasks.Scanner, error) {
	store, err := r.library(ctx)
	if err != nil {
		return nil, err
	}
	return tasks.NewScanner(tasks.ScanOpts{
		Library:    store,
		Extractor:  r.extractor,
		Logger:     r.logger,
		NumWorkers: workers,
	}), nil
}

// Close stops the engine, flushes history and releases whatever the runner opened itself.
func (r *Runner) Close() error {
	var errs []error
	if r.engine != nil {
		if r.store != nil {
			r.store.SetItem(context.Background(), models.SettingVolume, strconv.FormatFloat(r.engine.State().Volume, 'f', -1, 64))
		}
		r.engine.Close()
		r.engine = nil
	}
	if r.history != nil {
		r.history.Close()
		r.history = nil
	}
	if r.ownsBackend && r.backend != nil {
		errs = append(errs, r.backend.Close())
		r.backend, r.ownsBackend = nil, false
	}
	if r.ownsStore && r.store != nil {
		errs = append(errs, r.store.Close())
		r.store, r.ownsStore = nil, false
	}
	return errors.Join(errs...)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(bytes.TrimRight(output, "\n")); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// writeTrack prints one track as a numbered line.
func (r *Runner) writeTrack(i int, t models.Track) error {
	liked := ""
	if t.IsLiked {
		liked = " ♥"
	}
	return r.writePlain("%3d. %s - %s [%s] (%s)%s\n",
		i, shared.Truncate(t.Artist, 30), shared.Truncate(t.Title, 50),
		shared.FormatDuration(t.DurationSeconds()), t.ID, liked)
}
