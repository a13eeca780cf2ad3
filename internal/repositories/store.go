package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
)

// Store is the library facade consumed by the playback engine, the history cache and the CLI.
//
// Failures never cross the boundary as errors: reads return empty results, writes return false,
// and the cause is logged and kept in [Store.LastError].
type Store struct {
	path   string
	logger *log.Logger

	mu     sync.RWMutex // guards db, closed and the repositories
	db     *sql.DB
	closed bool
	txn    sync.Mutex // serializes transactional operations

	tracks    *TrackRepository
	playlists *PlaylistRepository
	settings  *SettingsRepository

	errMu   sync.Mutex
	lastErr error
}

// StoreOpts configures a [Store].
type StoreOpts struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	Logger       *log.Logger
}

// NewStore creates an unopened Store. Call [Store.Init] before use.
func NewStore(opts StoreOpts) *Store {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Path == "" {
		opts.Path = ":memory:"
	}
	return &Store{
		path:   opts.Path,
		logger: shared.WithLogger(opts.Logger, "component", "store"),
	}
}

// Open creates and initializes a Store.
func Open(ctx context.Context, opts StoreOpts) (*Store, error) {
	s := NewStore(opts)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 || opts.MaxIdleConns > 0 {
		s.mu.RLock()
		if !shared.IsMemoryPath(s.path) {
			shared.ConfigureDatabase(s.db, opts.MaxOpenConns, opts.MaxIdleConns)
		}
		s.mu.RUnlock()
	}
	return s, nil
}

// Init opens the backing database and ensures the schema exists. It is idempotent once it
// succeeds and may be retried after a failure. Failures wrap [shared.ErrStoreUnavailable].
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := shared.NewDatabaseContext(ctx, shared.WithForeignKeys(s.path))
	if err != nil {
		return s.fail(fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err))
	}

	if err := shared.EnableForeignKeys(ctx, db); err != nil {
		db.Close()
		return s.fail(fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err))
	}

	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		db.Close()
		return s.fail(fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err))
	}

	s.db, s.closed = db, false
	s.tracks = NewTrackRepository(db)
	s.playlists = NewPlaylistRepository(db)
	s.settings = NewSettingsRepository(db)
	s.logger.Debug("library opened", "path", s.path)
	return nil
}

// Close releases the connection. Safe to call more than once and after a failed Init.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db, s.tracks, s.playlists, s.settings = nil, nil, nil, nil
	s.closed = true
	return err
}

// LastError returns the most recent failure recorded by the store, or nil.
func (s *Store) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// GetItem reads a setting.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("get item") {
		return "", false
	}

	v, ok, err := s.settings.Get(ctx, key)
	if err != nil {
		s.fail(fmt.Errorf("%w: %v", shared.ErrStoreReadFailed, err))
		return "", false
	}
	return v, ok
}

// SetItem writes a setting, replacing any previous value.
func (s *Store) SetItem(ctx context.Context, key, value string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("set item") {
		return false
	}

	if err := s.settings.Set(ctx, key, value); err != nil {
		s.fail(fmt.Errorf("%w: %v", shared.ErrStoreWriteFailed, err))
		return false
	}
	return true
}

// Settings returns every stored setting.
func (s *Store) Settings(ctx context.Context) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("list settings") {
		return map[string]string{}
	}

	all, err := s.settings.All(ctx)
	if err != nil {
		s.fail(fmt.Errorf("%w: %v", shared.ErrStoreReadFailed, err))
		return map[string]string{}
	}
	return all
}

// SaveTrack upserts track by id.
func (s *Store) SaveTrack(ctx context.Context, track models.Track) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("save track") {
		return false
	}

	if err := s.tracks.Save(ctx, &track); err != nil {
		s.fail(fmt.Errorf("%w: %v", shared.ErrStoreWriteFailed, err))
		return false
	}
	return true
}

// GetTrack looks up a single track.
func (s *Store) GetTrack(ctx context.Context, id string) (*models.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("get track") {
		return nil, false
	}

	track, err := s.tracks.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.fail(fmt.Errorf("%w: %v", shared.ErrStoreReadFailed, err))
		}
		return nil, false
	}
	return track, true
}

// GetAllTracks returns every track, newest first.
func (s *Store) GetAllTracks(ctx context.Context) []models.Track {
	return s.FindTracks(ctx, nil)
}

// FindTracks returns tracks matching criteria (see [TrackRepository.List]), newest first.
func (s *Store) FindTracks(ctx context.Context, criteria map[string]any) []models.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("list tracks") {
		return []models.Track{}
	}

	tracks, err := s.tracks.List(ctx, criteria)
	if err != nil {
		s.fail(fmt.Errorf("%w: %v", shared.ErrStoreReadFailed, err))
		return []models.Track{}
	}
	return tracks
}

// LikeTrack sets the liked flag of an existing track.
func (s *Store) LikeTrack(ctx context.Context, id string, liked bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("like track") {
		return false
	}

	if err := s.tracks.SetLiked(ctx, id, liked); err != nil {
		s.fail(fmt.Errorf("%w: %v", shared.ErrStoreWriteFailed, err))
		return false
	}
	return true
}

// DeleteTrack removes a track and its playlist membership atomically.
func (s *Store) DeleteTrack(ctx context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("delete track") {
		return false
	}

	s.txn.Lock()
	defer s.txn.Unlock()

	if err := s.tracks.Delete(ctx, id); err != nil {
		s.fail(fmt.Errorf("%w: delete track %s: %v", shared.ErrTransactionAborted, id, err))
		return false
	}
	return true
}

// SavePlaylist upserts the playlist and replaces its membership atomically.
func (s *Store) SavePlaylist(ctx context.Context, playlist models.Playlist) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("save playlist") {
		return false
	}

	s.txn.Lock()
	defer s.txn.Unlock()

	if err := s.playlists.Save(ctx, &playlist); err != nil {
		s.fail(fmt.Errorf("%w: save playlist %s: %v", shared.ErrTransactionAborted, playlist.ID, err))
		return false
	}
	return true
}

// GetPlaylist looks up a single playlist with its ordered track ids.
func (s *Store) GetPlaylist(ctx context.Context, id string) (*models.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("get playlist") {
		return nil, false
	}

	p, err := s.playlists.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.fail(fmt.Errorf("%w: %v", shared.ErrStoreReadFailed, err))
		}
		return nil, false
	}
	return p, true
}

// GetAllPlaylists returns every playlist, most recently updated first.
func (s *Store) GetAllPlaylists(ctx context.Context) []models.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("list playlists") {
		return []models.Playlist{}
	}

	playlists, err := s.playlists.List(ctx)
	if err != nil {
		s.fail(fmt.Errorf("%w: %v", shared.ErrStoreReadFailed, err))
		return []models.Playlist{}
	}
	return playlists
}

// GetPlaylistTracks returns the playlist's tracks ordered by position.
func (s *Store) GetPlaylistTracks(ctx context.Context, playlistID string) []models.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("list playlist tracks") {
		return []models.Track{}
	}

	tracks, err := s.playlists.Tracks(ctx, playlistID)
	if err != nil {
		s.fail(fmt.Errorf("%w: %v", shared.ErrStoreReadFailed, err))
		return []models.Track{}
	}
	return tracks
}

// DeletePlaylist removes a playlist and its membership atomically.
func (s *Store) DeletePlaylist(ctx context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready("delete playlist") {
		return false
	}

	s.txn.Lock()
	defer s.txn.Unlock()

	if err := s.playlists.Delete(ctx, id); err != nil {
		s.fail(fmt.Errorf("%w: delete playlist %s: %v", shared.ErrTransactionAborted, id, err))
		return false
	}
	return true
}

// ready reports whether Init has succeeded; callers hold s.mu.
func (s *Store) ready(op string) bool {
	if s.db != nil {
		return true
	}
	if s.closed {
		s.fail(fmt.Errorf("%w: %s after close", shared.ErrStoreClosed, op))
		return false
	}
	s.fail(fmt.Errorf("%w: %s before init", shared.ErrStoreUnavailable, op))
	return false
}

func (s *Store) fail(err error) error {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()

	s.logger.Error("library operation failed", "error", err)
	return err
}
