// Package history keeps the recently-played list: most recent first, unique by track id,
// capped at [MaxRecent] entries and mirrored to the library settings under
// [models.SettingRecentlyPlayed].
package history

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
)

// MaxRecent is the number of tracks retained.
const MaxRecent = 20

// KV is the settings surface of the library store.
type KV interface {
	GetItem(ctx context.Context, key string) (string, bool)
	SetItem(ctx context.Context, key, value string) bool
}

// Recent is the recently-played cache. Register never blocks on storage: the serialized list is
// handed to a single writer goroutine that always persists the newest pending value.
type Recent struct {
	store  KV
	logger *log.Logger

	mu     sync.Mutex
	tracks []models.Track
	closed bool

	pending chan []byte
	flushes chan chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// New creates a Recent backed by store and starts its writer.
func New(store KV, logger *log.Logger) *Recent {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	r := &Recent{
		store:   store,
		logger:  shared.WithLogger(logger, "component", "history"),
		tracks:  []models.Track{},
		pending: make(chan []byte, 1),
		flushes: make(chan chan struct{}),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.writer()
	return r
}

// Load replaces the in-memory list with the persisted one.
// Missing or unreadable data yields an empty list.
func (r *Recent) Load(ctx context.Context) {
	tracks := []models.Track{}

	if raw, ok := r.store.GetItem(ctx, models.SettingRecentlyPlayed); ok && raw != "" {
		var stored []models.Track
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			r.logger.Warn("discarding unreadable history", "error", err)
		} else {
			tracks = normalize(stored)
		}
	}

	r.mu.Lock()
	r.tracks = tracks
	r.mu.Unlock()
	r.logger.Debug("history loaded", "count", len(tracks))
}

// Register moves track to the front of the list, evicting the oldest entries past [MaxRecent],
// and schedules persistence.
func (r *Recent) Register(track models.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]models.Track, 0, MaxRecent)
	next = append(next, track.Clone())
	for _, t := range r.tracks {
		if len(next) == MaxRecent {
			break
		}
		if t.ID != track.ID {
			next = append(next, t)
		}
	}
	r.tracks = next

	if r.closed {
		return
	}

	data, err := json.Marshal(r.tracks)
	if err != nil {
		r.logger.Warn("failed to encode history", "error", err)
		return
	}

	// Replace any value the writer has not picked up yet.
	select {
	case <-r.pending:
	default:
	}
	r.pending <- data
}

// Snapshot returns a copy of the list, most recent first.
func (r *Recent) Snapshot() []models.Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.CloneTracks(r.tracks)
}

// Clear empties the list and persists the empty list.
func (r *Recent) Clear(ctx context.Context) {
	r.mu.Lock()
	r.tracks = []models.Track{}
	r.mu.Unlock()

	r.Flush()
	r.store.SetItem(ctx, models.SettingRecentlyPlayed, "[]")
}

// Flush blocks until every registered change has been handed to the store.
func (r *Recent) Flush() {
	ack := make(chan struct{})
	select {
	case r.flushes <- ack:
		<-ack
	case <-r.stopped:
	}
}

// Close flushes pending writes and stops the writer. Safe to call more than once.
func (r *Recent) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.done)
		<-r.stopped
	})
}

func (r *Recent) writer() {
	defer close(r.stopped)

	for {
		select {
		case data := <-r.pending:
			r.persist(data)
		case ack := <-r.flushes:
			r.drain()
			close(ack)
		case <-r.done:
			r.drain()
			return
		}
	}
}

func (r *Recent) drain() {
	select {
	case data := <-r.pending:
		r.persist(data)
	default:
	}
}

func (r *Recent) persist(data []byte) {
	if !r.store.SetItem(context.Background(), models.SettingRecentlyPlayed, string(data)) {
		r.logger.Warn("failed to persist history")
	}
}

// normalize drops duplicate ids, keeping the first occurrence, and applies the cap.
func normalize(tracks []models.Track) []models.Track {
	seen := make(map[string]bool, len(tracks))
	out := make([]models.Track, 0, min(len(tracks), MaxRecent))
	for _, t := range tracks {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
		if len(out) == MaxRecent {
			break
		}
	}
	return out
}
