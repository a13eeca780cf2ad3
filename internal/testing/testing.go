// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/melodify/internal/backend"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
)

// MockBackend is a scripted [backend.Backend]. Play emits Started for the loaded generation
// unless AutoStart is false; tests drive the rest of the lifecycle with Finish, Fail and Emit.
type MockBackend struct {
	AutoStart       bool
	RateUnsupported bool

	mu         sync.Mutex
	events     chan backend.Event
	calls      []string
	loadErrs   map[string]error
	loaded     *models.Track
	generation uint64
	started    bool
	volume     float64
	rate       float64
	seek       float64
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		AutoStart: true,
		events:    make(chan backend.Event, 256),
		loadErrs:  map[string]error{},
		volume:    1,
		rate:      1,
	}
}

// FailLoad makes Load of the track with id fail as an unplayable source.
func (m *MockBackend) FailLoad(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErrs[id] = err
}

func (m *MockBackend) record(format string, args ...any) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *MockBackend) Load(_ context.Context, track models.Track, generation uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("load %s", track.ID)

	if err, ok := m.loadErrs[track.ID]; ok {
		m.loaded = nil
		return fmt.Errorf("%w: %s: %v", backend.ErrUnplayableSource, track.URL, err)
	}
	t := track.Clone()
	m.loaded = &t
	m.generation = generation
	m.started = false
	return nil
}

func (m *MockBackend) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("play")

	if m.loaded == nil {
		return backend.ErrNotLoaded
	}
	if m.AutoStart && !m.started {
		m.started = true
		m.events <- backend.Event{Type: backend.EventStarted, Generation: m.generation, Duration: m.loaded.DurationSeconds()}
	}
	return nil
}

func (m *MockBackend) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("pause")
	return nil
}

func (m *MockBackend) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("stop")
	m.loaded = nil
	return nil
}

func (m *MockBackend) Seek(seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("seek %.1f", seconds)
	if m.loaded == nil {
		return backend.ErrNotLoaded
	}
	m.seek = seconds
	return nil
}

func (m *MockBackend) SetVolume(level float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = level
	return nil
}

func (m *MockBackend) SetRate(rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RateUnsupported {
		return backend.ErrUnsupported
	}
	m.rate = rate
	return nil
}

func (m *MockBackend) Events() <-chan backend.Event { return m.events }

func (m *MockBackend) Capabilities() backend.Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return backend.Capabilities{Name: "mock", Rate: !m.RateUnsupported, Seek: true, Volume: true}
}

func (m *MockBackend) Close() error { return nil }

// Emit delivers ev as if the backend produced it.
func (m *MockBackend) Emit(ev backend.Event) { m.events <- ev }

// Progress emits a time update for the current generation.
func (m *MockBackend) Progress(position, duration float64) {
	m.Emit(backend.Event{Type: backend.EventTimeUpdated, Generation: m.Generation(), Position: position, Duration: duration})
}

// Finish emits Ended for the current generation.
func (m *MockBackend) Finish() {
	m.Emit(backend.Event{Type: backend.EventEnded, Generation: m.Generation()})
}

// Fail emits Errored for the current generation.
func (m *MockBackend) Fail(reason string) {
	m.Emit(backend.Event{Type: backend.EventErrored, Generation: m.Generation(), Reason: reason})
}

func (m *MockBackend) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Loaded returns the id of the loaded track, or "".
func (m *MockBackend) Loaded() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded == nil {
		return ""
	}
	return m.loaded.ID
}

func (m *MockBackend) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *MockBackend) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *MockBackend) LastSeek() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seek
}

// Calls returns the recorded transport calls, e.g. "load a", "play", "seek 0.0".
func (m *MockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Loads returns the ids passed to Load in order.
func (m *MockBackend) Loads() []string {
	var ids []string
	for _, c := range m.Calls() {
		if id, ok := strings.CutPrefix(c, "load "); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// MockCatalog is a test double for [services.Catalog] backed by a fixed track list.
type MockCatalog struct {
	Tracks []models.Track
	Err    error
}

func (m *MockCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Track
	q := strings.ToLower(query)
	for _, t := range m.Tracks {
		if strings.Contains(strings.ToLower(t.Title+" "+t.Artist), q) {
			out = append(out, t)
		}
	}
	return limitTracks(out, limit), nil
}

func (m *MockCatalog) GetTrendingTracks(ctx context.Context, limit int) ([]models.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return limitTracks(append([]models.Track(nil), m.Tracks...), limit), nil
}

func (m *MockCatalog) GetTrack(ctx context.Context, id string) (*models.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, t := range m.Tracks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
}

func (m *MockCatalog) StreamURL(id string) string { return "https://mock.invalid/stream/" + id }

func (m *MockCatalog) Name() string { return "mock" }

func limitTracks(tracks []models.Track, limit int) []models.Track {
	if limit > 0 && len(tracks) > limit {
		return tracks[:limit]
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

