package backend

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/fhs/gompd/v2/mpd"
)

// mpdClient is the subset of [mpd.Client] the backend uses.
type mpdClient interface {
	Status() (mpd.Attrs, error)
	Clear() error
	Add(uri string) error
	Play(pos int) error
	Pause(pause bool) error
	Stop() error
	SeekCur(d time.Duration, relative bool) error
	SetVolume(volume int) error
	Repeat(repeat bool) error
	Close() error
}

// MPDOpts configures the native-handle backend.
type MPDOpts struct {
	Network      string // default "tcp"
	Address      string // default "localhost:6600"
	Password     string
	PollInterval time.Duration // default 1s
	Logger       *log.Logger
}

// MPD drives a Music Player Daemon. MPD does not push progress, so while a track is loaded a
// poller reads the player status every PollInterval and synthesizes events from it. The poller
// is cancelled by Stop and replaced on every Load.
type MPD struct {
	interval time.Duration
	logger   *log.Logger
	events   *emitter
	dial     func() (mpdClient, error)

	mu         sync.Mutex
	client     mpdClient
	generation uint64
	loaded     bool
	begun      bool
	duration   float64
	cancel     context.CancelFunc
	kick       chan struct{}

	emitMu sync.Mutex // held by the poller while it delivers an event
}

// DialMPD connects to the server described by opts.
func DialMPD(opts MPDOpts) (*MPD, error) {
	if opts.Network == "" {
		opts.Network = "tcp"
	}
	if opts.Address == "" {
		opts.Address = "localhost:6600"
	}

	dial := func() (mpdClient, error) {
		if opts.Password != "" {
			return mpd.DialAuthenticated(opts.Network, opts.Address, opts.Password)
		}
		return mpd.Dial(opts.Network, opts.Address)
	}
	return newMPD(opts, dial)
}

func newMPD(opts MPDOpts, dial func() (mpdClient, error)) (*MPD, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	client, err := dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mpd: %w", err)
	}

	return &MPD{
		interval: opts.PollInterval,
		logger:   shared.WithLogger(opts.Logger, "component", "backend", "backend", "mpd"),
		events:   newEmitter(64),
		dial:     dial,
		client:   client,
	}, nil
}

func (m *MPD) Load(_ context.Context, track models.Track, generation uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopPolling()
	m.loaded, m.begun = false, false

	err := m.do(func(c mpdClient) error {
		if err := c.Clear(); err != nil {
			return err
		}
		if err := c.Repeat(false); err != nil {
			return err
		}
		return c.Add(mpdURI(track.URL))
	})
	if err != nil {
		return unplayable(track, err)
	}

	m.generation = generation
	m.loaded = true
	m.duration = track.DurationSeconds()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.kick = make(chan struct{}, 1)
	go m.poll(ctx, generation, m.kick)
	return nil
}

func (m *MPD) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrNotLoaded
	}

	err := m.do(func(c mpdClient) error {
		if !m.begun {
			return c.Play(0)
		}
		return c.Pause(false)
	})
	if err != nil {
		return err
	}
	m.begun = true
	m.poke()
	return nil
}

func (m *MPD) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrNotLoaded
	}
	return m.do(func(c mpdClient) error { return c.Pause(true) })
}

func (m *MPD) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopPolling()
	m.loaded, m.begun = false, false
	return m.do(func(c mpdClient) error { return c.Stop() })
}

func (m *MPD) Seek(seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrNotLoaded
	}

	d := time.Duration(seconds * float64(time.Second))
	if err := m.do(func(c mpdClient) error { return c.SeekCur(d, false) }); err != nil {
		return err
	}
	m.poke()
	return nil
}

func (m *MPD) SetVolume(level float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	vol := int(math.Round(level * 100))
	return m.do(func(c mpdClient) error { return c.SetVolume(vol) })
}

// SetRate is not available over the MPD protocol.
func (m *MPD) SetRate(float64) error { return ErrUnsupported }

func (m *MPD) Events() <-chan Event { return m.events.ch }

func (m *MPD) Capabilities() Capabilities {
	return Capabilities{Name: "mpd", Seek: true, Volume: true, Polled: true}
}

func (m *MPD) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopPolling()
	m.events.close()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}

// do runs fn against the connection, redialing once if the call fails; callers hold m.mu.
func (m *MPD) do(fn func(c mpdClient) error) error {
	if m.client != nil {
		err := fn(m.client)
		if err == nil {
			return nil
		}
		m.logger.Debug("mpd call failed, reconnecting", "error", err)
		m.client.Close()
		m.client = nil
	}

	c, err := m.dial()
	if err != nil {
		return fmt.Errorf("failed to reconnect to mpd: %w", err)
	}
	m.client = c
	return fn(c)
}

// stopPolling cancels the active poller and waits out any event it is delivering, so nothing
// from the old generation is queued once Stop or Load returns; callers hold m.mu.
func (m *MPD) stopPolling() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.emitMu.Lock()
	m.emitMu.Unlock()
}

// emit delivers a poller event unless ctx has been cancelled. Progress is dropped when the
// buffer is full.
func (m *MPD) emit(ctx context.Context, ev Event) bool {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	if ev.Type == EventTimeUpdated {
		m.events.offer(ev)
		return true
	}
	select {
	case m.events.ch <- ev:
		return true
	case <-m.events.done:
	case <-ctx.Done():
	}
	return false
}

// poke asks the poller for an immediate status read; callers hold m.mu.
func (m *MPD) poke() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

func (m *MPD) poll(ctx context.Context, generation uint64, kick <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var ps pollState
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-kick:
		}

		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			return
		}
		var attrs mpd.Attrs
		err := m.do(func(c mpdClient) error {
			var err error
			attrs, err = c.Status()
			return err
		})
		fallback := m.duration
		m.mu.Unlock()

		if err != nil {
			m.emit(ctx, Event{Type: EventErrored, Generation: generation, Reason: err.Error()})
			return
		}

		events, done := ps.observe(attrs, generation, fallback)
		for _, ev := range events {
			if !m.emit(ctx, ev) {
				return
			}
		}
		if done {
			return
		}
	}
}

// pollState turns successive MPD status snapshots into backend events.
type pollState struct {
	started bool
}

// observe returns the events implied by attrs and whether polling should end.
func (ps *pollState) observe(attrs mpd.Attrs, generation uint64, fallback float64) ([]Event, bool) {
	if msg := attrs["error"]; msg != "" {
		return []Event{{Type: EventErrored, Generation: generation, Reason: msg}}, true
	}

	elapsed, duration := statusTimes(attrs)
	if duration <= 0 {
		duration = fallback
	}

	var events []Event
	switch attrs["state"] {
	case "play":
		if !ps.started {
			ps.started = true
			events = append(events, Event{Type: EventStarted, Generation: generation, Duration: duration})
		}
		events = append(events, Event{Type: EventTimeUpdated, Generation: generation, Position: elapsed, Duration: duration})
	case "pause":
		if ps.started {
			events = append(events, Event{Type: EventTimeUpdated, Generation: generation, Position: elapsed, Duration: duration})
		}
	case "stop":
		if ps.started {
			return append(events, Event{Type: EventEnded, Generation: generation}), true
		}
	}
	return events, false
}

// statusTimes reads elapsed and duration in seconds, falling back to the legacy "time" attribute.
func statusTimes(attrs mpd.Attrs) (elapsed, duration float64) {
	elapsed, _ = strconv.ParseFloat(attrs["elapsed"], 64)
	duration, _ = strconv.ParseFloat(attrs["duration"], 64)

	if legacy := attrs["time"]; legacy != "" && (elapsed == 0 || duration == 0) {
		if e, d, ok := strings.Cut(legacy, ":"); ok {
			if elapsed == 0 {
				elapsed, _ = strconv.ParseFloat(e, 64)
			}
			if duration == 0 {
				duration, _ = strconv.ParseFloat(d, 64)
			}
		}
	}
	return elapsed, duration
}

// mpdURI converts absolute local paths to file:// URIs; other locators pass through.
func mpdURI(locator string) string {
	if filepath.IsAbs(locator) {
		return "file://" + locator
	}
	return locator
}
