// Package backend turns a track locator into sound. The playback engine only sees the [Backend]
// capability set and its [Event] stream; which implementation sits behind it is decided once at
// startup by [Select].
//
//   - [Speaker] decodes files and HTTP streams itself and reports progress natively
//   - [MPD] drives an external Music Player Daemon and polls it for progress
//   - [Null] produces no sound and advances a virtual clock
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/melodify/internal/models"
)

var (
	// ErrUnplayableSource is returned by Load when a locator cannot be opened or decoded.
	ErrUnplayableSource = errors.New("unplayable source")
	// ErrUnsupported is returned by optional operations the backend cannot honor.
	// Callers treat it as a no-op.
	ErrUnsupported = errors.New("operation not supported by backend")
	// ErrNotLoaded is returned by transport operations issued before Load.
	ErrNotLoaded = errors.New("no track loaded")
)

// EventType enumerates asynchronous backend notifications.
type EventType int

const (
	EventStarted EventType = iota
	EventTimeUpdated
	EventEnded
	EventErrored
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventTimeUpdated:
		return "time_updated"
	case EventEnded:
		return "ended"
	case EventErrored:
		return "errored"
	default:
		return ""
	}
}

// Event is a notification from a backend. Generation is the value passed to the Load call the
// event belongs to, so consumers can drop events from superseded loads.
type Event struct {
	Type       EventType
	Generation uint64
	Position   float64 // seconds
	Duration   float64 // seconds, 0 when unknown
	Reason     string
}

// Capabilities describes optional features of a backend.
type Capabilities struct {
	Name   string
	Rate   bool
	Seek   bool
	Volume bool
	Polled bool // progress is synthesized by polling rather than pushed
}

// Backend is the capability set the playback engine drives.
//
// Operations are requests: their effects are reported later on Events. Implementations must be
// safe for concurrent use.
type Backend interface {
	// Load prepares track for playback without starting it and cancels anything loaded before.
	// It fails with [ErrUnplayableSource] when the locator cannot be opened. ctx stays live for
	// as long as the track plays; streamed sources may keep reading under it.
	Load(ctx context.Context, track models.Track, generation uint64) error
	Play() error
	Pause() error
	Stop() error
	Seek(seconds float64) error
	// SetVolume takes a level in [0, 1].
	SetVolume(level float64) error
	// SetRate returns [ErrUnsupported] on backends without rate control.
	SetRate(rate float64) error
	Events() <-chan Event
	Capabilities() Capabilities
	Close() error
}

func unplayable(track models.Track, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnplayableSource, track.URL, err)
}

// emitter fans backend events into a buffered channel that is never closed, so late senders
// from callbacks cannot panic after Close.
type emitter struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func newEmitter(size int) *emitter {
	return &emitter{ch: make(chan Event, size), done: make(chan struct{})}
}

// send delivers ev unless the backend has been closed.
func (e *emitter) send(ev Event) {
	select {
	case e.ch <- ev:
	case <-e.done:
	}
}

// offer delivers ev only if there is buffer space. Used for progress updates and from audio callbacks.
func (e *emitter) offer(ev Event) {
	select {
	case e.ch <- ev:
	default:
	}
}

func (e *emitter) close() {
	e.once.Do(func() { close(e.done) })
}
