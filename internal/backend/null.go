package backend

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/melodify/internal/models"
)

// Null is a silent backend for hosts without an audio device. Playback advances a virtual clock
// scaled by the playback rate, so queue policy and progress behave as they would on real output.
type Null struct {
	tick   time.Duration
	events *emitter

	mu         sync.Mutex
	generation uint64
	loaded     bool
	started    bool
	playing    bool
	position   float64
	duration   float64
	rate       float64
	cancel     context.CancelFunc
}

// NewNull creates a Null backend that reports progress every tick (default 250ms).
func NewNull(tick time.Duration) *Null {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	return &Null{tick: tick, events: newEmitter(64), rate: 1}
}

// Load accepts http(s) locators as-is and requires local files to exist.
func (n *Null) Load(_ context.Context, track models.Track, generation uint64) error {
	n.Stop()

	if track.URL == "" {
		return unplayable(track, fmt.Errorf("empty locator"))
	}
	if !strings.HasPrefix(track.URL, "http://") && !strings.HasPrefix(track.URL, "https://") {
		path := strings.TrimPrefix(track.URL, "file://")
		if _, err := os.Stat(path); err != nil {
			return unplayable(track, err)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.generation = generation
	n.loaded = true
	n.started = false
	n.position = 0
	n.duration = track.DurationSeconds()
	return nil
}

func (n *Null) Play() error {
	n.mu.Lock()
	if !n.loaded {
		n.mu.Unlock()
		return ErrNotLoaded
	}
	if n.playing {
		n.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.playing = true
	first := !n.started
	n.started = true
	ev := Event{Type: EventStarted, Generation: n.generation, Duration: n.duration}
	gen := n.generation
	n.mu.Unlock()

	if first {
		n.events.send(ev)
	}
	go n.run(ctx, gen)
	return nil
}

func (n *Null) Pause() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return ErrNotLoaded
	}
	n.halt()
	return nil
}

func (n *Null) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.halt()
	n.loaded = false
	n.started = false
	n.position = 0
	return nil
}

func (n *Null) Seek(seconds float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return ErrNotLoaded
	}
	n.position = seconds
	n.events.offer(Event{Type: EventTimeUpdated, Generation: n.generation, Position: n.position, Duration: n.duration})
	return nil
}

func (n *Null) SetVolume(float64) error { return nil }

func (n *Null) SetRate(rate float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rate = rate
	return nil
}

func (n *Null) Events() <-chan Event { return n.events.ch }

func (n *Null) Capabilities() Capabilities {
	return Capabilities{Name: "null", Rate: true, Seek: true, Volume: true}
}

func (n *Null) Close() error {
	n.Stop()
	n.events.close()
	return nil
}

// halt cancels the clock goroutine; callers hold n.mu.
func (n *Null) halt() {
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.playing = false
}

func (n *Null) run(ctx context.Context, generation uint64) {
	ticker := time.NewTicker(n.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n.mu.Lock()
		if ctx.Err() != nil || n.generation != generation {
			n.mu.Unlock()
			return
		}
		n.position += n.tick.Seconds() * n.rate
		ended := n.duration > 0 && n.position >= n.duration
		if ended {
			n.position = n.duration
			n.halt()
		}
		ev := Event{Type: EventTimeUpdated, Generation: generation, Position: n.position, Duration: n.duration}
		n.mu.Unlock()

		n.events.offer(ev)
		if ended {
			n.events.send(Event{Type: EventEnded, Generation: generation})
			return
		}
	}
}
