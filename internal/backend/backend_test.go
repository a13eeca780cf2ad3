package backend

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
)

// next waits for the next event of type want, skipping progress updates of other types.
func next(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", want)
			return Event{}
		}
	}
}

func tempTrack(t *testing.T, duration float64) models.Track {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return models.Track{ID: "t", Title: "Song", URL: path, Format: models.FormatMP3, Duration: models.Seconds(duration)}
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		typ  EventType
		want string
	}{
		{EventStarted, "started"},
		{EventTimeUpdated, "time_updated"},
		{EventEnded, "ended"},
		{EventErrored, "errored"},
		{EventType(42), ""},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestEmitter(t *testing.T) {
	t.Run("offer drops when full", func(t *testing.T) {
		e := newEmitter(1)
		e.offer(Event{Type: EventTimeUpdated, Position: 1})
		e.offer(Event{Type: EventTimeUpdated, Position: 2})

		if got := <-e.ch; got.Position != 1 {
			t.Errorf("expected first offered event, got %+v", got)
		}
		select {
		case ev := <-e.ch:
			t.Errorf("expected second offer to be dropped, got %+v", ev)
		default:
		}
	})

	t.Run("send returns after close", func(t *testing.T) {
		e := newEmitter(0)
		e.close()
		e.close()

		done := make(chan struct{})
		go func() {
			e.send(Event{Type: EventEnded})
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("send blocked on a closed emitter")
		}
	})
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name        string
		track       models.Track
		contentType string
		want        models.AudioFormat
	}{
		{"explicit format wins", models.Track{URL: "/a/b.mp3", Format: models.FormatFLAC}, "audio/mpeg", models.FormatFLAC},
		{"content type", models.Track{URL: "https://host/stream", Format: models.FormatStreaming}, "audio/ogg", models.FormatOGG},
		{"content type with params", models.Track{URL: "https://host/stream", Format: models.FormatStreaming}, "audio/wav; codecs=1", models.FormatWAV},
		{"extension from url path", models.Track{URL: "https://host/a.flac?sig=1", Format: models.FormatStreaming}, "application/octet-stream", models.FormatFLAC},
		{"extension from local path", models.Track{URL: "/music/a.opus"}, "", models.FormatOpus},
		{"fallback", models.Track{URL: "https://host/stream", Format: models.FormatStreaming}, "", models.FormatMP3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveFormat(tt.track, tt.contentType); got != tt.want {
				t.Errorf("resolveFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenLocator(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := openLocator(context.Background(), nil, filepath.Join(t.TempDir(), "missing.mp3"))
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("file uri", func(t *testing.T) {
		track := tempTrack(t, 10)
		rc, _, err := openLocator(context.Background(), nil, "file://"+track.URL)
		if err != nil {
			t.Fatalf("openLocator() error = %v", err)
		}
		defer rc.Close()

		data, _ := io.ReadAll(rc)
		if string(data) != "not really audio" {
			t.Errorf("unexpected contents %q", data)
		}
	})
}

func TestNull(t *testing.T) {
	ctx := context.Background()

	t.Run("plays to the end", func(t *testing.T) {
		n := NewNull(5 * time.Millisecond)
		defer n.Close()

		if err := n.Load(ctx, tempTrack(t, 0.05), 7); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if err := n.Play(); err != nil {
			t.Fatalf("Play() error = %v", err)
		}

		started := next(t, n.Events(), EventStarted)
		if started.Generation != 7 || started.Duration != 0.05 {
			t.Errorf("unexpected started event %+v", started)
		}
		if ended := next(t, n.Events(), EventEnded); ended.Generation != 7 {
			t.Errorf("expected generation 7, got %d", ended.Generation)
		}
	})

	t.Run("rejects missing files", func(t *testing.T) {
		n := NewNull(0)
		defer n.Close()

		track := models.Track{ID: "x", URL: filepath.Join(t.TempDir(), "gone.mp3")}
		if err := n.Load(ctx, track, 1); !errors.Is(err, ErrUnplayableSource) {
			t.Fatalf("expected ErrUnplayableSource, got %v", err)
		}
		if err := n.Play(); !errors.Is(err, ErrNotLoaded) {
			t.Errorf("expected ErrNotLoaded, got %v", err)
		}
	})

	t.Run("accepts remote locators", func(t *testing.T) {
		n := NewNull(0)
		defer n.Close()

		track := models.Track{ID: "x", URL: "https://example.com/stream", Format: models.FormatStreaming}
		if err := n.Load(ctx, track, 1); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	})

	t.Run("seek reports position", func(t *testing.T) {
		n := NewNull(time.Hour)
		defer n.Close()

		if err := n.Seek(3); !errors.Is(err, ErrNotLoaded) {
			t.Errorf("expected ErrNotLoaded before load, got %v", err)
		}
		n.Load(ctx, tempTrack(t, 60), 2)
		if err := n.Seek(12); err != nil {
			t.Fatalf("Seek() error = %v", err)
		}
		ev := next(t, n.Events(), EventTimeUpdated)
		if ev.Position != 12 || ev.Generation != 2 {
			t.Errorf("unexpected time update %+v", ev)
		}
	})

	t.Run("pause stops the clock", func(t *testing.T) {
		n := NewNull(5 * time.Millisecond)
		defer n.Close()

		n.Load(ctx, tempTrack(t, 0.1), 1)
		n.Play()
		next(t, n.Events(), EventStarted)
		n.Pause()

		time.Sleep(200 * time.Millisecond)
		for {
			select {
			case ev := <-n.Events():
				if ev.Type == EventEnded {
					t.Fatal("paused playback should not end")
				}
				continue
			default:
			}
			break
		}
	})
}

func TestSelect(t *testing.T) {
	quiet := shared.NewLogger(io.Discard)

	t.Run("null", func(t *testing.T) {
		b, err := Select(shared.PlayerConfig{Backend: KindNull}, shared.MPDConfig{}, quiet)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		defer b.Close()
		if got := b.Capabilities().Name; got != "null" {
			t.Errorf("expected null backend, got %s", got)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Select(shared.PlayerConfig{Backend: "gramophone"}, shared.MPDConfig{}, quiet)
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
