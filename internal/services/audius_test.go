package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
	tu "github.com/desertthunder/melodify/internal/testing"
)

var sampleTrack = map[string]any{
	"id":           "D7KyD",
	"title":        "Night Drive",
	"user":         map[string]any{"id": "u1", "name": "Synth Person"},
	"duration":     214,
	"artwork":      map[string]any{"150x150": "Qm123/150x150.jpg"},
	"play_count":   1200,
	"permalink":    "/synth/night-drive",
	"genre":        "Electronic",
	"mood":         "Energizing",
	"tags":         "synthwave,retro",
	"release_date": "2024-01-05",
}

// newAudiusServer serves discovery at / pointing back at itself, plus the track endpoints.
func newAudiusServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Audius) {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			json.NewEncoder(w).Encode(map[string]any{"data": []string{srv.URL}})
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	a := NewAudius(AudiusOpts{
		DiscoveryURL:      srv.URL,
		RequestsPerSecond: 1000,
		Logger:            shared.NewLogger(io.Discard),
	})
	return srv, a
}

func writeData(w http.ResponseWriter, data any) {
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func TestAudiusSearchTracks(t *testing.T) {
	ctx := context.Background()

	t.Run("maps results", func(t *testing.T) {
		var gotQuery string
		srv, a := newAudiusServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/tracks/search" {
				http.NotFound(w, r)
				return
			}
			gotQuery = r.URL.RawQuery
			writeData(w, []any{sampleTrack})
		})

		tracks, err := a.SearchTracks(ctx, "night drive", 5)
		if err != nil {
			t.Fatalf("SearchTracks() error = %v", err)
		}
		if !strings.Contains(gotQuery, "query=night+drive") || !strings.Contains(gotQuery, "limit=5") || !strings.Contains(gotQuery, "app_name=melodify") {
			t.Errorf("unexpected query %q", gotQuery)
		}
		if len(tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(tracks))
		}

		got := tracks[0]
		if got.ID != "audius-D7KyD" || got.Title != "Night Drive" || got.Artist != "Synth Person" {
			t.Errorf("unexpected identity fields %+v", got)
		}
		if got.Format != models.FormatStreaming || got.Source != models.SourceAudius || got.IsLocal {
			t.Errorf("unexpected provenance %+v", got)
		}
		if got.DurationSeconds() != 214 {
			t.Errorf("expected duration 214, got %v", got.DurationSeconds())
		}
		if got.Artwork != audiusContentNode+"Qm123/150x150.jpg" {
			t.Errorf("unexpected artwork %q", got.Artwork)
		}
		if !strings.HasPrefix(got.URL, srv.URL+"/v1/tracks/D7KyD/stream") {
			t.Errorf("unexpected stream url %q", got.URL)
		}
		if got.Metadata["genre"] != "Electronic" || got.Metadata["audius_id"] != "D7KyD" || got.Metadata["user_id"] != "u1" {
			t.Errorf("unexpected metadata %v", got.Metadata)
		}
		if err := got.Validate(); err != nil {
			t.Errorf("mapped track should validate: %v", err)
		}
	})

	t.Run("defaults missing names", func(t *testing.T) {
		_, a := newAudiusServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeData(w, []any{map[string]any{"id": "x"}})
		})

		tracks, err := a.SearchTracks(ctx, "x", 0)
		if err != nil {
			t.Fatalf("SearchTracks() error = %v", err)
		}
		if tracks[0].Title != "Unknown Title" || tracks[0].Artist != "Unknown Artist" || tracks[0].Duration != nil {
			t.Errorf("unexpected defaults %+v", tracks[0])
		}
	})

	t.Run("rejects empty query", func(t *testing.T) {
		a := NewAudius(AudiusOpts{DiscoveryURL: "http://127.0.0.1:0"})
		if _, err := a.SearchTracks(ctx, "  ", 5); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestAudiusTrending(t *testing.T) {
	var window string
	_, a := newAudiusServer(t, func(w http.ResponseWriter, r *http.Request) {
		window = r.URL.Query().Get("time")
		writeData(w, []any{sampleTrack, sampleTrack})
	})
	a.window = "month"

	tracks, err := a.GetTrendingTracks(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetTrendingTracks() error = %v", err)
	}
	if len(tracks) != 2 || window != "month" {
		t.Errorf("expected 2 tracks for month, got %d for %q", len(tracks), window)
	}
}

func TestAudiusGetTrack(t *testing.T) {
	ctx := context.Background()
	_, a := newAudiusServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/tracks/D7KyD":
			writeData(w, sampleTrack)
		case "/v1/tracks/empty":
			writeData(w, nil)
		default:
			http.NotFound(w, r)
		}
	})

	track, err := a.GetTrack(ctx, "audius-D7KyD")
	if err != nil {
		t.Fatalf("GetTrack() error = %v", err)
	}
	if track.ID != "audius-D7KyD" {
		t.Errorf("unexpected id %s", track.ID)
	}

	for _, id := range []string{"missing", "empty"} {
		if _, err := a.GetTrack(ctx, id); !IsNotFound(err) {
			t.Errorf("GetTrack(%q): expected not found, got %v", id, err)
		}
	}
	if _, err := a.GetTrack(ctx, "audius-"); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}

func TestAudiusHostRotation(t *testing.T) {
	var badHits, goodHits atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badHits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodHits.Add(1)
		writeData(w, []any{sampleTrack})
	}))
	defer good.Close()
	discovery := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []string{bad.URL, good.URL + "/"}})
	}))
	defer discovery.Close()

	a := NewAudius(AudiusOpts{DiscoveryURL: discovery.URL, RequestsPerSecond: 1000, Logger: shared.NewLogger(io.Discard)})
	ctx := context.Background()

	if _, err := a.SearchTracks(ctx, "q", 1); !errors.Is(err, shared.ErrAPIRequest) {
		t.Fatalf("expected first request to fail with ErrAPIRequest, got %v", err)
	}
	if _, err := a.SearchTracks(ctx, "q", 1); err != nil {
		t.Fatalf("expected rotated request to succeed, got %v", err)
	}
	if badHits.Load() != 1 || goodHits.Load() != 1 {
		t.Errorf("expected one hit per host, got bad=%d good=%d", badHits.Load(), goodHits.Load())
	}
	if got := a.StreamURL("audius-abc"); !strings.HasPrefix(got, good.URL+"/v1/tracks/abc/stream") {
		t.Errorf("expected stream url on the healthy host, got %q", got)
	}
}

func TestAudiusDiscoveryFailure(t *testing.T) {
	discovery := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []string{}})
	}))
	defer discovery.Close()

	a := NewAudius(AudiusOpts{DiscoveryURL: discovery.URL, Logger: shared.NewLogger(io.Discard)})
	if _, err := a.GetTrendingTracks(context.Background(), 5); !errors.Is(err, shared.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
	if got := a.StreamURL("abc"); got != "" {
		t.Errorf("expected empty stream url before discovery, got %q", got)
	}
}

func TestAudiusTransportFailure(t *testing.T) {
	client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
	a := NewAudius(AudiusOpts{
		DiscoveryURL: "https://discovery.invalid",
		HTTPClient:   client,
		Logger:       shared.NewLogger(io.Discard),
	})

	_, err := a.SearchTracks(context.Background(), "night", 5)
	if !errors.Is(err, shared.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected transport error in message, got %v", err)
	}
}
