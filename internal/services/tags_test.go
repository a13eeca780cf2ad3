package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/melodify/internal/shared"
)

func TestTagReader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "untagged.mp3")
	if err := os.WriteFile(path, []byte("no tags here"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("untagged file still reports duration", func(t *testing.T) {
		var probed string
		r := &TagReader{Probe: func(p string) (float64, error) {
			probed = p
			return 12.5, nil
		}}

		u, err := r.Extract(ctx, "file://"+path)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if probed != path {
			t.Errorf("expected probe of %s, got %s", path, probed)
		}
		if u.Duration == nil || *u.Duration != 12.5 {
			t.Errorf("expected duration 12.5, got %v", u.Duration)
		}
		if u.Title != "" || u.Artist != "" {
			t.Errorf("expected no tags, got %+v", u)
		}
	})

	t.Run("probe failure leaves duration unknown", func(t *testing.T) {
		r := &TagReader{Probe: func(string) (float64, error) { return 0, errors.New("bad header") }}
		u, err := r.Extract(ctx, path)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if u.Duration != nil {
			t.Errorf("expected nil duration, got %v", *u.Duration)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		r := &TagReader{}
		if _, err := r.Extract(ctx, filepath.Join(dir, "missing.mp3")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("remote locator", func(t *testing.T) {
		r := NewTagReader()
		if _, err := r.Extract(ctx, "https://example.com/a.mp3"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
