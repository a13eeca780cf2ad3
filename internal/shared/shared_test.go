package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  log.Level
	}{
		{name: "empty", input: "", want: log.InfoLevel},
		{name: "debug", input: "debug", want: log.DebugLevel},
		{name: "upper case", input: "WARN", want: log.WarnLevel},
		{name: "unknown", input: "chatty", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggers(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := WithLogger(NewLogger(&buf), "component", "store")
		l.Info("opened")

		if !strings.Contains(buf.String(), "component=store") {
			t.Errorf("expected component field in output, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger writes to rotated file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "melodify.log")
		l, closer, err := NewFileLogger(LogConfig{File: path, Level: "debug", MaxSizeMB: 1})
		if err != nil {
			t.Fatalf("failed to create file logger: %v", err)
		}
		defer closer.Close()

		if l.GetLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", l.GetLevel())
		}
		l.Debug("hello")
	})

	t.Run("GenerateID is unique", func(t *testing.T) {
		if GenerateID() == GenerateID() {
			t.Error("expected distinct ids")
		}
	})
}

func TestDatabasePaths(t *testing.T) {
	tc := []struct {
		path   string
		memory bool
		dsn    string
	}{
		{path: ":memory:", memory: true, dsn: ":memory:?_foreign_keys=on"},
		{path: "file::memory:?cache=shared", memory: true, dsn: "file::memory:?cache=shared&_foreign_keys=on"},
		{path: "./melodify.db", memory: false, dsn: "./melodify.db?_foreign_keys=on"},
		{path: "lib.db?_fk=1", memory: false, dsn: "lib.db?_fk=1"},
	}

	for _, tt := range tc {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsMemoryPath(tt.path); got != tt.memory {
				t.Errorf("IsMemoryPath(%q) = %v, want %v", tt.path, got, tt.memory)
			}
			if got := WithForeignKeys(tt.path); got != tt.dsn {
				t.Errorf("WithForeignKeys(%q) = %q, want %q", tt.path, got, tt.dsn)
			}
		})
	}
}

func TestFormatting(t *testing.T) {
	t.Run("FormatDuration", func(t *testing.T) {
		tc := []struct {
			in   float64
			want string
		}{
			{0, "--:--"},
			{-3, "--:--"},
			{59.6, "1:00"},
			{183.2, "3:03"},
			{3725, "1:02:05"},
		}
		for _, tt := range tc {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})

	t.Run("Truncate", func(t *testing.T) {
		if got := Truncate("Night Drive", 8); got != "Night..." {
			t.Errorf("got %q", got)
		}
		if got := Truncate("short", 10); got != "short" {
			t.Errorf("got %q", got)
		}
		if got := Truncate("ünïcode", 2); got != "ün" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("MarshalJSON keeps ampersands", func(t *testing.T) {
		data, err := MarshalJSON(map[string]string{"name": "Drum & Bass"}, true)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "Drum & Bass") || !strings.Contains(string(data), "\n  ") {
			t.Errorf("unexpected output %s", data)
		}
	})
}
