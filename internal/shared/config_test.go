package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./melodify.db" {
			t.Errorf("expected database path ./melodify.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Player.Backend != "auto" {
			t.Errorf("expected backend auto, got %s", config.Player.Backend)
		}

		if config.Player.PollIntervalMS != 1000 {
			t.Errorf("expected poll interval 1000ms, got %d", config.Player.PollIntervalMS)
		}

		if config.Catalog.DiscoveryURL != "https://api.audius.co" {
			t.Errorf("expected discovery URL https://api.audius.co, got %s", config.Catalog.DiscoveryURL)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[player]
backend = "mpd"

[mpd]
address = "music.local:6600"

[server]
host = "0.0.0.0"
port = 8080
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Player.Backend != "mpd" {
			t.Errorf("expected backend mpd, got %s", config.Player.Backend)
		}
		if config.MPD.Address != "music.local:6600" {
			t.Errorf("expected mpd address music.local:6600, got %s", config.MPD.Address)
		}
		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}

		if config.Player.PollIntervalMS != 1000 {
			t.Errorf("expected omitted keys to keep defaults, got poll interval %d", config.Player.PollIntervalMS)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("LoadConfig invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database\npath = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv(EnvDatabasePath, "/env/lib.db")
		t.Setenv(EnvBackend, "NULL")
		t.Setenv(EnvServerPort, "9999")
		t.Setenv(EnvLogLevel, "debug")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Database.Path != "/env/lib.db" {
			t.Errorf("expected env database path, got %s", config.Database.Path)
		}
		if config.Player.Backend != "null" {
			t.Errorf("expected backend null, got %s", config.Player.Backend)
		}
		if config.Server.Port != 9999 {
			t.Errorf("expected port 9999, got %d", config.Server.Port)
		}
		if config.Log.Level != "debug" {
			t.Errorf("expected log level debug, got %s", config.Log.Level)
		}
	})

	t.Run("LoadEnvFile", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("MELODIFY_MPD_ADDRESS=dotenv:6600\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv(EnvMPDAddress, "")
		os.Unsetenv(EnvMPDAddress)

		if err := LoadEnvFile(envPath); err != nil {
			t.Fatalf("failed to load env file: %v", err)
		}

		config := DefaultConfig()
		config.ApplyEnv()
		if config.MPD.Address != "dotenv:6600" {
			t.Errorf("expected address from env file, got %s", config.MPD.Address)
		}

		if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Errorf("missing env file should be ignored, got %v", err)
		}
	})
}
