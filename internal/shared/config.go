package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values loaded from the TOML file.
const (
	EnvDatabasePath = "MELODIFY_DB_PATH"
	EnvBackend      = "MELODIFY_BACKEND"
	EnvMPDAddress   = "MELODIFY_MPD_ADDRESS"
	EnvMPDPassword  = "MELODIFY_MPD_PASSWORD"
	EnvLogLevel     = "MELODIFY_LOG_LEVEL"
	EnvLogFile      = "MELODIFY_LOG_FILE"
	EnvServerHost   = "MELODIFY_SERVER_HOST"
	EnvServerPort   = "MELODIFY_SERVER_PORT"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Player   PlayerConfig   `toml:"player"`
	MPD      MPDConfig      `toml:"mpd"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Library  LibraryConfig  `toml:"library"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PlayerConfig selects and tunes the playback backend.
//
// Backend is one of "auto", "speaker", "mpd" or "null".
type PlayerConfig struct {
	Backend        string  `toml:"backend"`
	SampleRate     int     `toml:"sample_rate"`
	BufferMS       int     `toml:"buffer_ms"`
	PollIntervalMS int     `toml:"poll_interval_ms"`
	DefaultVolume  float64 `toml:"default_volume"`
}

// MPDConfig describes how to reach an MPD server for the native-handle backend.
type MPDConfig struct {
	Network  string `toml:"network"`
	Address  string `toml:"address"`
	Password string `toml:"password"`
}

// CatalogConfig contains remote catalog client settings.
type CatalogConfig struct {
	AppName           string  `toml:"app_name"`
	DiscoveryURL      string  `toml:"discovery_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	TrendingWindow    string  `toml:"trending_window"`
}

// LibraryConfig lists local folders imported by the scanner.
type LibraryConfig struct {
	Paths []string `toml:"paths"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig contains log level and optional rotated log file settings.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults; environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration values with MELODIFY_* environment variables.
func (c *Config) ApplyEnv() {
	c.Database.Path = getEnv(EnvDatabasePath, c.Database.Path)
	c.Player.Backend = strings.ToLower(getEnv(EnvBackend, c.Player.Backend))
	c.MPD.Address = getEnv(EnvMPDAddress, c.MPD.Address)
	c.MPD.Password = getEnv(EnvMPDPassword, c.MPD.Password)
	c.Log.Level = getEnv(EnvLogLevel, c.Log.Level)
	c.Log.File = getEnv(EnvLogFile, c.Log.File)
	c.Server.Host = getEnv(EnvServerHost, c.Server.Host)

	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
