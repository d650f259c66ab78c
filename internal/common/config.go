package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Runner      RunnerConfig    `toml:"runner"`
	Directory   DirectoryConfig `toml:"directory"`
	Tracker     TrackerConfig   `toml:"tracker"`
	History     HistoryConfig   `toml:"history"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// RunnerConfig points at the external task runner
type RunnerConfig struct {
	BaseURL        string        `toml:"base_url"`        // HTTP base URL for submit/fetch
	EventsURL      string        `toml:"events_url"`      // Fixed websocket endpoint for push events
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP request timeout
}

// DirectoryConfig points at the external seller directory service
type DirectoryConfig struct {
	BaseURL         string `toml:"base_url"`         // Directory service URL
	SeedFile        string `toml:"seed_file"`        // Local sellers.yaml fallback
	RefreshSchedule string `toml:"refresh_schedule"` // Cron expression for periodic refresh
}

// TrackerConfig bounds the pull-fallback path and the in-memory task set
type TrackerConfig struct {
	FallbackTimeout time.Duration `toml:"fallback_timeout"`  // Total wait in pull-fallback mode
	PollInterval    time.Duration `toml:"poll_interval"`     // Fallback poll rate
	MaxTrackedTasks int           `toml:"max_tracked_tasks"` // Finished tasks kept in memory
}

// HistoryConfig caps the persisted ledgers
type HistoryConfig struct {
	MaxEntries       int `toml:"max_entries"`        // Per-ledger cap
	MaxShoppingItems int `toml:"max_shopping_items"` // Shopping list cap
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type WebSocketConfig struct {
	ReadBufferSize  int `toml:"read_buffer_size"`
	WriteBufferSize int `toml:"write_buffer_size"`
}

// DefaultConfig returns the configuration used when no file is supplied
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/dealagent",
			},
		},
		Runner: RunnerConfig{
			BaseURL:        "http://localhost:8090",
			EventsURL:      "ws://localhost:8090/events",
			RequestTimeout: 30 * time.Second,
		},
		Directory: DirectoryConfig{
			SeedFile:        "./sellers.yaml",
			RefreshSchedule: "@every 15m",
		},
		Tracker: TrackerConfig{
			FallbackTimeout: 5 * time.Minute,
			PollInterval:    time.Second,
			MaxTrackedTasks: 100,
		},
		History: HistoryConfig{
			MaxEntries:       50,
			MaxShoppingItems: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// LoadConfig loads configuration with layering: defaults -> file -> env
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies DEALAGENT_* environment variables over the
// loaded configuration
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DEALAGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("DEALAGENT_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("DEALAGENT_RUNNER_URL"); v != "" {
		config.Runner.BaseURL = v
	}
	if v := os.Getenv("DEALAGENT_RUNNER_EVENTS_URL"); v != "" {
		config.Runner.EventsURL = v
	}
	if v := os.Getenv("DEALAGENT_DIRECTORY_URL"); v != "" {
		config.Directory.BaseURL = v
	}
	if v := os.Getenv("DEALAGENT_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("DEALAGENT_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
}

// ApplyFlagOverrides applies command-line overrides, the highest priority
// layer
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.History.MaxEntries <= 0 {
		return fmt.Errorf("history max_entries must be positive, got %d", c.History.MaxEntries)
	}
	if c.Tracker.FallbackTimeout <= 0 {
		return fmt.Errorf("tracker fallback_timeout must be positive")
	}
	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("tracker poll_interval must be positive")
	}
	return nil
}
