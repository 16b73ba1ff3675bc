package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// FilePermissions is the default permission mode for regular files
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories
	DirPermissions = 0755
)

var (
	// ConfigDir is the global configuration directory (~/.duochat)
	ConfigDir string

	// ConfigFile is the YAML configuration file
	ConfigFile string

	// DatabasePath is the SQLite database for the local message archive
	DatabasePath string

	// SessionFile stores the auth cookies between runs
	SessionFile string

	// LogPath is the debug log file
	LogPath string
)

// Realtime holds the transport tuning knobs. The delay/attempt defaults are
// the constants the backend was tuned against; they are configuration, not
// invariants.
type Realtime struct {
	ReconnectDelaySeconds int `yaml:"reconnect_delay_seconds"`
	MaxReconnectAttempts  int `yaml:"max_reconnect_attempts"`
	PollSeconds           int `yaml:"poll_seconds"`
	RefreshSeconds        int `yaml:"refresh_seconds"`
	SearchDebounceMillis  int `yaml:"search_debounce_millis"`
}

// Config is the persisted configuration (~/.duochat/config.yaml).
type Config struct {
	ServerURL     string   `yaml:"server_url"`
	Realtime      Realtime `yaml:"realtime"`
	Notifications bool     `yaml:"notifications"`
	Archive       bool     `yaml:"archive"`
	Debug         bool     `yaml:"debug"`
}

// Default returns a config with every knob at its default value.
func Default() *Config {
	return &Config{
		ServerURL: "http://localhost:8000",
		Realtime: Realtime{
			ReconnectDelaySeconds: 5,
			MaxReconnectAttempts:  5,
			PollSeconds:           2,
			RefreshSeconds:        3,
			SearchDebounceMillis:  250,
		},
		Notifications: true,
		Archive:       true,
	}
}

// Initialize sets up the configuration directory and files.
// It creates ~/.duochat/ and a default config.yaml if missing.
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	ConfigDir = filepath.Join(homeDir, ".duochat")
	ConfigFile = filepath.Join(ConfigDir, "config.yaml")
	DatabasePath = filepath.Join(ConfigDir, "duochat.db")
	SessionFile = filepath.Join(ConfigDir, ".session.json")
	LogPath = filepath.Join(ConfigDir, "duochat.log")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}

	if _, err := os.Stat(ConfigFile); os.IsNotExist(err) {
		if err := Save(Default()); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	if _, err := os.Stat(SessionFile); os.IsNotExist(err) {
		defaultSession := []byte("{\"cookies\":{}}\n")
		if err := os.WriteFile(SessionFile, defaultSession, FilePermissions); err != nil {
			return fmt.Errorf("failed to create session file: %w", err)
		}
	}

	return nil
}

// Load reads config.yaml and fills in zero-valued knobs with defaults.
func Load() (*Config, error) {
	data, err := os.ReadFile(ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes the configuration back to config.yaml.
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(ConfigFile, data, FilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.ServerURL == "" {
		cfg.ServerURL = def.ServerURL
	}
	if cfg.Realtime.ReconnectDelaySeconds <= 0 {
		cfg.Realtime.ReconnectDelaySeconds = def.Realtime.ReconnectDelaySeconds
	}
	if cfg.Realtime.MaxReconnectAttempts <= 0 {
		cfg.Realtime.MaxReconnectAttempts = def.Realtime.MaxReconnectAttempts
	}
	if cfg.Realtime.PollSeconds <= 0 {
		cfg.Realtime.PollSeconds = def.Realtime.PollSeconds
	}
	if cfg.Realtime.RefreshSeconds <= 0 {
		cfg.Realtime.RefreshSeconds = def.Realtime.RefreshSeconds
	}
	if cfg.Realtime.SearchDebounceMillis <= 0 {
		cfg.Realtime.SearchDebounceMillis = def.Realtime.SearchDebounceMillis
	}
}
