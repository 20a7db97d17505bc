package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Library  LibraryConfig  `toml:"library"`
	Watcher  WatcherConfig  `toml:"watcher"`
	Metadata MetadataConfig `toml:"metadata"`
}

// DatabaseConfig contains playlist store configuration
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// LibraryConfig contains defaults for playlists created through the library
type LibraryConfig struct {
	DefaultName   string `toml:"default_name"`
	DefaultType   string `toml:"default_type"`
	InboxPlaylist string `toml:"inbox_playlist"`
}

// WatcherConfig contains inbox directory watching configuration
type WatcherConfig struct {
	Enabled  bool   `toml:"enabled"`
	InboxDir string `toml:"inbox_dir"`
}

// MetadataConfig contains audio file import configuration
type MetadataConfig struct {
	SupportedFormats []string `toml:"supported_formats"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:           "./mixtape.db",
			MaxConnections: 5,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Library: LibraryConfig{
			DefaultName:   "playlist",
			DefaultType:   "normal",
			InboxPlaylist: "Inbox",
		},
		Watcher: WatcherConfig{
			Enabled:  false,
			InboxDir: "./inbox",
		},
		Metadata: MetadataConfig{
			SupportedFormats: []string{".flac", ".mp3", ".wav", ".m4a"},
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating it with
// defaults when missing, then applies .env and environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies MIXTAPE_* environment variables to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIXTAPE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("MIXTAPE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIXTAPE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MIXTAPE_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	if v := os.Getenv("MIXTAPE_INBOX_PLAYLIST"); v != "" {
		cfg.Library.InboxPlaylist = v
	}

	if v := os.Getenv("MIXTAPE_WATCHER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Watcher.Enabled = b
		}
	}
	if v := os.Getenv("MIXTAPE_INBOX_DIR"); v != "" {
		cfg.Watcher.InboxDir = v
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# mixtape configuration
# Edit the values below to customize the playlist store, logging and inbox watcher.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return fmt.Errorf("log rotation limits must be non-negative")
	}

	if c.Library.InboxPlaylist == "" {
		return fmt.Errorf("inbox playlist name cannot be empty")
	}

	if c.Watcher.Enabled && c.Watcher.InboxDir == "" {
		return fmt.Errorf("inbox directory is required when the watcher is enabled")
	}

	if len(c.Metadata.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}
	for _, format := range c.Metadata.SupportedFormats {
		if !strings.HasPrefix(format, ".") {
			return fmt.Errorf("invalid audio format: %s (must start with a dot)", format)
		}
	}

	return nil
}

// IsFormatSupported checks if an audio file extension is supported,
// ignoring case
func (c MetadataConfig) IsFormatSupported(format string) bool {
	for _, supported := range c.SupportedFormats {
		if strings.EqualFold(supported, format) {
			return true
		}
	}
	return false
}
