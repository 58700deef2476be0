package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional shuttle configuration file. Pointer fields
// are nil when the file does not set them.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Log      LogConfig      `toml:"log"`
	Theme    ThemeConfig    `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	Conflict      *string `toml:"conflict"`
	Verify        *bool   `toml:"verify"`
	BWLimit       *string `toml:"bwlimit"`
	ChunkSize     *string `toml:"chunk_size"`
	MaxDepth      *int    `toml:"max_depth"`
	Journal       *bool   `toml:"journal"`
	PreserveOwner *bool   `toml:"preserve_owner"`
}

// LogConfig configures the structured log.
type LogConfig struct {
	File  *string `toml:"file"`
	Level *string `toml:"level"`
}

// ThemeConfig holds optional color overrides for status words.
type ThemeConfig struct {
	Green  *string `toml:"green"`
	Yellow *string `toml:"yellow"`
	Red    *string `toml:"red"`
	Muted  *string `toml:"muted"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "shuttle", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, treating a missing file as empty.
// Unknown keys are an error so typos do not go unnoticed.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	d := c.Defaults
	if d.BWLimit != nil {
		if _, err := ParseSize(*d.BWLimit); err != nil {
			return fmt.Errorf("defaults.bwlimit: %w", err)
		}
	}
	if d.ChunkSize != nil {
		n, err := ParseSize(*d.ChunkSize)
		if err != nil {
			return fmt.Errorf("defaults.chunk_size: %w", err)
		}
		if n <= 0 {
			return fmt.Errorf("defaults.chunk_size: must be positive")
		}
	}
	if d.MaxDepth != nil && *d.MaxDepth <= 0 {
		return fmt.Errorf("defaults.max_depth: must be positive")
	}
	if c.Log.Level != nil {
		if _, err := ParseLevel(*c.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	return nil
}

// ParseLevel parses a slog level name such as "debug" or "warn".
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return l, nil
}
