// Package config loads the acousticdup command configuration from a YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigPathEnv names the YAML file read by Load when no path is given.
	ConfigPathEnv = "ACOUSTICDUP_CONFIG"
	// DBPathEnv overrides db_path.
	DBPathEnv = "ACOUSTICDUP_DB_PATH"

	DefaultDBPath = "acousticdup.sqlite3"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	DBPath string `yaml:"db_path"`
	// MaxOffset is the alignment search half-width in fingerprint words.
	MaxOffset int `yaml:"max_offset"`
	// StoreThreshold is the minimum similarity kept for long songs.
	StoreThreshold float64 `yaml:"store_threshold"`
	// ShortSongStoreThreshold replaces StoreThreshold when either song is
	// shorter than ShortSongLength seconds.
	ShortSongStoreThreshold float64 `yaml:"short_song_store_threshold"`
	ShortSongLength         float64 `yaml:"short_song_length"`
	// MatchThreshold marks a stored similarity as a duplicate.
	MatchThreshold float64 `yaml:"match_threshold"`
	Workers        int     `yaml:"workers"`
	LogLevel       string  `yaml:"log_level"`
	FpcalcPath     string  `yaml:"fpcalc_path"`
}

func Default() Config {
	return Config{
		DBPath:                  DefaultDBPath,
		MaxOffset:               100,
		StoreThreshold:          0.55,
		ShortSongStoreThreshold: 0.7,
		ShortSongLength:         30,
		MatchThreshold:          0.8,
		FpcalcPath:              "fpcalc",
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path falls back to $ACOUSTICDUP_CONFIG; if that is unset too only
// defaults and environment are used. A missing file named explicitly is an
// error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.DBPath = getEnvOrDefault(DBPathEnv, cfg.DBPath)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c Config) Validate() error {
	inUnit := func(v float64) bool { return v >= 0 && v <= 1 }

	switch {
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path is empty", ErrInvalid)
	case c.MaxOffset < 1:
		return fmt.Errorf("%w: max_offset must be at least 1, got %d", ErrInvalid, c.MaxOffset)
	case !inUnit(c.StoreThreshold):
		return fmt.Errorf("%w: store_threshold %g not in [0, 1]", ErrInvalid, c.StoreThreshold)
	case !inUnit(c.ShortSongStoreThreshold):
		return fmt.Errorf("%w: short_song_store_threshold %g not in [0, 1]", ErrInvalid, c.ShortSongStoreThreshold)
	case !inUnit(c.MatchThreshold):
		return fmt.Errorf("%w: match_threshold %g not in [0, 1]", ErrInvalid, c.MatchThreshold)
	case c.ShortSongLength < 0:
		return fmt.Errorf("%w: short_song_length %g is negative", ErrInvalid, c.ShortSongLength)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers %d is negative", ErrInvalid, c.Workers)
	}
	return nil
}

// Write saves c as YAML, creating or truncating path.
func (c Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
