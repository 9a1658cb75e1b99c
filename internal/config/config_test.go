package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acousticdup.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	t.Setenv(DBPathEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Expected defaults %+v, got %+v", Default(), cfg)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv(DBPathEnv, "")
	path := writeConfig(t, `
db_path: /var/lib/acousticdup/db.sqlite3
max_offset: 80
store_threshold: 0.6
match_threshold: 0.9
workers: 4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/var/lib/acousticdup/db.sqlite3" || cfg.MaxOffset != 80 || cfg.Workers != 4 {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.StoreThreshold != 0.6 || cfg.MatchThreshold != 0.9 {
		t.Errorf("Unexpected thresholds %+v", cfg)
	}
	// Keys absent from the file keep their defaults.
	if cfg.ShortSongStoreThreshold != 0.7 || cfg.ShortSongLength != 30 {
		t.Errorf("Expected untouched defaults, got %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "db_path: from-file.sqlite3\n")
	t.Setenv(ConfigPathEnv, path)
	t.Setenv(DBPathEnv, "from-env.sqlite3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "from-env.sqlite3" {
		t.Errorf("Expected the environment to override db_path, got %q", cfg.DBPath)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(DBPathEnv, "")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
	if _, err := Load(writeConfig(t, "max_offset: [1, 2]\n")); err == nil {
		t.Error("Expected an error for malformed YAML")
	}
	if _, err := Load(writeConfig(t, "store_threshold: 1.5\n")); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero max offset", func(c *Config) { c.MaxOffset = 0 }},
		{"negative store threshold", func(c *Config) { c.StoreThreshold = -0.1 }},
		{"short threshold above one", func(c *Config) { c.ShortSongStoreThreshold = 1.1 }},
		{"match threshold above one", func(c *Config) { c.MatchThreshold = 2 }},
		{"negative short song length", func(c *Config) { c.ShortSongLength = -1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Setenv(DBPathEnv, "")
	path := filepath.Join(t.TempDir(), "out.yaml")

	want := Default()
	want.MaxOffset = 64
	want.LogLevel = "debug"
	if err := want.Write(path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}
