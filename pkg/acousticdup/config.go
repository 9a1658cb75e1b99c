package acousticdup

import (
	"github.com/himanishpuri/acousticdup/pkg/acousticdup/fpcalc"
)

type Config struct {
	DBPath string
	// MaxOffset is the alignment search half-width in fingerprint words.
	MaxOffset int
	// StoreThreshold is the minimum similarity stored for long songs,
	// ShortSongStoreThreshold the one used when either song is shorter than
	// ShortSongLength seconds.
	StoreThreshold          float64
	ShortSongStoreThreshold float64
	ShortSongLength         float64
	// MatchThreshold marks a stored similarity as a duplicate.
	MatchThreshold float64
	Workers        int
	Fpcalc         fpcalc.Options
	Logger         Logger
	Storage        Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithMaxOffset(maxOffset int) Option {
	return func(c *Config) {
		c.MaxOffset = maxOffset
	}
}

func WithStoreThreshold(threshold float64) Option {
	return func(c *Config) {
		c.StoreThreshold = threshold
	}
}

func WithShortSongStoreThreshold(threshold float64) Option {
	return func(c *Config) {
		c.ShortSongStoreThreshold = threshold
	}
}

func WithShortSongLength(seconds float64) Option {
	return func(c *Config) {
		c.ShortSongLength = seconds
	}
}

func WithMatchThreshold(threshold float64) Option {
	return func(c *Config) {
		c.MatchThreshold = threshold
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithFpcalc(opts fpcalc.Options) Option {
	return func(c *Config) {
		c.Fpcalc = opts
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:                  "acousticdup.sqlite3",
		MaxOffset:               100,
		StoreThreshold:          0.55,
		ShortSongStoreThreshold: 0.7,
		ShortSongLength:         30,
		MatchThreshold:          0.8,
		Fpcalc:                  fpcalc.DefaultOptions(),
	}
}
