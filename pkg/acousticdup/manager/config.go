package manager

import (
	"errors"
	"fmt"
	"runtime"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultMaxOffset                = 50
	DefaultCancelThreshold          = 0.5
	DefaultShortSongCancelThreshold = 0.6
	DefaultShortSongLength          = 30.0
)

// Config holds the matching parameters of a Manager.
type Config struct {
	// MaxOffset is the half-width, in fingerprint words, of the alignment
	// search window.
	MaxOffset int
	// CancelThreshold is the minimum similarity reported when both songs
	// last at least ShortSongLength seconds.
	CancelThreshold float64
	// ShortSongCancelThreshold is used when either song is short.
	ShortSongCancelThreshold float64
	ShortSongLength          float64 // seconds
	// ExpectedSize is a capacity hint for the number of indexed songs.
	ExpectedSize int
	// Workers bounds the goroutines used by a scan. Zero means
	// runtime.GOMAXPROCS(0); one gives a sequential scan.
	Workers int
}

type Option func(*Config)

func WithMaxOffset(maxOffset int) Option {
	return func(c *Config) {
		c.MaxOffset = maxOffset
	}
}

func WithCancelThreshold(threshold float64) Option {
	return func(c *Config) {
		c.CancelThreshold = threshold
	}
}

func WithShortSongCancelThreshold(threshold float64) Option {
	return func(c *Config) {
		c.ShortSongCancelThreshold = threshold
	}
}

func WithShortSongLength(seconds float64) Option {
	return func(c *Config) {
		c.ShortSongLength = seconds
	}
}

func WithExpectedSize(n int) Option {
	return func(c *Config) {
		c.ExpectedSize = n
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func DefaultConfig() Config {
	return Config{
		MaxOffset:                DefaultMaxOffset,
		CancelThreshold:          DefaultCancelThreshold,
		ShortSongCancelThreshold: DefaultShortSongCancelThreshold,
		ShortSongLength:          DefaultShortSongLength,
	}
}

// Validate reports the first invalid field of c.
func (c Config) Validate() error {
	switch {
	case c.MaxOffset < 1:
		return fmt.Errorf("%w: max offset must be at least 1, got %d", ErrInvalidConfig, c.MaxOffset)
	case c.CancelThreshold < 0 || c.CancelThreshold > 1:
		return fmt.Errorf("%w: cancel threshold %g not in [0, 1]", ErrInvalidConfig, c.CancelThreshold)
	case c.ShortSongCancelThreshold < 0 || c.ShortSongCancelThreshold > 1:
		return fmt.Errorf("%w: short song cancel threshold %g not in [0, 1]", ErrInvalidConfig, c.ShortSongCancelThreshold)
	case c.ShortSongLength < 0:
		return fmt.Errorf("%w: short song length %g is negative", ErrInvalidConfig, c.ShortSongLength)
	case c.ExpectedSize < 0:
		return fmt.Errorf("%w: expected size %d is negative", ErrInvalidConfig, c.ExpectedSize)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers %d is negative", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// Threshold resolves the similarity threshold for a pair of songs: the short
// song threshold applies as soon as either duration is below ShortSongLength.
func (c Config) Threshold(duration1, duration2 float64) float64 {
	if duration1 < c.ShortSongLength || duration2 < c.ShortSongLength {
		return c.ShortSongCancelThreshold
	}
	return c.CancelThreshold
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
