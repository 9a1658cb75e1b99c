// Package manager implements the incremental fingerprint matching engine.
//
// A Manager indexes songs one at a time. Each song can be added silently, or
// compared against every indexed song (or a chosen subset) before being
// added, which is how a library-wide duplicate scan proceeds: every song is
// only ever compared with the songs indexed before it.
package manager

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/himanishpuri/acousticdup/pkg/acousticdup/fingerprint"
	"github.com/himanishpuri/acousticdup/pkg/acousticdup/store"
	"github.com/himanishpuri/acousticdup/pkg/logger"
)

// Logger is the subset of the logger used by the engine.
type Logger interface {
	Debugf(format string, args ...any)
}

// Match is an indexed song similar to the song being added.
type Match struct {
	SongID     int64
	Offset     int
	Similarity float64
}

// Manager is safe for concurrent use. Adds and configuration changes are
// serialised; comparisons between indexed songs may run in parallel.
type Manager struct {
	mu    sync.RWMutex
	cfg   Config
	store *store.Store
	log   Logger
}

func New(opts ...Option) (*Manager, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Manager{
		cfg:   cfg,
		store: store.New(cfg.ExpectedSize),
		log:   logger.GetLogger(),
	}, nil
}

// SetLogger replaces the logger used for debug output.
func (m *Manager) SetLogger(log Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if log != nil {
		m.log = log
	}
}

// Configure replaces the whole configuration. MaxOffset cannot change once
// songs are indexed, since stored fingerprints are padded with it.
func (m *Manager) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.MaxOffset != m.cfg.MaxOffset && m.store.Len() > 0 {
		return fmt.Errorf("%w: max offset cannot change after %d songs were added", ErrInvalidConfig, m.store.Len())
	}
	m.cfg = cfg
	m.store.Reserve(cfg.ExpectedSize)
	return nil
}

func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) update(fn func(*Config)) error {
	cfg := m.Config()
	fn(&cfg)
	return m.Configure(cfg)
}

func (m *Manager) SetMaxOffset(maxOffset int) error {
	return m.update(func(c *Config) { c.MaxOffset = maxOffset })
}

func (m *Manager) MaxOffset() int {
	return m.Config().MaxOffset
}

func (m *Manager) SetCancelThreshold(threshold float64) error {
	return m.update(func(c *Config) { c.CancelThreshold = threshold })
}

func (m *Manager) CancelThreshold() float64 {
	return m.Config().CancelThreshold
}

func (m *Manager) SetShortSongCancelThreshold(threshold float64) error {
	return m.update(func(c *Config) { c.ShortSongCancelThreshold = threshold })
}

func (m *Manager) ShortSongCancelThreshold() float64 {
	return m.Config().ShortSongCancelThreshold
}

func (m *Manager) SetShortSongLength(seconds float64) error {
	return m.update(func(c *Config) { c.ShortSongLength = seconds })
}

func (m *Manager) ShortSongLength() float64 {
	return m.Config().ShortSongLength
}

func (m *Manager) SetExpectedSize(n int) error {
	return m.update(func(c *Config) { c.ExpectedSize = n })
}

func (m *Manager) SetWorkers(n int) error {
	return m.update(func(c *Config) { c.Workers = n })
}

// Size returns the number of indexed songs.
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Len()
}

// Threshold resolves the threshold used when comparing songs with the given
// durations.
func (m *Manager) Threshold(duration1, duration2 float64) float64 {
	return m.Config().Threshold(duration1, duration2)
}

// prepare validates and pads a song before it is scanned or inserted.
// Callers must hold the write lock.
func (m *Manager) prepare(songID int64, fp fingerprint.Fingerprint, duration float64) (store.Entry, error) {
	if m.store.Contains(songID) {
		return store.Entry{}, fmt.Errorf("%w: %d", store.ErrDuplicateID, songID)
	}
	if err := fingerprint.Validate(fp, m.cfg.MaxOffset); err != nil {
		return store.Entry{}, fmt.Errorf("song %d: %w", songID, err)
	}

	return store.Entry{
		SongID:      songID,
		Fingerprint: fingerprint.Pad(fp, m.cfg.MaxOffset),
		Duration:    duration,
	}, nil
}

// AddSong indexes a song without comparing it.
func (m *Manager) AddSong(songID int64, fp fingerprint.Fingerprint, duration float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.prepare(songID, fp, duration)
	if err != nil {
		return err
	}
	return m.store.Insert(entry)
}

// AddSongAndCompare compares a song with every indexed song and then indexes
// it. It returns the songs whose similarity is above the resolved threshold,
// in indexing order.
//
// The song is only indexed once the scan is complete. If ctx is cancelled
// during the scan, the scan stops, the song is not indexed and ctx.Err() is
// returned.
func (m *Manager) AddSongAndCompare(ctx context.Context, songID int64, fp fingerprint.Fingerprint, duration float64) ([]Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.prepare(songID, fp, duration)
	if err != nil {
		return nil, err
	}

	matches, err := scan(ctx, entry, m.store.Snapshot(), m.cfg)
	if err != nil {
		return nil, err
	}
	m.log.Debugf("song %d compared with %d songs: %d matches", songID, m.store.Len(), len(matches))

	if err := m.store.Insert(entry); err != nil {
		return nil, err
	}
	return matches, nil
}

// AddSongAndCompareToSongList is AddSongAndCompare restricted to the
// candidates. Candidates that are not indexed are skipped, and a candidate
// listed twice is compared once. Matches follow candidate order.
func (m *Manager) AddSongAndCompareToSongList(ctx context.Context, songID int64, fp fingerprint.Fingerprint, duration float64, candidates []int64) ([]Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.prepare(songID, fp, duration)
	if err != nil {
		return nil, err
	}

	targets := make([]store.Entry, 0, len(candidates))
	seen := make(map[int64]struct{}, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		e, ok := m.store.Lookup(id)
		if !ok {
			m.log.Debugf("song %d: candidate %d is not indexed, skipping", songID, id)
			continue
		}
		targets = append(targets, e)
	}

	matches, err := scan(ctx, entry, targets, m.cfg)
	if err != nil {
		return nil, err
	}
	m.log.Debugf("song %d compared with %d of %d candidates: %d matches", songID, len(targets), len(candidates), len(matches))

	if err := m.store.Insert(entry); err != nil {
		return nil, err
	}
	return matches, nil
}

func (m *Manager) pair(songID1, songID2 int64) (store.Entry, store.Entry, error) {
	e1, err := m.store.Get(songID1)
	if err != nil {
		return store.Entry{}, store.Entry{}, err
	}
	e2, err := m.store.Get(songID2)
	if err != nil {
		return store.Entry{}, store.Entry{}, err
	}
	return e1, e2, nil
}

// CompareSongs aligns two indexed songs using the threshold resolved from
// their durations. The boolean is false when no offset reaches the
// threshold. Unknown ids fail with store.ErrNotFound.
func (m *Manager) CompareSongs(songID1, songID2 int64) (fingerprint.Alignment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e1, e2, err := m.pair(songID1, songID2)
	if err != nil {
		return fingerprint.Alignment{}, false, err
	}

	threshold := m.cfg.Threshold(e1.Duration, e2.Duration)
	a, ok := fingerprint.Align(e1.Fingerprint, e2.Fingerprint, m.cfg.MaxOffset, threshold)
	return a, ok, nil
}

// CompareSongsVerbose returns the similarity of two indexed songs at every
// offset, in scan order.
func (m *Manager) CompareSongsVerbose(songID1, songID2 int64) ([]fingerprint.Alignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e1, e2, err := m.pair(songID1, songID2)
	if err != nil {
		return nil, err
	}
	return fingerprint.AlignVerbose(e1.Fingerprint, e2.Fingerprint, m.cfg.MaxOffset), nil
}

// SortMatches orders matches by song id.
func SortMatches(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		switch {
		case a.SongID < b.SongID:
			return -1
		case a.SongID > b.SongID:
			return 1
		}
		return 0
	})
}
