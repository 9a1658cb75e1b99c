// Package store keeps the padded fingerprints indexed by a matching session.
package store

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/acousticdup/pkg/acousticdup/fingerprint"
)

var (
	ErrNotFound    = errors.New("song not found")
	ErrDuplicateID = errors.New("duplicate song id")
)

// Entry is an indexed song. It must not be modified once inserted.
type Entry struct {
	SongID      int64
	Fingerprint fingerprint.Padded
	Duration    float64 // seconds
}

// Store is an append-only collection of entries with a hashed id index.
// Ids may be inserted in any order.
//
// Store is not safe for concurrent mutation; callers serialise Insert and
// may read Snapshot results from any number of goroutines.
type Store struct {
	entries []Entry
	index   map[int64]int
}

func New(capacity int) *Store {
	capacity = max(capacity, 0)
	return &Store{
		entries: make([]Entry, 0, capacity),
		index:   make(map[int64]int, capacity),
	}
}

// Insert appends e. Inserting an id that is already present fails with
// ErrDuplicateID and leaves the store unchanged.
func (s *Store) Insert(e Entry) error {
	if _, exists := s.index[e.SongID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, e.SongID)
	}
	s.index[e.SongID] = len(s.entries)
	s.entries = append(s.entries, e)
	return nil
}

func (s *Store) Lookup(songID int64) (Entry, bool) {
	idx, ok := s.index[songID]
	if !ok {
		return Entry{}, false
	}
	return s.entries[idx], true
}

// Get is Lookup returning ErrNotFound for unknown ids.
func (s *Store) Get(songID int64) (Entry, error) {
	e, ok := s.Lookup(songID)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", ErrNotFound, songID)
	}
	return e, nil
}

func (s *Store) Contains(songID int64) bool {
	_, ok := s.index[songID]
	return ok
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Reserve grows the capacity to at least n entries. It has no visible effect.
func (s *Store) Reserve(n int) {
	if n <= cap(s.entries) {
		return
	}
	grown := make([]Entry, len(s.entries), n)
	copy(grown, s.entries)
	s.entries = grown

	index := make(map[int64]int, n)
	for id, idx := range s.index {
		index[id] = idx
	}
	s.index = index
}

// Snapshot returns the current entries in insertion order. The slice has its
// capacity capped, so later inserts never write into it.
func (s *Store) Snapshot() []Entry {
	return s.entries[:len(s.entries):len(s.entries)]
}
