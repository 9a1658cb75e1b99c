// Package models holds the records shared by the storage layer and the
// acousticdup service.
package models

import "time"

// FingerprintRecord is a stored chromaprint fingerprint.
type FingerprintRecord struct {
	SongID      int64
	Fingerprint []uint32
	Duration    float64 // seconds
}

// Similarity links two songs whose fingerprints align. Offset is the word
// offset that aligns SongID2 onto SongID1.
type Similarity struct {
	SongID1    int64
	SongID2    int64
	Offset     int
	Similarity float64
}

// Normalized returns s with SongID1 < SongID2. Swapping the songs mirrors
// the offset.
func (s Similarity) Normalized() Similarity {
	if s.SongID1 <= s.SongID2 {
		return s
	}
	return Similarity{
		SongID1:    s.SongID2,
		SongID2:    s.SongID1,
		Offset:     -s.Offset,
		Similarity: s.Similarity,
	}
}

// Other returns the song of s that is not songID.
func (s Similarity) Other(songID int64) int64 {
	if s.SongID1 == songID {
		return s.SongID2
	}
	return s.SongID1
}

// ScanRun records one duplicate search.
type ScanRun struct {
	ID         string
	FromSongID int64
	Songs      int
	Matches    int
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
}

// Stats summarises the database contents.
type Stats struct {
	Fingerprints int64
	Similarities int64
	Runs         int64
	LastSongID   int64
}
