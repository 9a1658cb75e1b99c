package acousticdup

import (
	"time"

	"github.com/himanishpuri/acousticdup/pkg/acousticdup/fingerprint"
	"github.com/himanishpuri/acousticdup/pkg/models"
)

// FindOptions selects the songs a duplicate search compares.
type FindOptions struct {
	// FromSongID is the first song compared with every song before it.
	// Zero resumes after the last song with stored similarities; a negative
	// value steps back that many songs from there.
	FromSongID int64
	// Songs, when set, recomputes the similarities of these songs only and
	// removes the stored ones that no longer hold. FromSongID is ignored.
	Songs []int64
	// Progress is called after every song.
	Progress func(Progress)
}

type Progress struct {
	SongID    int64
	Processed int
	Total     int
	Matches   int           // matches found for SongID
	ETA       time.Duration // zero until enough songs were compared
}

// ScanReport summarises a FindDuplicates run.
type ScanReport struct {
	RunID      string
	FromSongID int64
	// UpToDate is set when every song already had its similarities and
	// nothing was scanned.
	UpToDate bool
	Songs    int // songs read from storage
	Compared int // songs compared with others
	Skipped  int // songs with an unusable fingerprint
	Matches  int // similarities stored
	Removed  int // stale similarities deleted
	// Duplicates are the stored similarities at or above the match
	// threshold.
	Duplicates []models.Similarity
	Elapsed    time.Duration
	// Per compared song.
	MeanCompareTime   time.Duration
	StdDevCompareTime time.Duration
}

type CompareOptions struct {
	// Verbose also reports the similarity at every offset.
	Verbose bool
	// Store saves the result as a similarity when it reaches the store
	// threshold.
	Store bool
}

// Comparison is the result of aligning two stored songs.
type Comparison struct {
	SongID1    int64
	SongID2    int64
	Threshold  float64
	Found      bool
	Offset     int
	Similarity float64
	Duplicate  bool
	Offsets    []fingerprint.Alignment // set with CompareOptions.Verbose
}
