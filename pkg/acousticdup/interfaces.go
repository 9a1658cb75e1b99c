package acousticdup

import (
	"context"

	"github.com/himanishpuri/acousticdup/pkg/models"
)

type Service interface {
	ImportFingerprint(ctx context.Context, songID int64, fp []uint32, duration float64) error
	ImportFile(ctx context.Context, songID int64, path string) (models.FingerprintRecord, error)
	FindDuplicates(ctx context.Context, opts FindOptions) (*ScanReport, error)
	CompareSongs(ctx context.Context, songID1, songID2 int64, opts CompareOptions) (*Comparison, error)
	SimilarSongs(songID int64, minSimilarity float64) ([]models.Similarity, error)
	DeleteSong(songID int64) error
	Stats() (models.Stats, error)
	Runs(limit int) ([]models.ScanRun, error)
	Close() error
}

type Storage interface {
	StoreFingerprint(songID int64, fp []uint32, duration float64) error
	GetFingerprint(songID int64) (models.FingerprintRecord, error)
	EachFingerprint(ctx context.Context, batchSize int, fn func(models.FingerprintRecord) error) error
	DeleteFingerprint(songID int64) error
	LastSongID() (int64, error)
	FingerprintCount() (int64, error)
	AddSimilarities(runID string, sims []models.Similarity) error
	RemoveSimilarity(songID1, songID2 int64) (bool, error)
	SimilarSongs(songID int64, minSimilarity float64) ([]models.Similarity, error)
	LastSongIDWithSimilarities() (int64, error)
	StartRun(fromSongID int64) (string, error)
	FinishRun(runID string, songs, matches int) error
	ListRuns(limit int) ([]models.ScanRun, error)
	Stats() (models.Stats, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
