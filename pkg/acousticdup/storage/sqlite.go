// Package storage persists fingerprints, similarities and scan runs in
// SQLite through gorm.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/himanishpuri/acousticdup/pkg/models"
	"github.com/himanishpuri/acousticdup/pkg/utils"
)

const (
	DefaultDBFile = "acousticdup.sqlite3"
	// DBPathEnv overrides DefaultDBFile in NewDBClient.
	DBPathEnv = "ACOUSTICDUP_DB_PATH"

	defaultBatchSize = 500
	errDBClientNil   = "db client is nil"
)

var ErrNotFound = errors.New("not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Fingerprint struct {
	SongID    int64   `gorm:"column:song_id;primaryKey;autoIncrement:false"`
	Words     []byte  `gorm:"column:words;not null"`
	Checksum  int64   `gorm:"column:checksum"`
	Duration  float64 `gorm:"column:duration"`
	CreatedAt time.Time
}

type Similarity struct {
	SongID1    int64   `gorm:"column:song_id1;primaryKey;autoIncrement:false"`
	SongID2    int64   `gorm:"column:song_id2;primaryKey;autoIncrement:false;index:idx_similarity_song2"`
	Offset     int     `gorm:"column:offset_words"`
	Similarity float64 `gorm:"column:similarity;index:idx_similarity_value"`
	RunID      string  `gorm:"column:run_id;type:varchar(36);index:idx_similarity_run"`
}

type ScanRun struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	FromSongID int64
	Songs      int
	Matches    int
	StartedAt  time.Time
	FinishedAt *time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv(DBPathEnv)
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := utils.EnsureParentDir(dbPath); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Fingerprint{}, &Similarity{}, &ScanRun{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) check() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return nil
}

// StoreFingerprint inserts or replaces the fingerprint of a song.
func (c *DBClient) StoreFingerprint(songID int64, fp []uint32, duration float64) error {
	if err := c.check(); err != nil {
		return err
	}

	words := encodeWords(fp)
	row := Fingerprint{
		SongID:   songID,
		Words:    words,
		Checksum: checksum(words),
		Duration: duration,
	}
	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "song_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"words", "checksum", "duration"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("storing fingerprint of song %d: %w", songID, err)
	}
	return nil
}

func (row Fingerprint) record() (models.FingerprintRecord, error) {
	if checksum(row.Words) != row.Checksum {
		return models.FingerprintRecord{}, fmt.Errorf("%w: song %d checksum mismatch", ErrCorruptFingerprint, row.SongID)
	}
	fp, err := decodeWords(row.Words)
	if err != nil {
		return models.FingerprintRecord{}, fmt.Errorf("song %d: %w", row.SongID, err)
	}
	return models.FingerprintRecord{SongID: row.SongID, Fingerprint: fp, Duration: row.Duration}, nil
}

func (c *DBClient) GetFingerprint(songID int64) (models.FingerprintRecord, error) {
	if err := c.check(); err != nil {
		return models.FingerprintRecord{}, err
	}

	var row Fingerprint
	if err := c.DB.Where("song_id = ?", songID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.FingerprintRecord{}, fmt.Errorf("fingerprint of song %d: %w", songID, ErrNotFound)
		}
		return models.FingerprintRecord{}, fmt.Errorf("querying fingerprint: %w", err)
	}
	return row.record()
}

// EachFingerprint calls fn for every stored fingerprint in ascending song id
// order, loading batchSize rows at a time. Iteration stops at the first error
// returned by fn or when ctx is done.
func (c *DBClient) EachFingerprint(ctx context.Context, batchSize int, fn func(models.FingerprintRecord) error) error {
	if err := c.check(); err != nil {
		return err
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var last int64
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var rows []Fingerprint
		q := c.DB.WithContext(ctx).Order("song_id").Limit(batchSize)
		if !first {
			q = q.Where("song_id > ?", last)
		}
		if err := q.Find(&rows).Error; err != nil {
			return fmt.Errorf("loading fingerprints after song %d: %w", last, err)
		}

		for _, row := range rows {
			rec, err := row.record()
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}

		if len(rows) < batchSize {
			return nil
		}
		last = rows[len(rows)-1].SongID
		first = false
	}
}

// DeleteFingerprint removes a song's fingerprint and every similarity that
// involves it.
func (c *DBClient) DeleteFingerprint(songID int64) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id1 = ? OR song_id2 = ?", songID, songID).Delete(&Similarity{}).Error; err != nil {
			return err
		}
		res := tx.Where("song_id = ?", songID).Delete(&Fingerprint{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("fingerprint of song %d: %w", songID, ErrNotFound)
		}
		return nil
	})
}

// LastSongID returns the highest song id with a fingerprint, 0 when empty.
func (c *DBClient) LastSongID() (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	var last int64
	if err := c.DB.Model(&Fingerprint{}).Select("COALESCE(MAX(song_id), 0)").Scan(&last).Error; err != nil {
		return 0, fmt.Errorf("querying last song id: %w", err)
	}
	return last, nil
}

func (c *DBClient) SongIDsWithFingerprints() ([]int64, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	var ids []int64
	if err := c.DB.Model(&Fingerprint{}).Order("song_id").Pluck("song_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing song ids: %w", err)
	}
	return ids, nil
}

func (c *DBClient) FingerprintCount() (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	var n int64
	if err := c.DB.Model(&Fingerprint{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return n, nil
}

// AddSimilarities upserts similarities, storing each pair with the lower
// song id first. runID may be empty.
func (c *DBClient) AddSimilarities(runID string, sims []models.Similarity) error {
	if err := c.check(); err != nil {
		return err
	}
	if len(sims) == 0 {
		return nil
	}

	rows := make([]Similarity, len(sims))
	for i, s := range sims {
		s = s.Normalized()
		rows[i] = Similarity{
			SongID1:    s.SongID1,
			SongID2:    s.SongID2,
			Offset:     s.Offset,
			Similarity: s.Similarity,
			RunID:      runID,
		}
	}

	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "song_id1"}, {Name: "song_id2"}},
		DoUpdates: clause.AssignmentColumns([]string{"offset_words", "similarity", "run_id"}),
	}).CreateInBatches(rows, defaultBatchSize).Error
	if err != nil {
		return fmt.Errorf("storing %d similarities: %w", len(rows), err)
	}
	return nil
}

// RemoveSimilarity deletes the similarity of a pair, in either order. It
// reports whether one was stored.
func (c *DBClient) RemoveSimilarity(songID1, songID2 int64) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	s := models.Similarity{SongID1: songID1, SongID2: songID2}.Normalized()
	res := c.DB.Where("song_id1 = ? AND song_id2 = ?", s.SongID1, s.SongID2).Delete(&Similarity{})
	if res.Error != nil {
		return false, fmt.Errorf("removing similarity %d-%d: %w", s.SongID1, s.SongID2, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SimilarSongs returns the similarities involving songID with a similarity
// of at least minSimilarity, best first. Every result has SongID1 == songID.
func (c *DBClient) SimilarSongs(songID int64, minSimilarity float64) ([]models.Similarity, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	var rows []Similarity
	err := c.DB.Where("(song_id1 = ? OR song_id2 = ?) AND similarity >= ?", songID, songID, minSimilarity).
		Order("similarity DESC").Order("song_id1").Order("song_id2").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying songs similar to %d: %w", songID, err)
	}

	out := make([]models.Similarity, len(rows))
	for i, r := range rows {
		s := models.Similarity{SongID1: r.SongID1, SongID2: r.SongID2, Offset: r.Offset, Similarity: r.Similarity}
		if s.SongID1 != songID {
			s = models.Similarity{SongID1: songID, SongID2: r.SongID1, Offset: -r.Offset, Similarity: r.Similarity}
		}
		out[i] = s
	}
	return out, nil
}

func (c *DBClient) SimilarityCount() (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	var n int64
	if err := c.DB.Model(&Similarity{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting similarities: %w", err)
	}
	return n, nil
}

// LastSongIDWithSimilarities returns the highest song id that has been
// compared with the songs before it, 0 when no similarity is stored.
func (c *DBClient) LastSongIDWithSimilarities() (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	var last int64
	if err := c.DB.Model(&Similarity{}).Select("COALESCE(MAX(song_id2), 0)").Scan(&last).Error; err != nil {
		return 0, fmt.Errorf("querying last compared song: %w", err)
	}
	return last, nil
}

func (c *DBClient) StartRun(fromSongID int64) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	run := ScanRun{
		ID:         utils.GenerateUUID(),
		FromSongID: fromSongID,
		StartedAt:  time.Now(),
	}
	if err := c.DB.Create(&run).Error; err != nil {
		return "", fmt.Errorf("creating scan run: %w", err)
	}
	return run.ID, nil
}

func (c *DBClient) FinishRun(runID string, songs, matches int) error {
	if err := c.check(); err != nil {
		return err
	}
	res := c.DB.Model(&ScanRun{}).Where("id = ?", runID).Updates(map[string]any{
		"songs":       songs,
		"matches":     matches,
		"finished_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("finishing scan run %s: %w", runID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("scan run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// ListRuns returns the most recent scan runs first.
func (c *DBClient) ListRuns(limit int) ([]models.ScanRun, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	var rows []ScanRun
	q := c.DB.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}

	runs := make([]models.ScanRun, len(rows))
	for i, r := range rows {
		runs[i] = models.ScanRun{
			ID:         r.ID,
			FromSongID: r.FromSongID,
			Songs:      r.Songs,
			Matches:    r.Matches,
			StartedAt:  r.StartedAt,
		}
		if r.FinishedAt != nil {
			runs[i].FinishedAt = *r.FinishedAt
		}
	}
	return runs, nil
}

func (c *DBClient) Stats() (models.Stats, error) {
	if err := c.check(); err != nil {
		return models.Stats{}, err
	}

	var st models.Stats
	var err error
	if st.Fingerprints, err = c.FingerprintCount(); err != nil {
		return models.Stats{}, err
	}
	if st.Similarities, err = c.SimilarityCount(); err != nil {
		return models.Stats{}, err
	}
	if err := c.DB.Model(&ScanRun{}).Count(&st.Runs).Error; err != nil {
		return models.Stats{}, fmt.Errorf("counting scan runs: %w", err)
	}
	if st.LastSongID, err = c.LastSongID(); err != nil {
		return models.Stats{}, err
	}
	return st, nil
}
