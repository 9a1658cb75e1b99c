// Package acousticdup finds duplicate songs in a library by comparing their
// chromaprint fingerprints.
package acousticdup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/acousticdup/pkg/acousticdup/fingerprint"
	"github.com/himanishpuri/acousticdup/pkg/acousticdup/fpcalc"
	"github.com/himanishpuri/acousticdup/pkg/acousticdup/manager"
	"github.com/himanishpuri/acousticdup/pkg/logger"
	"github.com/himanishpuri/acousticdup/pkg/models"
)

// acousticService is the default implementation of the Service interface.
type acousticService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().Named("acousticdup")
	}

	// Fail on bad thresholds before touching the database.
	if err := managerConfig(cfg, 0).Validate(); err != nil {
		return nil, err
	}
	if cfg.MatchThreshold < 0 || cfg.MatchThreshold > 1 {
		return nil, fmt.Errorf("%w: match threshold %g not in [0, 1]", manager.ErrInvalidConfig, cfg.MatchThreshold)
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &acousticService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

func managerConfig(cfg *Config, expectedSize int) manager.Config {
	return manager.Config{
		MaxOffset:                cfg.MaxOffset,
		CancelThreshold:          cfg.StoreThreshold,
		ShortSongCancelThreshold: cfg.ShortSongStoreThreshold,
		ShortSongLength:          cfg.ShortSongLength,
		ExpectedSize:             expectedSize,
		Workers:                  cfg.Workers,
	}
}

func (s *acousticService) newManager(expectedSize int) (*manager.Manager, error) {
	m, err := manager.New()
	if err != nil {
		return nil, err
	}
	if err := m.Configure(managerConfig(s.config, expectedSize)); err != nil {
		return nil, err
	}
	m.SetLogger(s.log)
	return m, nil
}

// ImportFingerprint stores the fingerprint of a song, replacing any
// previous one.
func (s *acousticService) ImportFingerprint(ctx context.Context, songID int64, fp []uint32, duration float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fingerprint.Validate(fp, s.config.MaxOffset); err != nil {
		return fmt.Errorf("song %d: %w", songID, err)
	}
	if err := s.storage.StoreFingerprint(songID, fp, duration); err != nil {
		return fmt.Errorf("failed to store fingerprint: %w", err)
	}
	s.log.Debugf("Stored fingerprint of song %d (%d words, %.1fs)", songID, len(fp), duration)
	return nil
}

// ImportFile fingerprints an audio file with fpcalc and stores the result.
func (s *acousticService) ImportFile(ctx context.Context, songID int64, path string) (models.FingerprintRecord, error) {
	s.log.Infof("Fingerprinting song %d: %s", songID, path)

	res, err := fpcalc.Run(ctx, path, s.config.Fpcalc)
	if err != nil {
		return models.FingerprintRecord{}, fmt.Errorf("fingerprinting failed: %w", err)
	}
	if err := s.ImportFingerprint(ctx, songID, res.Fingerprint, res.Duration); err != nil {
		return models.FingerprintRecord{}, err
	}
	return models.FingerprintRecord{SongID: songID, Fingerprint: res.Fingerprint, Duration: res.Duration}, nil
}

// resolveFrom turns FindOptions.FromSongID into the first song compared with
// everything before it.
func (s *acousticService) resolveFrom(opts FindOptions, lastSongID int64) (int64, error) {
	if len(opts.Songs) > 0 {
		return lastSongID + 1, nil
	}
	if opts.FromSongID > 0 {
		return opts.FromSongID, nil
	}

	lastCompared, err := s.storage.LastSongIDWithSimilarities()
	if err != nil {
		return 0, err
	}
	return lastCompared + 1 + opts.FromSongID, nil
}

// FindDuplicates walks the stored fingerprints in song id order. Songs before
// the starting song only build the index, later ones are compared with every
// song indexed before them and their similarities are stored.
//
// With FindOptions.Songs the whole library is indexed and only the listed
// songs are compared with everything. Songs read after a listed song are
// compared with the listed songs seen so far, so every pair involving a
// listed song is evaluated exactly once. Stored similarities of those pairs
// that no longer hold are removed.
func (s *acousticService) FindDuplicates(ctx context.Context, opts FindOptions) (*ScanReport, error) {
	lastSongID, err := s.storage.LastSongID()
	if err != nil {
		return nil, err
	}
	from, err := s.resolveFrom(opts, lastSongID)
	if err != nil {
		return nil, err
	}

	requested := make(map[int64]struct{}, len(opts.Songs))
	for _, id := range opts.Songs {
		requested[id] = struct{}{}
	}
	removeStale := len(requested) > 0

	report := &ScanReport{FromSongID: from}
	if from > lastSongID && !removeStale {
		s.log.Infof("All songs are already processed")
		report.UpToDate = true
		return report, nil
	}

	total, err := s.storage.FingerprintCount()
	if err != nil {
		return nil, err
	}
	m, err := s.newManager(int(total) + 5)
	if err != nil {
		return nil, err
	}

	runID, err := s.storage.StartRun(from)
	if err != nil {
		return nil, err
	}
	report.RunID = runID
	if removeStale {
		s.log.Infof("Calculating similarities of %d song(s) (run %s)", len(requested), runID)
	} else {
		s.log.Infof("Calculating similarities from song %d (run %s)", from, runID)
	}

	stats := newScanStats(int(total))
	var incremental []int64

	err = s.storage.EachFingerprint(ctx, 0, func(rec models.FingerprintRecord) error {
		report.Songs++
		_, isRequested := requested[rec.SongID]

		var (
			matches  []manager.Match
			compared bool
			err      error
		)
		indexed := m.Size()
		start := time.Now()
		switch {
		case rec.SongID < from && !isRequested && len(incremental) > 0:
			matches, err = m.AddSongAndCompareToSongList(ctx, rec.SongID, rec.Fingerprint, rec.Duration, incremental)
			compared, indexed = true, len(incremental)
		case rec.SongID < from && !isRequested:
			err = m.AddSong(rec.SongID, rec.Fingerprint, rec.Duration)
		default:
			matches, err = m.AddSongAndCompare(ctx, rec.SongID, rec.Fingerprint, rec.Duration)
			compared = true
		}
		if err != nil {
			if errors.Is(err, fingerprint.ErrInvalidFingerprint) {
				s.log.Warnf("Skipping song %d: %v", rec.SongID, err)
				report.Skipped++
				s.progress(opts, report, stats, rec.SongID, 0)
				return nil
			}
			return err
		}
		if compared {
			report.Compared++
			stats.compared(indexed, time.Since(start))
		}
		manager.SortMatches(matches)

		if removeStale {
			removed, err := s.removeStale(rec.SongID, isRequested, matches, incremental)
			if err != nil {
				return err
			}
			report.Removed += removed
		}
		if isRequested {
			incremental = append(incremental, rec.SongID)
		}

		if err := s.storeMatches(runID, rec.SongID, matches, report); err != nil {
			return err
		}
		if compared && len(matches) == 0 && len(incremental) == 0 {
			s.log.Debugf("No match found for song %d", rec.SongID)
		}

		s.progress(opts, report, stats, rec.SongID, len(matches))
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.fill(report)
	if err := s.storage.FinishRun(runID, report.Songs, report.Matches); err != nil {
		return nil, err
	}
	s.log.Infof("Run %s done: %d songs, %d compared, %d similarities, %d duplicates in %s",
		runID, report.Songs, report.Compared, report.Matches, len(report.Duplicates), report.Elapsed.Round(time.Millisecond))
	return report, nil
}

// removeStale deletes stored similarities of songID that the current run
// evaluated and did not find again.
func (s *acousticService) removeStale(songID int64, isRequested bool, matches []manager.Match, incremental []int64) (int, error) {
	found := make(map[int64]struct{}, len(matches))
	for _, mt := range matches {
		found[mt.SongID] = struct{}{}
	}

	var stale []int64
	if isRequested {
		previous, err := s.storage.SimilarSongs(songID, 0)
		if err != nil {
			return 0, err
		}
		for _, p := range previous {
			if _, ok := found[p.SongID2]; !ok && p.SongID2 < songID {
				stale = append(stale, p.SongID2)
			}
		}
	} else {
		for _, id := range incremental {
			if _, ok := found[id]; !ok {
				stale = append(stale, id)
			}
		}
	}

	removed := 0
	for _, id := range stale {
		ok, err := s.storage.RemoveSimilarity(id, songID)
		if err != nil {
			return 0, err
		}
		if ok {
			s.log.Debugf("Removed stale similarity %d-%d", id, songID)
			removed++
		}
	}
	return removed, nil
}

func (s *acousticService) storeMatches(runID string, songID int64, matches []manager.Match, report *ScanReport) error {
	if len(matches) == 0 {
		return nil
	}

	sims := make([]models.Similarity, len(matches))
	for i, mt := range matches {
		sims[i] = models.Similarity{
			SongID1:    mt.SongID,
			SongID2:    songID,
			Offset:     mt.Offset,
			Similarity: mt.Similarity,
		}
		if mt.Similarity >= s.config.MatchThreshold {
			s.log.Infof("Duplicate songs found: %d and %d (offset %d, similarity %.3f)",
				mt.SongID, songID, mt.Offset, mt.Similarity)
			report.Duplicates = append(report.Duplicates, sims[i].Normalized())
		} else {
			s.log.Debugf("Similar songs: %d and %d (offset %d, similarity %.3f)",
				mt.SongID, songID, mt.Offset, mt.Similarity)
		}
	}

	if err := s.storage.AddSimilarities(runID, sims); err != nil {
		return err
	}
	report.Matches += len(sims)
	return nil
}

func (s *acousticService) progress(opts FindOptions, report *ScanReport, stats *scanStats, songID int64, matches int) {
	if opts.Progress == nil {
		return
	}
	opts.Progress(Progress{
		SongID:    songID,
		Processed: report.Songs,
		Total:     stats.total,
		Matches:   matches,
		ETA:       stats.eta(report.Songs),
	})
}

// CompareSongs aligns two stored songs with the configured thresholds.
func (s *acousticService) CompareSongs(ctx context.Context, songID1, songID2 int64, opts CompareOptions) (*Comparison, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec1, err := s.storage.GetFingerprint(songID1)
	if err != nil {
		return nil, err
	}
	rec2, err := s.storage.GetFingerprint(songID2)
	if err != nil {
		return nil, err
	}

	m, err := s.newManager(2)
	if err != nil {
		return nil, err
	}
	if err := m.AddSong(songID1, rec1.Fingerprint, rec1.Duration); err != nil {
		return nil, err
	}
	if songID2 != songID1 {
		if err := m.AddSong(songID2, rec2.Fingerprint, rec2.Duration); err != nil {
			return nil, err
		}
	}

	a, found, err := m.CompareSongs(songID1, songID2)
	if err != nil {
		return nil, err
	}
	cmp := &Comparison{
		SongID1:    songID1,
		SongID2:    songID2,
		Threshold:  m.Threshold(rec1.Duration, rec2.Duration),
		Found:      found,
		Offset:     a.Offset,
		Similarity: a.Similarity,
	}
	cmp.Duplicate = found && a.Similarity >= s.config.MatchThreshold

	if opts.Verbose {
		if cmp.Offsets, err = m.CompareSongsVerbose(songID1, songID2); err != nil {
			return nil, err
		}
	}

	if opts.Store && found && a.Similarity > cmp.Threshold && songID1 != songID2 {
		sim := models.Similarity{SongID1: songID1, SongID2: songID2, Offset: a.Offset, Similarity: a.Similarity}
		if err := s.storage.AddSimilarities("", []models.Similarity{sim}); err != nil {
			return nil, err
		}
	}

	s.log.Debugf("Compared %d and %d: found=%v offset=%d similarity=%.3f",
		songID1, songID2, found, a.Offset, a.Similarity)
	return cmp, nil
}

func (s *acousticService) SimilarSongs(songID int64, minSimilarity float64) ([]models.Similarity, error) {
	return s.storage.SimilarSongs(songID, minSimilarity)
}

// DeleteSong removes a song's fingerprint and its similarities.
func (s *acousticService) DeleteSong(songID int64) error {
	return s.storage.DeleteFingerprint(songID)
}

func (s *acousticService) Stats() (models.Stats, error) {
	return s.storage.Stats()
}

func (s *acousticService) Runs(limit int) ([]models.ScanRun, error) {
	return s.storage.ListRuns(limit)
}

// Close releases all resources held by the service.
func (s *acousticService) Close() error {
	return s.storage.Close()
}
