package manager

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/acousticdup/pkg/acousticdup/fingerprint"
	"github.com/himanishpuri/acousticdup/pkg/acousticdup/store"
)

// compare aligns an indexed song with the probe. The indexed fingerprint is
// always the first operand, so offsets are relative to the indexed song.
func compare(indexed, probe store.Entry, cfg Config) (Match, bool) {
	threshold := cfg.Threshold(probe.Duration, indexed.Duration)

	a, ok := fingerprint.Align(indexed.Fingerprint, probe.Fingerprint, cfg.MaxOffset, threshold)
	if !ok || a.Similarity <= threshold {
		return Match{}, false
	}
	return Match{SongID: indexed.SongID, Offset: a.Offset, Similarity: a.Similarity}, true
}

// scan compares probe with every target. Targets are split into contiguous
// chunks, one goroutine per chunk, and every goroutine collects its matches
// locally. The chunks are joined in order once all of them are done.
func scan(ctx context.Context, probe store.Entry, targets []store.Entry, cfg Config) ([]Match, error) {
	if len(targets) == 0 {
		return nil, ctx.Err()
	}

	workers := min(cfg.workers(), len(targets))
	chunk := (len(targets) + workers - 1) / workers
	partial := make([][]Match, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= len(targets) {
			break
		}
		hi := min(lo+chunk, len(targets))

		g.Go(func() error {
			var local []Match
			for _, indexed := range targets[lo:hi] {
				if err := gctx.Err(); err != nil {
					return err
				}
				if m, ok := compare(indexed, probe, cfg); ok {
					local = append(local, m)
				}
			}
			partial[w] = local
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var n int
	for _, p := range partial {
		n += len(p)
	}
	matches := make([]Match, 0, n)
	for _, p := range partial {
		matches = append(matches, p...)
	}
	return matches, nil
}
