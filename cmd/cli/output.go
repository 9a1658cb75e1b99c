package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/acousticdup/pkg/acousticdup"
	"github.com/himanishpuri/acousticdup/pkg/models"
)

func formatSeconds(secs float64) string {
	d := time.Duration(secs * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func printReport(r *acousticdup.ScanReport) {
	if r.UpToDate {
		fmt.Println("All songs are already processed")
		return
	}

	fmt.Printf("\nRun %s (from song %d)\n", r.RunID, r.FromSongID)
	fmt.Printf("  Songs:        %s (%s compared, %s skipped)\n",
		humanize.Comma(int64(r.Songs)), humanize.Comma(int64(r.Compared)), humanize.Comma(int64(r.Skipped)))
	fmt.Printf("  Similarities: %s stored, %s removed\n",
		humanize.Comma(int64(r.Matches)), humanize.Comma(int64(r.Removed)))
	fmt.Printf("  Time:         %s (%s ± %s per song)\n",
		r.Elapsed.Round(time.Millisecond), r.MeanCompareTime.Round(time.Microsecond), r.StdDevCompareTime.Round(time.Microsecond))

	if len(r.Duplicates) == 0 {
		fmt.Println("\nNo duplicates found")
		return
	}
	fmt.Printf("\nFound %d duplicate pair(s):\n", len(r.Duplicates))
	for _, d := range r.Duplicates {
		fmt.Printf("  %d <-> %d  offset %4d  similarity %.3f\n", d.SongID1, d.SongID2, d.Offset, d.Similarity)
	}
}

func printComparison(c *acousticdup.Comparison) {
	fmt.Printf("Comparing %d and %d (threshold %.2f)\n", c.SongID1, c.SongID2, c.Threshold)

	for _, a := range c.Offsets {
		marker := ""
		if c.Found && a.Offset == c.Offset {
			marker = " <-"
		}
		fmt.Printf("  offset %4d  similarity %.3f%s\n", a.Offset, a.Similarity, marker)
	}

	switch {
	case c.Duplicate:
		fmt.Printf("Duplicates: offset %d, similarity %.3f\n", c.Offset, c.Similarity)
	case c.Found:
		fmt.Printf("Similar: offset %d, similarity %.3f\n", c.Offset, c.Similarity)
	default:
		fmt.Println("Not similar")
	}
}

func printSimilarities(songID int64, sims []models.Similarity, matchThreshold float64) {
	if len(sims) == 0 {
		fmt.Printf("No similar songs stored for song %d\n", songID)
		return
	}

	fmt.Printf("%d song(s) similar to %d:\n", len(sims), songID)
	for _, s := range sims {
		marker := ""
		if s.Similarity >= matchThreshold {
			marker = "  duplicate"
		}
		fmt.Printf("  %8d  offset %4d  similarity %.3f%s\n", s.SongID2, s.Offset, s.Similarity, marker)
	}
}

func printStats(st models.Stats, runs []models.ScanRun) {
	fmt.Printf("Fingerprints:  %s (last song %d)\n", humanize.Comma(st.Fingerprints), st.LastSongID)
	fmt.Printf("Similarities:  %s\n", humanize.Comma(st.Similarities))
	fmt.Printf("Scan runs:     %s\n", humanize.Comma(st.Runs))

	for _, r := range runs {
		status := "running"
		if !r.FinishedAt.IsZero() {
			status = "took " + r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("  %s  started %s, from song %d, %s songs, %s similarities, %s\n",
			r.ID, humanize.Time(r.StartedAt), r.FromSongID,
			humanize.Comma(int64(r.Songs)), humanize.Comma(int64(r.Matches)), status)
	}
}
