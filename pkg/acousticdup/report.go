package acousticdup

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// speedWindow is the number of recent songs the ETA is averaged over.
const speedWindow = 20

// scanStats collects timings while FindDuplicates runs.
type scanStats struct {
	started      time.Time
	total        int
	compareTimes []float64 // seconds
	speeds       []float64 // comparisons per second, most recent last
}

func newScanStats(total int) *scanStats {
	return &scanStats{started: time.Now(), total: total}
}

// compared records that a song was compared with indexed songs in elapsed.
func (s *scanStats) compared(indexed int, elapsed time.Duration) {
	secs := elapsed.Seconds()
	s.compareTimes = append(s.compareTimes, secs)
	if secs <= 0 || indexed == 0 {
		return
	}
	if len(s.speeds) == speedWindow {
		s.speeds = s.speeds[1:]
	}
	s.speeds = append(s.speeds, float64(indexed)/secs)
}

// eta estimates the time left when processed songs are done and every
// remaining one is compared with all the songs before it.
func (s *scanStats) eta(processed int) time.Duration {
	if len(s.speeds) == 0 || processed >= s.total {
		return 0
	}
	speed := stat.Mean(s.speeds, nil)
	if speed <= 0 {
		return 0
	}
	// processed + (processed+1) + ... + (total-1)
	remaining := float64(s.total-processed) * float64(processed+s.total-1) / 2
	return time.Duration(remaining / speed * float64(time.Second))
}

func (s *scanStats) fill(r *ScanReport) {
	r.Elapsed = time.Since(s.started)
	if len(s.compareTimes) == 0 {
		return
	}
	mean, std := stat.MeanStdDev(s.compareTimes, nil)
	if len(s.compareTimes) < 2 || math.IsNaN(std) {
		std = 0
	}
	r.MeanCompareTime = seconds(mean)
	r.StdDevCompareTime = seconds(std)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
