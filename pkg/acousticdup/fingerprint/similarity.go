package fingerprint

import "math/bits"

// EqualBits counts the bits that are equal in the windows a and b.
//
// The scan is abandoned as soon as equalBits plus the bits still to be
// processed falls below thresholdBits, since the window can no longer reach
// the threshold. In that case completed is false and equalBits only covers
// the processed prefix, so it must not be turned into a similarity.
// Only the common prefix of a and b is compared.
func EqualBits(a, b []uint32, thresholdBits int64) (completed bool, equalBits, totalBits int64) {
	n := min(len(a), len(b))
	totalBits = int64(n) * BitsPerWord
	remaining := totalBits

	for i := 0; i < n; i++ {
		equalBits += int64(BitsPerWord - bits.OnesCount32(a[i]^b[i]))
		remaining -= BitsPerWord
		if equalBits+remaining < thresholdBits {
			return false, equalBits, totalBits
		}
	}
	return true, equalBits, totalBits
}

// Similarity returns the fraction of equal bits over the common prefix of a
// and b, without early abandonment. Empty windows have similarity 0.
func Similarity(a, b []uint32) float64 {
	_, equal, total := EqualBits(a, b, 0)
	if total == 0 {
		return 0
	}
	return float64(equal) / float64(total)
}
