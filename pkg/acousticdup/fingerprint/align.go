package fingerprint

// window returns the two slices compared at offset.
// Offsets >= 0 slide fp1 to the right over fp2, negative offsets slide fp2
// over fp1. Both fingerprints must carry maxOffset words of padding.
func window(fp1, fp2 Padded, maxOffset, offset int) ([]uint32, []uint32) {
	if offset >= 0 {
		return fp1[maxOffset-offset:], fp2[maxOffset:]
	}
	return fp1[maxOffset:], fp2[maxOffset+offset:]
}

// offsets returns every offset in scan order: 0, 1, ..., maxOffset-1 and
// then -1, -2, ..., -(maxOffset-1).
func offsets(maxOffset int) []int {
	if maxOffset <= 0 {
		return nil
	}
	out := make([]int, 0, 2*maxOffset-1)
	for o := 0; o < maxOffset; o++ {
		out = append(out, o)
	}
	for o := 1; o < maxOffset; o++ {
		out = append(out, -o)
	}
	return out
}

func padded(fp1, fp2 Padded, maxOffset int) bool {
	return maxOffset > 0 && len(fp1) >= maxOffset && len(fp2) >= maxOffset
}

// Align finds the offset in (-maxOffset, maxOffset) at which fp1 and fp2 are
// most similar, considering only offsets whose similarity reaches threshold.
//
// Offsets that cannot reach the threshold are abandoned early. Ties keep the
// first offset in scan order. The boolean is false when no offset reaches the
// threshold.
func Align(fp1, fp2 Padded, maxOffset int, threshold float64) (Alignment, bool) {
	best := Alignment{Offset: -1, Similarity: -1}
	found := false

	if !padded(fp1, fp2, maxOffset) {
		return best, false
	}

	for _, offset := range offsets(maxOffset) {
		w1, w2 := window(fp1, fp2, maxOffset, offset)
		n := min(len(w1), len(w2))
		if n <= 0 {
			continue
		}

		totalBits := int64(n) * BitsPerWord
		thresholdBits := int64(float64(totalBits) * threshold)

		completed, equal, total := EqualBits(w1[:n], w2[:n], thresholdBits)
		if !completed {
			continue
		}

		similarity := float64(equal) / float64(total)
		if similarity > best.Similarity {
			best = Alignment{Offset: offset, Similarity: similarity}
			found = true
		}
	}

	return best, found
}

// AlignVerbose returns the similarity of fp1 and fp2 at every offset, in scan
// order, with no threshold and no early abandonment. It is meant for
// diagnostics, Align is the fast path.
func AlignVerbose(fp1, fp2 Padded, maxOffset int) []Alignment {
	if !padded(fp1, fp2, maxOffset) {
		return nil
	}

	all := offsets(maxOffset)
	result := make([]Alignment, 0, len(all))
	for _, offset := range all {
		w1, w2 := window(fp1, fp2, maxOffset, offset)
		result = append(result, Alignment{Offset: offset, Similarity: Similarity(w1, w2)})
	}
	return result
}

// Best returns the alignment with the highest similarity, keeping the first
// one on ties. The boolean is false for an empty slice.
func Best(alignments []Alignment) (Alignment, bool) {
	if len(alignments) == 0 {
		return Alignment{}, false
	}
	best := alignments[0]
	for _, a := range alignments[1:] {
		if a.Similarity > best.Similarity {
			best = a
		}
	}
	return best, true
}
