package fingerprint

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestAlignShiftedByOneWord(t *testing.T) {
	const maxOffset = 4
	fp1 := Fingerprint{0xFFFFFFFF, 0x00000000, 0xFFFFFFFF, 0x00000000}
	fp2 := Fingerprint{0x00000000, 0xFFFFFFFF, 0x00000000, 0xFFFFFFFF, 0x00000000}

	got, ok := Align(Pad(fp1, maxOffset), Pad(fp2, maxOffset), maxOffset, 0.5)
	if !ok {
		t.Fatal("Expected an alignment above threshold")
	}
	if got.Offset != 1 {
		t.Errorf("Offset = %d, want 1", got.Offset)
	}
	if got.Similarity != 1.0 {
		t.Errorf("Similarity = %f, want 1.0", got.Similarity)
	}

	reverse, ok := Align(Pad(fp2, maxOffset), Pad(fp1, maxOffset), maxOffset, 0.5)
	if !ok {
		t.Fatal("Expected a reverse alignment above threshold")
	}
	if reverse.Offset != -1 || reverse.Similarity != 1.0 {
		t.Errorf("Reverse alignment = %+v, want offset -1 similarity 1.0", reverse)
	}
}

func TestAlignSelfMatch(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	const maxOffset = 10

	for _, n := range []int{10, 50, 300} {
		fp := randomFingerprint(rng, n)
		p1 := Pad(fp, maxOffset)
		p2 := Pad(append(Fingerprint(nil), fp...), maxOffset)

		got, ok := Align(p1, p2, maxOffset, 0.5)
		if !ok {
			t.Fatalf("n=%d: expected self match", n)
		}
		if got.Offset != 0 || got.Similarity != 1.0 {
			t.Errorf("n=%d: self alignment = %+v, want offset 0 similarity 1.0", n, got)
		}
	}
}

func TestAlignSymmetry(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	const maxOffset = 20

	for trial := 0; trial < 50; trial++ {
		base := randomFingerprint(rng, 100+rng.IntN(200))
		shift := rng.IntN(maxOffset)
		other := shiftedCopy(rng, base, shift, rng.IntN(200))

		p1, p2 := Pad(base, maxOffset), Pad(other, maxOffset)

		for _, threshold := range []float64{0, 0.5, 0.7} {
			ab, okAB := Align(p1, p2, maxOffset, threshold)
			ba, okBA := Align(p2, p1, maxOffset, threshold)

			if okAB != okBA {
				t.Fatalf("trial %d threshold %.1f: found %v one way and %v the other", trial, threshold, okAB, okBA)
			}
			if !okAB {
				continue
			}
			if ab.Offset != -ba.Offset {
				t.Errorf("trial %d threshold %.1f: offsets %d and %d are not opposite", trial, threshold, ab.Offset, ba.Offset)
			}
			if math.Abs(ab.Similarity-ba.Similarity) > tolerance {
				t.Errorf("trial %d threshold %.1f: similarities %f and %f differ", trial, threshold, ab.Similarity, ba.Similarity)
			}
		}

		// Dropping the first words of base means other starts later.
		ab, ok := Align(p1, p2, maxOffset, 0.7)
		if !ok {
			t.Fatalf("trial %d: expected the shifted copy to match", trial)
		}
		if ab.Offset != -shift {
			t.Errorf("trial %d: offset = %d, want %d", trial, ab.Offset, -shift)
		}
	}
}

func TestAlignThresholdMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	const maxOffset = 12

	for trial := 0; trial < 30; trial++ {
		base := randomFingerprint(rng, 80)
		other := shiftedCopy(rng, base, rng.IntN(maxOffset), rng.IntN(80*BitsPerWord))
		p1, p2 := Pad(base, maxOffset), Pad(other, maxOffset)

		var (
			wasFound bool
			first    = true
			bestSeen Alignment
		)
		for threshold := 0.0; threshold <= 1.0; threshold += 0.05 {
			got, ok := Align(p1, p2, maxOffset, threshold)
			if !first && ok && !wasFound {
				t.Fatalf("trial %d: match reappeared at threshold %.2f", trial, threshold)
			}
			if ok && !first && wasFound && got.Similarity > bestSeen.Similarity+tolerance {
				t.Errorf("trial %d: best similarity grew from %f to %f at threshold %.2f",
					trial, bestSeen.Similarity, got.Similarity, threshold)
			}
			wasFound, bestSeen, first = ok, got, false
		}
	}
}

// Align with early abandonment must agree with the brute-force scan.
func TestAlignMatchesVerbose(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	const maxOffset = 8

	for trial := 0; trial < 50; trial++ {
		base := randomFingerprint(rng, 8+rng.IntN(60))
		other := randomFingerprint(rng, 8+rng.IntN(60))
		if trial%2 == 0 {
			other = shiftedCopy(rng, base, rng.IntN(maxOffset), rng.IntN(64))
		}
		p1, p2 := Pad(base, maxOffset), Pad(other, maxOffset)

		verbose := AlignVerbose(p1, p2, maxOffset)
		want, _ := Best(verbose)

		for _, threshold := range []float64{0, 0.4, 0.55, 0.8} {
			got, ok := Align(p1, p2, maxOffset, threshold)
			if !ok {
				if want.Similarity >= threshold {
					t.Errorf("trial %d threshold %.2f: no alignment but brute force found %+v", trial, threshold, want)
				}
				continue
			}
			if want.Similarity < threshold {
				// Only offsets within a rounding bit of the threshold can complete here.
				if got.Similarity > want.Similarity+tolerance {
					t.Errorf("trial %d threshold %.2f: got %+v above brute force %+v", trial, threshold, got, want)
				}
				continue
			}
			if got.Offset != want.Offset || math.Abs(got.Similarity-want.Similarity) > tolerance {
				t.Errorf("trial %d threshold %.2f: got %+v, brute force %+v", trial, threshold, got, want)
			}
		}
	}
}

func TestAlignNoMatch(t *testing.T) {
	const maxOffset = 2
	fp1 := Fingerprint{0xFFFFFFFF, 0xFFFFFFFF}
	fp2 := Fingerprint{0, 0}

	if got, ok := Align(Pad(fp1, maxOffset), Pad(fp2, maxOffset), maxOffset, 0.9); ok {
		t.Errorf("Expected no alignment, got %+v", got)
	}
}

func TestAlignUnpaddedInput(t *testing.T) {
	if _, ok := Align(Padded{1}, Padded{1, 2, 3}, 2, 0); ok {
		t.Error("Expected no alignment for a fingerprint shorter than its padding")
	}
	if got := AlignVerbose(Padded{1}, Padded{1, 2, 3}, 2); got != nil {
		t.Errorf("Expected nil verbose result, got %v", got)
	}
}

func TestAlignVerbose(t *testing.T) {
	const maxOffset = 4
	fp1 := Fingerprint{0xFFFFFFFF, 0x00000000, 0xFFFFFFFF, 0x00000000}
	fp2 := Fingerprint{0x00000000, 0xFFFFFFFF, 0x00000000, 0xFFFFFFFF, 0x00000000}

	got := AlignVerbose(Pad(fp1, maxOffset), Pad(fp2, maxOffset), maxOffset)

	wantOffsets := []int{0, 1, 2, 3, -1, -2, -3}
	if len(got) != len(wantOffsets) {
		t.Fatalf("Expected %d alignments, got %d", len(wantOffsets), len(got))
	}
	for i, a := range got {
		if a.Offset != wantOffsets[i] {
			t.Errorf("Alignment %d has offset %d, want %d", i, a.Offset, wantOffsets[i])
		}
		if a.Similarity < 0 || a.Similarity > 1 {
			t.Errorf("Alignment %d similarity %f out of [0,1]", i, a.Similarity)
		}
	}

	best, ok := Best(got)
	if !ok || best.Offset != 1 || best.Similarity != 1.0 {
		t.Errorf("Best verbose alignment = %+v, want offset 1 similarity 1.0", best)
	}
	if got[0].Similarity != 0 {
		t.Errorf("Offset 0 similarity = %f, want 0", got[0].Similarity)
	}
}

func TestBestEmpty(t *testing.T) {
	if _, ok := Best(nil); ok {
		t.Error("Expected no best alignment for empty input")
	}
}
