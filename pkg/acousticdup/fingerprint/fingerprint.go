// Package fingerprint compares chromaprint-style audio fingerprints.
//
// A fingerprint is an ordered sequence of 32-bit words. Every word packs 32
// binary features of a short time slice, so two slices are compared by
// counting the bits that differ (XOR + popcount). Word position encodes time,
// and matching two songs means finding the temporal offset where the most
// bits agree.
package fingerprint

import (
	"errors"
	"fmt"
)

// ErrInvalidFingerprint is returned for fingerprints that cannot form a
// padded window for the configured maximum offset.
var ErrInvalidFingerprint = errors.New("invalid fingerprint")

// BitsPerWord is the number of features packed into a sub-fingerprint.
const BitsPerWord = 32

// Fingerprint is a raw sequence of sub-fingerprints as produced upstream.
type Fingerprint []uint32

// Padded is a fingerprint prefixed with maxOffset zero words.
// len(Padded) == len(original) + maxOffset.
type Padded []uint32

// Alignment is the similarity of two fingerprints at a given offset.
// Offset is expressed in words; a positive offset means the first
// fingerprint starts later than the second one.
type Alignment struct {
	Offset     int
	Similarity float64
}

// Validate checks that fp is usable with the given maximum offset.
func Validate(fp Fingerprint, maxOffset int) error {
	if len(fp) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidFingerprint)
	}
	if len(fp) < maxOffset {
		return fmt.Errorf("%w: %d words is shorter than max offset %d", ErrInvalidFingerprint, len(fp), maxOffset)
	}
	return nil
}

// Pad returns a copy of fp with maxOffset zero words in front of it.
// The zero prefix lets the aligner slide either fingerprint to the right
// with the same index arithmetic.
func Pad(fp Fingerprint, maxOffset int) Padded {
	if maxOffset < 0 {
		maxOffset = 0
	}
	padded := make(Padded, maxOffset+len(fp))
	copy(padded[maxOffset:], fp)
	return padded
}

// Unpad strips the maxOffset zero prefix added by Pad.
func (p Padded) Unpad(maxOffset int) Fingerprint {
	if maxOffset > len(p) {
		return Fingerprint{}
	}
	return Fingerprint(p[maxOffset:])
}
