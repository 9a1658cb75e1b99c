package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	xxhash "github.com/OneOfOne/xxhash"
)

var ErrCorruptFingerprint = errors.New("corrupt fingerprint")

// encodeWords packs a fingerprint as little-endian 32-bit words.
func encodeWords(fp []uint32) []byte {
	buf := make([]byte, 4*len(fp))
	for i, w := range fp {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

func decodeWords(buf []byte) ([]uint32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of words", ErrCorruptFingerprint, len(buf))
	}
	fp := make([]uint32, len(buf)/4)
	for i := range fp {
		fp[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return fp, nil
}

// checksum is stored as a signed integer since SQLite has no unsigned type.
func checksum(buf []byte) int64 {
	return int64(xxhash.Checksum64(buf))
}
