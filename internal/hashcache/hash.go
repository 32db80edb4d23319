// Package hashcache stores expensive per-frame results keyed by perceptual hash
// and decides when a frame differs enough to be worth reprocessing.
package hashcache

import (
	"encoding/hex"
	"encoding/binary"
	"fmt"
	"image"
	"math/bits"

	"github.com/corona10/goimagehash"
)

// Hash is a perceptual fingerprint. Similar images have a small Hamming distance.
type Hash []uint64

// Compute returns the average hash of img at size x size bits.
func Compute(img image.Image, size int) (Hash, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("hash: empty image")
	}
	h, err := goimagehash.ExtAverageHash(img, size, size)
	if err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}
	return Hash(h.GetHash()), nil
}

// Distance is the Hamming distance between h and o. Hashes of different
// lengths are maximally distant.
func (h Hash) Distance(o Hash) int {
	if len(h) != len(o) {
		return 64 * max(len(h), len(o))
	}
	d := 0
	for i := range h {
		d += bits.OnesCount64(h[i] ^ o[i])
	}
	return d
}

func (h Hash) String() string {
	buf := make([]byte, 8*len(h))
	for i, w := range h {
		binary.BigEndian.PutUint64(buf[8*i:], w)
	}
	return hex.EncodeToString(buf)
}

// ParseHash reverses Hash.String.
func ParseHash(s string) (Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || len(raw)%8 != 0 {
		return nil, fmt.Errorf("hash: bad length %d", len(raw))
	}
	h := make(Hash, len(raw)/8)
	for i := range h {
		h[i] = binary.BigEndian.Uint64(raw[8*i:])
	}
	return h, nil
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
