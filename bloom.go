// In-memory bloom filter backing the read driver's open-buffer cache.
//
// Resolving a LocalMark or Change record to a live buffer means comparing
// its file path against every open window. Sized for up to about 10,000
// open buffers at 1% false positive rate; built once per read call from
// the editor's buffer list and discarded when the read finishes.
package shada

import "hash/fnv"

// Bloom filter sizing constants.
const (
	bloomSize = 11982 // bytes, ~96k bits for 10k entries at 1% FP
	bloomK    = 7      // number of hash functions
)

type bloom struct {
	bits []byte
}

// newBloom returns a zeroed bloom filter.
func newBloom() *bloom {
	return &bloom{bits: make([]byte, bloomSize)}
}

// Add inserts a file path into the filter.
func (b *bloom) Add(path string) {
	for _, pos := range bloomPositions(path) {
		b.bits[pos/8] |= 1 << (pos % 8)
	}
}

// Contains returns true if path might be present, false if definitely absent.
func (b *bloom) Contains(path string) bool {
	for _, pos := range bloomPositions(path) {
		if b.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

// bloomPositions returns bloomK bit positions using double hashing
// (FNV-64a + FNV-32a).
func bloomPositions(s string) [bloomK]uint {
	h64 := fnv.New64a()
	h64.Write([]byte(s))
	a := h64.Sum64()

	h32 := fnv.New32a()
	h32.Write([]byte(s))
	b := uint(h32.Sum32())

	nbits := uint(bloomSize * 8)
	var pos [bloomK]uint
	for i := range bloomK {
		pos[i] = (uint(a) + uint(i)*b) % nbits
	}
	return pos
}
