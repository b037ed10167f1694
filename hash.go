// Hash helpers used by the in-memory merge structures.
//
// Nothing on disk is hashed — ShaDa records are keyed by their literal
// string (history entry text, file path) or by name (register, mark
// letter). These hashes only back the jump/change dedup lookup maps the
// mark merger uses internally; three algorithms are offered so callers
// can trade speed against distribution quality, mirroring the
// hash-algorithm selection pattern this package is adapted from.
package shada

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm selects the function used to key the mark merger's
// internal jump/change (file, pos) dedup maps.
type HashAlgorithm int

const (
	// HashXXH3 is the default: fast, good distribution.
	HashXXH3 HashAlgorithm = iota
	// HashFNV1a uses only the standard library's hash/fnv.
	HashFNV1a
	// HashBlake2b trades speed for the best distribution of the three,
	// for callers merging adversarially-crafted ShaDa files where hash
	// flooding of the dedup maps is a concern.
	HashBlake2b
)

func keyHash(alg HashAlgorithm, s string) uint64 {
	switch alg {
	case HashFNV1a:
		h := fnv.New64a()
		h.Write([]byte(s))
		return h.Sum64()
	case HashBlake2b:
		h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
		h.Write([]byte(s))
		return binary.BigEndian.Uint64(h.Sum(nil))
	default:
		return xxh3.HashString(s)
	}
}
