// Package crypto provides hashing primitives used by the wallet's local
// stores and key derivation.
package crypto

import (
	"github.com/Klingon-tech/zwallet/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// HashConcat hashes the concatenation of the given byte slices.
func HashConcat(parts ...[]byte) types.Hash {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// DeriveKey derives size bytes of key material from material under a
// domain-separating context string.
func DeriveKey(context string, material []byte, size int) []byte {
	out := make([]byte, size)
	blake3.DeriveKey(context, material, out)
	return out
}
