// Package common contains the shared hash type used across the protocol.
package common

import (
	"encoding/hex"
	"strings"
)

// HashLength is the expected length of a hash in bytes.
const HashLength = 32

// Hash is a 32-byte SHA-256 digest of canonical protocol data.
type Hash [HashLength]byte

// BytesToHash converts b to a Hash, left-truncating or zero-padding on the
// left so that the rightmost bytes of b are preserved.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToHash parses a hex string (with or without 0x prefix) into a Hash.
func HexToHash(s string) Hash {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return BytesToHash(b)
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the 0x-prefixed lowercase hex encoding of the hash.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// IsZero reports whether the hash is all zeroes. A zero block hash denotes
// "no block" in votes and round bookkeeping.
func (h Hash) IsZero() bool { return h == Hash{} }
