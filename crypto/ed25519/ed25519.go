// Package ed25519 wraps the standard library Ed25519 implementation behind
// protocol-local names so call sites never import crypto/ed25519 directly.
package ed25519

import (
	stded25519 "crypto/ed25519"
	"crypto/rand"
)

const (
	PublicKeySize  = stded25519.PublicKeySize
	PrivateKeySize = stded25519.PrivateKeySize
	SignatureSize  = stded25519.SignatureSize
	SeedSize       = stded25519.SeedSize
)

type (
	PublicKey  = stded25519.PublicKey
	PrivateKey = stded25519.PrivateKey
)

// GenerateKey creates a fresh random keypair.
func GenerateKey() (PublicKey, PrivateKey, error) {
	pub, priv, err := stded25519.GenerateKey(rand.Reader)
	return pub, priv, err
}

// NewKeyFromSeed derives a private key from a 32-byte seed. Panics if the
// seed length is wrong, mirroring the standard library.
func NewKeyFromSeed(seed []byte) PrivateKey {
	return stded25519.NewKeyFromSeed(seed)
}

// PublicFromPrivate extracts the public key half of priv.
func PublicFromPrivate(priv PrivateKey) PublicKey {
	return priv.Public().(stded25519.PublicKey)
}

// Sign signs message with priv and returns the 64-byte signature.
func Sign(priv PrivateKey, message []byte) []byte {
	return stded25519.Sign(priv, message)
}

// Verify reports whether sig is a valid signature of message under pub.
// Malformed keys or signatures verify as false rather than panicking.
func Verify(pub PublicKey, message, sig []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return stded25519.Verify(pub, message, sig)
}
