// Package selfdb defines the key-value database interfaces beneath the
// account/state layer. Backends live in the memorydb and leveldb
// subpackages.
package selfdb

import "errors"

// ErrNotFound is returned when a key is absent from the store.
var ErrNotFound = errors.New("selfdb: not found")

// KeyValueReader wraps the read methods of a backing store.
type KeyValueReader interface {
	// Has reports whether a value exists for key.
	Has(key []byte) (bool, error)

	// Get retrieves the value for key, ErrNotFound if absent.
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the write methods of a backing store.
type KeyValueWriter interface {
	// Put inserts or replaces the value for key.
	Put(key, value []byte) error

	// Delete removes the value for key. Deleting an absent key is a no-op.
	Delete(key []byte) error
}

// KeyValueStore is the full contract a state backend must satisfy.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter

	// Close releases underlying resources. The store is unusable afterwards.
	Close() error
}
