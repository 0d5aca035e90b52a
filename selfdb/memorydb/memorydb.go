// Package memorydb implements an in-memory selfdb.KeyValueStore, used for
// tests and light-node operation.
package memorydb

import (
	"errors"
	"sync"

	"github.com/SELF-HQ/self-chain-core/selfdb"
)

var errClosed = errors.New("memorydb: database closed")

// Database is a map-backed key-value store safe for concurrent use.
// Values are copied on both read and write.
type Database struct {
	mu sync.RWMutex
	db map[string][]byte
}

// New returns an empty in-memory database.
func New() *Database {
	return &Database{db: make(map[string][]byte)}
}

// Has implements selfdb.KeyValueReader.
func (d *Database) Has(key []byte) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return false, errClosed
	}
	_, ok := d.db[string(key)]
	return ok, nil
}

// Get implements selfdb.KeyValueReader.
func (d *Database) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, errClosed
	}
	v, ok := d.db[string(key)]
	if !ok {
		return nil, selfdb.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put implements selfdb.KeyValueWriter.
func (d *Database) Put(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return errClosed
	}
	d.db[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete implements selfdb.KeyValueWriter.
func (d *Database) Delete(key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return errClosed
	}
	delete(d.db, string(key))
	return nil
}

// Len returns the number of stored entries.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.db)
}

// Close drops the backing map.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.db = nil
	return nil
}
