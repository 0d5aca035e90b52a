// Package leveldb wraps goleveldb as a persistent selfdb.KeyValueStore.
package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/SELF-HQ/self-chain-core/selfdb"
)

// Database is a goleveldb-backed key-value store.
type Database struct {
	db *leveldb.DB
}

// New opens (or creates) a leveldb database at path.
func New(path string) (*Database, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		Filter: filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// Has implements selfdb.KeyValueReader.
func (d *Database) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

// Get implements selfdb.KeyValueReader.
func (d *Database) Get(key []byte) ([]byte, error) {
	v, err := d.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, selfdb.ErrNotFound
	}
	return v, err
}

// Put implements selfdb.KeyValueWriter.
func (d *Database) Put(key, value []byte) error {
	return d.db.Put(key, value, nil)
}

// Delete implements selfdb.KeyValueWriter.
func (d *Database) Delete(key []byte) error {
	return d.db.Delete(key, nil)
}

// Close flushes and closes the underlying database.
func (d *Database) Close() error {
	return d.db.Close()
}
