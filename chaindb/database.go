// Copyright 2025 The tongji-blockchain Authors
// This file is part of the tongji-blockchain library.
//
// The tongji-blockchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tongji-blockchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tongji-blockchain library. If not, see <http://www.gnu.org/licenses/>.

package chaindb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ReisenCW/tongji-blockchain/log"
)

const (
	minCache   = 16 // MiB
	minHandles = 16
)

// LDBDatabase is a LevelDB backed Database.
type LDBDatabase struct {
	fn  string      // filename for reporting
	db  *leveldb.DB // LevelDB instance
	log log.Logger  // contextual logger tracking the database path
}

// NewLDBDatabase opens (or creates) a LevelDB keyed store at file. Corrupted
// stores are recovered before giving up.
func NewLDBDatabase(file string, cache int, handles int) (*LDBDatabase, error) {
	logger := log.New("database", file)

	// Ensure we have some minimal caching and file guarantees.
	if cache < minCache {
		cache = minCache
	}
	if handles < minHandles {
		handles = minHandles
	}
	logger.Debug("Allocated cache and file handles", "cache", cache, "handles", handles)

	db, err := leveldb.OpenFile(file, &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB, // two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LDBDatabase{fn: file, db: db, log: logger}, nil
}

// Path returns the path to the database directory.
func (db *LDBDatabase) Path() string {
	return db.fn
}

// Put puts the given key / value to the store.
func (db *LDBDatabase) Put(key []byte, value []byte) error {
	return db.db.Put(key, value, nil)
}

// Has reports whether the given key exists.
func (db *LDBDatabase) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

// Get returns the given key if it's present.
func (db *LDBDatabase) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dat, nil
}

// Delete deletes the key from the store.
func (db *LDBDatabase) Delete(key []byte) error {
	return db.db.Delete(key, nil)
}

// NewIteratorWithPrefix returns an iterator over the subset of keys starting
// with prefix.
func (db *LDBDatabase) NewIteratorWithPrefix(prefix []byte) Iterator {
	return db.db.NewIterator(util.BytesPrefix(prefix), nil)
}

// NewBatch returns a write batch committing atomically on Write.
func (db *LDBDatabase) NewBatch() Batch {
	return &ldbBatch{db: db.db, b: new(leveldb.Batch)}
}

func (db *LDBDatabase) Close() {
	if err := db.db.Close(); err != nil {
		db.log.Error("Failed to close database", "err", err)
		return
	}
	db.log.Debug("Database closed")
}

type ldbBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *ldbBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	return nil
}

func (b *ldbBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size++
	return nil
}

func (b *ldbBatch) ValueSize() int {
	return b.size
}

func (b *ldbBatch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *ldbBatch) Reset() {
	b.b.Reset()
	b.size = 0
}
