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
	"sort"
	"strings"
	"sync"

	"github.com/ReisenCW/tongji-blockchain/common"
)

// MemDatabase is a map backed Database, used in tests and for ephemeral
// nodes.
type MemDatabase struct {
	db   map[string][]byte
	lock sync.RWMutex
}

// NewMemDatabase returns an empty in-memory store.
func NewMemDatabase() *MemDatabase {
	return &MemDatabase{db: make(map[string][]byte)}
}

func (db *MemDatabase) Put(key []byte, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.db[string(key)] = common.CopyBytes(value)
	return nil
}

func (db *MemDatabase) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	_, ok := db.db[string(key)]
	return ok, nil
}

func (db *MemDatabase) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if entry, ok := db.db[string(key)]; ok {
		return common.CopyBytes(entry), nil
	}
	return nil, ErrNotFound
}

func (db *MemDatabase) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	delete(db.db, string(key))
	return nil
}

// NewIteratorWithPrefix iterates a sorted snapshot of the matching keys, so
// concurrent writes do not disturb a running iteration.
func (db *MemDatabase) NewIteratorWithPrefix(prefix []byte) Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()

	var keys []string
	for k := range db.db {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, 0, len(keys))
	for _, k := range keys {
		values = append(values, common.CopyBytes(db.db[k]))
	}
	return &memIterator{keys: keys, values: values, index: -1}
}

func (db *MemDatabase) NewBatch() Batch {
	return &memBatch{db: db}
}

// Len returns the number of stored entries.
func (db *MemDatabase) Len() int {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return len(db.db)
}

func (db *MemDatabase) Close() {}

type memIterator struct {
	keys   []string
	values [][]byte
	index  int
}

func (it *memIterator) Next() bool {
	if it.index >= len(it.keys)-1 {
		return false
	}
	it.index++
	return true
}

func (it *memIterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.index])
}

func (it *memIterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.values) {
		return nil
	}
	return it.values[it.index]
}

func (it *memIterator) Release() {}

func (it *memIterator) Error() error { return nil }

type kv struct {
	k, v []byte
	del  bool
}

type memBatch struct {
	db     *MemDatabase
	writes []kv
	size   int
}

func (b *memBatch) Put(key, value []byte) error {
	b.writes = append(b.writes, kv{common.CopyBytes(key), common.CopyBytes(value), false})
	b.size += len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.writes = append(b.writes, kv{common.CopyBytes(key), nil, true})
	b.size++
	return nil
}

func (b *memBatch) ValueSize() int {
	return b.size
}

func (b *memBatch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	for _, entry := range b.writes {
		if entry.del {
			delete(b.db.db, string(entry.k))
			continue
		}
		b.db.db[string(entry.k)] = entry.v
	}
	return nil
}

func (b *memBatch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}
