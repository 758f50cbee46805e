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

// Package chaindb defines the key-value store abstraction backing the chain
// and the world state, with a LevelDB implementation for the datadir and an
// in-memory implementation for tests.
package chaindb

import "errors"

// ErrNotFound is returned by Get when the key is absent. Backends map their
// native miss errors onto it.
var ErrNotFound = errors.New("chaindb: not found")

// Putter wraps the write operation supported by both batches and regular
// databases.
type Putter interface {
	Put(key []byte, value []byte) error
}

// Database wraps all database operations. All methods are safe for
// concurrent use.
type Database interface {
	Putter
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	NewIteratorWithPrefix(prefix []byte) Iterator
	NewBatch() Batch
	Close()
}

// Batch is a write-only store that commits its changes to the host database
// atomically when Write is called. A batch must not be used concurrently.
type Batch interface {
	Putter
	Delete(key []byte) error
	// ValueSize retrieves the amount of data queued up for writing.
	ValueSize() int
	Write() error
	Reset()
}

// Iterator walks a key range in ascending key order. Key and Value are only
// valid until the next call to Next; callers retain them with a copy.
// Release must be called when done.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}
