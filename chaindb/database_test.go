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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDBs(t *testing.T) map[string]Database {
	t.Helper()
	ldb, err := NewLDBDatabase(t.TempDir(), 0, 0)
	require.NoError(t, err)
	t.Cleanup(ldb.Close)
	return map[string]Database{
		"leveldb": ldb,
		"memory":  NewMemDatabase(),
	}
}

func TestPutGetDelete(t *testing.T) {
	for name, db := range openTestDBs(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			got, err := db.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)

			ok, err := db.Has([]byte("k"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, db.Delete([]byte("k")))
			ok, err = db.Has([]byte("k"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestPrefixIterator(t *testing.T) {
	for name, db := range openTestDBs(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("a-1"), []byte("x")))
			require.NoError(t, db.Put([]byte("a-2"), []byte("y")))
			require.NoError(t, db.Put([]byte("b-1"), []byte("z")))

			it := db.NewIteratorWithPrefix([]byte("a-"))
			defer it.Release()

			var keys []string
			for it.Next() {
				keys = append(keys, string(it.Key()))
			}
			require.NoError(t, it.Error())
			assert.Equal(t, []string{"a-1", "a-2"}, keys)
		})
	}
}

func TestBatchWrite(t *testing.T) {
	for name, db := range openTestDBs(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("gone"), []byte("soon")))

			batch := db.NewBatch()
			require.NoError(t, batch.Put([]byte("k1"), []byte("v1")))
			require.NoError(t, batch.Put([]byte("k2"), []byte("v2")))
			require.NoError(t, batch.Delete([]byte("gone")))
			assert.Greater(t, batch.ValueSize(), 0)

			// Nothing lands before Write.
			ok, err := db.Has([]byte("k1"))
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, batch.Write())
			got, err := db.Get([]byte("k2"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)
			ok, err = db.Has([]byte("gone"))
			require.NoError(t, err)
			assert.False(t, ok)

			batch.Reset()
			assert.Zero(t, batch.ValueSize())
		})
	}
}

func TestValuesAreCopied(t *testing.T) {
	db := NewMemDatabase()
	val := []byte("mutable")
	require.NoError(t, db.Put([]byte("k"), val))
	val[0] = 'X'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), got)
}
