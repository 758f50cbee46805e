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

package rawdb

import (
	"encoding/binary"
	"encoding/json"

	"github.com/golang/snappy"
	"github.com/rcrowley/go-metrics"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/log"
)

var (
	blockReadMeter  = metrics.GetOrRegisterMeter("rawdb/block/read", metrics.DefaultRegistry)
	blockWriteMeter = metrics.GetOrRegisterMeter("rawdb/block/write", metrics.DefaultRegistry)
)

// ReadHeadIndex retrieves the index of the current head block. The second
// return value is false when the database holds no chain yet.
func ReadHeadIndex(db chaindb.Database) (uint64, bool) {
	data, err := db.Get(headBlockKey)
	if err == chaindb.ErrNotFound {
		return 0, false
	}
	if err != nil {
		log.Crit("Failed to read head block index", "err", err)
	}
	if len(data) != 8 {
		log.Crit("Invalid head block index entry", "len", len(data))
	}
	return binary.BigEndian.Uint64(data), true
}

// WriteHeadIndex stores the index of the current head block.
func WriteHeadIndex(db chaindb.Putter, index uint64) {
	if err := db.Put(headBlockKey, encodeBlockNumber(index)); err != nil {
		log.Crit("Failed to store head block index", "err", err)
	}
}

// ReadGenesisHash retrieves the hash of the genesis block, or the zero hash
// if the database has not been initialised.
func ReadGenesisHash(db chaindb.Database) common.Hash {
	data, err := db.Get(genesisKey)
	if err == chaindb.ErrNotFound {
		return common.Hash{}
	}
	if err != nil {
		log.Crit("Failed to read genesis hash", "err", err)
	}
	return common.BytesToHash(data)
}

// WriteGenesisHash stores the hash of the genesis block.
func WriteGenesisHash(db chaindb.Putter, hash common.Hash) {
	if err := db.Put(genesisKey, hash.Bytes()); err != nil {
		log.Crit("Failed to store genesis hash", "err", err)
	}
}

// ReadBlock retrieves a block by index, or nil if the block is not present.
// Stored blocks are snappy compressed JSON; decode failures are treated as
// database corruption and logged, with nil returned to the caller.
func ReadBlock(db chaindb.Database, index uint64) *types.Block {
	data, err := db.Get(blockKey(index))
	if err == chaindb.ErrNotFound {
		return nil
	}
	if err != nil {
		log.Crit("Failed to read block", "index", index, "err", err)
	}
	blockReadMeter.Mark(1)

	raw, err := snappy.Decode(nil, data)
	if err != nil {
		log.Error("Corrupt block entry", "index", index, "err", err)
		return nil
	}
	block := new(types.Block)
	if err := json.Unmarshal(raw, block); err != nil {
		log.Error("Invalid block entry", "index", index, "err", err)
		return nil
	}
	return block
}

// WriteBlock stores a block under its index.
func WriteBlock(db chaindb.Putter, block *types.Block) {
	raw, err := json.Marshal(block)
	if err != nil {
		log.Crit("Failed to encode block", "index", block.Index(), "err", err)
	}
	if err := db.Put(blockKey(block.Index()), snappy.Encode(nil, raw)); err != nil {
		log.Crit("Failed to store block", "index", block.Index(), "err", err)
	}
	blockWriteMeter.Mark(1)
}

// HasBlock reports whether a block with the given index is stored.
func HasBlock(db chaindb.Database, index uint64) bool {
	has, err := db.Has(blockKey(index))
	if err != nil {
		return false
	}
	return has
}
