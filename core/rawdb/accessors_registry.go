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
	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/log"
)

// WritePubkey stores the hex form of a registered public key under its
// address, so chain validation can re-check signatures after a restart.
func WritePubkey(db chaindb.Putter, addr common.Address, pubkeyHex string) {
	if err := db.Put(pubkeyKey(addr), []byte(pubkeyHex)); err != nil {
		log.Crit("Failed to store public key", "address", addr, "err", err)
	}
}

// EachPubkey invokes cb for every stored public key, in key order. Iteration
// stops early when cb returns false.
func EachPubkey(db chaindb.Database, cb func(common.Address, string) bool) error {
	it := db.NewIteratorWithPrefix(pubkeyPrefix)
	defer it.Release()

	for it.Next() {
		key := it.Key()
		addr := common.BytesToAddress(key[len(pubkeyPrefix):])
		if !cb(addr, string(it.Value())) {
			break
		}
	}
	return it.Error()
}
