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
	"encoding/json"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/log"
)

// ReadAccount retrieves an account by address, or nil if it does not exist.
func ReadAccount(db chaindb.Database, addr common.Address) *types.Account {
	data, err := db.Get(accountKey(addr))
	if err == chaindb.ErrNotFound {
		return nil
	}
	if err != nil {
		log.Crit("Failed to read account", "address", addr, "err", err)
	}
	account := new(types.Account)
	if err := json.Unmarshal(data, account); err != nil {
		log.Error("Invalid account entry", "address", addr, "err", err)
		return nil
	}
	return account
}

// WriteAccount stores an account under its address.
func WriteAccount(db chaindb.Putter, account *types.Account) {
	data, err := json.Marshal(account)
	if err != nil {
		log.Crit("Failed to encode account", "address", account.Address, "err", err)
	}
	if err := db.Put(accountKey(account.Address), data); err != nil {
		log.Crit("Failed to store account", "address", account.Address, "err", err)
	}
}

// HasAccount reports whether an account with the given address is stored.
func HasAccount(db chaindb.Database, addr common.Address) bool {
	has, err := db.Has(accountKey(addr))
	if err != nil {
		return false
	}
	return has
}

// EachAccount invokes cb for every stored account, in key order. Iteration
// stops early when cb returns false.
func EachAccount(db chaindb.Database, cb func(*types.Account) bool) error {
	it := db.NewIteratorWithPrefix(accountPrefix)
	defer it.Release()

	for it.Next() {
		account := new(types.Account)
		if err := json.Unmarshal(it.Value(), account); err != nil {
			log.Error("Invalid account entry", "key", it.Key(), "err", err)
			continue
		}
		if !cb(account) {
			break
		}
	}
	return it.Error()
}
