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

package core

import (
	"crypto/ecdsa"
	"sync"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/rawdb"
	"github.com/ReisenCW/tongji-blockchain/crypto"
	"github.com/ReisenCW/tongji-blockchain/log"
)

// PublicKeyRegistry maps account addresses to the public keys that sign for
// them. Wallets register their key when the account is first materialised;
// transaction admission rejects senders that never did. A stored registry
// additionally persists registrations, so chain validation can re-check old
// signatures after a restart.
type PublicKeyRegistry struct {
	mu   sync.RWMutex
	db   chaindb.Database
	keys map[common.Address]*ecdsa.PublicKey
}

// NewPublicKeyRegistry creates an empty in-memory registry.
func NewPublicKeyRegistry() *PublicKeyRegistry {
	return &PublicKeyRegistry{keys: make(map[common.Address]*ecdsa.PublicKey)}
}

// NewStoredKeyRegistry creates a registry backed by db, preloaded with every
// key persisted by earlier runs. Entries that no longer parse are dropped
// with a complaint rather than failing the whole load.
func NewStoredKeyRegistry(db chaindb.Database) *PublicKeyRegistry {
	r := &PublicKeyRegistry{db: db, keys: make(map[common.Address]*ecdsa.PublicKey)}
	err := rawdb.EachPubkey(db, func(addr common.Address, keyHex string) bool {
		pub, err := crypto.UnmarshalPubkeyHex(keyHex)
		if err != nil {
			log.Error("Invalid stored public key", "address", addr, "err", err)
			return true
		}
		r.keys[addr] = pub
		return true
	})
	if err != nil {
		log.Crit("Failed to load public key registry", "err", err)
	}
	return r
}

// Register stores the public key for the address it hashes to and returns
// that address.
func (r *PublicKeyRegistry) Register(pub *ecdsa.PublicKey) common.Address {
	addr := crypto.PubkeyToAddress(*pub)
	r.mu.Lock()
	r.keys[addr] = pub
	if r.db != nil {
		rawdb.WritePubkey(r.db, addr, crypto.PubkeyHex(pub))
	}
	r.mu.Unlock()
	return addr
}

// Lookup returns the public key registered for the address.
func (r *PublicKeyRegistry) Lookup(addr common.Address) (*ecdsa.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pub, ok := r.keys[addr]
	return pub, ok
}

// Hex returns the registered public key in its 64-byte hex form, as exposed
// to external observers.
func (r *PublicKeyRegistry) Hex(addr common.Address) (string, bool) {
	pub, ok := r.Lookup(addr)
	if !ok {
		return "", false
	}
	return crypto.PubkeyHex(pub), true
}

// Len returns the number of registered keys.
func (r *PublicKeyRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
