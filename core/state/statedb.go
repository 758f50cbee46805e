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

// Package state provides the account-level world state on top of the chain
// database. Mutations are staged in memory and only reach disk through
// Commit, so a block either lands with all of its account updates or not
// at all.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/rawdb"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/log"
)

const defaultCacheMiB = 16

// revision records the staged account set at the time of a Snapshot call.
type revision struct {
	id      int
	dirties map[common.Address]*types.Account
}

// StateDB holds all accounts of the chain. Reads go through an in-memory
// cache of committed entries; writes are staged with UpdateAccount and hit
// the database on Commit/Finalise. Mutators work on copies: GetAccount
// hands out a detached account and UpdateAccount stages a detached copy,
// so snapshots only need to remember map contents, never deep state.
type StateDB struct {
	db    chaindb.Database
	cache *fastcache.Cache

	mu             sync.RWMutex
	dirties        map[common.Address]*types.Account
	revisions      []revision
	nextRevisionID int

	// proposals indexes proposal id to owning account, replacing the
	// account scan the vote path would otherwise need.
	proposals map[string]common.Address
}

// New opens the world state over the given database. The proposal index is
// rebuilt from the stored accounts, so lookups are ready before the first
// block is processed. cacheMiB bounds the read cache, with a small default
// when zero.
func New(db chaindb.Database, cacheMiB int) (*StateDB, error) {
	if cacheMiB <= 0 {
		cacheMiB = defaultCacheMiB
	}
	s := &StateDB{
		db:        db,
		cache:     fastcache.New(cacheMiB * 1024 * 1024),
		dirties:   make(map[common.Address]*types.Account),
		proposals: make(map[string]common.Address),
	}
	accounts := 0
	err := rawdb.EachAccount(db, func(acc *types.Account) bool {
		accounts++
		for id := range acc.RootCauseProposals {
			s.proposals[id] = acc.Address
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("rebuilding proposal index: %w", err)
	}
	log.Debug("Loaded world state", "accounts", accounts, "proposals", len(s.proposals))
	return s, nil
}

// GetAccount returns a detached copy of the account, or nil if it does not
// exist. Staged changes shadow committed state.
func (s *StateDB) GetAccount(addr common.Address) *types.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccount(addr)
}

func (s *StateDB) getAccount(addr common.Address) *types.Account {
	if acc, ok := s.dirties[addr]; ok {
		return acc.Copy()
	}
	return s.committedAccount(addr)
}

// committedAccount loads an account from the cache or the database,
// bypassing staged changes.
func (s *StateDB) committedAccount(addr common.Address) *types.Account {
	if data := s.cache.Get(nil, addr.Bytes()); len(data) > 0 {
		acc := new(types.Account)
		if err := json.Unmarshal(data, acc); err == nil {
			return acc
		}
		log.Error("Corrupt state cache entry", "address", addr)
		s.cache.Del(addr.Bytes())
	}
	acc := rawdb.ReadAccount(s.db, addr)
	if acc == nil {
		return nil
	}
	if data, err := json.Marshal(acc); err == nil {
		s.cache.Set(addr.Bytes(), data)
	}
	return acc
}

// GetOrNewAccount returns a detached copy of the account, creating a fresh
// one if none exists. The new account is not staged until UpdateAccount.
func (s *StateDB) GetOrNewAccount(addr common.Address) *types.Account {
	if acc := s.GetAccount(addr); acc != nil {
		return acc
	}
	return types.NewAccount(addr, "")
}

// Exist reports whether an account is present, staged or committed.
func (s *StateDB) Exist(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.dirties[addr]; ok {
		return true
	}
	return s.committedAccount(addr) != nil
}

// GetNonce returns the account nonce, zero for unknown accounts.
func (s *StateDB) GetNonce(addr common.Address) uint64 {
	if acc := s.GetAccount(addr); acc != nil {
		return acc.Nonce
	}
	return 0
}

// GetBalance returns the account balance, zero for unknown accounts.
func (s *StateDB) GetBalance(addr common.Address) uint64 {
	if acc := s.GetAccount(addr); acc != nil {
		return acc.Balance
	}
	return 0
}

// UpdateAccount stages the account for the next Commit. The state keeps a
// detached copy, so the caller may keep mutating its local value and stage
// again later.
func (s *StateDB) UpdateAccount(acc *types.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirties[acc.Address] = acc.Copy()
	accountUpdatedMeter.Mark(1)
}

// LookupProposal resolves a proposal id to the owning account address,
// consulting staged accounts before the committed index.
func (s *StateDB) LookupProposal(id string) (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for addr, acc := range s.dirties {
		if _, ok := acc.RootCauseProposals[id]; ok {
			return addr, true
		}
	}
	addr, ok := s.proposals[id]
	return addr, ok
}

// Snapshot returns an identifier for the current staged state, to be used
// with RevertToSnapshot.
func (s *StateDB) Snapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextRevisionID
	s.nextRevisionID++
	saved := make(map[common.Address]*types.Account, len(s.dirties))
	for addr, acc := range s.dirties {
		saved[addr] = acc
	}
	s.revisions = append(s.revisions, revision{id: id, dirties: saved})
	return id
}

// RevertToSnapshot discards every staged change made since the matching
// Snapshot call. Reverting to an unknown id is a programming error and
// panics, mirroring the contract of the snapshot journal.
func (s *StateDB) RevertToSnapshot(revid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := sort.Search(len(s.revisions), func(i int) bool {
		return s.revisions[i].id >= revid
	})
	if idx == len(s.revisions) || s.revisions[idx].id != revid {
		panic(fmt.Sprintf("revision id %v cannot be reverted", revid))
	}
	s.dirties = s.revisions[idx].dirties
	s.revisions = s.revisions[:idx]
}

// Commit writes every staged account into w, normally a database batch that
// also carries the block and its receipts. The staged set stays in place
// until Finalise or Discard, so a failed batch write leaves the in-memory
// view aligned with disk.
func (s *StateDB) Commit(w chaindb.Putter) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defer stateCommitTimer.UpdateSince(time.Now())

	for _, acc := range s.dirties {
		rawdb.WriteAccount(w, acc)
	}
	return nil
}

// Finalise absorbs the staged accounts into the committed view after a
// successful batch write: the read cache and the proposal index are updated
// and the journal is cleared.
func (s *StateDB) Finalise() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, acc := range s.dirties {
		if data, err := json.Marshal(acc); err == nil {
			s.cache.Set(addr.Bytes(), data)
		} else {
			s.cache.Del(addr.Bytes())
		}
		for id := range acc.RootCauseProposals {
			s.proposals[id] = addr
		}
	}
	s.clearJournal()
}

// Discard drops all staged changes, restoring the committed view. Used when
// persisting a block fails and its effects must not survive in memory.
func (s *StateDB) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearJournal()
}

func (s *StateDB) clearJournal() {
	s.dirties = make(map[common.Address]*types.Account)
	s.revisions = s.revisions[:0]
	s.nextRevisionID = 0
}

// DirtyCount returns the number of accounts staged for the next commit.
func (s *StateDB) DirtyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirties)
}

// EachAccount invokes cb for every account, staged changes shadowing
// committed ones, in ascending address order. Iteration stops early when cb
// returns false.
func (s *StateDB) EachAccount(cb func(*types.Account) bool) error {
	s.mu.RLock()
	merged := make(map[common.Address]*types.Account, len(s.dirties))
	for addr, acc := range s.dirties {
		merged[addr] = acc.Copy()
	}
	s.mu.RUnlock()

	err := rawdb.EachAccount(s.db, func(acc *types.Account) bool {
		if _, ok := merged[acc.Address]; !ok {
			merged[acc.Address] = acc
		}
		return true
	})
	if err != nil {
		return err
	}

	accounts := make([]*types.Account, 0, len(merged))
	for _, acc := range merged {
		accounts = append(accounts, acc)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].Address.Bytes(), accounts[j].Address.Bytes()) < 0
	})
	for _, acc := range accounts {
		if !cb(acc) {
			break
		}
	}
	return nil
}
