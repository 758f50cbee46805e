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

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/rawdb"
	"github.com/ReisenCW/tongji-blockchain/core/types"
)

func newTestState(t *testing.T) (*StateDB, chaindb.Database) {
	t.Helper()
	db := chaindb.NewMemDatabase()
	s, err := New(db, 1)
	require.NoError(t, err)
	return s, db
}

func commit(t *testing.T, s *StateDB, db chaindb.Database) {
	t.Helper()
	batch := db.NewBatch()
	require.NoError(t, s.Commit(batch))
	require.NoError(t, batch.Write())
	s.Finalise()
}

func TestEmptyState(t *testing.T) {
	s, _ := newTestState(t)
	addr := common.HexToAddress("0x01")

	assert.Nil(t, s.GetAccount(addr))
	assert.False(t, s.Exist(addr))
	assert.Equal(t, uint64(0), s.GetNonce(addr))
	assert.Equal(t, uint64(0), s.GetBalance(addr))

	fresh := s.GetOrNewAccount(addr)
	require.NotNil(t, fresh)
	assert.Equal(t, addr, fresh.Address)
	// Not staged until UpdateAccount.
	assert.False(t, s.Exist(addr))
	assert.Equal(t, 0, s.DirtyCount())
}

func TestStagedAccountsShadowCommitted(t *testing.T) {
	s, db := newTestState(t)
	addr := common.HexToAddress("0x01")

	acc := s.GetOrNewAccount(addr)
	acc.Balance = 100
	s.UpdateAccount(acc)

	assert.True(t, s.Exist(addr))
	assert.Equal(t, uint64(100), s.GetBalance(addr))
	// Nothing on disk before commit.
	assert.Nil(t, rawdb.ReadAccount(db, addr))

	// The staged copy is detached from both the caller's value and later
	// reads.
	acc.Balance = 999
	assert.Equal(t, uint64(100), s.GetBalance(addr))
	read := s.GetAccount(addr)
	read.Balance = 1
	assert.Equal(t, uint64(100), s.GetBalance(addr))
}

func TestCommitPersistsAccounts(t *testing.T) {
	s, db := newTestState(t)
	addr := common.HexToAddress("0x01")

	acc := s.GetOrNewAccount(addr)
	acc.Balance = 500
	acc.Nonce = 2
	s.UpdateAccount(acc)
	commit(t, s, db)

	assert.Equal(t, 0, s.DirtyCount())
	stored := rawdb.ReadAccount(db, addr)
	require.NotNil(t, stored)
	assert.Equal(t, uint64(500), stored.Balance)
	assert.Equal(t, uint64(2), stored.Nonce)

	// Reads after commit come from the committed view.
	assert.Equal(t, uint64(500), s.GetBalance(addr))

	// A fresh state over the same database sees the committed account.
	reopened, err := New(db, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), reopened.GetBalance(addr))
}

func TestSnapshotRevert(t *testing.T) {
	s, _ := newTestState(t)
	a := common.HexToAddress("0x0a")
	b := common.HexToAddress("0x0b")

	accA := s.GetOrNewAccount(a)
	accA.Balance = 100
	s.UpdateAccount(accA)

	snap := s.Snapshot()

	accA = s.GetAccount(a)
	accA.Balance = 40
	s.UpdateAccount(accA)
	accB := s.GetOrNewAccount(b)
	accB.Balance = 60
	s.UpdateAccount(accB)
	assert.Equal(t, uint64(40), s.GetBalance(a))
	assert.Equal(t, uint64(60), s.GetBalance(b))

	s.RevertToSnapshot(snap)
	assert.Equal(t, uint64(100), s.GetBalance(a))
	assert.False(t, s.Exist(b))
	assert.Equal(t, 1, s.DirtyCount())
}

func TestNestedSnapshots(t *testing.T) {
	s, _ := newTestState(t)
	addr := common.HexToAddress("0x01")

	stage := func(balance uint64) {
		acc := s.GetOrNewAccount(addr)
		acc.Balance = balance
		s.UpdateAccount(acc)
	}

	stage(1)
	snap1 := s.Snapshot()
	stage(2)
	snap2 := s.Snapshot()
	stage(3)

	s.RevertToSnapshot(snap2)
	assert.Equal(t, uint64(2), s.GetBalance(addr))
	s.RevertToSnapshot(snap1)
	assert.Equal(t, uint64(1), s.GetBalance(addr))
}

func TestRevertUnknownSnapshotPanics(t *testing.T) {
	s, _ := newTestState(t)
	assert.Panics(t, func() { s.RevertToSnapshot(42) })

	// A reverted id cannot be reverted again.
	snap := s.Snapshot()
	s.RevertToSnapshot(snap)
	assert.Panics(t, func() { s.RevertToSnapshot(snap) })
}

func TestDiscardDropsStagedChanges(t *testing.T) {
	s, db := newTestState(t)
	addr := common.HexToAddress("0x01")

	acc := s.GetOrNewAccount(addr)
	acc.Balance = 500
	s.UpdateAccount(acc)
	commit(t, s, db)

	acc = s.GetAccount(addr)
	acc.Balance = 9
	s.UpdateAccount(acc)
	assert.Equal(t, uint64(9), s.GetBalance(addr))

	s.Discard()
	assert.Equal(t, uint64(500), s.GetBalance(addr))
	assert.Equal(t, 0, s.DirtyCount())
}

func TestProposalIndex(t *testing.T) {
	s, db := newTestState(t)
	owner := common.HexToAddress("0x01")

	_, ok := s.LookupProposal("p1")
	assert.False(t, ok)

	acc := s.GetOrNewAccount(owner)
	acc.RootCauseProposals["p1"] = &types.Proposal{
		ID: "p1", Content: "cache stampede", Proposer: owner, Status: types.ProposalPending,
	}
	s.UpdateAccount(acc)

	// Staged proposals resolve before commit.
	got, ok := s.LookupProposal("p1")
	require.True(t, ok)
	assert.Equal(t, owner, got)

	commit(t, s, db)
	got, ok = s.LookupProposal("p1")
	require.True(t, ok)
	assert.Equal(t, owner, got)

	// The index survives a reopen via the account scan.
	reopened, err := New(db, 1)
	require.NoError(t, err)
	got, ok = reopened.LookupProposal("p1")
	require.True(t, ok)
	assert.Equal(t, owner, got)
}

func TestEachAccountMergesStaged(t *testing.T) {
	s, db := newTestState(t)
	a := common.HexToAddress("0x0a")
	b := common.HexToAddress("0x0b")

	accA := s.GetOrNewAccount(a)
	accA.Balance = 1
	s.UpdateAccount(accA)
	commit(t, s, db)

	// Stage an update of a and a brand new b.
	accA = s.GetAccount(a)
	accA.Balance = 11
	s.UpdateAccount(accA)
	accB := s.GetOrNewAccount(b)
	accB.Balance = 22
	s.UpdateAccount(accB)

	var seen []*types.Account
	require.NoError(t, s.EachAccount(func(acc *types.Account) bool {
		seen = append(seen, acc)
		return true
	}))
	require.Len(t, seen, 2)
	assert.Equal(t, a, seen[0].Address)
	assert.Equal(t, uint64(11), seen[0].Balance)
	assert.Equal(t, b, seen[1].Address)
	assert.Equal(t, uint64(22), seen[1].Balance)

	// Early stop.
	count := 0
	require.NoError(t, s.EachAccount(func(*types.Account) bool {
		count++
		return false
	}))
	assert.Equal(t, 1, count)
}
