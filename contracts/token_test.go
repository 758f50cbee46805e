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

package contracts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/params"
)

var (
	treasuryAddr = common.HexToAddress(strings.Repeat("fe", 20))
	aliceAddr    = common.HexToAddress(strings.Repeat("aa", 20))
	bobAddr      = common.HexToAddress(strings.Repeat("bb", 20))
	carolAddr    = common.HexToAddress(strings.Repeat("cc", 20))
)

func newContractState(t *testing.T) *state.StateDB {
	t.Helper()
	st, err := state.New(chaindb.NewMemDatabase(), 1)
	require.NoError(t, err)
	return st
}

func seedAccount(st *state.StateDB, addr common.Address, name string, balance, stake uint64, rep int64) {
	acc := types.NewAccount(addr, name)
	acc.Balance = balance
	acc.Stake = stake
	acc.Reputation = rep
	st.UpdateAccount(acc)
}

func TestTransfer(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, aliceAddr, "Alice", 1000, 0, params.DefaultReputation)

	err := token.Transfer(st, aliceAddr, &types.TransferPayload{Recipient: bobAddr, Amount: 300})
	require.NoError(t, err)

	assert.Equal(t, uint64(700), st.GetBalance(aliceAddr))
	assert.Equal(t, uint64(300), st.GetBalance(bobAddr))

	// The recipient account is materialized by the transfer.
	bob := st.GetAccount(bobAddr)
	require.NotNil(t, bob)
	assert.Equal(t, params.DefaultReputation, bob.Reputation)
}

func TestTransferZeroAmountRejected(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, aliceAddr, "Alice", 1000, 0, params.DefaultReputation)

	err := token.Transfer(st, aliceAddr, &types.TransferPayload{Recipient: bobAddr, Amount: 0})
	assert.ErrorIs(t, err, ErrZeroAmount)
	assert.False(t, st.Exist(bobAddr))
	assert.Equal(t, uint64(1000), st.GetBalance(aliceAddr))
}

func TestTransferUnknownSender(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)

	err := token.Transfer(st, aliceAddr, &types.TransferPayload{Recipient: bobAddr, Amount: 1})
	assert.ErrorIs(t, err, ErrUnknownAccount)
	assert.False(t, st.Exist(bobAddr))
}

func TestTransferInsufficientBalance(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, aliceAddr, "Alice", 100, 0, params.DefaultReputation)

	err := token.Transfer(st, aliceAddr, &types.TransferPayload{Recipient: bobAddr, Amount: 101})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(100), st.GetBalance(aliceAddr))
}

func TestTransferToSelf(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, aliceAddr, "Alice", 500, 0, params.DefaultReputation)

	err := token.Transfer(st, aliceAddr, &types.TransferPayload{Recipient: aliceAddr, Amount: 200})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), st.GetBalance(aliceAddr))
}

func TestStake(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, aliceAddr, "Alice", 1000, 0, params.DefaultReputation)

	require.NoError(t, token.Stake(st, aliceAddr, &types.StakePayload{Amount: 400}))

	alice := st.GetAccount(aliceAddr)
	assert.Equal(t, uint64(600), alice.Balance)
	assert.Equal(t, uint64(400), alice.Stake)

	err := token.Stake(st, aliceAddr, &types.StakePayload{Amount: 601})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	err = token.Stake(st, bobAddr, &types.StakePayload{Amount: 1})
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestSlashClampsToStake(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, aliceAddr, "Alice", 100, 250, params.DefaultReputation)

	require.NoError(t, token.Slash(st, treasuryAddr, &types.SlashPayload{Target: aliceAddr, Amount: 1000}))

	alice := st.GetAccount(aliceAddr)
	assert.Equal(t, uint64(0), alice.Stake)
	// Slashed stake is burned, not moved.
	assert.Equal(t, uint64(100), alice.Balance)
	assert.Equal(t, uint64(0), st.GetBalance(treasuryAddr))

	err := token.Slash(st, treasuryAddr, &types.SlashPayload{Target: bobAddr, Amount: 1})
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestReward(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, treasuryAddr, "Treasury", 10_000, 0, params.DefaultReputation)
	seedAccount(st, aliceAddr, "Alice", 0, 0, 80)

	err := token.Reward(st, treasuryAddr, &types.RewardPayload{
		Target: aliceAddr, Amount: 800, ReputationDelta: 5, Reason: "accepted root cause",
	})
	require.NoError(t, err)

	alice := st.GetAccount(aliceAddr)
	assert.Equal(t, uint64(800), alice.Balance)
	assert.Equal(t, int64(85), alice.Reputation)
	assert.Equal(t, uint64(9200), st.GetBalance(treasuryAddr))
}

func TestRewardClampsReputation(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, treasuryAddr, "Treasury", 1000, 0, params.DefaultReputation)
	seedAccount(st, aliceAddr, "Alice", 0, 0, 98)

	err := token.Reward(st, treasuryAddr, &types.RewardPayload{Target: aliceAddr, Amount: 1, ReputationDelta: 10})
	require.NoError(t, err)
	assert.Equal(t, params.MaxReputation, st.GetAccount(aliceAddr).Reputation)
}

func TestRewardCreatesAccounts(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)

	// A reputation-only reward from a fresh sender succeeds with no funds.
	err := token.Reward(st, treasuryAddr, &types.RewardPayload{Target: aliceAddr, Amount: 0, ReputationDelta: -3})
	require.NoError(t, err)
	assert.True(t, st.Exist(treasuryAddr))
	assert.Equal(t, int64(97), st.GetAccount(aliceAddr).Reputation)

	// Token amounts still need sender balance.
	err = token.Reward(st, treasuryAddr, &types.RewardPayload{Target: aliceAddr, Amount: 10})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestPenalty(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, treasuryAddr, "Treasury", 0, 0, params.DefaultReputation)
	seedAccount(st, aliceAddr, "Alice", 500, 0, 90)

	err := token.Penalty(st, treasuryAddr, &types.PenaltyPayload{
		Target: aliceAddr, Amount: 100, ReputationDelta: -5, Reason: "dissent on passed proposal",
	})
	require.NoError(t, err)

	alice := st.GetAccount(aliceAddr)
	assert.Equal(t, uint64(400), alice.Balance)
	assert.Equal(t, int64(85), alice.Reputation)
	assert.Equal(t, uint64(100), st.GetBalance(treasuryAddr))
}

func TestPenaltyClampsToBalance(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, aliceAddr, "Alice", 30, 0, params.DefaultReputation)

	err := token.Penalty(st, treasuryAddr, &types.PenaltyPayload{Target: aliceAddr, Amount: 100, ReputationDelta: -1})
	require.NoError(t, err)

	assert.Equal(t, uint64(0), st.GetBalance(aliceAddr))
	assert.Equal(t, uint64(30), st.GetBalance(treasuryAddr))

	err = token.Penalty(st, treasuryAddr, &types.PenaltyPayload{Target: carolAddr, Amount: 1})
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestTreasuryOnlyOperationsRejectOtherSenders(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, aliceAddr, "Alice", 50_000, 2000, params.DefaultReputation)
	seedAccount(st, bobAddr, "Bob", 1000, 0, params.DefaultReputation)

	err := token.Penalty(st, bobAddr, &types.PenaltyPayload{
		Target: aliceAddr, Amount: 50_000, ReputationDelta: -40, Reason: "rigged",
	})
	assert.ErrorIs(t, err, ErrNotTreasury)

	err = token.Slash(st, bobAddr, &types.SlashPayload{Target: aliceAddr, Amount: 2000})
	assert.ErrorIs(t, err, ErrNotTreasury)

	err = token.Reward(st, bobAddr, &types.RewardPayload{Target: bobAddr, ReputationDelta: 50})
	assert.ErrorIs(t, err, ErrNotTreasury)

	// Nothing moved.
	alice := st.GetAccount(aliceAddr)
	assert.Equal(t, uint64(50_000), alice.Balance)
	assert.Equal(t, uint64(2000), alice.Stake)
	assert.Equal(t, params.DefaultReputation, alice.Reputation)
	assert.Equal(t, params.DefaultReputation, st.GetAccount(bobAddr).Reputation)
	assert.Equal(t, uint64(0), st.GetBalance(treasuryAddr))
}

func TestPenaltyReputationFloor(t *testing.T) {
	st := newContractState(t)
	token := NewTokenContract(treasuryAddr)
	seedAccount(st, aliceAddr, "Alice", 0, 0, 2)

	err := token.Penalty(st, treasuryAddr, &types.PenaltyPayload{Target: aliceAddr, Amount: 0, ReputationDelta: -10})
	require.NoError(t, err)
	assert.Equal(t, params.MinReputation, st.GetAccount(aliceAddr).Reputation)
}
