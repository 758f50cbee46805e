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
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/crypto"
	"github.com/ReisenCW/tongji-blockchain/params"
)

type poolEnv struct {
	state    *state.StateDB
	registry *PublicKeyRegistry
	pool     *TxPool
}

func newPoolEnv(t *testing.T, config TxPoolConfig) *poolEnv {
	t.Helper()
	st, err := state.New(chaindb.NewMemDatabase(), 1)
	require.NoError(t, err)
	registry := NewPublicKeyRegistry()
	return &poolEnv{
		state:    st,
		registry: registry,
		pool:     NewTxPool(config, st, registry),
	}
}

// newAgent registers a fresh key and funds its account.
func (env *poolEnv) newAgent(t *testing.T, balance uint64) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := env.registry.Register(&key.PublicKey)
	acc := types.NewAccount(addr, "")
	acc.Balance = balance
	env.state.UpdateAccount(acc)
	return key, addr
}

func signedTransfer(t *testing.T, key *ecdsa.PrivateKey, from common.Address, nonce, gasPrice, gasLimit uint64) *types.Transaction {
	t.Helper()
	to := common.HexToAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	tx := types.NewTransaction(types.TxTransfer, from, nonce, gasPrice, gasLimit,
		&types.TransferPayload{Recipient: to, Amount: 10})
	_, err := types.SignTx(tx, key)
	require.NoError(t, err)
	return tx
}

func TestPoolAcceptsValid(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 100_000)

	tx := signedTransfer(t, key, addr, 0, 1, params.MinGasTransfer)
	require.NoError(t, env.pool.Add(tx))

	assert.Equal(t, 1, env.pool.Len())
	assert.True(t, env.pool.Has(tx.Hash()))
	assert.Same(t, tx, env.pool.Get(tx.Hash()))
	assert.Equal(t, uint64(1), env.pool.PendingNonce(addr))

	pending := env.pool.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, tx.Hash(), pending[0].Hash())
}

func TestPoolRejectsUnknownSigner(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	tx := signedTransfer(t, key, addr, 0, 1, params.MinGasTransfer)
	assert.ErrorIs(t, env.pool.Add(tx), ErrUnknownSigner)
	assert.Equal(t, 0, env.pool.Len())
}

func TestPoolRejectsInvalidSignature(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	_, addr := env.newAgent(t, 100_000)
	foreign, err := crypto.GenerateKey()
	require.NoError(t, err)

	// Signed by a key that is not the sender's registered one.
	tx := signedTransfer(t, foreign, addr, 0, 1, params.MinGasTransfer)
	assert.ErrorIs(t, env.pool.Add(tx), ErrInvalidSignature)

	// No signature at all.
	unsigned := types.NewTransaction(types.TxTransfer, addr, 0, 1, params.MinGasTransfer,
		&types.TransferPayload{Recipient: addr, Amount: 1})
	assert.ErrorIs(t, env.pool.Add(unsigned), ErrInvalidSignature)
}

func TestPoolRejectsUnsupportedType(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 100_000)

	tx := types.NewTransaction(types.TxType("teleport"), addr, 0, 1, params.MinGasTransfer, nil)
	_, err := types.SignTx(tx, key)
	require.NoError(t, err)
	assert.ErrorIs(t, env.pool.Add(tx), ErrTxTypeNotSupported)
}

func TestPoolRejectsUnderpriced(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 100_000)

	tx := signedTransfer(t, key, addr, 0, 0, params.MinGasTransfer)
	assert.ErrorIs(t, env.pool.Add(tx), ErrUnderpriced)
}

func TestPoolRejectsNonceMismatch(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 100_000)

	tx := signedTransfer(t, key, addr, 5, 1, params.MinGasTransfer)
	err := env.pool.Add(tx)
	assert.ErrorIs(t, err, ErrNonce)

	var nerr *NonceErr
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, uint64(5), nerr.Is)
	assert.Equal(t, uint64(0), nerr.Exp)
}

func TestPoolNonceSequence(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 1_000_000)

	// Consecutive nonces queue behind each other before any block is mined.
	for nonce := uint64(0); nonce < 3; nonce++ {
		require.NoError(t, env.pool.Add(signedTransfer(t, key, addr, nonce, 1, params.MinGasTransfer)))
	}
	assert.Equal(t, uint64(3), env.pool.PendingNonce(addr))

	// Reusing a queued nonce is a collision. The payload differs so the
	// digest is fresh and the duplicate-hash check cannot trip first.
	tx := types.NewTransaction(types.TxTransfer, addr, 1, 1, params.MinGasTransfer,
		&types.TransferPayload{Recipient: addr, Amount: 99})
	_, err := types.SignTx(tx, key)
	require.NoError(t, err)
	err = env.pool.Add(tx)
	assert.ErrorIs(t, err, ErrNonce)
}

func TestPoolRejectsIntrinsicGas(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 100_000)

	tx := signedTransfer(t, key, addr, 0, 1, params.MinGasTransfer-1)
	assert.ErrorIs(t, env.pool.Add(tx), ErrIntrinsicGas)
}

func TestPoolRejectsFeeOverflow(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 100_000)

	tx := signedTransfer(t, key, addr, 0, math.MaxUint64/2, params.MinGasTransfer)
	assert.ErrorIs(t, env.pool.Add(tx), ErrGasUintOverflow)
}

func TestPoolRejectsInsufficientFunds(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, params.MinGasTransfer-1)

	tx := signedTransfer(t, key, addr, 0, 1, params.MinGasTransfer)
	assert.ErrorIs(t, env.pool.Add(tx), ErrInsufficientFunds)
}

func TestPoolRejectsKnown(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 100_000)

	tx := signedTransfer(t, key, addr, 0, 1, params.MinGasTransfer)
	require.NoError(t, env.pool.Add(tx))
	assert.ErrorIs(t, env.pool.Add(tx), ErrAlreadyKnown)
	assert.Equal(t, 1, env.pool.Len())
}

func TestPoolCapacity(t *testing.T) {
	env := newPoolEnv(t, TxPoolConfig{PriceLimit: 1, GlobalSlots: 2})
	key, addr := env.newAgent(t, 1_000_000)

	require.NoError(t, env.pool.Add(signedTransfer(t, key, addr, 0, 1, params.MinGasTransfer)))
	require.NoError(t, env.pool.Add(signedTransfer(t, key, addr, 1, 1, params.MinGasTransfer)))
	err := env.pool.Add(signedTransfer(t, key, addr, 2, 1, params.MinGasTransfer))
	assert.ErrorIs(t, err, ErrTxPoolOverflow)
	assert.Equal(t, 2, env.pool.Len())
}

func TestPoolDrain(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 1_000_000)

	first := signedTransfer(t, key, addr, 0, 1, params.MinGasTransfer)
	second := signedTransfer(t, key, addr, 1, 1, params.MinGasTransfer)
	require.NoError(t, env.pool.Add(first))
	require.NoError(t, env.pool.Add(second))

	drained := env.pool.DrainPending()
	require.Len(t, drained, 2)
	assert.Equal(t, first.Hash(), drained[0].Hash())
	assert.Equal(t, second.Hash(), drained[1].Hash())

	assert.Equal(t, 0, env.pool.Len())
	assert.False(t, env.pool.Has(first.Hash()))
	assert.Equal(t, uint64(0), env.pool.PendingNonce(addr))
}

func TestPoolAddBatch(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 1_000_000)

	good := signedTransfer(t, key, addr, 0, 1, params.MinGasTransfer)
	bad := signedTransfer(t, key, addr, 7, 1, params.MinGasTransfer)

	errs := env.pool.AddBatch(types.Transactions{good, bad})
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrNonce)
	assert.Equal(t, 1, env.pool.Len())
}

func TestPoolNewTxsEvent(t *testing.T) {
	env := newPoolEnv(t, DefaultTxPoolConfig)
	key, addr := env.newAgent(t, 100_000)

	ch := make(chan NewTxsEvent, 1)
	sub := env.pool.SubscribeNewTxs(ch)
	defer sub.Unsubscribe()

	tx := signedTransfer(t, key, addr, 0, 1, params.MinGasTransfer)
	require.NoError(t, env.pool.Add(tx))

	select {
	case ev := <-ch:
		require.Len(t, ev.Txs, 1)
		assert.Equal(t, tx.Hash(), ev.Txs[0].Hash())
	case <-time.After(time.Second):
		t.Fatal("no pool event delivered")
	}
}

func TestIntrinsicGasTable(t *testing.T) {
	for _, tc := range []struct {
		txType types.TxType
		want   uint64
	}{
		{types.TxTransfer, params.MinGasTransfer},
		{types.TxStake, params.MinGasStake},
		{types.TxSlash, params.MinGasSlash},
		{types.TxVote, params.MinGasVote},
		{types.TxReward, params.MinGasReward},
		{types.TxPenalty, params.MinGasPenalty},
		{types.TxProposeRootCause, params.MinGasPropose},
		{types.TxSubmitAnalysis, params.MinGasAnalysis},
	} {
		gas, err := IntrinsicGas(tc.txType)
		require.NoError(t, err)
		assert.Equal(t, tc.want, gas, "type %s", tc.txType)
	}

	_, err := IntrinsicGas(types.TxType("teleport"))
	assert.ErrorIs(t, err, ErrTxTypeNotSupported)
}
