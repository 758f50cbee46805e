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
	"sync"

	"github.com/rcrowley/go-metrics"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/event"
	"github.com/ReisenCW/tongji-blockchain/log"
)

var (
	validTxMeter   = metrics.GetOrRegisterMeter("txpool/valid", metrics.DefaultRegistry)
	invalidTxMeter = metrics.GetOrRegisterMeter("txpool/invalid", metrics.DefaultRegistry)
	knownTxMeter   = metrics.GetOrRegisterMeter("txpool/known", metrics.DefaultRegistry)
	pendingGauge   = metrics.GetOrRegisterGauge("txpool/pending", metrics.DefaultRegistry)
)

// TxPoolConfig are the configuration parameters of the transaction pool.
type TxPoolConfig struct {
	PriceLimit  uint64 // Minimum gas price to enforce for acceptance into the pool
	GlobalSlots uint64 // Maximum number of transaction slots for all accounts
}

// DefaultTxPoolConfig contains the default configurations for the
// transaction pool.
var DefaultTxPoolConfig = TxPoolConfig{
	PriceLimit:  1,
	GlobalSlots: 4096,
}

// sanitize checks the provided user configurations and changes anything
// that's unreasonable or unworkable.
func (config *TxPoolConfig) sanitize() TxPoolConfig {
	conf := *config
	if conf.PriceLimit < 1 {
		log.Warn("Sanitizing invalid txpool price limit", "provided", conf.PriceLimit, "updated", DefaultTxPoolConfig.PriceLimit)
		conf.PriceLimit = DefaultTxPoolConfig.PriceLimit
	}
	if conf.GlobalSlots < 1 {
		log.Warn("Sanitizing invalid txpool global slots", "provided", conf.GlobalSlots, "updated", DefaultTxPoolConfig.GlobalSlots)
		conf.GlobalSlots = DefaultTxPoolConfig.GlobalSlots
	}
	return conf
}

// TxPool holds the transactions waiting to be mined into the next block.
// Admission enforces signature, nonce, gas floor and balance rules; accepted
// transactions keep their arrival order until DrainPending hands them to
// block assembly.
//
// Nonce admission is pending aware: the expected nonce is the account nonce
// plus the sender's transactions already queued, so one sender can line up a
// batch for a single block.
type TxPool struct {
	config   TxPoolConfig
	state    *state.StateDB
	registry *PublicKeyRegistry

	mu        sync.RWMutex
	pending   types.Transactions
	all       map[common.Hash]*types.Transaction
	perSender map[common.Address]uint64

	txFeed event.FeedOf[NewTxsEvent]
}

// NewTxPool creates a new transaction pool over the given world state and
// key registry.
func NewTxPool(config TxPoolConfig, statedb *state.StateDB, registry *PublicKeyRegistry) *TxPool {
	config = (&config).sanitize()
	return &TxPool{
		config:    config,
		state:     statedb,
		registry:  registry,
		all:       make(map[common.Hash]*types.Transaction),
		perSender: make(map[common.Address]uint64),
	}
}

// validateTx checks whether a transaction is admissible under the consensus
// rules. The caller holds the pool lock.
func (pool *TxPool) validateTx(tx *types.Transaction) error {
	if !tx.TxType.Valid() {
		return ErrTxTypeNotSupported
	}
	if tx.GasPrice < pool.config.PriceLimit {
		return ErrUnderpriced
	}
	pub, ok := pool.registry.Lookup(tx.Sender)
	if !ok {
		return ErrUnknownSigner
	}
	if !tx.VerifySignature(pub) {
		return ErrInvalidSignature
	}
	expected := pool.state.GetNonce(tx.Sender) + pool.perSender[tx.Sender]
	if tx.Nonce != expected {
		return NonceError(tx.Nonce, expected)
	}
	floor, err := IntrinsicGas(tx.TxType)
	if err != nil {
		return err
	}
	if tx.GasLimit < floor {
		return ErrIntrinsicGas
	}
	fee := tx.GasPrice * tx.GasLimit
	if tx.GasPrice != 0 && fee/tx.GasPrice != tx.GasLimit {
		return ErrGasUintOverflow
	}
	if pool.state.GetBalance(tx.Sender) < fee {
		return ErrInsufficientFunds
	}
	return nil
}

// Add validates a transaction and appends it to the pending queue. Rejected
// transactions are reported back to the submitter and never enter the pool.
func (pool *TxPool) Add(tx *types.Transaction) error {
	pool.mu.Lock()

	hash := tx.Hash()
	if pool.all[hash] != nil {
		pool.mu.Unlock()
		log.Trace("Discarding already known transaction", "hash", hash)
		knownTxMeter.Mark(1)
		return ErrAlreadyKnown
	}
	if err := pool.validateTx(tx); err != nil {
		pool.mu.Unlock()
		log.Trace("Discarding invalid transaction", "hash", hash, "type", tx.TxType, "err", err)
		invalidTxMeter.Mark(1)
		return err
	}
	if uint64(len(pool.all)) >= pool.config.GlobalSlots {
		pool.mu.Unlock()
		log.Trace("Discarding overflown transaction", "hash", hash)
		invalidTxMeter.Mark(1)
		return ErrTxPoolOverflow
	}
	pool.pending = append(pool.pending, tx)
	pool.all[hash] = tx
	pool.perSender[tx.Sender]++
	pendingGauge.Update(int64(len(pool.pending)))
	pool.mu.Unlock()

	validTxMeter.Mark(1)
	log.Debug("Pooled new transaction", "hash", hash, "type", tx.TxType, "sender", tx.Sender)

	pool.txFeed.Send(NewTxsEvent{Txs: types.Transactions{tx}})
	return nil
}

// AddBatch attempts to queue a batch of transactions, returning the per
// transaction outcome in submission order.
func (pool *TxPool) AddBatch(txs types.Transactions) []error {
	errs := make([]error, len(txs))
	for i, tx := range txs {
		errs[i] = pool.Add(tx)
	}
	return errs
}

// Pending returns a copy of the queued transactions in arrival order.
func (pool *TxPool) Pending() types.Transactions {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	txs := make(types.Transactions, len(pool.pending))
	copy(txs, pool.pending)
	return txs
}

// DrainPending removes and returns all queued transactions for block
// assembly. The pool forgets the drained set entirely, including its nonce
// bookkeeping, because the resulting block moves the account nonces instead.
func (pool *TxPool) DrainPending() types.Transactions {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	txs := pool.pending
	pool.pending = nil
	pool.all = make(map[common.Hash]*types.Transaction)
	pool.perSender = make(map[common.Address]uint64)
	pendingGauge.Update(0)
	return txs
}

// Get returns a queued transaction by hash, or nil if it is not pooled.
func (pool *TxPool) Get(hash common.Hash) *types.Transaction {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.all[hash]
}

// Has reports whether a transaction with the given hash is pooled.
func (pool *TxPool) Has(hash common.Hash) bool {
	return pool.Get(hash) != nil
}

// Len returns the number of queued transactions.
func (pool *TxPool) Len() int {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return len(pool.pending)
}

// PendingNonce returns the next nonce a new transaction from addr should
// carry, accounting for queued transactions.
func (pool *TxPool) PendingNonce(addr common.Address) uint64 {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.state.GetNonce(addr) + pool.perSender[addr]
}

// SubscribeNewTxs registers a subscription of NewTxsEvent.
func (pool *TxPool) SubscribeNewTxs(ch chan<- NewTxsEvent) event.Subscription {
	return pool.txFeed.Subscribe(ch)
}
