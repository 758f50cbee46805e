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
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/params"
)

// IntrinsicGas returns the minimum gas limit a transaction of the given
// type must carry.
func IntrinsicGas(txType types.TxType) (uint64, error) {
	switch txType {
	case types.TxTransfer:
		return params.MinGasTransfer, nil
	case types.TxStake:
		return params.MinGasStake, nil
	case types.TxSlash:
		return params.MinGasSlash, nil
	case types.TxVote:
		return params.MinGasVote, nil
	case types.TxReward:
		return params.MinGasReward, nil
	case types.TxPenalty:
		return params.MinGasPenalty, nil
	case types.TxProposeRootCause:
		return params.MinGasPropose, nil
	case types.TxSubmitAnalysis:
		return params.MinGasAnalysis, nil
	}
	return 0, ErrTxTypeNotSupported
}

// Executor applies the payload of a single transaction against the world
// state. It never touches gas or nonces, which belong to the processor.
type Executor interface {
	Execute(tx *types.Transaction, st *state.StateDB) error
}

// StateProcessor runs the transaction pipeline during block assembly:
// re-validate, debit the gas fee, dispatch to the contract layer, then bump
// the sender nonce. A failed dispatch reverts the whole transaction
// including the fee, so each transaction is atomic.
type StateProcessor struct {
	registry *PublicKeyRegistry
	executor Executor
}

// NewStateProcessor creates a processor dispatching into executor.
func NewStateProcessor(registry *PublicKeyRegistry, executor Executor) *StateProcessor {
	return &StateProcessor{registry: registry, executor: executor}
}

// Process applies txs in order against st and returns the transactions that
// made it into the block, together with a receipt for every attempt.
// Failures are logged and skipped, never aborting the remainder of the
// batch.
func (p *StateProcessor) Process(txs types.Transactions, st *state.StateDB, blockIndex uint64) (types.Transactions, types.Receipts) {
	var (
		included types.Transactions
		receipts types.Receipts
	)
	for _, tx := range txs {
		receipt, err := p.ApplyTransaction(tx, st, blockIndex)
		receipts = append(receipts, receipt)
		if err != nil {
			log.Debug("Transaction dropped during block assembly", "hash", tx.Hash(), "type", tx.TxType, "err", err)
			continue
		}
		included = append(included, tx)
	}
	return included, receipts
}

// ApplyTransaction runs a single transaction against st. On success the
// returned receipt reports the full gas limit as used; on failure the state
// is reverted, no gas is kept and the receipt carries the error.
func (p *StateProcessor) ApplyTransaction(tx *types.Transaction, st *state.StateDB, blockIndex uint64) (*types.Receipt, error) {
	fail := func(err error) (*types.Receipt, error) {
		receipt := types.NewReceipt(tx.Hash(), true, 0)
		receipt.BlockIndex = blockIndex
		receipt.Error = err.Error()
		return receipt, err
	}

	if err := p.validate(tx, st); err != nil {
		return fail(err)
	}

	snapshot := st.Snapshot()

	sender := st.GetAccount(tx.Sender)
	sender.Balance -= tx.Fee()
	st.UpdateAccount(sender)

	if err := p.executor.Execute(tx, st); err != nil {
		st.RevertToSnapshot(snapshot)
		return fail(err)
	}

	sender = st.GetAccount(tx.Sender)
	sender.Nonce++
	st.UpdateAccount(sender)

	receipt := types.NewReceipt(tx.Hash(), false, tx.GasLimit)
	receipt.BlockIndex = blockIndex
	return receipt, nil
}

// validate re-checks the admission rules against the current state. The
// pool performed the same checks on entry, but state moves between
// admission and assembly, with earlier transactions in the same block.
func (p *StateProcessor) validate(tx *types.Transaction, st *state.StateDB) error {
	pub, ok := p.registry.Lookup(tx.Sender)
	if !ok {
		return ErrUnknownSigner
	}
	if !tx.VerifySignature(pub) {
		return ErrInvalidSignature
	}
	sender := st.GetAccount(tx.Sender)
	if sender == nil {
		return ErrInsufficientFunds
	}
	if tx.Nonce != sender.Nonce {
		return NonceError(tx.Nonce, sender.Nonce)
	}
	floor, err := IntrinsicGas(tx.TxType)
	if err != nil {
		return err
	}
	if tx.GasLimit < floor {
		return ErrIntrinsicGas
	}
	fee := tx.Fee()
	if tx.GasPrice != 0 && fee/tx.GasPrice != tx.GasLimit {
		return ErrGasUintOverflow
	}
	if sender.Balance < fee {
		return ErrInsufficientFunds
	}
	return nil
}
