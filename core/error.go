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
	"errors"
	"fmt"
)

var (
	// ErrAlreadyKnown is returned if a transaction with the same hash is
	// already present in the pool.
	ErrAlreadyKnown = errors.New("already known")

	// ErrTxTypeNotSupported is returned if a transaction carries an
	// unrecognised type tag.
	ErrTxTypeNotSupported = errors.New("transaction type not supported")

	// ErrUnknownSigner is returned when no public key has been registered
	// for the sender address, making signature verification impossible.
	ErrUnknownSigner = errors.New("unknown signer")

	// ErrInvalidSignature is returned when a transaction signature does not
	// verify against the sender's registered public key.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnderpriced is returned if a transaction's gas price is below the
	// minimum configured for the transaction pool.
	ErrUnderpriced = errors.New("transaction underpriced")

	// ErrNonce is returned when a transaction nonce does not match the next
	// expected nonce of the sender.
	ErrNonce = errors.New("invalid nonce")

	// ErrIntrinsicGas is returned when a transaction's gas limit is below
	// the minimum required for its type.
	ErrIntrinsicGas = errors.New("intrinsic gas too low")

	// ErrGasUintOverflow is returned when computing the gas fee would
	// overflow uint64.
	ErrGasUintOverflow = errors.New("gas uint64 overflow")

	// ErrInsufficientFunds is returned when the sender cannot cover the gas
	// fee of a transaction.
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price")

	// ErrTxPoolOverflow is returned when the pool has reached its capacity
	// and cannot accept more transactions.
	ErrTxPoolOverflow = errors.New("txpool is full")

	// ErrNoGenesis is returned when a chain database has no genesis block
	// and none was supplied to initialise one.
	ErrNoGenesis = errors.New("genesis not found in chain")

	// ErrChainCorrupted is the kind wrapped by CorruptionErr, returned when
	// chain validation detects a broken link, hash or merkle root.
	ErrChainCorrupted = errors.New("chain corrupted")
)

// NonceErr carries the offending and expected nonce of a rejected
// transaction. It unwraps to ErrNonce.
type NonceErr struct {
	Is, Exp uint64
}

func (err *NonceErr) Error() string {
	return fmt.Sprintf("invalid nonce: got %d, expected %d", err.Is, err.Exp)
}

func (err *NonceErr) Unwrap() error { return ErrNonce }

// NonceError returns a NonceErr for the given observed and expected values.
func NonceError(is, exp uint64) *NonceErr {
	return &NonceErr{Is: is, Exp: exp}
}

// CorruptionErr pinpoints the block at which chain validation failed. It
// unwraps to ErrChainCorrupted.
type CorruptionErr struct {
	Index  uint64
	Reason string
}

func (err *CorruptionErr) Error() string {
	return fmt.Sprintf("chain corrupted at block %d: %s", err.Index, err.Reason)
}

func (err *CorruptionErr) Unwrap() error { return ErrChainCorrupted }

// corruptionError returns a CorruptionErr with a formatted reason.
func corruptionError(index uint64, format string, args ...interface{}) *CorruptionErr {
	return &CorruptionErr{Index: index, Reason: fmt.Sprintf(format, args...)}
}
