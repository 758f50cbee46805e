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

package types

import "github.com/ReisenCW/tongji-blockchain/common"

const (
	// ReceiptStatusFailed is the status of a transaction whose contract
	// execution failed; its gas fee was refunded and it was dropped.
	ReceiptStatusFailed = uint64(0)

	// ReceiptStatusSuccessful is the status of a mined transaction.
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt represents the result of applying a transaction.
type Receipt struct {
	TxHash     common.Hash `json:"tx_hash"`
	BlockIndex uint64      `json:"block_index"`
	Status     uint64      `json:"status"`
	GasUsed    uint64      `json:"gas_used"`
	Error      string      `json:"error,omitempty"`
}

// Receipts is a Receipt slice type.
type Receipts []*Receipt

// NewReceipt creates a barebone transaction receipt.
func NewReceipt(txHash common.Hash, failed bool, gasUsed uint64) *Receipt {
	r := &Receipt{TxHash: txHash, Status: ReceiptStatusSuccessful, GasUsed: gasUsed}
	if failed {
		r.Status = ReceiptStatusFailed
	}
	return r
}

// Failed reports whether the execution was reverted.
func (r *Receipt) Failed() bool {
	return r.Status == ReceiptStatusFailed
}
