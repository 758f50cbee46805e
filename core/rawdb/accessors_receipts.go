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

// ReadReceipt retrieves the execution receipt of a transaction, or nil if
// the transaction has not been included in a block.
func ReadReceipt(db chaindb.Database, txHash common.Hash) *types.Receipt {
	data, err := db.Get(receiptKey(txHash))
	if err == chaindb.ErrNotFound {
		return nil
	}
	if err != nil {
		log.Crit("Failed to read receipt", "tx", txHash, "err", err)
	}
	receipt := new(types.Receipt)
	if err := json.Unmarshal(data, receipt); err != nil {
		log.Error("Invalid receipt entry", "tx", txHash, "err", err)
		return nil
	}
	return receipt
}

// WriteReceipts stores the receipts belonging to a block, keyed by the hash
// of the transaction each one covers.
func WriteReceipts(db chaindb.Putter, receipts types.Receipts) {
	for _, receipt := range receipts {
		data, err := json.Marshal(receipt)
		if err != nil {
			log.Crit("Failed to encode receipt", "tx", receipt.TxHash, "err", err)
		}
		if err := db.Put(receiptKey(receipt.TxHash), data); err != nil {
			log.Crit("Failed to store receipt", "tx", receipt.TxHash, "err", err)
		}
	}
}
