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

// Package rawdb contains a collection of low level database accessors.
package rawdb

import (
	"encoding/binary"

	"github.com/ReisenCW/tongji-blockchain/common"
)

// The fields below define the low level database schema prefixing.
var (
	// headBlockKey tracks the index of the latest block.
	headBlockKey = []byte("H")

	// genesisKey holds the hash of the genesis block, written once at init.
	genesisKey = []byte("G")

	// Data item prefixes (use single byte to avoid mixing data types).
	blockPrefix   = []byte("b") // blockPrefix + index (uint64 big endian) -> snappy(block JSON)
	accountPrefix = []byte("a") // accountPrefix + address -> account JSON
	receiptPrefix = []byte("r") // receiptPrefix + tx hash -> receipt JSON
	pubkeyPrefix  = []byte("k") // pubkeyPrefix + address -> public key hex
)

// encodeBlockNumber encodes a block number as big endian uint64.
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

// blockKey = blockPrefix + index (uint64 big endian)
func blockKey(index uint64) []byte {
	return append(blockPrefix, encodeBlockNumber(index)...)
}

// accountKey = accountPrefix + address
func accountKey(addr common.Address) []byte {
	return append(accountPrefix, addr.Bytes()...)
}

// receiptKey = receiptPrefix + tx hash
func receiptKey(txHash common.Hash) []byte {
	return append(receiptPrefix, txHash.Bytes()...)
}

// pubkeyKey = pubkeyPrefix + address
func pubkeyKey(addr common.Address) []byte {
	return append(pubkeyPrefix, addr.Bytes()...)
}
