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

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReisenCW/tongji-blockchain/common"
)

func testBlock(n int) *Block {
	header := &Header{
		Index:        7,
		Timestamp:    1700000100,
		PreviousHash: common.HexToHash(strings.Repeat("11", 32)),
	}
	return NewBlock(header, makeTxs(n))
}

func TestNewBlockDerivesMerkleRoot(t *testing.T) {
	txs := makeTxs(3)
	block := NewBlock(&Header{Index: 1}, txs)
	assert.Equal(t, DeriveMerkleRoot(txs), block.MerkleRoot())

	// A stale root on the incoming header is ignored.
	header := &Header{Index: 1, MerkleRoot: common.HexToHash("0xff")}
	block = NewBlock(header, txs)
	assert.Equal(t, DeriveMerkleRoot(txs), block.MerkleRoot())
}

func TestNewBlockCopiesHeader(t *testing.T) {
	header := &Header{Index: 3, Timestamp: 42}
	block := NewBlock(header, nil)
	header.Index = 99
	assert.Equal(t, uint64(3), block.Index())

	got := block.Header()
	got.Timestamp = 0
	assert.Equal(t, int64(42), block.Time())
}

func TestHeaderHashCoversAllFields(t *testing.T) {
	base := &Header{
		Index:        7,
		Timestamp:    1700000100,
		PreviousHash: common.HexToHash("0x11"),
		MerkleRoot:   common.HexToHash("0x22"),
	}
	mutations := map[string]func(*Header){
		"index":         func(h *Header) { h.Index++ },
		"timestamp":     func(h *Header) { h.Timestamp++ },
		"previous_hash": func(h *Header) { h.PreviousHash = common.HexToHash("0x33") },
		"merkle_root":   func(h *Header) { h.MerkleRoot = common.HexToHash("0x44") },
		"nonce":         func(h *Header) { h.Nonce++ },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			h := CopyHeader(base)
			mutate(h)
			assert.NotEqual(t, base.Hash(), h.Hash())
		})
	}
}

func TestBlockHashMatchesHeaderHash(t *testing.T) {
	block := testBlock(2)
	assert.Equal(t, block.Header().Hash(), block.Hash())
	// Cached value stays stable.
	assert.Equal(t, block.Hash(), block.Hash())
}

func TestBlockTransactionLookup(t *testing.T) {
	block := testBlock(3)
	want := block.Transactions()[1]
	assert.Equal(t, want, block.Transaction(want.Hash()))
	assert.Nil(t, block.Transaction(common.HexToHash("0xee")))
}

func TestBlockJSONRoundTrip(t *testing.T) {
	block := testBlock(3)
	raw, err := json.Marshal(block)
	require.NoError(t, err)

	var back Block
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, block.Hash(), back.Hash())
	assert.Equal(t, block.Index(), back.Index())
	assert.Equal(t, block.MerkleRoot(), back.MerkleRoot())
	assert.Equal(t, block.PreviousHash(), back.PreviousHash())
	require.Len(t, back.Transactions(), 3)
	assert.Equal(t, block.Transactions()[2].Hash(), back.Transactions()[2].Hash())
}

func TestBlockJSONRejectsTamperedHash(t *testing.T) {
	block := testBlock(1)
	raw, err := json.Marshal(block)
	require.NoError(t, err)

	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &stored))
	stored["hash"] = json.RawMessage(`"` + strings.Repeat("00", 32) + `"`)
	tampered, err := json.Marshal(stored)
	require.NoError(t, err)

	var back Block
	assert.Error(t, json.Unmarshal(tampered, &back))
}

func TestBlockJSONRejectsTamperedBody(t *testing.T) {
	block := testBlock(2)
	raw, err := json.Marshal(block)
	require.NoError(t, err)

	// Swapping the transaction set breaks the recorded merkle root.
	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &stored))
	txs, err := json.Marshal(makeTxs(1))
	require.NoError(t, err)
	stored["transactions"] = txs
	tampered, err := json.Marshal(stored)
	require.NoError(t, err)

	var back Block
	assert.Error(t, json.Unmarshal(tampered, &back))
}

func TestGenesisPreviousHashRendering(t *testing.T) {
	var zero common.Hash
	assert.Equal(t, strings.Repeat("0", 64), zero.Hex())
}
