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
	"fmt"
	"sync/atomic"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/crypto"
)

// Header is the sealed metadata of a block. Nonce is reserved and always
// zero; the chain has no proof of work.
type Header struct {
	Index        uint64      `json:"index"`
	Timestamp    int64       `json:"timestamp"`
	PreviousHash common.Hash `json:"previous_hash"`
	MerkleRoot   common.Hash `json:"merkle_root"`
	Nonce        uint64      `json:"nonce"`
}

// Hash returns the block hash, the SHA-256 digest of the canonical header
// encoding with sorted keys and hashes in hex form.
func (h *Header) Hash() common.Hash {
	m := map[string]interface{}{
		"index":         h.Index,
		"timestamp":     h.Timestamp,
		"previous_hash": h.PreviousHash.Hex(),
		"merkle_root":   h.MerkleRoot.Hex(),
		"nonce":         h.Nonce,
	}
	enc, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("canonical header encoding: %v", err))
	}
	return crypto.Sha256Hash(enc)
}

// CopyHeader creates a copy of a block header.
func CopyHeader(h *Header) *Header {
	cpy := *h
	return &cpy
}

// Block represents one sealed batch of transactions in the chain.
type Block struct {
	header       *Header
	transactions Transactions

	hash atomic.Value
}

// NewBlock creates a new block. The input header is copied and its merkle
// root is overwritten with the root derived from the transaction list.
func NewBlock(header *Header, txs Transactions) *Block {
	b := &Block{header: CopyHeader(header)}
	b.transactions = make(Transactions, len(txs))
	copy(b.transactions, txs)
	b.header.MerkleRoot = DeriveMerkleRoot(b.transactions)
	return b
}

// Index returns the height of the block.
func (b *Block) Index() uint64 { return b.header.Index }

// Time returns the seal timestamp in unix seconds.
func (b *Block) Time() int64 { return b.header.Timestamp }

// PreviousHash returns the parent block hash.
func (b *Block) PreviousHash() common.Hash { return b.header.PreviousHash }

// MerkleRoot returns the merkle root over the block body.
func (b *Block) MerkleRoot() common.Hash { return b.header.MerkleRoot }

// Header returns a copy of the block header.
func (b *Block) Header() *Header { return CopyHeader(b.header) }

// Transactions returns the block body.
func (b *Block) Transactions() Transactions { return b.transactions }

// Transaction returns the body transaction with the given id, or nil.
func (b *Block) Transaction(hash common.Hash) *Transaction {
	for _, tx := range b.transactions {
		if tx.Hash() == hash {
			return tx
		}
	}
	return nil
}

// Hash returns the block hash, cached after the first computation.
func (b *Block) Hash() common.Hash {
	if hash := b.hash.Load(); hash != nil {
		return hash.(common.Hash)
	}
	v := b.header.Hash()
	b.hash.Store(v)
	return v
}

type blockJSON struct {
	Index        uint64         `json:"index"`
	Timestamp    int64          `json:"timestamp"`
	PreviousHash common.Hash    `json:"previous_hash"`
	MerkleRoot   common.Hash    `json:"merkle_root"`
	Nonce        uint64         `json:"nonce"`
	Transactions []*Transaction `json:"transactions"`
	Hash         common.Hash    `json:"hash"`
}

// MarshalJSON encodes the block in its storage and API form, header fields
// inline with the body and the sealed hash.
func (b *Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(&blockJSON{
		Index:        b.header.Index,
		Timestamp:    b.header.Timestamp,
		PreviousHash: b.header.PreviousHash,
		MerkleRoot:   b.header.MerkleRoot,
		Nonce:        b.header.Nonce,
		Transactions: b.transactions,
		Hash:         b.Hash(),
	})
}

// UnmarshalJSON decodes a stored block. The embedded hash and merkle root
// are checked against recomputed values so silent corruption surfaces here.
func (b *Block) UnmarshalJSON(input []byte) error {
	var dec blockJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	b.header = &Header{
		Index:        dec.Index,
		Timestamp:    dec.Timestamp,
		PreviousHash: dec.PreviousHash,
		MerkleRoot:   dec.MerkleRoot,
		Nonce:        dec.Nonce,
	}
	b.transactions = dec.Transactions
	if got := DeriveMerkleRoot(b.transactions); got != dec.MerkleRoot {
		return fmt.Errorf("block %d merkle root mismatch: stored %s, computed %s", dec.Index, dec.MerkleRoot.Hex(), got.Hex())
	}
	if got := b.header.Hash(); got != dec.Hash {
		return fmt.Errorf("block %d hash mismatch: stored %s, computed %s", dec.Index, dec.Hash.Hex(), got.Hex())
	}
	b.hash.Store(dec.Hash)
	return nil
}
