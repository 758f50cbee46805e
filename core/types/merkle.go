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
	"fmt"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/crypto"
)

// DeriveMerkleRoot computes the merkle root over the block body. Leaves are
// the transaction ids; parents hash the concatenation of the two child hex
// strings; odd levels duplicate their last element. An empty body hashes to
// the digest of the empty string.
func DeriveMerkleRoot(txs Transactions) common.Hash {
	if len(txs) == 0 {
		return crypto.Sha256Hash()
	}
	level := make([]string, len(txs))
	for i, tx := range txs {
		level[i] = tx.Hash().Hex()
	}
	for len(level) > 1 {
		level = merkleParents(level)
	}
	return common.HexToHash(level[0])
}

func merkleParents(level []string) []string {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	next := make([]string, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		next = append(next, crypto.Sha256Hash([]byte(level[i]), []byte(level[i+1])).Hex())
	}
	return next
}

// ProofStep is one sibling on the path from a leaf to the merkle root.
// Right indicates the sibling sits to the right of the running hash.
type ProofStep struct {
	Hash  string `json:"hash"`
	Right bool   `json:"right"`
}

// MerkleProof builds the inclusion proof for the transaction at the given
// body index.
func MerkleProof(txs Transactions, index int) ([]ProofStep, error) {
	if index < 0 || index >= len(txs) {
		return nil, fmt.Errorf("transaction index %d out of range [0, %d)", index, len(txs))
	}
	level := make([]string, len(txs))
	for i, tx := range txs {
		level[i] = tx.Hash().Hex()
	}
	proof := []ProofStep{}
	pos := index
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		if pos%2 == 0 {
			proof = append(proof, ProofStep{Hash: level[pos+1], Right: true})
		} else {
			proof = append(proof, ProofStep{Hash: level[pos-1], Right: false})
		}
		level = merkleParents(level)
		pos /= 2
	}
	return proof, nil
}

// VerifyMerkleProof replays the proof from the leaf and compares the result
// against the expected root.
func VerifyMerkleProof(leaf common.Hash, proof []ProofStep, root common.Hash) bool {
	running := leaf.Hex()
	for _, step := range proof {
		if step.Right {
			running = crypto.Sha256Hash([]byte(running), []byte(step.Hash)).Hex()
		} else {
			running = crypto.Sha256Hash([]byte(step.Hash), []byte(running)).Hex()
		}
	}
	return running == root.Hex()
}
