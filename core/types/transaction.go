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

// Package types contains the data types of the ledger: transactions with
// their typed payloads, blocks, accounts and receipts.
package types

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/crypto"
)

// TxType discriminates the payload and the contract handling a transaction.
type TxType string

const (
	TxTransfer         TxType = "transfer"
	TxStake            TxType = "stake"
	TxSlash            TxType = "slash"
	TxVote             TxType = "vote"
	TxProposeRootCause TxType = "propose_root_cause"
	TxSubmitAnalysis   TxType = "submit_analysis"
	TxReward           TxType = "reward"
	TxPenalty          TxType = "penalty"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	switch t {
	case TxTransfer, TxStake, TxSlash, TxVote, TxProposeRootCause,
		TxSubmitAnalysis, TxReward, TxPenalty:
		return true
	}
	return false
}

func (t TxType) String() string { return string(t) }

// Transaction is a signed ledger operation submitted by an agent or the
// treasury. A transaction is treated as immutable once signed; the cached
// id assumes no field changes afterwards.
type Transaction struct {
	TxType    TxType         `json:"tx_type"`
	Sender    common.Address `json:"sender"`
	Nonce     uint64         `json:"nonce"`
	GasPrice  uint64         `json:"gas_price"`
	GasLimit  uint64         `json:"gas_limit"`
	Data      Payload        `json:"data"`
	Timestamp int64          `json:"timestamp"`
	Signature string         `json:"signature,omitempty"`

	hash atomic.Value
}

// Transactions is a Transaction slice type for basic sorting and counting.
type Transactions []*Transaction

// Len returns the length of s.
func (s Transactions) Len() int { return len(s) }

// NewTransaction assembles an unsigned transaction stamped with the current
// wall clock.
func NewTransaction(txType TxType, sender common.Address, nonce, gasPrice, gasLimit uint64, data Payload) *Transaction {
	return &Transaction{
		TxType:    txType,
		Sender:    sender,
		Nonce:     nonce,
		GasPrice:  gasPrice,
		GasLimit:  gasLimit,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// CanonicalEncoding returns the deterministic JSON form entering the content
// digest: lexicographically sorted keys, no insignificant whitespace, and no
// signature.
func (tx *Transaction) CanonicalEncoding() []byte {
	m := map[string]interface{}{
		"tx_type":   string(tx.TxType),
		"sender":    tx.Sender.Hex(),
		"nonce":     tx.Nonce,
		"gas_price": tx.GasPrice,
		"gas_limit": tx.GasLimit,
		"data":      map[string]interface{}{},
		"timestamp": tx.Timestamp,
	}
	if tx.Data != nil {
		m["data"] = tx.Data.canonicalMap()
	}
	enc, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("canonical transaction encoding: %v", err))
	}
	return enc
}

// SigHash returns the digest the sender signs, the SHA-256 hash of the
// canonical encoding. Mutating any field other than the signature changes
// this digest.
func (tx *Transaction) SigHash() common.Hash {
	return crypto.Sha256Hash(tx.CanonicalEncoding())
}

// Hash returns the transaction id. It equals SigHash and is cached after
// the first computation.
func (tx *Transaction) Hash() common.Hash {
	if hash := tx.hash.Load(); hash != nil {
		return hash.(common.Hash)
	}
	v := tx.SigHash()
	tx.hash.Store(v)
	return v
}

// Fee returns the gas fee charged when the transaction executes.
func (tx *Transaction) Fee() uint64 {
	return tx.GasPrice * tx.GasLimit
}

// SignTx signs the transaction digest with the given key and attaches the
// hex encoded DER signature.
func SignTx(tx *Transaction, key *ecdsa.PrivateKey) (*Transaction, error) {
	sig, err := crypto.SignDigest(tx.SigHash().Bytes(), key)
	if err != nil {
		return nil, err
	}
	tx.Signature = hex.EncodeToString(sig)
	return tx, nil
}

// VerifySignature checks the attached signature against the given public
// key, re-deriving the digest from the current field values.
func (tx *Transaction) VerifySignature(pub *ecdsa.PublicKey) bool {
	if tx.Signature == "" {
		return false
	}
	sig, err := hex.DecodeString(tx.Signature)
	if err != nil {
		return false
	}
	return crypto.VerifyDigestSignature(pub, tx.SigHash().Bytes(), sig)
}

// UnmarshalJSON decodes a transaction, dispatching the payload on tx_type.
func (tx *Transaction) UnmarshalJSON(input []byte) error {
	var dec struct {
		TxType    TxType          `json:"tx_type"`
		Sender    common.Address  `json:"sender"`
		Nonce     uint64          `json:"nonce"`
		GasPrice  uint64          `json:"gas_price"`
		GasLimit  uint64          `json:"gas_limit"`
		Data      json.RawMessage `json:"data"`
		Timestamp int64           `json:"timestamp"`
		Signature string          `json:"signature"`
	}
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	payload, err := decodePayload(dec.TxType, dec.Data)
	if err != nil {
		return err
	}
	tx.TxType = dec.TxType
	tx.Sender = dec.Sender
	tx.Nonce = dec.Nonce
	tx.GasPrice = dec.GasPrice
	tx.GasLimit = dec.GasLimit
	tx.Data = payload
	tx.Timestamp = dec.Timestamp
	tx.Signature = dec.Signature
	return nil
}
