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
	"github.com/ReisenCW/tongji-blockchain/crypto"
)

func testTransfer() *Transaction {
	return &Transaction{
		TxType:   TxTransfer,
		Sender:   common.HexToAddress(strings.Repeat("ab", 20)),
		Nonce:    1,
		GasPrice: 1,
		GasLimit: 5000,
		Data: &TransferPayload{
			Recipient: common.HexToAddress(strings.Repeat("cd", 20)),
			Amount:    300,
		},
		Timestamp: 1700000000,
	}
}

func TestCanonicalEncoding(t *testing.T) {
	tx := testTransfer()
	want := `{"data":{"amount":300,"recipient":"` + strings.Repeat("cd", 20) + `"},` +
		`"gas_limit":5000,"gas_price":1,"nonce":1,` +
		`"sender":"` + strings.Repeat("ab", 20) + `","timestamp":1700000000,"tx_type":"transfer"}`
	assert.Equal(t, want, string(tx.CanonicalEncoding()))

	// The signature never enters the canonical form.
	tx.Signature = "deadbeef"
	assert.Equal(t, want, string(tx.CanonicalEncoding()))
}

func TestTxHashIsCanonicalDigest(t *testing.T) {
	tx := testTransfer()
	assert.Equal(t, crypto.Sha256Hash(tx.CanonicalEncoding()), tx.Hash())
	assert.Equal(t, tx.SigHash(), tx.Hash())

	// Same content, same id.
	assert.Equal(t, testTransfer().Hash(), tx.Hash())

	// Any signed field changes the digest.
	other := testTransfer()
	other.Data.(*TransferPayload).Amount = 301
	assert.NotEqual(t, tx.SigHash(), other.SigHash())
}

func TestSignAndVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx := testTransfer()
	tx.Sender = crypto.PubkeyToAddress(key.PublicKey)
	_, err = SignTx(tx, key)
	require.NoError(t, err)
	require.NotEmpty(t, tx.Signature)
	assert.True(t, tx.VerifySignature(&key.PublicKey))

	// Tampering with a signed field invalidates the signature.
	tx.Nonce++
	assert.False(t, tx.VerifySignature(&key.PublicKey))
	tx.Nonce--
	assert.True(t, tx.VerifySignature(&key.PublicKey))

	payloadTamper := tx.Data.(*TransferPayload)
	payloadTamper.Amount += 1
	assert.False(t, tx.VerifySignature(&key.PublicKey))
	payloadTamper.Amount -= 1

	// A foreign key does not verify.
	key2, err := crypto.GenerateKey()
	require.NoError(t, err)
	assert.False(t, tx.VerifySignature(&key2.PublicKey))

	// Unsigned transactions never verify.
	unsigned := testTransfer()
	assert.False(t, unsigned.VerifySignature(&key.PublicKey))
}

func TestTransactionJSONRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx := testTransfer()
	tx.Sender = crypto.PubkeyToAddress(key.PublicKey)
	_, err = SignTx(tx, key)
	require.NoError(t, err)

	raw, err := json.Marshal(tx)
	require.NoError(t, err)

	var back Transaction
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, tx.Hash(), back.Hash())
	assert.Equal(t, tx.Signature, back.Signature)
	require.IsType(t, &TransferPayload{}, back.Data)
	assert.Equal(t, uint64(300), back.Data.(*TransferPayload).Amount)
	assert.True(t, back.VerifySignature(&key.PublicKey))
}

func TestPayloadDecodeDispatch(t *testing.T) {
	raw := `{"tx_type":"vote","sender":"` + strings.Repeat("ab", 20) + `",` +
		`"nonce":0,"gas_price":1,"gas_limit":200,` +
		`"data":{"proposal_id":"p1","vote_option":"for"},"timestamp":1700000000}`

	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(raw), &tx))
	require.IsType(t, &VotePayload{}, tx.Data)
	vote := tx.Data.(*VotePayload)
	assert.Equal(t, "p1", vote.ProposalID)
	assert.Equal(t, VoteFor, vote.Option)
}

func TestPayloadDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown type", `{"tx_type":"mint","data":{"amount":1},"timestamp":1}`},
		{"missing data", `{"tx_type":"transfer","timestamp":1}`},
		{"null data", `{"tx_type":"transfer","data":null,"timestamp":1}`},
		{"unknown field", `{"tx_type":"stake","data":{"amount":1,"extra":2},"timestamp":1}`},
		{"wrong shape", `{"tx_type":"transfer","data":{"amount":"three hundred"},"timestamp":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tx Transaction
			assert.Error(t, json.Unmarshal([]byte(tt.raw), &tx))
		})
	}
}

func TestTxTypeValid(t *testing.T) {
	for _, typ := range []TxType{TxTransfer, TxStake, TxSlash, TxVote,
		TxProposeRootCause, TxSubmitAnalysis, TxReward, TxPenalty} {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, TxType("mint").Valid())
	assert.False(t, TxType("").Valid())
}

func TestVoteOptionValid(t *testing.T) {
	assert.True(t, VoteFor.Valid())
	assert.True(t, VoteAgainst.Valid())
	assert.True(t, VoteAbstain.Valid())
	assert.False(t, VoteOption("maybe").Valid())
}

func TestFee(t *testing.T) {
	tx := testTransfer()
	assert.Equal(t, uint64(5000), tx.Fee())
	tx.GasPrice = 3
	assert.Equal(t, uint64(15000), tx.Fee())
}
