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

package api

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/contracts"
	"github.com/ReisenCW/tongji-blockchain/core"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/crypto"
	"github.com/ReisenCW/tongji-blockchain/params"
)

// apiEnv wires a chain and an unstarted server around an httptest endpoint.
type apiEnv struct {
	srv         *Server
	http        *httptest.Server
	state       *state.StateDB
	registry    *core.PublicKeyRegistry
	pool        *core.TxPool
	chain       *core.BlockChain
	ops         *contracts.OpsContract
	treasury    common.Address
	treasuryKey *ecdsa.PrivateKey
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db := chaindb.NewMemDatabase()
	st, err := state.New(db, 1)
	require.NoError(t, err)

	registry := core.NewPublicKeyRegistry()
	treasuryKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	treasury := registry.Register(&treasuryKey.PublicKey)

	pool := core.NewTxPool(core.DefaultTxPoolConfig, st, registry)
	ops := contracts.NewOpsContract()
	gov := contracts.NewGovernanceContract(params.DefaultChainConfig(), ops)
	exec := contracts.NewExecutor(contracts.NewTokenContract(treasury), gov, ops)
	processor := core.NewStateProcessor(registry, exec)

	chain, err := core.NewBlockChain(db, nil, st, pool, processor, core.DefaultGenesis(treasury))
	require.NoError(t, err)

	srv := NewServer(Config{}, chain, pool, st, exec)
	ts := httptest.NewServer(srv.router())
	t.Cleanup(func() {
		ts.Close()
		close(srv.quit)
		srv.wg.Wait()
	})
	return &apiEnv{
		srv:         srv,
		http:        ts,
		state:       st,
		registry:    registry,
		pool:        pool,
		chain:       chain,
		ops:         ops,
		treasury:    treasury,
		treasuryKey: treasuryKey,
	}
}

// fundAgent registers a fresh key and mines a treasury transfer to it.
func (env *apiEnv) fundAgent(t *testing.T, amount uint64) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := env.registry.Register(&key.PublicKey)

	tx := types.NewTransaction(types.TxTransfer, env.treasury,
		env.pool.PendingNonce(env.treasury), params.DefaultGasPrice, params.MinGasTransfer,
		&types.TransferPayload{Recipient: addr, Amount: amount})
	_, err = types.SignTx(tx, env.treasuryKey)
	require.NoError(t, err)
	require.NoError(t, env.pool.Add(tx))
	_, err = env.chain.MineBlock(false)
	require.NoError(t, err)
	return key, addr
}

// get fetches a path and decodes the response envelope, unmarshalling the
// data field into data when given.
func (env *apiEnv) get(t *testing.T, path string, data interface{}) apiResponse {
	t.Helper()
	res, err := http.Get(env.http.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()

	var v struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	if data != nil && v.Success {
		require.NoError(t, json.Unmarshal(v.Data, data))
	}
	return apiResponse{Success: v.Success, Error: v.Error}
}

func TestInfoEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	var info chainInfo
	resp := env.get(t, "/api/blockchain/info", &info)
	require.True(t, resp.Success)
	assert.Equal(t, params.ChainName, info.ChainName)
	assert.Equal(t, uint64(0), info.Height)
	assert.Equal(t, env.treasury.Hex(), info.TreasuryAddress)
	assert.Equal(t, params.DefaultTreasuryBalance, info.TreasuryBalance)
	assert.Equal(t, 1, info.AccountCount)
}

func TestBlocksPaging(t *testing.T) {
	env := newAPIEnv(t)
	for i := 0; i < 3; i++ {
		env.fundAgent(t, 1000)
	}

	var page blocksPage
	resp := env.get(t, "/api/blocks?limit=2", &page)
	require.True(t, resp.Success)
	assert.Equal(t, uint64(4), page.Total)
	require.Len(t, page.Blocks, 2)
	assert.Equal(t, uint64(3), page.Blocks[0].Index(), "newest first")
	assert.Equal(t, uint64(2), page.Blocks[1].Index())

	resp = env.get(t, "/api/blocks?limit=2&offset=3", &page)
	require.True(t, resp.Success)
	require.Len(t, page.Blocks, 1)
	assert.Equal(t, uint64(0), page.Blocks[0].Index())
}

func TestBlockAndTransactionLookup(t *testing.T) {
	env := newAPIEnv(t)
	_, addr := env.fundAgent(t, 1000)

	block := env.chain.GetBlock(1)
	require.NotNil(t, block)
	require.Len(t, block.Transactions(), 1)
	txHash := block.Transactions()[0].Hash()

	var got types.Block
	resp := env.get(t, "/api/block/1", &got)
	require.True(t, resp.Success)
	assert.Equal(t, block.Hash(), got.Hash())

	var view struct {
		BlockIndex uint64         `json:"block_index"`
		Receipt    *types.Receipt `json:"receipt"`
	}
	resp = env.get(t, "/api/transaction/"+txHash.Hex(), &view)
	require.True(t, resp.Success)
	assert.Equal(t, uint64(1), view.BlockIndex)
	require.NotNil(t, view.Receipt)
	assert.Equal(t, types.ReceiptStatusSuccessful, view.Receipt.Status)

	resp = env.get(t, "/api/transaction/"+strings.Repeat("00", 32), nil)
	assert.False(t, resp.Success)

	assert.Equal(t, uint64(1000), env.state.GetBalance(addr))
}

func TestMerkleProofEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.fundAgent(t, 1000)

	txHash := env.chain.GetBlock(1).Transactions()[0].Hash()

	var proof merkleProofView
	resp := env.get(t, fmt.Sprintf("/api/merkle-proof/1/%s", txHash.Hex()), &proof)
	require.True(t, resp.Success)
	assert.True(t, proof.Verified)
	assert.Equal(t, env.chain.GetBlock(1).MerkleRoot(), proof.Root)
}

func TestSOPEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, env.ops.SubmitDataCollection("agent-1", "cpu saturation", nil))

	var sop sopStateView
	resp := env.get(t, "/api/sop/state", &sop)
	require.True(t, resp.Success)
	assert.Equal(t, contracts.PhaseDataCollected, sop.Phase)
	require.NotNil(t, sop.Incident)
	assert.Equal(t, "agent-1", sop.Incident.Submitter)

	var events struct {
		Count int `json:"count"`
	}
	resp = env.get(t, "/api/sop/events?name="+contracts.EventDataCollected, &events)
	require.True(t, resp.Success)
	assert.Equal(t, 1, events.Count)

	resp = env.get(t, "/api/sop/current-proposal", nil)
	assert.False(t, resp.Success, "no proposal active yet")
}

func TestAccountEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	_, addr := env.fundAgent(t, 2500)

	var acc types.Account
	resp := env.get(t, "/api/account/"+addr.Hex(), &acc)
	require.True(t, resp.Success)
	assert.Equal(t, uint64(2500), acc.Balance)

	resp = env.get(t, "/api/account/zz", nil)
	assert.False(t, resp.Success)

	var list struct {
		Count int `json:"count"`
	}
	resp = env.get(t, "/api/accounts", &list)
	require.True(t, resp.Success)
	assert.Equal(t, 2, list.Count)
}

func TestEventWebsocketStream(t *testing.T) {
	env := newAPIEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, env.ops.SubmitDataCollection("agent-1", "disk pressure", nil))

	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, contracts.EventDataCollected, ev["name"])
	assert.Equal(t, "agent-1", ev["agent_id"])
}
