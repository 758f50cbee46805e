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

package node

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReisenCW/tongji-blockchain/crypto"
	"github.com/ReisenCW/tongji-blockchain/params"
)

// memConfig returns a config for a fully in-memory node without servers.
func memConfig() *Config {
	cfg := DefaultConfig()
	cfg.HTTPEnabled = false
	return cfg
}

func TestNewNodeGenesis(t *testing.T) {
	n, err := New(memConfig())
	require.NoError(t, err)
	defer n.Stop()

	assert.Equal(t, uint64(0), n.Chain().Height())
	assert.Equal(t, params.DefaultTreasuryBalance, n.State().GetBalance(n.TreasuryAddress()))
	_, registered := n.Registry().Lookup(n.TreasuryAddress())
	assert.True(t, registered, "treasury key must be registered at construction")
}

func TestFundAccount(t *testing.T) {
	n, err := New(memConfig())
	require.NoError(t, err)
	defer n.Stop()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	require.NoError(t, n.FundAccount(addr, 10_000))
	assert.Equal(t, uint64(10_000), n.State().GetBalance(addr))
	assert.Equal(t, uint64(1), n.Chain().Height(), "funding mines a block")

	fee := params.DefaultGasPrice * params.MinGasTransfer
	assert.Equal(t, params.DefaultTreasuryBalance-10_000-fee,
		n.State().GetBalance(n.TreasuryAddress()))
}

func TestStartStopLifecycle(t *testing.T) {
	n, err := New(memConfig())
	require.NoError(t, err)

	require.NoError(t, n.Start())
	require.NoError(t, n.Start(), "start is idempotent")
	n.Stop()
	n.Stop()

	assert.ErrorIs(t, n.Start(), ErrNodeStopped)
}

func TestSubmitDataCollection(t *testing.T) {
	n, err := New(memConfig())
	require.NoError(t, err)
	defer n.Stop()

	require.NoError(t, n.SubmitDataCollection("agent-1", "checkout latency spike", nil))
	incident := n.Ops().Incident()
	require.NotNil(t, incident)
	assert.Equal(t, "agent-1", incident.Submitter)
}

func TestTreasuryKeyPersistsAcrossRestarts(t *testing.T) {
	datadir := t.TempDir()

	cfg := memConfig()
	cfg.DataDir = datadir
	n1, err := New(cfg)
	require.NoError(t, err)
	treasury := n1.TreasuryAddress()
	require.NoError(t, n1.FundAccount(treasury, 1)) // mines a block
	n1.Stop()

	key, err := crypto.LoadECDSA(filepath.Join(datadir, treasuryKeyName))
	require.NoError(t, err)
	assert.Equal(t, treasury, crypto.PubkeyToAddress(key.PublicKey))

	cfg2 := memConfig()
	cfg2.DataDir = datadir
	n2, err := New(cfg2)
	require.NoError(t, err)
	defer n2.Stop()

	assert.Equal(t, treasury, n2.TreasuryAddress(), "key file reloaded")
	assert.Equal(t, uint64(1), n2.Chain().Height(), "chain resumes at the persisted head")
}
