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

// Package node assembles a running chain instance: database, world state,
// contracts, chain, mempool, reward engine and the outward-facing servers.
// Everything hangs off the Node; there are no package level singletons, so
// tests and embedders construct as many independent instances as they like.
package node

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ReisenCW/tongji-blockchain/api"
	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/contracts"
	"github.com/ReisenCW/tongji-blockchain/core"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/crypto"
	"github.com/ReisenCW/tongji-blockchain/datasync/exporter"
	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/params"
	"github.com/ReisenCW/tongji-blockchain/reward"
)

// ErrNodeStopped is returned from operations on a node that has been shut
// down.
var ErrNodeStopped = errors.New("node not started")

// Node is a fully wired chain instance. New builds the component graph,
// Start brings up the background services and Stop unwinds them in reverse
// order.
type Node struct {
	config *Config

	db        chaindb.Database
	statedb   *state.StateDB
	registry  *core.PublicKeyRegistry
	executor  *contracts.Executor
	processor *core.StateProcessor
	pool      *core.TxPool
	chain     *core.BlockChain
	engine    *reward.Engine

	httpServer *api.Server
	exporter   *exporter.Exporter

	treasuryKey  *ecdsa.PrivateKey
	treasuryAddr common.Address

	mu      sync.Mutex
	started bool
	stopped bool
}

// New wires a node from the given configuration: it opens (or creates) the
// database and the treasury key, registers the treasury, commits genesis
// into an empty database and connects contracts, processor, pool, chain and
// reward engine. Servers are constructed but not yet listening.
func New(config *Config) (*Node, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.sanitize()

	db, err := openDatabase(config)
	if err != nil {
		return nil, err
	}
	treasuryKey, err := openTreasuryKey(config)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := core.NewStoredKeyRegistry(db)
	treasuryAddr := registry.Register(&treasuryKey.PublicKey)

	statedb, err := state.New(db, config.StateCacheMiB)
	if err != nil {
		db.Close()
		return nil, err
	}

	ops := contracts.NewOpsContract()
	gov := contracts.NewGovernanceContract(config.Chain, ops)
	token := contracts.NewTokenContract(treasuryAddr)
	executor := contracts.NewExecutor(token, gov, ops)

	processor := core.NewStateProcessor(registry, executor)
	pool := core.NewTxPool(config.TxPool, statedb, registry)

	genesis := config.Genesis
	if genesis == nil {
		genesis = core.DefaultGenesis(treasuryAddr)
	}
	chain, err := core.NewBlockChain(db, config.Chain, statedb, pool, processor, genesis)
	if err != nil {
		db.Close()
		return nil, err
	}

	n := &Node{
		config:       config,
		db:           db,
		statedb:      statedb,
		registry:     registry,
		executor:     executor,
		processor:    processor,
		pool:         pool,
		chain:        chain,
		engine:       reward.New(config.Chain, chain, ops, gov, treasuryKey),
		treasuryKey:  treasuryKey,
		treasuryAddr: treasuryAddr,
	}

	if config.HTTPEnabled {
		n.httpServer = api.NewServer(api.Config{
			Host:           config.HTTPHost,
			Port:           config.HTTPPort,
			AllowedOrigins: config.AllowedOrigins,
		}, chain, pool, statedb, executor)
	}
	if config.Kafka.Enabled() {
		exp, err := exporter.New(config.Kafka, chain, ops)
		if err != nil {
			db.Close()
			return nil, err
		}
		n.exporter = exp
	}

	log.Info("Node assembled", "treasury", treasuryAddr.Hex(), "head", chain.Height(),
		"datadir", config.DataDir, "http", config.HTTPEnabled, "kafka", config.Kafka.Enabled())
	return n, nil
}

// openDatabase opens the chain database under the data directory, or an
// in-memory store when no directory is configured.
func openDatabase(config *Config) (chaindb.Database, error) {
	if config.DataDir == "" {
		return chaindb.NewMemDatabase(), nil
	}
	path := filepath.Join(config.DataDir, chaindataDirName)
	return chaindb.NewLDBDatabase(path, config.DatabaseCache, config.DatabaseHandles)
}

// openTreasuryKey loads the treasury key, creating and persisting a fresh
// one on first start. In-memory nodes without a configured file get an
// ephemeral key.
func openTreasuryKey(config *Config) (*ecdsa.PrivateKey, error) {
	keyFile := config.TreasuryKeyFile
	if keyFile != "" && !filepath.IsAbs(keyFile) && config.DataDir != "" {
		keyFile = filepath.Join(config.DataDir, keyFile)
	}
	if keyFile == "" {
		if config.DataDir == "" {
			return crypto.GenerateKey()
		}
		keyFile = filepath.Join(config.DataDir, treasuryKeyName)
	}

	if key, err := crypto.LoadECDSA(keyFile); err == nil {
		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("treasury key %s unreadable: %w", keyFile, err)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(keyFile), 0700); err != nil {
		return nil, err
	}
	if err := crypto.SaveECDSA(keyFile, key); err != nil {
		return nil, err
	}
	log.Info("Generated treasury key", "path", keyFile)
	return key, nil
}

// Start brings up the reward engine, the read API and the exporter. Start
// is idempotent until Stop; a stopped node cannot be restarted.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return ErrNodeStopped
	}
	if n.started {
		return nil
	}

	n.engine.Start()
	if n.httpServer != nil {
		if err := n.httpServer.Start(); err != nil {
			n.engine.Stop()
			return err
		}
	}
	if n.exporter != nil {
		n.exporter.Start()
	}
	n.started = true
	log.Info("Node started")
	return nil
}

// Stop unwinds the services in reverse start order and closes the
// database. Stop is terminal and idempotent.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}
	n.stopped = true

	if n.started {
		if n.exporter != nil {
			if err := n.exporter.Close(); err != nil {
				log.Warn("Exporter shutdown failed", "err", err)
			}
		}
		if n.httpServer != nil {
			n.httpServer.Stop()
		}
		n.engine.Stop()
	}
	n.db.Close()
	n.started = false
	log.Info("Node stopped")
}

// FundAccount moves tokens from the treasury to addr through an ordinary
// signed transfer and mines it, so even bootstrap funding stays on-chain.
func (n *Node) FundAccount(addr common.Address, amount uint64) error {
	tx := types.NewTransaction(types.TxTransfer, n.treasuryAddr,
		n.pool.PendingNonce(n.treasuryAddr), params.DefaultGasPrice,
		params.MinGasTransfer, &types.TransferPayload{Recipient: addr, Amount: amount})
	if _, err := types.SignTx(tx, n.treasuryKey); err != nil {
		return err
	}
	if err := n.pool.Add(tx); err != nil {
		return err
	}
	_, err := n.chain.MineBlock(false)
	return err
}

// SubmitDataCollection records the incident data opening the SOP procedure.
func (n *Node) SubmitDataCollection(submitter, summary string, raw map[string]interface{}) error {
	return n.executor.Ops().SubmitDataCollection(submitter, summary, raw)
}

// Config returns the node configuration.
func (n *Node) Config() *Config { return n.config }

// Database returns the backing key-value store.
func (n *Node) Database() chaindb.Database { return n.db }

// State returns the world state.
func (n *Node) State() *state.StateDB { return n.statedb }

// Registry returns the public key registry.
func (n *Node) Registry() *core.PublicKeyRegistry { return n.registry }

// Executor returns the contract dispatcher.
func (n *Node) Executor() *contracts.Executor { return n.executor }

// Ops returns the SOP contract.
func (n *Node) Ops() *contracts.OpsContract { return n.executor.Ops() }

// Chain returns the blockchain.
func (n *Node) Chain() *core.BlockChain { return n.chain }

// TxPool returns the mempool.
func (n *Node) TxPool() *core.TxPool { return n.pool }

// RewardEngine returns the settlement engine.
func (n *Node) RewardEngine() *reward.Engine { return n.engine }

// TreasuryAddress returns the address of the node's treasury account.
func (n *Node) TreasuryAddress() common.Address { return n.treasuryAddr }

// HTTPEndpoint returns the bound read API address, empty when HTTP is
// disabled or the node is not started.
func (n *Node) HTTPEndpoint() string {
	if n.httpServer == nil {
		return ""
	}
	return n.httpServer.Endpoint()
}
