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

// Package core implements the chain: transaction admission, block assembly
// and persistence of blocks, receipts and the world state.
package core

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rcrowley/go-metrics"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/rawdb"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/event"
	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/params"
)

const blockCacheLimit = 256

var (
	blockMineTimer = metrics.GetOrRegisterTimer("chain/mine", metrics.DefaultRegistry)
	blockTxsMeter  = metrics.GetOrRegisterMeter("chain/txs", metrics.DefaultRegistry)
	blockDropMeter = metrics.GetOrRegisterMeter("chain/txs/dropped", metrics.DefaultRegistry)
	chainHeadGauge = metrics.GetOrRegisterGauge("chain/head", metrics.DefaultRegistry)
)

// BlockChain owns the canonical chain and the mempool feeding it. A single
// writer appends blocks under the chain mutex; readers are served from an
// LRU of recently touched blocks backed by the database.
type BlockChain struct {
	config    *params.ChainConfig
	db        chaindb.Database
	statedb   *state.StateDB
	txPool    *TxPool
	processor *StateProcessor

	chainmu      sync.RWMutex
	currentBlock *types.Block
	genesisHash  common.Hash
	blockCache   *lru.Cache

	chainHeadFeed event.FeedOf[ChainHeadEvent]
}

// NewBlockChain opens the chain stored in db, committing genesis into an
// empty database first. The head block is loaded and verified to exist;
// anything else is reported as corruption rather than silently rebuilt.
func NewBlockChain(db chaindb.Database, config *params.ChainConfig, statedb *state.StateDB, txPool *TxPool, processor *StateProcessor, genesis *Genesis) (*BlockChain, error) {
	if config == nil {
		config = params.DefaultChainConfig()
	}
	config.Sanitize()

	genesisBlock, err := SetupGenesisBlock(db, genesis)
	if err != nil {
		return nil, err
	}
	head, ok := rawdb.ReadHeadIndex(db)
	if !ok {
		return nil, corruptionError(0, "head block index missing")
	}
	current := rawdb.ReadBlock(db, head)
	if current == nil {
		return nil, corruptionError(head, "head block missing")
	}
	blockCache, _ := lru.New(blockCacheLimit)

	bc := &BlockChain{
		config:       config,
		db:           db,
		statedb:      statedb,
		txPool:       txPool,
		processor:    processor,
		currentBlock: current,
		genesisHash:  genesisBlock.Hash(),
		blockCache:   blockCache,
	}
	chainHeadGauge.Update(int64(head))
	log.Info("Loaded chain", "name", config.ChainName, "head", head, "hash", current.Hash())
	return bc, nil
}

// CurrentBlock returns the head of the chain.
func (bc *BlockChain) CurrentBlock() *types.Block {
	bc.chainmu.RLock()
	defer bc.chainmu.RUnlock()
	return bc.currentBlock
}

// Height returns the index of the head block.
func (bc *BlockChain) Height() uint64 {
	return bc.CurrentBlock().Index()
}

// Genesis returns the hash of block zero.
func (bc *BlockChain) Genesis() common.Hash {
	return bc.genesisHash
}

// Config returns the chain configuration.
func (bc *BlockChain) Config() *params.ChainConfig {
	return bc.config
}

// State returns the world state the chain applies blocks against.
func (bc *BlockChain) State() *state.StateDB {
	return bc.statedb
}

// TxPool returns the mempool feeding block assembly.
func (bc *BlockChain) TxPool() *TxPool {
	return bc.txPool
}

// GetBlock retrieves a block by index, or nil when the index is beyond the
// head or the entry is unreadable.
func (bc *BlockChain) GetBlock(index uint64) *types.Block {
	if cached, ok := bc.blockCache.Get(index); ok {
		return cached.(*types.Block)
	}
	block := rawdb.ReadBlock(bc.db, index)
	if block != nil {
		bc.blockCache.Add(index, block)
	}
	return block
}

// GetTransaction looks up a mined transaction by hash through its receipt.
// For transactions dropped during assembly the receipt exists but the
// transaction is nil.
func (bc *BlockChain) GetTransaction(hash common.Hash) (*types.Transaction, *types.Receipt) {
	receipt := rawdb.ReadReceipt(bc.db, hash)
	if receipt == nil {
		return nil, nil
	}
	block := bc.GetBlock(receipt.BlockIndex)
	if block == nil {
		return nil, receipt
	}
	return block.Transaction(hash), receipt
}

// MineBlock drains the mempool, applies the drained transactions in order
// and appends the resulting block. Without force, no block is produced when
// nothing was accepted. The new block, its receipts, the account updates
// and the head pointer are persisted in one batch, so a storage failure
// leaves the chain exactly where it was, with the drained transactions
// dropped.
func (bc *BlockChain) MineBlock(force bool) (*types.Block, error) {
	block, err := bc.mineBlock(force)
	if block != nil {
		// Posted outside the chain mutex so subscribers may query the
		// chain while handling the event.
		bc.chainHeadFeed.Send(ChainHeadEvent{Block: block})
	}
	return block, err
}

func (bc *BlockChain) mineBlock(force bool) (*types.Block, error) {
	bc.chainmu.Lock()
	defer bc.chainmu.Unlock()
	defer blockMineTimer.UpdateSince(time.Now())

	txs := bc.txPool.DrainPending()
	if len(txs) == 0 && !force {
		return nil, nil
	}

	parent := bc.currentBlock
	index := parent.Index() + 1

	accepted, receipts := bc.processor.Process(txs, bc.statedb, index)
	if len(accepted) == 0 && !force {
		bc.statedb.Discard()
		log.Debug("Skipping empty block", "drained", len(txs))
		return nil, nil
	}

	header := &types.Header{
		Index:        index,
		Timestamp:    time.Now().Unix(),
		PreviousHash: parent.Hash(),
	}
	block := types.NewBlock(header, accepted)

	batch := bc.db.NewBatch()
	if err := bc.statedb.Commit(batch); err != nil {
		bc.statedb.Discard()
		return nil, err
	}
	rawdb.WriteBlock(batch, block)
	rawdb.WriteReceipts(batch, receipts)
	rawdb.WriteHeadIndex(batch, index)
	if err := batch.Write(); err != nil {
		bc.statedb.Discard()
		log.Error("Failed to persist block", "index", index, "err", err)
		return nil, err
	}
	bc.statedb.Finalise()

	bc.currentBlock = block
	bc.blockCache.Add(index, block)
	chainHeadGauge.Update(int64(index))
	blockTxsMeter.Mark(int64(len(accepted)))
	blockDropMeter.Mark(int64(len(txs) - len(accepted)))

	log.Info("Mined new block", "index", index, "txs", len(accepted),
		"dropped", len(txs)-len(accepted), "hash", block.Hash())
	return block, nil
}

// ValidateChain re-checks every stored block: header hash integrity,
// previous hash linkage, merkle root recomputation and the signature of
// every transaction against the key registry. The first mismatch is
// returned as a CorruptionErr.
func (bc *BlockChain) ValidateChain() error {
	bc.chainmu.RLock()
	head := bc.currentBlock.Index()
	bc.chainmu.RUnlock()

	var prev *types.Block
	for i := uint64(0); i <= head; i++ {
		block := bc.GetBlock(i)
		if block == nil {
			return corruptionError(i, "block missing or unreadable")
		}
		if block.Index() != i {
			return corruptionError(i, "stored under wrong index %d", block.Index())
		}
		if i == 0 {
			if block.PreviousHash() != (common.Hash{}) {
				return corruptionError(0, "genesis previous hash not zero")
			}
		} else if block.PreviousHash() != prev.Hash() {
			return corruptionError(i, "previous hash %s does not link to %s", block.PreviousHash(), prev.Hash())
		}
		if got := types.DeriveMerkleRoot(block.Transactions()); got != block.MerkleRoot() {
			return corruptionError(i, "merkle root mismatch: header %s, computed %s", block.MerkleRoot(), got)
		}
		for _, tx := range block.Transactions() {
			pub, ok := bc.processor.registry.Lookup(tx.Sender)
			if !ok {
				return corruptionError(i, "transaction %s from unregistered sender %s", tx.Hash(), tx.Sender.Hex())
			}
			if !tx.VerifySignature(pub) {
				return corruptionError(i, "transaction %s carries an invalid signature", tx.Hash())
			}
		}
		prev = block
	}
	return nil
}

// SubscribeChainHead registers a subscription of ChainHeadEvent.
func (bc *BlockChain) SubscribeChainHead(ch chan<- ChainHeadEvent) event.Subscription {
	return bc.chainHeadFeed.Subscribe(ch)
}
