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

package core

import (
	"time"

	"github.com/ReisenCW/tongji-blockchain/chaindb"
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/rawdb"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/params"
)

// GenesisAccount is an account seeded into the world state at chain
// initialisation.
type GenesisAccount struct {
	Name    string `json:"name,omitempty"`
	Balance uint64 `json:"balance"`
	Stake   uint64 `json:"stake,omitempty"`
}

// GenesisAlloc specifies the initial account allocation of the chain.
type GenesisAlloc map[common.Address]GenesisAccount

// Genesis specifies block zero and the initial world state.
type Genesis struct {
	Config    *params.ChainConfig `json:"config"`
	Timestamp int64               `json:"timestamp"`
	Alloc     GenesisAlloc        `json:"alloc"`
}

// DefaultGenesis returns the genesis used when none is configured: the
// treasury funded with its default allocation, stamped with the current
// time.
func DefaultGenesis(treasury common.Address) *Genesis {
	return &Genesis{
		Config:    params.DefaultChainConfig(),
		Timestamp: time.Now().Unix(),
		Alloc: GenesisAlloc{
			treasury: {Name: "Treasury", Balance: params.DefaultTreasuryBalance},
		},
	}
}

// ToBlock builds block zero: previous hash all zeros, no transactions and
// the merkle root of the empty list.
func (g *Genesis) ToBlock() *types.Block {
	header := &types.Header{
		Index:        0,
		Timestamp:    g.Timestamp,
		PreviousHash: common.Hash{},
	}
	return types.NewBlock(header, nil)
}

// Commit writes the genesis block and its allocation to db in one batch and
// returns the block.
func (g *Genesis) Commit(db chaindb.Database) (*types.Block, error) {
	block := g.ToBlock()
	batch := db.NewBatch()
	for addr, alloc := range g.Alloc {
		account := types.NewAccount(addr, alloc.Name)
		account.Balance = alloc.Balance
		account.Stake = alloc.Stake
		rawdb.WriteAccount(batch, account)
	}
	rawdb.WriteBlock(batch, block)
	rawdb.WriteHeadIndex(batch, 0)
	rawdb.WriteGenesisHash(batch, block.Hash())
	if err := batch.Write(); err != nil {
		return nil, err
	}
	log.Info("Wrote genesis block", "hash", block.Hash(), "alloc", len(g.Alloc))
	return block, nil
}

// SetupGenesisBlock makes sure db carries a genesis block. A stored genesis
// always wins so a datadir keeps its identity across restarts; the supplied
// genesis is only committed into an empty database. With neither present,
// ErrNoGenesis is returned.
func SetupGenesisBlock(db chaindb.Database, genesis *Genesis) (*types.Block, error) {
	stored := rawdb.ReadGenesisHash(db)
	if stored == (common.Hash{}) {
		if genesis == nil {
			return nil, ErrNoGenesis
		}
		return genesis.Commit(db)
	}
	block := rawdb.ReadBlock(db, 0)
	if block == nil || block.Hash() != stored {
		return nil, corruptionError(0, "stored genesis block missing or inconsistent")
	}
	if genesis != nil && genesis.ToBlock().Hash() != stored {
		log.Debug("Ignoring supplied genesis in favour of stored block", "stored", stored)
	}
	return block, nil
}
