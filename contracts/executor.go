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

// Package contracts holds the state-mutating handlers behind each
// transaction type: the token ledger, weighted governance voting and the
// incident SOP procedure. Handlers are dispatched by payload type and mutate
// accounts exclusively through the world state; transactional rollback
// around a failing handler is the caller's concern.
package contracts

import (
	"fmt"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
)

var (
	executedCounter = metrics.GetOrRegisterCounter("contracts/executed", metrics.DefaultRegistry)
	failedCounter   = metrics.GetOrRegisterCounter("contracts/failed", metrics.DefaultRegistry)
)

// Executor routes transactions to their contract by payload type.
type Executor struct {
	token      *TokenContract
	governance *GovernanceContract
	ops        *OpsContract
}

// NewExecutor wires the three contracts into one dispatcher.
func NewExecutor(token *TokenContract, governance *GovernanceContract, ops *OpsContract) *Executor {
	return &Executor{token: token, governance: governance, ops: ops}
}

// Token returns the token contract.
func (e *Executor) Token() *TokenContract { return e.token }

// Governance returns the governance contract.
func (e *Executor) Governance() *GovernanceContract { return e.governance }

// Ops returns the ops contract.
func (e *Executor) Ops() *OpsContract { return e.ops }

// Execute applies the transaction payload against the world state.
func (e *Executor) Execute(tx *types.Transaction, st *state.StateDB) error {
	var err error
	switch p := tx.Data.(type) {
	case *types.TransferPayload:
		err = e.token.Transfer(st, tx.Sender, p)
	case *types.StakePayload:
		err = e.token.Stake(st, tx.Sender, p)
	case *types.SlashPayload:
		err = e.token.Slash(st, tx.Sender, p)
	case *types.VotePayload:
		err = e.governance.Vote(st, tx.Sender, p, tx.Timestamp)
	case *types.ProposePayload:
		err = e.ops.HandlePropose(st, tx.Sender, p, tx.Timestamp)
	case *types.AnalysisPayload:
		err = e.ops.HandleAnalysis(st, tx.Sender, p, tx.Timestamp)
	case *types.RewardPayload:
		err = e.token.Reward(st, tx.Sender, p)
	case *types.PenaltyPayload:
		err = e.token.Penalty(st, tx.Sender, p)
	default:
		err = fmt.Errorf("no contract for payload %T", tx.Data)
	}
	if err != nil {
		failedCounter.Inc(1)
		return err
	}
	executedCounter.Inc(1)
	return nil
}
