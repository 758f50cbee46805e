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
	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/params"
)

// ProposalStatus tracks the lifecycle of a root cause proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalPassed   ProposalStatus = "passed"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal is a root cause candidate, attached to its proposer's account.
type Proposal struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Proposer  common.Address `json:"proposer"`
	Timestamp int64          `json:"timestamp"`
	Status    ProposalStatus `json:"status"`
}

// Vote is the voter-side record of a cast vote. Weight captures the voting
// power at cast time; re-votes overwrite the whole record.
type Vote struct {
	ProposalID string     `json:"proposal_id"`
	Option     VoteOption `json:"option"`
	Weight     float64    `json:"weight"`
	Timestamp  int64      `json:"timestamp"`
}

// Analysis is an incident analysis document submitted by an agent.
type Analysis struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Submitter common.Address `json:"submitter"`
	Timestamp int64          `json:"timestamp"`
}

// Account is the ledger record of an agent or the treasury.
type Account struct {
	Address            common.Address       `json:"address"`
	Name               string               `json:"name"`
	Balance            uint64               `json:"balance"`
	Stake              uint64               `json:"stake"`
	Reputation         int64                `json:"reputation"`
	Nonce              uint64               `json:"nonce"`
	RootCauseProposals map[string]*Proposal `json:"root_cause_proposals"`
	Votes              map[string]*Vote     `json:"votes"`
	Analyses           map[string]*Analysis `json:"analyses"`
}

// NewAccount materializes an account with the default reputation and empty
// records.
func NewAccount(addr common.Address, name string) *Account {
	return &Account{
		Address:            addr,
		Name:               name,
		Reputation:         params.DefaultReputation,
		RootCauseProposals: make(map[string]*Proposal),
		Votes:              make(map[string]*Vote),
		Analyses:           make(map[string]*Analysis),
	}
}

// Copy returns a deep copy of the account, detached from the original's
// record maps.
func (a *Account) Copy() *Account {
	cpy := *a
	cpy.RootCauseProposals = make(map[string]*Proposal, len(a.RootCauseProposals))
	for id, p := range a.RootCauseProposals {
		pc := *p
		cpy.RootCauseProposals[id] = &pc
	}
	cpy.Votes = make(map[string]*Vote, len(a.Votes))
	for id, v := range a.Votes {
		vc := *v
		cpy.Votes[id] = &vc
	}
	cpy.Analyses = make(map[string]*Analysis, len(a.Analyses))
	for id, an := range a.Analyses {
		ac := *an
		cpy.Analyses[id] = &ac
	}
	return &cpy
}

// AdjustReputation applies delta, clamped to the legal reputation range.
func (a *Account) AdjustReputation(delta int64) {
	a.Reputation += delta
	if a.Reputation > params.MaxReputation {
		a.Reputation = params.MaxReputation
	}
	if a.Reputation < params.MinReputation {
		a.Reputation = params.MinReputation
	}
}

// VoteWeight returns the voting power implied by the account's reputation
// and stake: base weight, plus the reputation margin above the pivot scaled
// down, plus the stake scaled down.
func (a *Account) VoteWeight() float64 {
	w := params.VoteWeightBase
	if a.Reputation > params.ReputationPivot {
		w += float64(a.Reputation-params.ReputationPivot) / params.ReputationWeightDiv
	}
	return w + float64(a.Stake)/params.StakeWeightDiv
}
