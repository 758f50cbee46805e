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

package contracts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/params"
)

// ErrInvalidVoteOption is returned when a vote names an option outside
// for/against/abstain.
var ErrInvalidVoteOption = errors.New("invalid vote option")

// SOPAdvancer resolves the active proposal of the incident procedure. The
// governance contract calls it when a tally crosses the threshold; an error
// means the procedure refused the transition.
type SOPAdvancer interface {
	Advance(proposalID string, passed bool) error
}

// Tally is the weighted vote distribution of one proposal, recomputed from
// the voter-side records on every evaluation.
type Tally struct {
	For     float64 `json:"for"`
	Against float64 `json:"against"`
	Abstain float64 `json:"abstain"`
}

// Participating returns the summed weight of every cast vote. Accounts that
// did not vote contribute nothing.
func (t Tally) Participating() float64 {
	return t.For + t.Against + t.Abstain
}

// GovernanceContract implements weighted voting. Each vote records the
// voter's current weight, re-tallies the proposal from all voter records and
// resolves it through the procedure once one side holds a strict majority of
// the participating weight.
type GovernanceContract struct {
	config *params.ChainConfig
	sop    SOPAdvancer
}

// NewGovernanceContract returns a governance contract resolving proposals
// through the given procedure.
func NewGovernanceContract(config *params.ChainConfig, sop SOPAdvancer) *GovernanceContract {
	if config == nil {
		config = params.DefaultChainConfig()
	}
	return &GovernanceContract{config: config.Sanitize(), sop: sop}
}

// Vote casts or replaces the sender's vote on a proposal. Unknown proposal
// ids materialize a placeholder proposal owned by the voter, keeping early
// votes alive until the real proposal lands. After recording, the tally is
// re-evaluated and a decisive majority resolves the proposal; a refusal by
// the procedure leaves the vote in place.
func (c *GovernanceContract) Vote(st *state.StateDB, sender common.Address, p *types.VotePayload, timestamp int64) error {
	option := types.VoteOption(strings.ToLower(string(p.Option)))
	if !option.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVoteOption, p.Option)
	}

	owner, ok := st.LookupProposal(p.ProposalID)
	if !ok {
		voter := st.GetOrNewAccount(sender)
		voter.RootCauseProposals[p.ProposalID] = &types.Proposal{
			ID:        p.ProposalID,
			Content:   fmt.Sprintf("Auto-created proposal for vote %s", p.ProposalID),
			Proposer:  sender,
			Timestamp: timestamp,
			Status:    types.ProposalPending,
		}
		st.UpdateAccount(voter)
		owner = sender
		log.Debug("Materialized proposal for early vote", "proposal", p.ProposalID, "voter", sender.Hex())
	}

	voter := st.GetOrNewAccount(sender)
	weight := voter.VoteWeight()
	voter.Votes[p.ProposalID] = &types.Vote{
		ProposalID: p.ProposalID,
		Option:     option,
		Weight:     weight,
		Timestamp:  timestamp,
	}
	st.UpdateAccount(voter)
	log.Debug("Vote recorded", "proposal", p.ProposalID, "voter", sender.Hex(),
		"option", option, "weight", weight)

	c.checkConsensus(st, owner, p.ProposalID)
	return nil
}

// checkConsensus resolves the proposal when one side strictly exceeds the
// threshold share of the participating weight. A refusal by the procedure,
// for instance because the proposal is not the active one, is logged and
// otherwise ignored so the vote itself stands.
func (c *GovernanceContract) checkConsensus(st *state.StateDB, owner common.Address, proposalID string) {
	ownerAcc := st.GetAccount(owner)
	if ownerAcc == nil {
		return
	}
	prop := ownerAcc.RootCauseProposals[proposalID]
	if prop == nil || prop.Status != types.ProposalPending {
		return
	}

	tally := c.TallyVotes(st, proposalID)
	participating := tally.Participating()
	if participating == 0 {
		return
	}
	threshold := c.config.PassThreshold * participating

	var passed bool
	switch {
	case tally.For > threshold:
		passed = true
	case tally.Against > threshold:
		passed = false
	default:
		return
	}

	if err := c.sop.Advance(proposalID, passed); err != nil {
		log.Debug("Consensus resolution not applied", "proposal", proposalID,
			"passed", passed, "err", err)
		return
	}
	if passed {
		prop.Status = types.ProposalPassed
	} else {
		prop.Status = types.ProposalRejected
	}
	st.UpdateAccount(ownerAcc)
	log.Info("Consensus reached", "proposal", proposalID, "passed", passed,
		"for", tally.For, "against", tally.Against, "participating", participating)
}

// TallyVotes recomputes a proposal's weighted tally from the vote records of
// every account, staged state included. Weights are the ones captured when
// each vote was cast.
func (c *GovernanceContract) TallyVotes(st *state.StateDB, proposalID string) Tally {
	var t Tally
	err := st.EachAccount(func(acc *types.Account) bool {
		if v, ok := acc.Votes[proposalID]; ok {
			switch v.Option {
			case types.VoteFor:
				t.For += v.Weight
			case types.VoteAgainst:
				t.Against += v.Weight
			case types.VoteAbstain:
				t.Abstain += v.Weight
			}
		}
		return true
	})
	if err != nil {
		log.Error("Vote tally scan failed", "proposal", proposalID, "err", err)
	}
	return t
}

// VoterRecords returns the vote record of every account that voted on the
// proposal, keyed by voter address.
func (c *GovernanceContract) VoterRecords(st *state.StateDB, proposalID string) map[common.Address]*types.Vote {
	votes := make(map[common.Address]*types.Vote)
	err := st.EachAccount(func(acc *types.Account) bool {
		if v, ok := acc.Votes[proposalID]; ok {
			vc := *v
			votes[acc.Address] = &vc
		}
		return true
	})
	if err != nil {
		log.Error("Voter record scan failed", "proposal", proposalID, "err", err)
	}
	return votes
}
