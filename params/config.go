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

// Package params holds the protocol rules of the chain: gas floors, vote
// weight parameters and the incentive economy.
package params

// ChainName identifies the ledger in info queries and exports.
const ChainName = "tongji-dao-chain"

// Minimum gas limits per transaction type. Admission rejects transactions
// declaring less.
const (
	MinGasTransfer  uint64 = 5000
	MinGasStake     uint64 = 5000
	MinGasSlash     uint64 = 5000
	MinGasVote      uint64 = 200
	MinGasReward    uint64 = 200
	MinGasPenalty   uint64 = 200
	MinGasPropose   uint64 = 30000
	MinGasAnalysis  uint64 = 5000
	DefaultGasPrice uint64 = 1
)

// Reputation bounds. Fresh accounts start at the maximum and move within
// [MinReputation, MaxReputation] under rewards and penalties.
const (
	MinReputation     int64 = 0
	MaxReputation     int64 = 100
	DefaultReputation int64 = 100
)

// Vote weight formula: base + reputation bonus above the pivot + staked
// tokens scaled down. w = 1.0 + max(0,(rep-50)/10) + stake/1000.
const (
	VoteWeightBase      float64 = 1.0
	ReputationPivot     int64   = 50
	ReputationWeightDiv float64 = 10
	StakeWeightDiv      float64 = 1000
)

// PassThreshold is the fraction of participating vote weight a side must
// strictly exceed to resolve a proposal.
const PassThreshold float64 = 0.5

// DefaultTreasuryBalance is the genesis allocation of the treasury, the
// funding source of every reward in the system.
const DefaultTreasuryBalance uint64 = 1_000_000_000

// EconomyConfig parameterizes the settlements disbursed by the reward
// engine once a proposal resolves.
type EconomyConfig struct {
	// Disbursed when a proposal passes.
	ProposerReward     uint64  // tokens to the accepted proposer
	ProposerRepBonus   int64   // reputation to the accepted proposer
	BountyBase         uint64  // flat bounty on top of the proposer reward
	VoterReward        uint64  // tokens per supporting voter
	VoterRepBonus      int64   // reputation per supporting voter
	VoteGasRebateRatio float64 // fraction of the vote gas fee rebated to supporters
	AgainstPenalty     uint64  // tokens taken from each dissenting voter
	AgainstRepMalus    int64   // reputation taken from each dissenting voter

	// Applied when a proposal is rejected.
	FailProposerPenalty  uint64
	FailProposerRepMalus int64
	FailVoterPenalty     uint64
	FailVoterRepMalus    int64
}

// DefaultEconomy returns the stock incentive schedule.
func DefaultEconomy() *EconomyConfig {
	return &EconomyConfig{
		ProposerReward:     800,
		ProposerRepBonus:   5,
		BountyBase:         1000,
		VoterReward:        300,
		VoterRepBonus:      1,
		VoteGasRebateRatio: 0.7,
		AgainstPenalty:     50,
		AgainstRepMalus:    1,

		FailProposerPenalty:  300,
		FailProposerRepMalus: 5,
		FailVoterPenalty:     100,
		FailVoterRepMalus:    1,
	}
}

// ChainConfig is the ruleset a chain instance runs under.
type ChainConfig struct {
	ChainName     string
	PassThreshold float64
	Economy       *EconomyConfig
}

// DefaultChainConfig returns the stock ruleset.
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		ChainName:     ChainName,
		PassThreshold: PassThreshold,
		Economy:       DefaultEconomy(),
	}
}

// Sanitize fills zero fields with their defaults and returns the config for
// chaining.
func (c *ChainConfig) Sanitize() *ChainConfig {
	if c.ChainName == "" {
		c.ChainName = ChainName
	}
	if c.PassThreshold <= 0 || c.PassThreshold >= 1 {
		c.PassThreshold = PassThreshold
	}
	if c.Economy == nil {
		c.Economy = DefaultEconomy()
	}
	return c
}
