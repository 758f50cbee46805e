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

// Package client is the agent-side facade over a node: it holds the agent's
// key, composes and signs transactions with the right nonce and gas
// defaults, and surfaces chain state. It performs no business validation of
// its own; admission and execution rules live in the core.
package client

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/contracts"
	"github.com/ReisenCW/tongji-blockchain/core"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/node"
	"github.com/ReisenCW/tongji-blockchain/params"
)

// Client acts for one agent key against an in-process node.
type Client struct {
	node *node.Node
	key  *ecdsa.PrivateKey
	addr common.Address
	name string
}

// New registers the agent's public key and materializes its named account,
// then returns a client bound to that identity.
func New(n *node.Node, key *ecdsa.PrivateKey, name string) *Client {
	addr := n.Registry().Register(&key.PublicKey)

	st := n.State()
	acc := st.GetOrNewAccount(addr)
	if acc.Name == "" {
		acc.Name = name
		st.UpdateAccount(acc)
	}

	log.Debug("Agent client created", "name", name, "address", addr.Hex())
	return &Client{node: n, key: key, addr: addr, name: name}
}

// Address returns the agent's account address.
func (c *Client) Address() common.Address { return c.addr }

// Name returns the agent's display name.
func (c *Client) Name() string { return c.name }

// CreateTransaction composes and signs a transaction of the given type: the
// sender is the agent, the nonce is the next pending one, the gas price
// defaults and the gas limit is the type's floor unless overridden with a
// larger value.
func (c *Client) CreateTransaction(txType types.TxType, data types.Payload, gasOverrides ...uint64) (*types.Transaction, error) {
	floor, err := core.IntrinsicGas(txType)
	if err != nil {
		return nil, err
	}
	gasPrice, gasLimit := params.DefaultGasPrice, floor
	if len(gasOverrides) > 0 && gasOverrides[0] > 0 {
		gasPrice = gasOverrides[0]
	}
	if len(gasOverrides) > 1 && gasOverrides[1] > gasLimit {
		gasLimit = gasOverrides[1]
	}

	tx := types.NewTransaction(txType, c.addr, c.node.TxPool().PendingNonce(c.addr),
		gasPrice, gasLimit, data)
	return types.SignTx(tx, c.key)
}

// SendTransaction submits a signed transaction to the mempool.
func (c *Client) SendTransaction(tx *types.Transaction) error {
	return c.node.TxPool().Add(tx)
}

// SendAndMine submits the transaction and mines the block carrying it,
// returning the receipt of the execution.
func (c *Client) SendAndMine(tx *types.Transaction) (*types.Receipt, error) {
	if err := c.SendTransaction(tx); err != nil {
		return nil, err
	}
	if _, err := c.node.Chain().MineBlock(false); err != nil {
		return nil, err
	}
	receipt := c.Receipt(tx.Hash())
	if receipt == nil {
		return nil, fmt.Errorf("transaction %s has no receipt after mining", tx.Hash())
	}
	return receipt, nil
}

// sendTyped is the shared body of the domain calls.
func (c *Client) sendTyped(txType types.TxType, data types.Payload) (*types.Receipt, error) {
	tx, err := c.CreateTransaction(txType, data)
	if err != nil {
		return nil, err
	}
	return c.SendAndMine(tx)
}

// Transfer moves tokens to another account.
func (c *Client) Transfer(to common.Address, amount uint64) (*types.Receipt, error) {
	return c.sendTyped(types.TxTransfer, &types.TransferPayload{Recipient: to, Amount: amount})
}

// Stake locks part of the agent's balance to raise its vote weight.
func (c *Client) Stake(amount uint64) (*types.Receipt, error) {
	return c.sendTyped(types.TxStake, &types.StakePayload{Amount: amount})
}

// ProposeRootCause submits a root cause candidate and returns its proposal
// id together with the receipt.
func (c *Client) ProposeRootCause(content string) (string, *types.Receipt, error) {
	tx, err := c.CreateTransaction(types.TxProposeRootCause, &types.ProposePayload{Content: content})
	if err != nil {
		return "", nil, err
	}
	receipt, err := c.SendAndMine(tx)
	if err != nil {
		return "", nil, err
	}
	if receipt.Failed() {
		return "", receipt, nil
	}
	return contracts.ProposalID(c.addr, tx.Timestamp, content), receipt, nil
}

// Vote casts the agent's weighted vote on a proposal.
func (c *Client) Vote(proposalID string, option types.VoteOption) (*types.Receipt, error) {
	return c.sendTyped(types.TxVote, &types.VotePayload{ProposalID: proposalID, Option: option})
}

// SubmitAnalysis files an incident analysis document under the agent's
// account.
func (c *Client) SubmitAnalysis(content string) (*types.Receipt, error) {
	return c.sendTyped(types.TxSubmitAnalysis, &types.AnalysisPayload{Content: content})
}

// SubmitDataCollection records incident data, opening the SOP procedure.
// Data collection is an off-chain procedure step, not a transaction.
func (c *Client) SubmitDataCollection(summary string, raw map[string]interface{}) error {
	return c.node.SubmitDataCollection(c.name, summary, raw)
}

// Account returns the agent's current ledger record, nil before the first
// on-chain touch.
func (c *Client) Account() *types.Account {
	return c.node.State().GetAccount(c.addr)
}

// Balance returns the agent's liquid balance.
func (c *Client) Balance() uint64 {
	return c.node.State().GetBalance(c.addr)
}

// StakedBalance returns the agent's locked stake.
func (c *Client) StakedBalance() uint64 {
	if acc := c.Account(); acc != nil {
		return acc.Stake
	}
	return 0
}

// PendingNonce returns the nonce the agent's next transaction will carry.
func (c *Client) PendingNonce() uint64 {
	return c.node.TxPool().PendingNonce(c.addr)
}

// Receipt returns the execution receipt of a transaction, nil when the hash
// was never processed.
func (c *Client) Receipt(hash common.Hash) *types.Receipt {
	_, receipt := c.node.Chain().GetTransaction(hash)
	return receipt
}

// BlockchainInfo is the chain summary surfaced to agents.
type BlockchainInfo struct {
	ChainName       string
	Height          uint64
	HeadHash        common.Hash
	PendingCount    int
	TreasuryBalance uint64
}

// BlockchainInfo summarises the chain the client operates against.
func (c *Client) BlockchainInfo() BlockchainInfo {
	head := c.node.Chain().CurrentBlock()
	return BlockchainInfo{
		ChainName:       c.node.Chain().Config().ChainName,
		Height:          head.Index(),
		HeadHash:        head.Hash(),
		PendingCount:    c.node.TxPool().Len(),
		TreasuryBalance: c.node.State().GetBalance(c.node.TreasuryAddress()),
	}
}

// ConsensusStatus is the standing of one proposal under the weighted
// consensus rule.
type ConsensusStatus struct {
	ProposalID    string
	Status        types.ProposalStatus
	Tally         contracts.Tally
	Participating float64
	Threshold     float64
	Reached       bool
	Passed        bool
}

// CheckConsensus reports whether the proposal has resolved and how the
// weighted tally stands.
func (c *Client) CheckConsensus(proposalID string) (ConsensusStatus, error) {
	st := c.node.State()
	owner, ok := st.LookupProposal(proposalID)
	if !ok {
		return ConsensusStatus{}, fmt.Errorf("proposal %s not found", proposalID)
	}
	var status types.ProposalStatus
	if acc := st.GetAccount(owner); acc != nil {
		if prop := acc.RootCauseProposals[proposalID]; prop != nil {
			status = prop.Status
		}
	}

	gov := c.node.Executor().Governance()
	tally := gov.TallyVotes(st, proposalID)
	threshold := c.node.Chain().Config().PassThreshold
	return ConsensusStatus{
		ProposalID:    proposalID,
		Status:        status,
		Tally:         tally,
		Participating: tally.Participating(),
		Threshold:     threshold,
		Reached:       status != types.ProposalPending,
		Passed:        status == types.ProposalPassed,
	}, nil
}

// VotingStats returns the per-voter records of a proposal.
func (c *Client) VotingStats(proposalID string) map[common.Address]*types.Vote {
	return c.node.Executor().Governance().VoterRecords(c.node.State(), proposalID)
}

// Events returns the most recent SOP events, optionally filtered by name.
func (c *Client) Events(name string, limit int) []*contracts.Event {
	ops := c.node.Ops()
	if name == "" {
		return ops.Events(limit)
	}
	return ops.EventsByName(name, limit)
}
