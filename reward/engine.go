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

// Package reward settles resolved proposals. The engine watches the ops
// event log for consensus resolutions and converts each one into a block of
// treasury signed reward and penalty transactions, so every disbursement is
// an ordinary transaction on the chain.
package reward

import (
	"bytes"
	"crypto/ecdsa"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rcrowley/go-metrics"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/contracts"
	"github.com/ReisenCW/tongji-blockchain/core"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/crypto"
	"github.com/ReisenCW/tongji-blockchain/event"
	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/params"
)

const (
	// eventChanSize is the size of channel listening to ops events.
	eventChanSize = 16
	// chainHeadChanSize is the size of channel listening to ChainHeadEvent.
	chainHeadChanSize = 8
)

var (
	settlementCounter = metrics.GetOrRegisterCounter("reward/settlements", metrics.DefaultRegistry)
	disbursedCounter  = metrics.GetOrRegisterCounter("reward/disbursed", metrics.DefaultRegistry)
	penalizedCounter  = metrics.GetOrRegisterCounter("reward/penalized", metrics.DefaultRegistry)
)

// SettlementEvent is posted once the disbursements of a resolved proposal
// are mined.
type SettlementEvent struct {
	ProposalID string
	Passed     bool
	Txs        types.Transactions
	Block      *types.Block
}

// settlementJob is one consensus resolution waiting for the block that
// carried it to be sealed.
type settlementJob struct {
	proposalID string
	passed     bool
}

// Engine drives the incentive economy. Consensus events fire while the
// resolving block is still being assembled, so the engine only queues them
// on arrival and settles once the next chain head confirms the resolution
// is committed. Settlements never touch state directly; they are signed
// with the treasury key and submitted through the pool like any other
// transaction.
type Engine struct {
	config       *params.ChainConfig
	chain        *core.BlockChain
	pool         *core.TxPool
	state        *state.StateDB
	ops          *contracts.OpsContract
	gov          *contracts.GovernanceContract
	treasury     *ecdsa.PrivateKey
	treasuryAddr common.Address

	eventCh      chan *contracts.Event
	eventSub     event.Subscription
	chainHeadCh  chan core.ChainHeadEvent
	chainHeadSub event.Subscription

	mu      sync.Mutex
	running bool
	queue   []settlementJob
	settled mapset.Set[string]

	feed event.FeedOf[SettlementEvent]

	wg   sync.WaitGroup
	quit chan struct{}
}

// New creates a reward engine paying out of the account derived from
// treasuryKey. The key must belong to the registered treasury, otherwise
// every settlement transaction is rejected at admission.
func New(config *params.ChainConfig, chain *core.BlockChain, ops *contracts.OpsContract, gov *contracts.GovernanceContract, treasuryKey *ecdsa.PrivateKey) *Engine {
	if config == nil {
		config = params.DefaultChainConfig()
	}
	return &Engine{
		config:       config.Sanitize(),
		chain:        chain,
		pool:         chain.TxPool(),
		state:        chain.State(),
		ops:          ops,
		gov:          gov,
		treasury:     treasuryKey,
		treasuryAddr: crypto.PubkeyToAddress(treasuryKey.PublicKey),
		settled:      mapset.NewSet[string](),
		quit:         make(chan struct{}),
	}
}

// TreasuryAddress returns the address settlements are signed with.
func (e *Engine) TreasuryAddress() common.Address {
	return e.treasuryAddr
}

// Start subscribes to the ops event log and the chain head feed and begins
// settling resolutions.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true

	e.eventCh = make(chan *contracts.Event, eventChanSize)
	e.eventSub = e.ops.SubscribeEvents(e.eventCh)
	e.chainHeadCh = make(chan core.ChainHeadEvent, chainHeadChanSize)
	e.chainHeadSub = e.chain.SubscribeChainHead(e.chainHeadCh)

	e.wg.Add(1)
	go e.loop()
	log.Info("Reward engine started", "treasury", e.treasuryAddr.Hex())
}

// Stop unsubscribes and waits for the settlement loop to exit. Queued but
// unsettled resolutions are dropped; Stop is terminal.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.eventSub.Unsubscribe()
	e.chainHeadSub.Unsubscribe()
	close(e.quit)
	e.wg.Wait()
	log.Info("Reward engine stopped")
}

// Settled reports whether the proposal's disbursements have been mined.
func (e *Engine) Settled(proposalID string) bool {
	return e.settled.Contains(proposalID)
}

// SubscribeSettlements registers a subscription of SettlementEvent.
func (e *Engine) SubscribeSettlements(ch chan<- SettlementEvent) event.Subscription {
	return e.feed.Subscribe(ch)
}

func (e *Engine) loop() {
	defer e.wg.Done()
	for {
		select {
		case ev := <-e.eventCh:
			if ev.Name == contracts.EventConsensusReached {
				e.enqueue(ev)
			}
		case <-e.chainHeadCh:
			// Consensus events of the sealed block were delivered before its
			// head event, but the select order is random. Pick them up first
			// so the resolution settles on this head, not a later one.
			e.drainEvents()
			for _, job := range e.drain() {
				e.settle(job)
			}
		case <-e.eventSub.Err():
			return
		case <-e.chainHeadSub.Err():
			return
		case <-e.quit:
			return
		}
	}
}

// drainEvents empties the event channel without blocking.
func (e *Engine) drainEvents() {
	for {
		select {
		case ev := <-e.eventCh:
			if ev.Name == contracts.EventConsensusReached {
				e.enqueue(ev)
			}
		default:
			return
		}
	}
}

// enqueue records a consensus resolution for settlement after the next
// chain head.
func (e *Engine) enqueue(ev *contracts.Event) {
	id, _ := ev.Payload["proposal_id"].(string)
	passed, ok := ev.Payload["passed"].(bool)
	if id == "" || !ok {
		log.Error("Malformed consensus event", "event", ev.ID)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled.Contains(id) {
		return
	}
	e.queue = append(e.queue, settlementJob{proposalID: id, passed: passed})
	log.Debug("Settlement queued", "proposal", id, "passed", passed)
}

func (e *Engine) drain() []settlementJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	jobs := e.queue
	e.queue = nil
	return jobs
}

// requeue puts a failed job back for the next chain head.
func (e *Engine) requeue(job settlementJob) {
	e.mu.Lock()
	e.queue = append(e.queue, job)
	e.mu.Unlock()
}

// settle converts one consensus resolution into treasury transactions and
// mines the settlement block. Runs on the engine goroutine only.
func (e *Engine) settle(job settlementJob) {
	owner, ok := e.state.LookupProposal(job.proposalID)
	if !ok {
		log.Warn("Settlement skipped, proposal unknown", "proposal", job.proposalID)
		return
	}
	var prop *types.Proposal
	if acc := e.state.GetAccount(owner); acc != nil {
		prop = acc.RootCauseProposals[job.proposalID]
	}
	if prop == nil {
		log.Warn("Settlement skipped, proposal record missing", "proposal", job.proposalID, "owner", owner.Hex())
		return
	}
	if prop.Status == types.ProposalPending {
		// The block carrying the resolution never made it to disk.
		log.Warn("Settlement skipped, resolution not committed", "proposal", job.proposalID)
		return
	}
	if e.settled.Contains(job.proposalID) {
		return
	}

	votes := e.gov.VoterRecords(e.state, job.proposalID)
	var supporters, dissenters []common.Address
	for addr, v := range votes {
		switch v.Option {
		case types.VoteFor:
			supporters = append(supporters, addr)
		case types.VoteAgainst:
			dissenters = append(dissenters, addr)
		}
	}
	sortAddresses(supporters)
	sortAddresses(dissenters)

	txs, disbursed, penalized, err := e.buildSettlement(prop, job.passed, supporters, dissenters)
	if err != nil {
		log.Error("Failed to build settlement", "proposal", job.proposalID, "err", err)
		return
	}
	for i, addErr := range e.pool.AddBatch(txs) {
		if addErr != nil {
			log.Error("Settlement transaction rejected", "proposal", job.proposalID,
				"tx", txs[i].Hash(), "err", addErr)
		}
	}
	block, err := e.chain.MineBlock(true)
	if err != nil {
		// The drained transactions are gone; rebuild the whole settlement on
		// the next chain head instead of marking the proposal settled.
		log.Error("Failed to mine settlement block", "proposal", job.proposalID, "err", err)
		e.requeue(job)
		return
	}
	e.settled.Add(job.proposalID)

	settlementCounter.Inc(1)
	disbursedCounter.Inc(int64(disbursed))
	penalizedCounter.Inc(int64(penalized))

	e.feed.Send(SettlementEvent{ProposalID: job.proposalID, Passed: job.passed, Txs: txs, Block: block})
	log.Info("Proposal settled", "proposal", job.proposalID, "passed", job.passed,
		"txs", len(txs), "block", block.Index(), "disbursed", disbursed, "penalized", penalized)
}

// buildSettlement signs the disbursement set of a resolution with the
// treasury key, one transaction per participant effect, nonces assigned in
// submission order. Supporters of a passed proposal additionally recover
// part of their vote gas, read back from the mined vote transactions.
func (e *Engine) buildSettlement(prop *types.Proposal, passed bool, supporters, dissenters []common.Address) (types.Transactions, uint64, uint64, error) {
	eco := e.config.Economy
	nonce := e.pool.PendingNonce(e.treasuryAddr)

	var (
		txs       types.Transactions
		disbursed uint64
		penalized uint64
	)
	reward := func(target common.Address, amount uint64, rep int64, reason string) error {
		tx, err := types.SignTx(types.NewTransaction(types.TxReward, e.treasuryAddr, nonce,
			params.DefaultGasPrice, params.MinGasReward, &types.RewardPayload{
				Target:          target,
				Amount:          amount,
				ReputationDelta: rep,
				Reason:          reason,
			}), e.treasury)
		if err != nil {
			return err
		}
		nonce++
		txs = append(txs, tx)
		disbursed += amount
		return nil
	}
	penalty := func(target common.Address, amount uint64, malus int64, reason string) error {
		tx, err := types.SignTx(types.NewTransaction(types.TxPenalty, e.treasuryAddr, nonce,
			params.DefaultGasPrice, params.MinGasPenalty, &types.PenaltyPayload{
				Target:          target,
				Amount:          amount,
				ReputationDelta: -malus,
				Reason:          reason,
			}), e.treasury)
		if err != nil {
			return err
		}
		nonce++
		txs = append(txs, tx)
		penalized += amount
		return nil
	}

	if passed {
		rebates := e.voteRebates(prop.ID, supporters)
		if err := reward(prop.Proposer, eco.ProposerReward, eco.ProposerRepBonus, "root cause accepted"); err != nil {
			return nil, 0, 0, err
		}
		if err := reward(prop.Proposer, eco.BountyBase, 0, "root cause bounty"); err != nil {
			return nil, 0, 0, err
		}
		for _, addr := range supporters {
			if err := reward(addr, eco.VoterReward+rebates[addr], eco.VoterRepBonus, "supported accepted root cause"); err != nil {
				return nil, 0, 0, err
			}
		}
		for _, addr := range dissenters {
			if err := penalty(addr, eco.AgainstPenalty, eco.AgainstRepMalus, "opposed accepted root cause"); err != nil {
				return nil, 0, 0, err
			}
		}
		return txs, disbursed, penalized, nil
	}

	if err := penalty(prop.Proposer, eco.FailProposerPenalty, eco.FailProposerRepMalus, "root cause rejected"); err != nil {
		return nil, 0, 0, err
	}
	for _, addr := range supporters {
		if err := penalty(addr, eco.FailVoterPenalty, eco.FailVoterRepMalus, "supported rejected root cause"); err != nil {
			return nil, 0, 0, err
		}
	}
	return txs, disbursed, penalized, nil
}

// voteRebates scans the chain backwards for the latest vote each supporter
// placed on the proposal and computes the gas fee share handed back with
// their reward.
func (e *Engine) voteRebates(proposalID string, supporters []common.Address) map[common.Address]uint64 {
	rebates := make(map[common.Address]uint64, len(supporters))
	if len(supporters) == 0 {
		return rebates
	}
	pending := mapset.NewSet(supporters...)
	ratio := e.config.Economy.VoteGasRebateRatio

	for i := e.chain.Height(); i >= 1 && pending.Cardinality() > 0; i-- {
		block := e.chain.GetBlock(i)
		if block == nil {
			continue
		}
		blockTxs := block.Transactions()
		for j := len(blockTxs) - 1; j >= 0; j-- {
			tx := blockTxs[j]
			if tx.TxType != types.TxVote || !pending.Contains(tx.Sender) {
				continue
			}
			vote, ok := tx.Data.(*types.VotePayload)
			if !ok || vote.ProposalID != proposalID {
				continue
			}
			rebates[tx.Sender] = uint64(ratio * float64(tx.Fee()))
			pending.Remove(tx.Sender)
		}
	}
	return rebates
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}
