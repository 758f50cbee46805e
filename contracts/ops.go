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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/crypto"
	"github.com/ReisenCW/tongji-blockchain/event"
	"github.com/ReisenCW/tongji-blockchain/log"
)

// Phase is a station of the incident handling procedure. The machine walks
// Init -> Data_Collected -> Root_Cause_Proposed -> Consensus -> Solution,
// falling back to Data_Collected when a proposal is rejected.
type Phase string

const (
	PhaseInit              Phase = "Init"
	PhaseDataCollected     Phase = "Data_Collected"
	PhaseRootCauseProposed Phase = "Root_Cause_Proposed"
	PhaseConsensus         Phase = "Consensus"
	PhaseSolution          Phase = "Solution"
)

func (p Phase) String() string { return string(p) }

// Event names emitted by the ops contract.
const (
	EventDataCollected        = "DataCollected"
	EventRootCauseProposed    = "RootCauseProposed"
	EventConsensusReached     = "ConsensusReached"
	EventSolutionPhaseEntered = "SolutionPhaseEntered"
	EventProposalRejected     = "ProposalRejected"
)

var (
	// ErrInvalidPhase is returned when an operation is attempted in a phase
	// that does not permit it.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")

	// ErrProposalMismatch is returned when a consensus resolution names a
	// proposal other than the one currently under vote.
	ErrProposalMismatch = errors.New("proposal does not match current active proposal")
)

// Event is one entry of the append-only ops log. Events are immutable once
// emitted; holders must not modify the payload.
type Event struct {
	ID        string
	Name      string
	Timestamp int64
	Payload   map[string]interface{}
}

// MarshalJSON flattens the payload keys into the event object, next to id,
// name and timestamp.
func (e *Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(e.Payload)+3)
	for k, v := range e.Payload {
		flat[k] = v
	}
	flat["id"] = e.ID
	flat["name"] = e.Name
	flat["timestamp"] = e.Timestamp
	return json.Marshal(flat)
}

// newEvent stamps an event with a nanosecond wall-clock timestamp and an id
// derived from name, timestamp and the canonical payload encoding.
func newEvent(name string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	ts := time.Now().UnixNano()
	canon, err := json.Marshal(payload)
	if err != nil {
		log.Crit("Event payload not serializable", "event", name, "err", err)
	}
	id := crypto.Sha256Hash([]byte(name), []byte(strconv.FormatInt(ts, 10)), canon)
	return &Event{ID: id.Hex(), Name: name, Timestamp: ts, Payload: payload}
}

// IncidentData captures the data collection that opened the procedure.
type IncidentData struct {
	Submitter string                 `json:"submitter"`
	Summary   string                 `json:"summary"`
	Raw       map[string]interface{} `json:"raw_data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// OpsContract drives the incident SOP: it gates data collection and root
// cause proposals on the current phase, advances on consensus and emits the
// event log downstream listeners consume.
//
// The contract owns only procedure bookkeeping; account effects of proposal
// and analysis transactions go through the world state passed per call.
type OpsContract struct {
	mu        sync.RWMutex
	phase     Phase
	incident  *IncidentData
	proposals map[string]*types.Proposal
	currentID string
	events    []*Event

	feed event.FeedOf[*Event]
}

// NewOpsContract returns a contract at phase Init with an empty log.
func NewOpsContract() *OpsContract {
	return &OpsContract{
		phase:     PhaseInit,
		proposals: make(map[string]*types.Proposal),
	}
}

// ProposalID derives the identifier of a proposal from its proposer, the
// submission timestamp and the content.
func ProposalID(proposer common.Address, timestamp int64, content string) string {
	return crypto.Sha256Hash(
		[]byte(proposer.Hex()),
		[]byte(strconv.FormatInt(timestamp, 10)),
		[]byte(content),
	).Hex()
}

// AnalysisID derives the identifier of an analysis document, following the
// same shape as proposal ids.
func AnalysisID(submitter common.Address, timestamp int64, content string) string {
	return crypto.Sha256Hash(
		[]byte(submitter.Hex()),
		[]byte(strconv.FormatInt(timestamp, 10)),
		[]byte(content),
	).Hex()
}

// SubmitDataCollection records the incident data and moves the procedure
// from Init to Data_Collected.
func (c *OpsContract) SubmitDataCollection(submitter, summary string, raw map[string]interface{}) error {
	c.mu.Lock()
	if c.phase != PhaseInit {
		c.mu.Unlock()
		return fmt.Errorf("%w: data collection requires %s, currently %s", ErrInvalidPhase, PhaseInit, c.phase)
	}
	c.phase = PhaseDataCollected
	c.incident = &IncidentData{
		Submitter: submitter,
		Summary:   summary,
		Raw:       raw,
		Timestamp: time.Now().UnixNano(),
	}
	ev := c.appendEvent(EventDataCollected, map[string]interface{}{
		"agent_id": submitter,
		"summary":  summary,
	})
	c.mu.Unlock()

	c.feed.Send(ev)
	log.Info("Incident data collected", "submitter", submitter)
	return nil
}

// HandlePropose registers a root cause proposal: it attaches the proposal to
// the proposer's account, makes it the active proposal and moves the
// procedure to Root_Cause_Proposed. Only legal in Data_Collected.
func (c *OpsContract) HandlePropose(st *state.StateDB, sender common.Address, p *types.ProposePayload, timestamp int64) error {
	c.mu.Lock()
	if c.phase != PhaseDataCollected {
		c.mu.Unlock()
		return fmt.Errorf("%w: proposals require %s, currently %s", ErrInvalidPhase, PhaseDataCollected, c.phase)
	}
	id := ProposalID(sender, timestamp, p.Content)
	prop := &types.Proposal{
		ID:        id,
		Content:   p.Content,
		Proposer:  sender,
		Timestamp: timestamp,
		Status:    types.ProposalPending,
	}

	acc := st.GetOrNewAccount(sender)
	acc.RootCauseProposals[id] = prop
	st.UpdateAccount(acc)

	c.proposals[id] = prop
	c.currentID = id
	c.phase = PhaseRootCauseProposed
	ev := c.appendEvent(EventRootCauseProposed, map[string]interface{}{
		"proposal_id": id,
		"proposer":    sender.Hex(),
		"content":     p.Content,
	})
	c.mu.Unlock()

	c.feed.Send(ev)
	log.Info("Root cause proposed", "proposal", id, "proposer", sender.Hex())
	return nil
}

// HandleAnalysis files an analysis document under the submitter's account.
// Analyses are accepted in any phase.
func (c *OpsContract) HandleAnalysis(st *state.StateDB, sender common.Address, p *types.AnalysisPayload, timestamp int64) error {
	id := AnalysisID(sender, timestamp, p.Content)
	acc := st.GetOrNewAccount(sender)
	acc.Analyses[id] = &types.Analysis{
		ID:        id,
		Content:   p.Content,
		Submitter: sender,
		Timestamp: timestamp,
	}
	st.UpdateAccount(acc)

	log.Debug("Analysis submitted", "analysis", id, "submitter", sender.Hex())
	return nil
}

// Advance resolves the active proposal. On a pass the procedure steps
// through Consensus into Solution; on a rejection it falls back to
// Data_Collected and clears the active proposal so a new one can follow.
// Resolution is only legal in Root_Cause_Proposed and only for the active
// proposal.
func (c *OpsContract) Advance(proposalID string, passed bool) error {
	c.mu.Lock()
	if c.phase != PhaseRootCauseProposed {
		c.mu.Unlock()
		return fmt.Errorf("%w: consensus resolves from %s, currently %s", ErrInvalidPhase, PhaseRootCauseProposed, c.phase)
	}
	if proposalID != c.currentID {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProposalMismatch, proposalID)
	}
	prop := c.proposals[proposalID]

	var evs []*Event
	if passed {
		c.phase = PhaseConsensus
		evs = append(evs, c.appendEvent(EventConsensusReached, map[string]interface{}{
			"proposal_id": proposalID,
			"passed":      true,
		}))
		c.phase = PhaseSolution
		prop.Status = types.ProposalPassed
		evs = append(evs, c.appendEvent(EventSolutionPhaseEntered, map[string]interface{}{
			"proposal_id": proposalID,
			"root_cause":  prop.Content,
		}))
	} else {
		c.phase = PhaseDataCollected
		c.currentID = ""
		prop.Status = types.ProposalRejected
		evs = append(evs, c.appendEvent(EventConsensusReached, map[string]interface{}{
			"proposal_id": proposalID,
			"passed":      false,
		}))
		evs = append(evs, c.appendEvent(EventProposalRejected, map[string]interface{}{
			"proposal_id": proposalID,
			"proposer":    prop.Proposer.Hex(),
		}))
	}
	phase := c.phase
	c.mu.Unlock()

	for _, ev := range evs {
		c.feed.Send(ev)
	}
	log.Info("SOP advanced", "proposal", proposalID, "passed", passed, "phase", phase)
	return nil
}

// appendEvent creates and records an event. Callers hold the write lock.
func (c *OpsContract) appendEvent(name string, payload map[string]interface{}) *Event {
	ev := newEvent(name, payload)
	c.events = append(c.events, ev)
	return ev
}

// Phase returns the current procedure phase.
func (c *OpsContract) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Incident returns a copy of the collected incident data, or nil before
// data collection.
func (c *OpsContract) Incident() *IncidentData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.incident == nil {
		return nil
	}
	cpy := *c.incident
	return &cpy
}

// CurrentProposal returns a copy of the proposal under vote, or nil when no
// proposal is active.
func (c *OpsContract) CurrentProposal() *types.Proposal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prop, ok := c.proposals[c.currentID]
	if !ok {
		return nil
	}
	cpy := *prop
	return &cpy
}

// Proposal returns a copy of a registered proposal by id, or nil when the
// contract never saw it.
func (c *OpsContract) Proposal(id string) *types.Proposal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prop, ok := c.proposals[id]
	if !ok {
		return nil
	}
	cpy := *prop
	return &cpy
}

// Proposals returns copies of all registered proposals, oldest first.
func (c *OpsContract) Proposals() []*types.Proposal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := make([]*types.Proposal, 0, len(c.proposals))
	for _, prop := range c.proposals {
		cpy := *prop
		all = append(all, &cpy)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp != all[j].Timestamp {
			return all[i].Timestamp < all[j].Timestamp
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// Events returns the most recent events, oldest first. A non-positive limit
// selects the default window of 50.
func (c *OpsContract) Events(limit int) []*Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	start := len(c.events) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*Event, len(c.events)-start)
	copy(out, c.events[start:])
	return out
}

// EventsByName returns the most recent events carrying the given name,
// oldest first.
func (c *OpsContract) EventsByName(name string, limit int) []*Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var matched []*Event
	for _, ev := range c.events {
		if ev.Name == name {
			matched = append(matched, ev)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// EventCount returns the length of the event log.
func (c *OpsContract) EventCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// SubscribeEvents delivers every future event to the given channel until
// the subscription is unsubscribed.
func (c *OpsContract) SubscribeEvents(ch chan<- *Event) event.Subscription {
	return c.feed.Subscribe(ch)
}
