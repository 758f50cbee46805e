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
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ReisenCW/tongji-blockchain/common"
)

// Payload is the typed body of a transaction. The set of payloads is closed:
// each transaction type maps to exactly one payload shape.
type Payload interface {
	// canonicalMap returns the payload in the key/value form entering the
	// canonical transaction encoding.
	canonicalMap() map[string]interface{}
}

// VoteOption is an agent's stance on a root cause proposal.
type VoteOption string

const (
	VoteFor     VoteOption = "for"
	VoteAgainst VoteOption = "against"
	VoteAbstain VoteOption = "abstain"
)

// Valid reports whether v is a castable option.
func (v VoteOption) Valid() bool {
	switch v {
	case VoteFor, VoteAgainst, VoteAbstain:
		return true
	}
	return false
}

func (v VoteOption) String() string { return string(v) }

// TransferPayload moves tokens from the sender to a recipient.
type TransferPayload struct {
	Recipient common.Address `json:"recipient"`
	Amount    uint64         `json:"amount"`
}

func (p *TransferPayload) canonicalMap() map[string]interface{} {
	return map[string]interface{}{
		"recipient": p.Recipient.Hex(),
		"amount":    p.Amount,
	}
}

// StakePayload converts sender balance into stake.
type StakePayload struct {
	Amount uint64 `json:"amount"`
}

func (p *StakePayload) canonicalMap() map[string]interface{} {
	return map[string]interface{}{"amount": p.Amount}
}

// SlashPayload burns part of the target's stake. Treasury only.
type SlashPayload struct {
	Target common.Address `json:"target"`
	Amount uint64         `json:"amount"`
}

func (p *SlashPayload) canonicalMap() map[string]interface{} {
	return map[string]interface{}{
		"target": p.Target.Hex(),
		"amount": p.Amount,
	}
}

// VotePayload casts a weighted vote on a proposal.
type VotePayload struct {
	ProposalID string     `json:"proposal_id"`
	Option     VoteOption `json:"vote_option"`
}

func (p *VotePayload) canonicalMap() map[string]interface{} {
	return map[string]interface{}{
		"proposal_id": p.ProposalID,
		"vote_option": string(p.Option),
	}
}

// ProposePayload submits a root cause candidate.
type ProposePayload struct {
	Content string `json:"proposal_content"`
}

func (p *ProposePayload) canonicalMap() map[string]interface{} {
	return map[string]interface{}{"proposal_content": p.Content}
}

// AnalysisPayload records an incident analysis document.
type AnalysisPayload struct {
	Content string `json:"analysis_content"`
}

func (p *AnalysisPayload) canonicalMap() map[string]interface{} {
	return map[string]interface{}{"analysis_content": p.Content}
}

// RewardPayload credits a target from the treasury with tokens and
// reputation. Treasury only.
type RewardPayload struct {
	Target          common.Address `json:"target"`
	Amount          uint64         `json:"amount"`
	ReputationDelta int64          `json:"reputation_delta"`
	Reason          string         `json:"reason"`
}

func (p *RewardPayload) canonicalMap() map[string]interface{} {
	return map[string]interface{}{
		"target":           p.Target.Hex(),
		"amount":           p.Amount,
		"reputation_delta": p.ReputationDelta,
		"reason":           p.Reason,
	}
}

// PenaltyPayload debits a target towards the treasury and applies a signed
// reputation delta. Treasury only.
type PenaltyPayload struct {
	Target          common.Address `json:"target"`
	Amount          uint64         `json:"amount"`
	ReputationDelta int64          `json:"reputation_delta"`
	Reason          string         `json:"reason"`
}

func (p *PenaltyPayload) canonicalMap() map[string]interface{} {
	return map[string]interface{}{
		"target":           p.Target.Hex(),
		"amount":           p.Amount,
		"reputation_delta": p.ReputationDelta,
		"reason":           p.Reason,
	}
}

// decodePayload parses the data body of a transaction strictly: the shape
// must match the transaction type exactly, unknown fields are errors.
func decodePayload(t TxType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("transaction type %q: missing data", t)
	}
	var p Payload
	switch t {
	case TxTransfer:
		p = new(TransferPayload)
	case TxStake:
		p = new(StakePayload)
	case TxSlash:
		p = new(SlashPayload)
	case TxVote:
		p = new(VotePayload)
	case TxProposeRootCause:
		p = new(ProposePayload)
	case TxSubmitAnalysis:
		p = new(AnalysisPayload)
	case TxReward:
		p = new(RewardPayload)
	case TxPenalty:
		p = new(PenaltyPayload)
	default:
		return nil, fmt.Errorf("unknown transaction type %q", t)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("transaction type %q: %v", t, err)
	}
	return p, nil
}
