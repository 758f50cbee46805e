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

package api

import (
	"bytes"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ReisenCW/tongji-blockchain/common"
	"github.com/ReisenCW/tongji-blockchain/contracts"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/params"
)

// blocksPage is the answer of /api/blocks: one newest-first window plus the
// chain length so pagers can size themselves.
type blocksPage struct {
	Blocks []*types.Block `json:"blocks"`
	Total  uint64         `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", defaultPageLimit)
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	offset := parseQueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	head := s.chain.Height()
	page := blocksPage{Blocks: []*types.Block{}, Total: head + 1, Limit: limit, Offset: offset}
	for i := 0; i < limit; i++ {
		pos := int64(head) - int64(offset) - int64(i)
		if pos < 0 {
			break
		}
		block := s.chain.GetBlock(uint64(pos))
		if block == nil {
			writeError(w, http.StatusInternalServerError, "block %d unreadable", pos)
			return
		}
		page.Blocks = append(page.Blocks, block)
	}
	writeData(w, page)
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block index: %v", err)
		return
	}
	block := s.chain.GetBlock(index)
	if block == nil {
		writeError(w, http.StatusNotFound, "block %d not found", index)
		return
	}
	writeData(w, block)
}

// transactionView pairs a mined transaction with its receipt.
type transactionView struct {
	Transaction *types.Transaction `json:"transaction"`
	BlockIndex  uint64             `json:"block_index"`
	Receipt     *types.Receipt     `json:"receipt"`
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	hash, err := common.ParseHash(mux.Vars(r)["hash"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction hash: %v", err)
		return
	}
	tx, receipt := s.chain.GetTransaction(hash)
	if receipt == nil {
		writeError(w, http.StatusNotFound, "transaction %s not found", hash)
		return
	}
	writeData(w, transactionView{Transaction: tx, BlockIndex: receipt.BlockIndex, Receipt: receipt})
}

// merkleProofView carries everything needed to re-verify a transaction's
// inclusion: the leaf, the sibling path and the committed root.
type merkleProofView struct {
	BlockIndex uint64            `json:"block_index"`
	TxHash     common.Hash       `json:"tx_hash"`
	Leaf       common.Hash       `json:"leaf"`
	Proof      []types.ProofStep `json:"proof"`
	Root       common.Hash       `json:"root"`
	Verified   bool              `json:"verified"`
}

func (s *Server) handleMerkleProof(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.ParseUint(vars["index"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block index: %v", err)
		return
	}
	hash, err := common.ParseHash(vars["hash"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction hash: %v", err)
		return
	}
	block := s.chain.GetBlock(index)
	if block == nil {
		writeError(w, http.StatusNotFound, "block %d not found", index)
		return
	}
	txs := block.Transactions()
	pos := -1
	for i, tx := range txs {
		if tx.Hash() == hash {
			pos = i
			break
		}
	}
	if pos < 0 {
		writeError(w, http.StatusNotFound, "transaction %s not in block %d", hash, index)
		return
	}
	proof, err := types.MerkleProof(txs, pos)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "proof derivation failed: %v", err)
		return
	}
	writeData(w, merkleProofView{
		BlockIndex: index,
		TxHash:     hash,
		Leaf:       hash,
		Proof:      proof,
		Root:       block.MerkleRoot(),
		Verified:   types.VerifyMerkleProof(hash, proof, block.MerkleRoot()),
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending := s.pool.Pending()
	writeData(w, map[string]interface{}{
		"transactions": pending,
		"count":        len(pending),
	})
}

// chainInfo is the summary answered by /api/blockchain/info.
type chainInfo struct {
	ChainName       string      `json:"chain_name"`
	Height          uint64      `json:"height"`
	HeadHash        common.Hash `json:"head_hash"`
	GenesisHash     common.Hash `json:"genesis_hash"`
	PendingCount    int         `json:"pending_count"`
	AccountCount    int         `json:"account_count"`
	TreasuryAddress string      `json:"treasury_address"`
	TreasuryBalance uint64      `json:"treasury_balance"`
	Version         string      `json:"version"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	head := s.chain.CurrentBlock()
	treasury := s.exec.Token().Treasury()

	accounts := 0
	if err := s.state.EachAccount(func(*types.Account) bool {
		accounts++
		return true
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "account scan failed: %v", err)
		return
	}
	writeData(w, chainInfo{
		ChainName:       s.chain.Config().ChainName,
		Height:          head.Index(),
		HeadHash:        head.Hash(),
		GenesisHash:     s.chain.Genesis(),
		PendingCount:    s.pool.Len(),
		AccountCount:    accounts,
		TreasuryAddress: treasury.Hex(),
		TreasuryBalance: s.state.GetBalance(treasury),
		Version:         params.Version,
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	var accounts []*types.Account
	if err := s.state.EachAccount(func(acc *types.Account) bool {
		accounts = append(accounts, acc)
		return true
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "account scan failed: %v", err)
		return
	}
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].Address[:], accounts[j].Address[:]) < 0
	})
	writeData(w, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := common.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address: %v", err)
		return
	}
	acc := s.state.GetAccount(addr)
	if acc == nil {
		writeError(w, http.StatusNotFound, "account %s not found", addr)
		return
	}
	writeData(w, acc)
}

// sopStateView summarises the procedure for the dashboard.
type sopStateView struct {
	Phase           contracts.Phase         `json:"phase"`
	Incident        *contracts.IncidentData `json:"incident,omitempty"`
	CurrentProposal *types.Proposal         `json:"current_proposal,omitempty"`
	ProposalCount   int                     `json:"proposal_count"`
	EventCount      int                     `json:"event_count"`
}

func (s *Server) handleSOPState(w http.ResponseWriter, r *http.Request) {
	ops := s.exec.Ops()
	writeData(w, sopStateView{
		Phase:           ops.Phase(),
		Incident:        ops.Incident(),
		CurrentProposal: ops.CurrentProposal(),
		ProposalCount:   len(ops.Proposals()),
		EventCount:      ops.EventCount(),
	})
}

func (s *Server) handleSOPEvents(w http.ResponseWriter, r *http.Request) {
	ops := s.exec.Ops()
	limit := parseQueryInt(r, "limit", 0)
	var events []*contracts.Event
	if name := r.URL.Query().Get("name"); name != "" {
		events = ops.EventsByName(name, limit)
	} else {
		events = ops.Events(limit)
	}
	if events == nil {
		events = []*contracts.Event{}
	}
	writeData(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleCurrentProposal(w http.ResponseWriter, r *http.Request) {
	prop := s.exec.Ops().CurrentProposal()
	if prop == nil {
		writeError(w, http.StatusNotFound, "no active proposal")
		return
	}
	tally := s.exec.Governance().TallyVotes(s.state, prop.ID)
	writeData(w, map[string]interface{}{
		"proposal": prop,
		"tally":    tally,
	})
}

// votingStatsView is the weighted standing of one proposal.
type votingStatsView struct {
	ProposalID    string                 `json:"proposal_id"`
	Tally         contracts.Tally        `json:"tally"`
	Participating float64                `json:"participating_weight"`
	VoterCount    int                    `json:"voter_count"`
	Votes         map[string]*types.Vote `json:"votes"`
}

func (s *Server) handleVotingStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["proposal"]
	gov := s.exec.Governance()

	records := gov.VoterRecords(s.state, id)
	if len(records) == 0 {
		if _, known := s.state.LookupProposal(id); !known {
			writeError(w, http.StatusNotFound, "proposal %s not found", id)
			return
		}
	}
	votes := make(map[string]*types.Vote, len(records))
	for addr, v := range records {
		votes[addr.Hex()] = v
	}
	tally := gov.TallyVotes(s.state, id)
	writeData(w, votingStatsView{
		ProposalID:    id,
		Tally:         tally,
		Participating: tally.Participating(),
		VoterCount:    len(records),
		Votes:         votes,
	})
}
