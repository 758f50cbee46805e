// Copyright 2025 The tongji-blockchain Authors
// This file is part of tongji-blockchain.
//
// tongji-blockchain is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// tongji-blockchain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with tongji-blockchain. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/ReisenCW/tongji-blockchain/client"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/crypto"
	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/node"
	"github.com/ReisenCW/tongji-blockchain/reward"
)

var demoCommand = &cli.Command{
	Name:   "demo",
	Usage:  "Run the end-to-end incident scenario on a fresh in-memory chain",
	Action: runDemo,
	Description: `Walks the complete root-cause-analysis flow with three agents:
data collection, staking, a root cause proposal, weighted voting to
consensus and the reward settlement, then prints the resulting chain and
account balances.`,
}

// settlementTimeout bounds the wait for the asynchronous reward block.
const settlementTimeout = 10 * time.Second

func runDemo(ctx *cli.Context) error {
	cfg := node.DefaultConfig()
	cfg.HTTPEnabled = false
	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		n.Stop()
		return err
	}
	defer n.Stop()

	settlements := make(chan reward.SettlementEvent, 1)
	sub := n.RewardEngine().SubscribeSettlements(settlements)
	defer sub.Unsubscribe()

	agents := make([]*client.Client, 0, 3)
	for _, name := range []string{"monitor-agent", "network-agent", "database-agent"} {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		c := client.New(n, key, name)
		if err := n.FundAccount(c.Address(), 100_000); err != nil {
			return fmt.Errorf("funding %s: %w", name, err)
		}
		agents = append(agents, c)
	}
	monitor, network, database := agents[0], agents[1], agents[2]

	log.Info("Collecting incident data", "agent", monitor.Name())
	if err := monitor.SubmitDataCollection(
		"API error rate spiked to 14% at 02:13 UTC", map[string]interface{}{
			"service":    "payments-api",
			"error_rate": 0.14,
			"p99_ms":     8200,
		}); err != nil {
		return err
	}

	if _, err := network.Stake(2000); err != nil {
		return err
	}
	if _, err := database.Stake(1000); err != nil {
		return err
	}

	if _, err := network.SubmitAnalysis("no packet loss on the service mesh, latency originates below the app tier"); err != nil {
		return err
	}

	log.Info("Proposing root cause", "agent", database.Name())
	pid, receipt, err := database.ProposeRootCause(
		"connection pool exhaustion on the primary database after the 02:00 deploy")
	if err != nil {
		return err
	}
	if receipt.Failed() {
		return fmt.Errorf("proposal rejected: %s", receipt.Error)
	}

	// The supporting votes carry the majority; the proposal resolves on the
	// second one.
	if _, err := monitor.Vote(pid, types.VoteFor); err != nil {
		return err
	}
	if _, err := network.Vote(pid, types.VoteFor); err != nil {
		return err
	}

	status, err := database.CheckConsensus(pid)
	if err != nil {
		return err
	}
	log.Info("Consensus checked", "proposal", pid, "passed", status.Passed,
		"for", status.Tally.For, "against", status.Tally.Against)

	select {
	case ev := <-settlements:
		log.Info("Rewards settled", "block", ev.Block.Index(), "txs", len(ev.Txs))
	case <-time.After(settlementTimeout):
		return fmt.Errorf("reward settlement did not arrive within %s", settlementTimeout)
	}

	printChain(n)
	printAccounts(n)
	fmt.Printf("\nSOP phase: %s\n", n.Ops().Phase())
	for _, ev := range n.Ops().Events(0) {
		fmt.Printf("  %-22s %s\n", ev.Name, ev.ID[:16])
	}
	return nil
}

func printChain(n *node.Node) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Index", "Txs", "Hash", "Merkle Root"})
	for i := uint64(0); i <= n.Chain().Height(); i++ {
		block := n.Chain().GetBlock(i)
		if block == nil {
			continue
		}
		table.Append([]string{
			fmt.Sprintf("%d", block.Index()),
			fmt.Sprintf("%d", len(block.Transactions())),
			block.Hash().Hex()[:16],
			block.MerkleRoot().Hex()[:16],
		})
	}
	fmt.Println("\nChain:")
	table.Render()
}

func printAccounts(n *node.Node) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Address", "Balance", "Stake", "Reputation", "Nonce"})
	err := n.State().EachAccount(func(acc *types.Account) bool {
		table.Append([]string{
			acc.Name,
			acc.Address.Hex()[:16],
			fmt.Sprintf("%d", acc.Balance),
			fmt.Sprintf("%d", acc.Stake),
			fmt.Sprintf("%d", acc.Reputation),
			fmt.Sprintf("%d", acc.Nonce),
		})
		return true
	})
	if err != nil {
		log.Warn("Account listing truncated", "err", err)
	}
	fmt.Println("\nAccounts:")
	table.Render()
}
