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

	"github.com/urfave/cli/v2"

	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/node"
)

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "Print the chain and account state of an existing data directory",
	ArgsUsage: "<datadir>",
	Action:    runInspect,
	Flags:     []cli.Flag{dataDirFlag},
	Description: `Opens the database of a stopped node, replays no transactions and
mines no blocks: it verifies the hash links and Merkle roots of the stored
chain and prints the block and account tables.`,
}

func runInspect(ctx *cli.Context) error {
	datadir := ctx.String(dataDirFlag.Name)
	if datadir == "" {
		datadir = ctx.Args().First()
	}
	if datadir == "" {
		return fmt.Errorf("inspect needs a data directory, none given")
	}
	if _, err := os.Stat(datadir); err != nil {
		return fmt.Errorf("data directory %s: %w", datadir, err)
	}

	cfg := node.DefaultConfig()
	cfg.DataDir = datadir
	cfg.HTTPEnabled = false
	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	defer n.Stop()

	head := n.Chain().CurrentBlock()
	fmt.Printf("Chain:    %s\n", n.Chain().Config().ChainName)
	fmt.Printf("Height:   %d\n", n.Chain().Height())
	fmt.Printf("Head:     %s\n", head.Hash().Hex())
	fmt.Printf("Genesis:  %s\n", n.Chain().Genesis().Hex())
	fmt.Printf("Treasury: %s\n\n", n.TreasuryAddress().Hex())

	if err := n.Chain().ValidateChain(); err != nil {
		log.Error("Chain validation failed", "err", err)
		return err
	}
	log.Info("Chain validated", "blocks", n.Chain().Height()+1)

	printChain(n)
	printAccounts(n)
	return nil
}
