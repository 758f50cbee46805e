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

// tongji is the command line entry point of the chain: it runs a node,
// replays the demo incident scenario and inspects existing data directories.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ReisenCW/tongji-blockchain/log"
	"github.com/ReisenCW/tongji-blockchain/node"
	"github.com/ReisenCW/tongji-blockchain/params"
)

var (
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the database and treasury key (in-memory if empty)",
	}
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: crit, error, warn, info, debug, trace",
		Value: "info",
	}
	httpEnabledFlag = &cli.BoolFlag{
		Name:  "http",
		Usage: "Enable the read-only HTTP API (with the websocket event stream)",
		Value: true,
	}
	httpAddrFlag = &cli.StringFlag{
		Name:  "http.addr",
		Usage: "HTTP API listening interface",
		Value: node.DefaultHTTPHost,
	}
	httpPortFlag = &cli.IntFlag{
		Name:  "http.port",
		Usage: "HTTP API listening port",
		Value: node.DefaultHTTPPort,
	}
	httpCORSFlag = &cli.StringSliceFlag{
		Name:  "http.corsdomain",
		Usage: "Comma separated list of domains to accept cross origin requests from",
	}
	kafkaBrokersFlag = &cli.StringSliceFlag{
		Name:  "kafka.brokers",
		Usage: "Kafka broker endpoints for the chain data exporter (disabled if empty)",
	}
	kafkaBlockTopicFlag = &cli.StringFlag{
		Name:  "kafka.blocktopic",
		Usage: "Kafka topic receiving mined blocks",
	}
	kafkaEventTopicFlag = &cli.StringFlag{
		Name:  "kafka.eventtopic",
		Usage: "Kafka topic receiving SOP events",
	}
)

func main() {
	app := &cli.App{
		Name:    "tongji",
		Usage:   "permissioned root-cause-analysis blockchain node",
		Version: params.VersionWithMeta,
		Flags: []cli.Flag{
			dataDirFlag,
			configFileFlag,
			verbosityFlag,
			httpEnabledFlag,
			httpAddrFlag,
			httpPortFlag,
			httpCORSFlag,
			kafkaBrokersFlag,
			kafkaBlockTopicFlag,
			kafkaEventTopicFlag,
		},
		Before: func(ctx *cli.Context) error {
			return setupLogging(ctx)
		},
		Action: runNode,
		Commands: []*cli.Command{
			demoCommand,
			inspectCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging configures the root logger from the verbosity flag.
func setupLogging(ctx *cli.Context) error {
	lvl, err := log.LvlFromString(ctx.String(verbosityFlag.Name))
	if err != nil {
		return err
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.TerminalHandler()))
	return nil
}

// runNode is the default action: assemble a node from flags and config file
// and serve until interrupted.
func runNode(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	n, err := node.New(cfg.Node)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		n.Stop()
		return err
	}
	defer n.Stop()

	if ep := n.HTTPEndpoint(); ep != "" {
		log.Info("Read API available", "endpoint", "http://"+ep+"/api")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("Shutting down", "signal", s)
	return nil
}
