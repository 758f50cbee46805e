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

package node

import (
	"github.com/ReisenCW/tongji-blockchain/core"
	"github.com/ReisenCW/tongji-blockchain/datasync/exporter"
	"github.com/ReisenCW/tongji-blockchain/params"
)

const (
	// DefaultHTTPHost is the interface the read API binds to.
	DefaultHTTPHost = "127.0.0.1"

	// DefaultHTTPPort is the TCP port of the read API.
	DefaultHTTPPort = 5000

	// DefaultStateCacheMiB sizes the account read cache of the state
	// database.
	DefaultStateCacheMiB = 16

	// treasuryKeyName is the key file created under the data directory on
	// first start.
	treasuryKeyName = "treasury.key"

	// chaindataDirName is the database subdirectory under the data
	// directory.
	chaindataDirName = "chaindata"
)

// Config collects the runtime settings of a node. The zero value is not
// usable; start from DefaultConfig and override.
type Config struct {
	// DataDir is the root of the key file and the chain database. Empty
	// selects a fully in-memory node with an ephemeral treasury key.
	DataDir string

	// HTTPHost/HTTPPort locate the read API. HTTPEnabled gates it.
	HTTPEnabled bool
	HTTPHost    string
	HTTPPort    int

	// AllowedOrigins is the CORS whitelist of the read API. Empty disables
	// CORS handling entirely.
	AllowedOrigins []string

	// Chain overrides the protocol ruleset, nil for defaults.
	Chain *params.ChainConfig

	// Genesis overrides block zero and the initial allocation. Nil selects
	// the default genesis funding the node's treasury. Ignored when the
	// database already holds a chain.
	Genesis *core.Genesis

	// TreasuryKeyFile overrides the treasury key location. Relative paths
	// resolve inside DataDir.
	TreasuryKeyFile string

	// TxPool configures mempool admission.
	TxPool core.TxPoolConfig

	// StateCacheMiB sizes the account read cache.
	StateCacheMiB int

	// DatabaseCache and DatabaseHandles tune the LevelDB backend.
	DatabaseCache   int
	DatabaseHandles int

	// Kafka configures the chain data exporter. Nil or brokerless disables
	// it.
	Kafka *exporter.Config
}

// DefaultConfig returns the stock node settings: local HTTP endpoint,
// default pool and economy, exporter disabled.
func DefaultConfig() *Config {
	return &Config{
		HTTPEnabled:   true,
		HTTPHost:      DefaultHTTPHost,
		HTTPPort:      DefaultHTTPPort,
		Chain:         params.DefaultChainConfig(),
		TxPool:        core.DefaultTxPoolConfig,
		StateCacheMiB: DefaultStateCacheMiB,
		Kafka:         exporter.DefaultConfig(),
	}
}

// sanitize fills gaps with defaults and returns the config for chaining.
func (c *Config) sanitize() *Config {
	if c.HTTPHost == "" {
		c.HTTPHost = DefaultHTTPHost
	}
	if c.HTTPPort <= 0 {
		c.HTTPPort = DefaultHTTPPort
	}
	if c.Chain == nil {
		c.Chain = params.DefaultChainConfig()
	}
	c.Chain.Sanitize()
	if c.StateCacheMiB <= 0 {
		c.StateCacheMiB = DefaultStateCacheMiB
	}
	if c.Kafka == nil {
		c.Kafka = exporter.DefaultConfig()
	}
	return c
}
