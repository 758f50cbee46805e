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
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/ReisenCW/tongji-blockchain/node"
)

// tongjiConfig is the TOML file layout. Flags override file values.
type tongjiConfig struct {
	Node *node.Config
}

// tomlSettings mirrors the field naming of the config structs and rejects
// unknown keys, so typos in config files fail loudly instead of being
// silently dropped.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		id := fmt.Sprintf("%s.%s", rt.String(), field)
		if !unicode.IsUpper(rune(field[0])) {
			return fmt.Errorf("config field '%s' must start with an uppercase letter", id)
		}
		return fmt.Errorf("config field '%s' is not defined", id)
	},
}

// loadConfig builds the node configuration: defaults, then the optional
// TOML file, then the command line flags on top.
func loadConfig(ctx *cli.Context) (*tongjiConfig, error) {
	cfg := &tongjiConfig{Node: node.DefaultConfig()}

	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadTOML(file, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", file, err)
		}
	}
	applyFlags(ctx, cfg.Node)
	return cfg, nil
}

func loadTOML(file string, cfg *tongjiConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return tomlSettings.NewDecoder(f).Decode(cfg)
}

// applyFlags copies explicitly set command line flags over the config.
func applyFlags(ctx *cli.Context, cfg *node.Config) {
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(httpEnabledFlag.Name) {
		cfg.HTTPEnabled = ctx.Bool(httpEnabledFlag.Name)
	}
	if ctx.IsSet(httpAddrFlag.Name) {
		cfg.HTTPHost = ctx.String(httpAddrFlag.Name)
	}
	if ctx.IsSet(httpPortFlag.Name) {
		cfg.HTTPPort = ctx.Int(httpPortFlag.Name)
	}
	if ctx.IsSet(httpCORSFlag.Name) {
		cfg.AllowedOrigins = ctx.StringSlice(httpCORSFlag.Name)
	}
	if ctx.IsSet(kafkaBrokersFlag.Name) {
		cfg.Kafka.Brokers = ctx.StringSlice(kafkaBrokersFlag.Name)
	}
	if ctx.IsSet(kafkaBlockTopicFlag.Name) {
		cfg.Kafka.BlockTopic = ctx.String(kafkaBlockTopicFlag.Name)
	}
	if ctx.IsSet(kafkaEventTopicFlag.Name) {
		cfg.Kafka.EventTopic = ctx.String(kafkaEventTopicFlag.Name)
	}
}
