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

// Package exporter streams mined blocks and SOP events to Kafka so
// off-chain indexers can follow the chain without polling it.
package exporter

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/ReisenCW/tongji-blockchain/contracts"
	"github.com/ReisenCW/tongji-blockchain/core"
	"github.com/ReisenCW/tongji-blockchain/core/types"
	"github.com/ReisenCW/tongji-blockchain/event"
	"github.com/ReisenCW/tongji-blockchain/log"
)

const (
	DefaultBlockTopic = "tongji.chain.blocks"
	DefaultEventTopic = "tongji.sop.events"
	DefaultPartitions = 1
	DefaultReplicas   = 1

	chainHeadChanSize = 8
	eventChanSize     = 16
)

// Config holds the Kafka endpoint and topic layout. An empty broker list
// disables the exporter.
type Config struct {
	Brokers    []string
	BlockTopic string
	EventTopic string
	Partitions int32
	Replicas   int16
}

// DefaultConfig returns the stock topic layout with no brokers set.
func DefaultConfig() *Config {
	return &Config{
		BlockTopic: DefaultBlockTopic,
		EventTopic: DefaultEventTopic,
		Partitions: DefaultPartitions,
		Replicas:   DefaultReplicas,
	}
}

// Enabled reports whether a broker endpoint is configured.
func (c *Config) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *Config) sanitize() *Config {
	if c.BlockTopic == "" {
		c.BlockTopic = DefaultBlockTopic
	}
	if c.EventTopic == "" {
		c.EventTopic = DefaultEventTopic
	}
	if c.Partitions <= 0 {
		c.Partitions = DefaultPartitions
	}
	if c.Replicas <= 0 {
		c.Replicas = DefaultReplicas
	}
	return c
}

// Exporter publishes chain heads and ops events through an async producer.
// Delivery is best effort: broker errors are logged and dropped, the chain
// never waits for Kafka.
type Exporter struct {
	config   *Config
	producer sarama.AsyncProducer
	chain    *core.BlockChain
	ops      *contracts.OpsContract

	chainHeadCh  chan core.ChainHeadEvent
	chainHeadSub event.Subscription
	eventCh      chan *contracts.Event
	eventSub     event.Subscription

	mu      sync.Mutex
	running bool

	wg   sync.WaitGroup
	quit chan struct{}
}

// New connects an exporter to the given brokers. The producer acknowledges
// on the local broker only and batches with a short flush interval.
func New(config *Config, chain *core.BlockChain, ops *contracts.OpsContract) (*Exporter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.sanitize()

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 500 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, "creating kafka producer")
	}
	return newExporter(config, chain, ops, producer), nil
}

func newExporter(config *Config, chain *core.BlockChain, ops *contracts.OpsContract, producer sarama.AsyncProducer) *Exporter {
	return &Exporter{
		config:   config,
		producer: producer,
		chain:    chain,
		ops:      ops,
		quit:     make(chan struct{}),
	}
}

// Start subscribes to the chain head and ops event feeds and begins
// publishing.
func (e *Exporter) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true

	e.chainHeadCh = make(chan core.ChainHeadEvent, chainHeadChanSize)
	e.chainHeadSub = e.chain.SubscribeChainHead(e.chainHeadCh)
	e.eventCh = make(chan *contracts.Event, eventChanSize)
	e.eventSub = e.ops.SubscribeEvents(e.eventCh)

	e.wg.Add(2)
	go e.loop()
	go e.errorLoop()
	log.Info("Kafka exporter started", "brokers", e.config.Brokers,
		"blockTopic", e.config.BlockTopic, "eventTopic", e.config.EventTopic)
}

// Close unsubscribes, stops the loops and shuts the producer down, flushing
// buffered messages.
func (e *Exporter) Close() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	e.chainHeadSub.Unsubscribe()
	e.eventSub.Unsubscribe()
	close(e.quit)
	e.wg.Wait()

	if err := e.producer.Close(); err != nil {
		return errors.Wrap(err, "closing kafka producer")
	}
	log.Info("Kafka exporter stopped")
	return nil
}

func (e *Exporter) loop() {
	defer e.wg.Done()
	for {
		select {
		case ev := <-e.chainHeadCh:
			e.publishBlock(ev.Block)
		case ev := <-e.eventCh:
			e.publishEvent(ev)
		case <-e.chainHeadSub.Err():
			return
		case <-e.eventSub.Err():
			return
		case <-e.quit:
			return
		}
	}
}

// errorLoop drains the producer error channel so the async producer never
// stalls on an unread error.
func (e *Exporter) errorLoop() {
	defer e.wg.Done()
	for {
		select {
		case perr, ok := <-e.producer.Errors():
			if !ok {
				return
			}
			log.Warn("Kafka publish failed", "topic", perr.Msg.Topic, "err", perr.Err)
		case <-e.quit:
			return
		}
	}
}

func (e *Exporter) publishBlock(block *types.Block) {
	data, err := json.Marshal(block)
	if err != nil {
		log.Error("Failed to encode block for export", "index", block.Index(), "err", err)
		return
	}
	e.producer.Input() <- &sarama.ProducerMessage{
		Topic: e.config.BlockTopic,
		Key:   sarama.StringEncoder(strconv.FormatUint(block.Index(), 10)),
		Value: sarama.ByteEncoder(data),
	}
	log.Debug("Exported block", "index", block.Index(), "txs", len(block.Transactions()))
}

func (e *Exporter) publishEvent(ev *contracts.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error("Failed to encode event for export", "event", ev.ID, "err", err)
		return
	}
	e.producer.Input() <- &sarama.ProducerMessage{
		Topic: e.config.EventTopic,
		Key:   sarama.StringEncoder(ev.ID),
		Value: sarama.ByteEncoder(data),
	}
	log.Debug("Exported event", "event", ev.ID, "name", ev.Name)
}
