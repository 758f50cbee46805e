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

// Package api exposes the chain over REST and streams SOP events over a
// websocket. All endpoints are read only; transactions enter through the
// client, not through HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rcrowley/go-metrics"
	"github.com/rs/cors"

	"github.com/ReisenCW/tongji-blockchain/contracts"
	"github.com/ReisenCW/tongji-blockchain/core"
	"github.com/ReisenCW/tongji-blockchain/core/state"
	"github.com/ReisenCW/tongji-blockchain/log"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	shutdownTimeout = 5 * time.Second
)

var requestMeter = metrics.GetOrRegisterMeter("api/requests", metrics.DefaultRegistry)

// Config holds the HTTP endpoint settings.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// Server serves the read API over the wired chain components.
type Server struct {
	config Config
	chain  *core.BlockChain
	pool   *core.TxPool
	state  *state.StateDB
	exec   *contracts.Executor

	srv      *http.Server
	listener net.Listener

	mu      sync.Mutex
	running bool

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewServer wires a server over the given components. Start binds the
// endpoint.
func NewServer(config Config, chain *core.BlockChain, pool *core.TxPool, st *state.StateDB, exec *contracts.Executor) *Server {
	return &Server{
		config: config,
		chain:  chain,
		pool:   pool,
		state:  st,
		exec:   exec,
		quit:   make(chan struct{}),
	}
}

// Start binds the configured endpoint and serves until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	endpoint := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	s.listener = listener
	s.srv = &http.Server{Handler: s.router()}
	s.running = true

	go func() {
		if err := s.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", "err", err)
		}
	}()
	log.Info("HTTP server started", "endpoint", listener.Addr().String())
	return nil
}

// Endpoint returns the bound address, valid after Start.
func (s *Server) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the websocket streams and shuts the HTTP server down
// gracefully.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.quit)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warn("HTTP server shutdown incomplete", "err", err)
	}
	s.wg.Wait()
	log.Info("HTTP server stopped")
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/blocks", s.handleBlocks).Methods(http.MethodGet)
	r.HandleFunc("/api/block/{index:[0-9]+}", s.handleBlock).Methods(http.MethodGet)
	r.HandleFunc("/api/transaction/{hash}", s.handleTransaction).Methods(http.MethodGet)
	r.HandleFunc("/api/merkle-proof/{index:[0-9]+}/{hash}", s.handleMerkleProof).Methods(http.MethodGet)
	r.HandleFunc("/api/pending-transactions", s.handlePending).Methods(http.MethodGet)
	r.HandleFunc("/api/blockchain/info", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts", s.handleAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/account/{address}", s.handleAccount).Methods(http.MethodGet)
	r.HandleFunc("/api/sop/state", s.handleSOPState).Methods(http.MethodGet)
	r.HandleFunc("/api/sop/events", s.handleSOPEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/sop/current-proposal", s.handleCurrentProposal).Methods(http.MethodGet)
	r.HandleFunc("/api/voting-stats/{proposal}", s.handleVotingStats).Methods(http.MethodGet)
	r.HandleFunc("/api/ws/events", s.handleEventsWS)
	r.Use(meterRequests)
	return newCorsHandler(r, s.config.AllowedOrigins)
}

func meterRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestMeter.Mark(1)
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("Served API request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func newCorsHandler(srv http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		return srv
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet},
		MaxAge:         600,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(srv)
}

// apiResponse is the envelope every endpoint answers with.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, apiResponse{Success: false, Error: fmt.Sprintf(format, args...)})
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Debug("Failed to write API response", "err", err)
	}
}

// parseQueryInt reads an integer query parameter, falling back to def when
// absent or malformed.
func parseQueryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
