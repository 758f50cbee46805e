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
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ReisenCW/tongji-blockchain/contracts"
	"github.com/ReisenCW/tongji-blockchain/event"
	"github.com/ReisenCW/tongji-blockchain/log"
)

const (
	// wsWriteWait is the deadline for a single websocket write.
	wsWriteWait = 10 * time.Second

	// wsPongWait is how long a peer may stay silent before the stream is
	// considered dead. Pings go out at a fraction of it.
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10

	// wsEventBuffer is the per-connection event backlog. Slow consumers
	// that fall further behind are disconnected rather than blocking the
	// ops contract feed.
	wsEventBuffer = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The read API is open; the websocket stream follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleEventsWS upgrades the connection and streams every SOP event emitted
// from now on as a JSON message.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	events := make(chan *contracts.Event, wsEventBuffer)
	sub := s.exec.Ops().SubscribeEvents(events)

	s.wg.Add(2)
	go s.wsWritePump(conn, events, sub)
	go s.wsReadPump(conn)
	log.Debug("Websocket event stream opened", "remote", r.RemoteAddr)
}

// wsWritePump pushes events and keepalive pings until the subscription or
// the connection dies, or the server stops.
func (s *Server) wsWritePump(conn *websocket.Conn, events chan *contracts.Event, sub event.Subscription) {
	defer s.wg.Done()
	defer sub.Unsubscribe()
	defer conn.Close()

	pinger := time.NewTicker(wsPingPeriod)
	defer pinger.Stop()

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("Websocket event write failed", "err", err)
				return
			}
		case <-sub.Err():
			return
		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.quit:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

// wsReadPump discards inbound frames, keeping the pong handler fed so dead
// peers time out. It exits when the peer closes or the deadline lapses,
// which also tears down the writer through the closed connection.
func (s *Server) wsReadPump(conn *websocket.Conn) {
	defer s.wg.Done()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}
