// go-posdummy
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-posdummy.
//
// go-posdummy is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-posdummy is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-posdummy; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package hub streams device events to websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types
const (
	TypeConnected = "connected"
	TypeEvent     = "event"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeSubscribe = "subscribe"
	TypeError     = "error"
)

// Message is the frame exchanged with clients
type Message struct {
	Data      json.RawMessage `json:"data,omitempty"`
	Type      string          `json:"type"`
	Devices   []string        `json:"devices,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// EventData is the payload of an event message
type EventData struct {
	Time      time.Time `json:"time"`
	Payload   any       `json:"payload,omitempty"`
	Device    string    `json:"device"`
	Category  string    `json:"category"`
	Kind      string    `json:"kind"`
	Operation string    `json:"operation,omitempty"`
	Error     string    `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type broadcast struct {
	device string
	frame  []byte
}

// Hub fans events out to connected clients
type Hub struct {
	log        *zap.Logger
	clients    map[string]*Client
	runner     *posdummy.Runner
	broadcast  chan broadcast
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	dropped    atomic.Int64
}

// New creates a hub and starts its loop
func New(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		log:        log,
		clients:    make(map[string]*Client),
		broadcast:  make(chan broadcast, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	h.runner = posdummy.NewRunner(h.run)
	h.runner.Start()
	return h
}

func (h *Hub) run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, c := range h.clients {
			delete(h.clients, id)
			close(c.send)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.log.Debug("websocket client connected", zap.String("client_id", c.ID))
			c.queue(newMessage(TypeConnected, map[string]string{"id": c.ID}))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Debug("websocket client disconnected", zap.String("client_id", c.ID))

		case b := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				if c.wants(b.device) && !c.queue(b.frame) {
					h.dropped.Add(1)
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			return
		}
	}
}

// OnEvent broadcasts ev to every subscribed client without blocking
func (h *Hub) OnEvent(ev posdummy.Event) {
	data := EventData{
		Time:     ev.Time,
		Payload:  ev.Payload,
		Device:   ev.Device,
		Category: ev.Category,
		Kind:     ev.Kind.String(),
	}
	if ev.Operation != uuid.Nil {
		data.Operation = ev.Operation.String()
	}
	if ev.Err != nil {
		data.Error = ev.Err.Error()
	}
	frame := newMessage(TypeEvent, data)
	if frame == nil {
		h.log.Warn("failed to encode event", zap.String("device", ev.Device))
		return
	}

	select {
	case h.broadcast <- broadcast{device: ev.Device, frame: frame}:
	case <-h.done:
	default:
		h.dropped.Add(1)
	}
}

// ServeHTTP upgrades the request and attaches the connection as a client.
// A repeated device query parameter restricts the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(h, conn, r.URL.Query()["device"])
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many frames were discarded for slow clients
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client and stops the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.runner.Stop()
	})
}

func newMessage(typ string, data any) []byte {
	msg := Message{Type: typ, Timestamp: time.Now().Unix()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil
		}
		msg.Data = raw
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return frame
}
