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

// Package api exposes the simulated devices over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"github.com/ZaparooProject/go-posdummy/internal/config"
	"github.com/ZaparooProject/go-posdummy/internal/journal"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Events is the journal view used by the events route
type Events interface {
	Recent(ctx context.Context, q journal.Query) ([]journal.Entry, error)
	Stats() journal.Stats
}

// Server serves the device API
type Server struct {
	engine   *gin.Engine
	http     *http.Server
	registry *posdummy.Registry
	events   Events
	stream   http.Handler
	log      *zap.Logger
	done     chan struct{}
	mu       sync.Mutex
}

// Option configures a Server
type Option func(*Server)

// WithEvents serves the journal under /api/events
func WithEvents(e Events) Option {
	return func(s *Server) { s.events = e }
}

// WithStream serves the websocket event stream under /ws
func WithStream(h http.Handler) Option {
	return func(s *Server) { s.stream = h }
}

// WithLogger sets the request logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer builds the router for the devices in registry
func NewServer(cfg config.ServerConfig, registry *posdummy.Registry, opts ...Option) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	s := &Server{
		registry: registry,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)

	api := s.engine.Group("/api")
	{
		api.GET("/devices", s.listDevices)
		api.GET("/devices/:name", s.getDevice)
		api.POST("/devices/:name/abort", s.abortDevice)
		api.GET("/events", s.listEvents)
	}

	if s.stream != nil {
		s.engine.GET("/ws", gin.WrapH(s.stream))
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"devices": len(s.registry.Devices()),
	})
}

func (s *Server) listDevices(c *gin.Context) {
	category := c.Query("category")
	devices := s.registry.Devices()
	if category != "" {
		devices = s.registry.ByCategory(category)
	}

	out := make([]posdummy.Status, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Snapshot())
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": len(out)})
}

func (s *Server) lookup(c *gin.Context) (posdummy.Controller, bool) {
	name := c.Param("name")
	d, ok := s.registry.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("device %q not found", name)})
	}
	return d, ok
}

func (s *Server) getDevice(c *gin.Context) {
	d, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d.Snapshot())
}

func (s *Server) abortDevice(c *gin.Context) {
	d, ok := s.lookup(c)
	if !ok {
		return
	}
	aborted := d.Abort()
	s.log.Info("abort requested", zap.String("device", d.Name()), zap.Bool("aborted", aborted))
	c.JSON(http.StatusOK, gin.H{"aborted": aborted})
}

func (s *Server) listEvents(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}

	q := journal.Query{
		Device: c.Query("device"),
		Kind:   c.Query("kind"),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since", "message": err.Error()})
			return
		}
		q.Since = t
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		q.Limit = n
	}

	entries, err := s.events.Recent(c.Request.Context(), q)
	if err != nil {
		s.log.Error("journal query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "total": len(entries), "stats": s.events.Stats()})
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil, errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}

	done := make(chan struct{})
	s.done = done
	go func() {
		defer close(done)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()
	s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}

// Shutdown stops accepting requests and waits for active ones until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	err := s.http.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}
	if err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
