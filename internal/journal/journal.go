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

// Package journal persists device events in a SQL database.
//
// The journal is a posdummy.Listener meant to be installed as an observer
// on every device. Events are queued without blocking the device and
// written by a background writer.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Entry is one journaled event
type Entry struct {
	Time      time.Time `gorm:"index" json:"time"`
	Device    string    `gorm:"index;size:64" json:"device"`
	Category  string    `gorm:"size:32" json:"category"`
	Kind      string    `gorm:"size:16" json:"kind"`
	Operation string    `gorm:"size:36" json:"operation,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Error     string    `json:"error,omitempty"`
	ID        uint      `gorm:"primaryKey" json:"id"`
	Dropped   bool      `json:"dropped"`
}

// Stats counts journal activity
type Stats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// Journal writes events to the database
type Journal struct {
	db      *gorm.DB
	log     *zap.Logger
	runner  *posdummy.Runner
	queue   chan posdummy.Event
	retain  int
	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// Option configures a Journal
type Option func(*Journal)

// WithLogger sets the logger for write failures
func WithLogger(log *zap.Logger) Option {
	return func(j *Journal) {
		if log != nil {
			j.log = log
		}
	}
}

// WithRetain keeps at most n entries; zero keeps everything
func WithRetain(n int) Option {
	return func(j *Journal) { j.retain = n }
}

// WithQueueSize sets how many events may wait for the writer
func WithQueueSize(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.queue = make(chan posdummy.Event, n)
		}
	}
}

// Open opens the sqlite database at dsn, migrates the schema and starts the
// writer
func Open(dsn string, opts ...Option) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get journal database: %w", err)
	}
	// sqlite allows one writer; a single connection also keeps :memory:
	// databases alive across queries
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	j := &Journal{
		db:    db,
		log:   zap.NewNop(),
		queue: make(chan posdummy.Event, 256),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.runner = posdummy.NewRunner(j.write)
	j.runner.Start()
	return j, nil
}

// OnEvent queues ev for writing. A full queue drops the event.
func (j *Journal) OnEvent(ev posdummy.Event) {
	select {
	case j.queue <- ev:
	default:
		j.dropped.Add(1)
	}
}

// Stats returns the journal counters
func (j *Journal) Stats() Stats {
	return Stats{
		Written: j.written.Load(),
		Dropped: j.dropped.Load(),
		Failed:  j.failed.Load(),
	}
}

func (j *Journal) write(ctx context.Context) {
	for {
		select {
		case ev := <-j.queue:
			j.store(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-j.queue:
					j.store(ev)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) store(ev posdummy.Event) {
	entry := Entry{
		Time:     ev.Time,
		Device:   ev.Device,
		Category: ev.Category,
		Kind:     ev.Kind.String(),
		Dropped:  ev.Dropped,
	}
	if ev.Operation != uuid.Nil {
		entry.Operation = ev.Operation.String()
	}
	if ev.Err != nil {
		entry.Error = ev.Err.Error()
	}
	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			raw, _ = json.Marshal(fmt.Sprint(ev.Payload))
		}
		entry.Payload = string(raw)
	}

	if err := j.db.Create(&entry).Error; err != nil {
		j.failed.Add(1)
		j.log.Warn("failed to journal event", zap.String("device", ev.Device), zap.Error(err))
		return
	}
	if j.retain > 0 && entry.ID%100 == 0 {
		j.prune(entry.ID)
	}
	j.written.Add(1)
}

// prune deletes all but the newest retain entries
func (j *Journal) prune(last uint) {
	if last <= uint(j.retain) {
		return
	}
	if err := j.db.Where("id <= ?", last-uint(j.retain)).Delete(&Entry{}).Error; err != nil {
		j.log.Warn("failed to prune journal", zap.Error(err))
	}
}

// Query selects journal entries
type Query struct {
	Device string
	Kind   string
	Since  time.Time
	Limit  int
}

// Recent returns matching entries, newest first. Events still waiting for
// the writer are not included.
func (j *Journal) Recent(ctx context.Context, q Query) ([]Entry, error) {
	tx := j.db.WithContext(ctx).Order("id desc")
	if q.Device != "" {
		tx = tx.Where("device = ?", q.Device)
	}
	if q.Kind != "" {
		tx = tx.Where("kind = ?", q.Kind)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("time >= ?", q.Since)
	}
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var out []Entry
	if err := tx.Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	return out, nil
}

// Close stops the writer after it wrote the queued events and closes the
// database
func (j *Journal) Close() error {
	j.runner.Stop()
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
