// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package longterm implements the durable, queryable long-term memory store.
//
// The backing engine is BadgerDB: embedded, low-latency, and durable to a
// per-project directory, so a later session over the same project reopens
// the same store. Badger owns durability and write atomicity; this package
// owns session-scoped routing, input validation, the record/index key
// scheme, graph traversal, and aggregate stats.
package longterm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// EngineConfig holds configuration for the embedded Badger engine.
type EngineConfig struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string

	// InMemory disables disk persistence. Used by tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives Badger's internal logs. Nil disables them.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC. Ignored for in-memory databases.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable ratio before GC rewrites
	// a value log file.
	GCDiscardRatio float64
}

// DefaultEngineConfig returns production defaults for the engine.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryEngineConfig returns an engine configuration for tests.
func InMemoryEngineConfig() EngineConfig {
	return EngineConfig{
		InMemory:   true,
		SyncWrites: false,
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// engine wraps a Badger instance with GC lifecycle management.
type engine struct {
	db     *badger.DB
	stopGC chan struct{}
	doneGC chan struct{}
}

// openEngine opens the Badger database described by cfg.
//
// Description:
//
//	Creates the directory when missing, applies sync and logging
//	options, and starts the periodic value log GC goroutine when
//	configured. Callers must Close the engine when done.
func openEngine(cfg EngineConfig) (*engine, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	e := &engine{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		e.stopGC = make(chan struct{})
		e.doneGC = make(chan struct{})
		go e.runGC(cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return e, nil
}

func (e *engine) runGC(interval time.Duration, ratio float64, logger *slog.Logger) {
	defer close(e.doneGC)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopGC:
			return
		case <-ticker.C:
			err := e.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// close stops GC and closes the database.
func (e *engine) close() error {
	if e.stopGC != nil {
		close(e.stopGC)
		<-e.doneGC
	}
	return e.db.Close()
}

// update runs fn inside a read-write transaction.
func (e *engine) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := e.db.NewTransaction(true)
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// view runs fn inside a read-only transaction.
func (e *engine) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := e.db.NewTransaction(false)
	defer txn.Discard()
	return fn(txn)
}
