// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session manages the per-session memory instances.
//
// Each session owns an in-memory working context and staging buffer that
// die with it, plus a handle onto the per-project durable store. The
// durable store is shared at the filesystem level: a later session over the
// same project reopens the same Badger directory and sees its records.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/assembler"
	"github.com/AleutianAI/AleutianMemory/services/memory/longterm"
	"github.com/AleutianAI/AleutianMemory/services/memory/pending"
	"github.com/AleutianAI/AleutianMemory/services/memory/promotion"
	"github.com/AleutianAI/AleutianMemory/services/memory/scoring"
	"github.com/AleutianAI/AleutianMemory/services/memory/working"
)

// idPattern constrains session and project ids: they become log fields and
// filesystem path segments, so the character set is closed and path
// separators are unrepresentable.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// IsValidID reports whether s is an acceptable session or project id.
func IsValidID(s string) bool {
	return idPattern.MatchString(s) && s != "." && s != ".."
}

// Config configures a session manager.
type Config struct {
	// DataDir is the root directory for per-project durable stores.
	DataDir string `json:"data_dir" validate:"required"`

	// Scoring configures each session's importance scorer.
	Scoring scoring.Config `json:"scoring"`

	// Staging configures each session's pending buffer.
	Staging pending.Config `json:"staging"`

	// Promotion configures each session's promotion engine.
	Promotion promotion.Config `json:"promotion"`

	// PromotionInterval enables periodic promotion runs per session.
	// Zero disables the ticker.
	PromotionInterval time.Duration `json:"promotion_interval"`

	// MaxRecords is the durable ceiling per project store. Zero applies
	// the store default.
	MaxRecords int `json:"max_records"`

	// SyncWrites enables synchronous Badger writes.
	SyncWrites bool `json:"sync_writes"`
}

// DefaultConfig returns production defaults for the manager.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:    dataDir,
		Scoring:    scoring.DefaultConfig(),
		Staging:    pending.DefaultConfig(),
		Promotion:  promotion.DefaultConfig(),
		SyncWrites: true,
	}
}

// Session is one live session's memory instances.
//
// Thread Safety: Safe for concurrent use. Component-level locks serialize
// mutation; the session adds no state of its own beyond identity.
type Session struct {
	// ID is the session's identifier.
	ID string

	// ProjectID routes the session to its durable store.
	ProjectID string

	// CreatedAt is when the session was opened.
	CreatedAt time.Time

	// Working is the session's working-context buffer.
	Working *working.Context

	// Staging is the session's promotion staging buffer.
	Staging *pending.Buffer

	// Store is the per-project durable store.
	Store *longterm.Store

	// Scorer is the session's importance scorer cell.
	Scorer *scoring.Cell

	// Promoter drives promotion runs for this session.
	Promoter *promotion.Runner

	// Assembler builds budgeted context for this session.
	Assembler *assembler.Assembler

	cancelTicker context.CancelFunc
}

// Manager owns the live sessions and their project stores.
//
// Thread Safety: Safe for concurrent use.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	metrics *promotion.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	stores   map[string]*projectStore
	closed   bool
}

// projectStore reference-counts a shared per-project store so it closes
// only when its last session tears down.
type projectStore struct {
	store *longterm.Store
	refs  int
}

// NewManager creates a session manager.
//
// Inputs:
//
//	cfg - Manager configuration; DataDir is required
//	metrics - Promotion metrics shared across sessions; nil disables them
//	logger - Logger; nil falls back to slog.Default()
func NewManager(cfg Config, metrics *promotion.Metrics, logger *slog.Logger) (*Manager, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	if cfg.Scoring == (scoring.Config{}) {
		cfg.Scoring = scoring.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]*Session),
		stores:   make(map[string]*projectStore),
	}, nil
}

// Open creates a session bound to a project.
//
// Description:
//
//	Validates both ids, opens (or shares) the project's durable store,
//	and wires the session's buffers, scorer, promotion runner, and
//	assembler. When the manager carries a promotion interval, the
//	session's ticker starts immediately.
//
// Outputs:
//
//	*Session - The live session
//	error - ErrInvalidSessionID / ErrInvalidProjectID for malformed ids,
//	        ErrSessionExists for a duplicate id
func (m *Manager) Open(sessionID, projectID string) (*Session, error) {
	if !IsValidID(sessionID) {
		return nil, ErrInvalidSessionID
	}
	if !IsValidID(projectID) {
		return nil, ErrInvalidProjectID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if _, ok := m.sessions[sessionID]; ok {
		return nil, ErrSessionExists
	}

	store, err := m.acquireStoreLocked(sessionID, projectID)
	if err != nil {
		return nil, err
	}

	scorer := scoring.NewCell()
	if err := scorer.Configure(m.cfg.Scoring); err != nil {
		m.releaseStoreLocked(projectID)
		return nil, fmt.Errorf("configuring scorer: %w", err)
	}
	staging, err := pending.NewBuffer(m.cfg.Staging, scorer, m.logger)
	if err != nil {
		m.releaseStoreLocked(projectID)
		return nil, fmt.Errorf("creating staging buffer: %w", err)
	}
	wctx := working.NewContext()

	engine, err := promotion.NewEngine(m.cfg.Promotion, store, staging, wctx, scorer, m.logger)
	if err != nil {
		m.releaseStoreLocked(projectID)
		return nil, fmt.Errorf("creating promotion engine: %w", err)
	}
	runner, err := promotion.NewRunner(engine, m.metrics, m.logger)
	if err != nil {
		m.releaseStoreLocked(projectID)
		return nil, fmt.Errorf("creating promotion runner: %w", err)
	}
	asm, err := assembler.NewAssembler(wctx, m.logger)
	if err != nil {
		m.releaseStoreLocked(projectID)
		return nil, fmt.Errorf("creating assembler: %w", err)
	}

	sess := &Session{
		ID:        sessionID,
		ProjectID: projectID,
		CreatedAt: time.Now().UTC(),
		Working:   wctx,
		Staging:   staging,
		Store:     store,
		Scorer:    scorer,
		Promoter:  runner,
		Assembler: asm,
	}
	if m.cfg.PromotionInterval > 0 {
		tickCtx, cancel := context.WithCancel(context.Background())
		sess.cancelTicker = cancel
		runner.Start(tickCtx, m.cfg.PromotionInterval)
	}

	m.sessions[sessionID] = sess
	m.logger.Info("Opened session",
		"session_id", sessionID,
		"project_id", projectID)
	return sess, nil
}

// Get returns a live session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	if !IsValidID(sessionID) {
		return nil, ErrInvalidSessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Teardown ends a session.
//
// Description:
//
//	Runs one final promotion pass so qualifying staged state survives,
//	stops the session's ticker, clears its in-memory buffers, and
//	releases its store handle. Durable records are untouched.
func (m *Manager) Teardown(ctx context.Context, sessionID string) error {
	if !IsValidID(sessionID) {
		return ErrInvalidSessionID
	}

	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	// The session is already unrouted; the store handle must be released
	// even if the final promotion pass fails badly.
	defer func() {
		m.mu.Lock()
		m.releaseStoreLocked(sess.ProjectID)
		m.mu.Unlock()
	}()

	if sess.cancelTicker != nil {
		sess.cancelTicker()
	}
	ev := sess.Promoter.RunNow(ctx)
	sess.Working.Clear()

	m.logger.Info("Tore down session",
		"session_id", sessionID,
		"final_promotions", ev.SuccessCount)
	return nil
}

// Sessions returns the ids of all live sessions.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down all sessions and closes all project stores.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Teardown(ctx, id); err != nil {
			m.logger.Warn("Session teardown during close failed",
				"session_id", id,
				"error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for projectID, ps := range m.stores {
		if err := ps.store.Close(); err != nil {
			m.logger.Warn("Closing project store failed",
				"project_id", projectID,
				"error", err)
		}
		delete(m.stores, projectID)
	}
	return nil
}

// acquireStoreLocked opens or shares the durable store for a project.
func (m *Manager) acquireStoreLocked(sessionID, projectID string) (*longterm.Store, error) {
	if ps, ok := m.stores[projectID]; ok {
		ps.refs++
		return ps.store, nil
	}

	engineCfg := longterm.DefaultEngineConfig()
	engineCfg.Path = filepath.Join(m.cfg.DataDir, projectID)
	engineCfg.SyncWrites = m.cfg.SyncWrites
	engineCfg.Logger = m.logger

	store, err := longterm.OpenStore(longterm.StoreConfig{
		SessionID:  sessionID,
		MaxRecords: m.cfg.MaxRecords,
		Engine:     engineCfg,
		Logger:     m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening project store %s: %w", projectID, err)
	}
	m.stores[projectID] = &projectStore{store: store, refs: 1}
	return store, nil
}

// releaseStoreLocked drops one reference, closing the store on the last.
func (m *Manager) releaseStoreLocked(projectID string) {
	ps, ok := m.stores[projectID]
	if !ok {
		return
	}
	ps.refs--
	if ps.refs > 0 {
		return
	}
	delete(m.stores, projectID)
	if err := ps.store.Close(); err != nil {
		m.logger.Warn("Closing project store failed",
			"project_id", projectID,
			"error", err)
	}
}
