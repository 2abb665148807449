// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianMemory/services/memory/longterm"
	"github.com/AleutianAI/AleutianMemory/services/memory/record"
	"github.com/AleutianAI/AleutianMemory/services/memory/session"
	"github.com/AleutianAI/AleutianMemory/services/memory/working"
)

// Handlers contains the HTTP handlers for the memory service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// writeError maps domain errors onto HTTP status codes with a uniform body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	switch {
	case errors.Is(err, session.ErrInvalidSessionID),
		errors.Is(err, session.ErrInvalidProjectID),
		errors.Is(err, record.ErrInvalidMemoryID),
		errors.Is(err, record.ErrInvalidMemoryType),
		errors.Is(err, record.ErrInvalidSourceType),
		errors.Is(err, record.ErrInvalidConfidence),
		errors.Is(err, record.ErrEmptyContent),
		errors.Is(err, longterm.ErrInvalidRelationship),
		errors.Is(err, working.ErrUnknownKey):
		status = http.StatusBadRequest
		code = "INVALID_REQUEST"
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, longterm.ErrMemoryNotFound),
		errors.Is(err, working.ErrKeyNotSet):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case errors.Is(err, session.ErrSessionExists):
		status = http.StatusConflict
		code = "SESSION_EXISTS"
	case errors.Is(err, longterm.ErrAlreadySuperseded):
		status = http.StatusConflict
		code = "ALREADY_SUPERSEDED"
	case errors.Is(err, longterm.ErrMemoryLimitExceeded):
		status = http.StatusInsufficientStorage
		code = "MEMORY_LIMIT"
	}

	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// HandleOpenSession handles POST /v1/memory/sessions.
//
// Response:
//
//	201 Created: OpenSessionResponse
//	400 Bad Request: Malformed ids
//	409 Conflict: Session already exists
func (h *Handlers) HandleOpenSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleOpenSession")

	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	sess, err := h.svc.OpenSession(req.SessionID, req.ProjectID)
	if err != nil {
		logger.Warn("Open session failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, OpenSessionResponse{
		SessionID: sess.ID,
		ProjectID: sess.ProjectID,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339Nano),
	})
}

// HandleTeardown handles DELETE /v1/memory/sessions/:session.
//
// Description:
//
//	Ends the session after a final promotion pass. Durable records
//	survive; all in-memory session state is discarded.
func (h *Handlers) HandleTeardown(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTeardown")

	if err := h.svc.Teardown(c.Request.Context(), c.Param("session")); err != nil {
		logger.Warn("Teardown failed", "error", err)
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleRemember handles POST /v1/memory/sessions/:session/memories.
func (h *Handlers) HandleRemember(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRemember")

	var req RememberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	stored, err := h.svc.Remember(c.Request.Context(), c.Param("session"), req)
	if err != nil {
		logger.Warn("Remember failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, RememberResponse{Memory: stored})
}

// HandleObserve handles POST /v1/memory/sessions/:session/observations.
func (h *Handlers) HandleObserve(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleObserve")

	var req ObserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	cand, err := h.svc.Observe(c.Param("session"), req)
	if err != nil {
		logger.Warn("Observe failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ObserveResponse{Candidate: cand})
}

// HandleRecall handles POST /v1/memory/sessions/:session/recall.
func (h *Handlers) HandleRecall(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRecall")

	var req RecallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	hits, err := h.svc.Recall(c.Request.Context(), c.Param("session"), req)
	if err != nil {
		logger.Warn("Recall failed", "error", err)
		writeError(c, err)
		return
	}
	if hits == nil {
		hits = []longterm.SearchHit{}
	}
	c.JSON(http.StatusOK, RecallResponse{Hits: hits})
}

// HandleGetMemory handles GET /v1/memory/sessions/:session/memories/:id.
func (h *Handlers) HandleGetMemory(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetMemory")

	r, err := h.svc.GetMemory(c.Request.Context(), c.Param("session"), c.Param("id"))
	if err != nil {
		logger.Warn("Get memory failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, RememberResponse{Memory: r})
}

// HandleQueryMemories handles GET /v1/memory/sessions/:session/memories.
//
// Query parameters: type, min_confidence, limit, include_superseded.
func (h *Handlers) HandleQueryMemories(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQueryMemories")

	var query struct {
		Type              record.MemoryType `form:"type"`
		MinConfidence     float64           `form:"min_confidence"`
		Limit             int               `form:"limit"`
		IncludeSuperseded bool              `form:"include_superseded"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		logger.Warn("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid query parameters", Code: "INVALID_REQUEST"})
		return
	}

	memories, err := h.svc.QueryMemories(c.Request.Context(), c.Param("session"), longterm.QueryOptions{
		MemoryType:        query.Type,
		MinConfidence:     query.MinConfidence,
		Limit:             query.Limit,
		IncludeSuperseded: query.IncludeSuperseded,
	})
	if err != nil {
		logger.Warn("Query memories failed", "error", err)
		writeError(c, err)
		return
	}
	if memories == nil {
		memories = []record.MemoryRecord{}
	}
	c.JSON(http.StatusOK, QueryResponse{Memories: memories})
}

// HandleUpdateMemory handles PATCH /v1/memory/sessions/:session/memories/:id.
func (h *Handlers) HandleUpdateMemory(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUpdateMemory")

	var req UpdateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	r, err := h.svc.UpdateMemory(c.Request.Context(), c.Param("session"), c.Param("id"), req)
	if err != nil {
		logger.Warn("Update memory failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, RememberResponse{Memory: r})
}

// HandleForget handles POST /v1/memory/sessions/:session/memories/:id/forget.
//
// Description:
//
//	Supersession, not deletion: the record stays queryable with its
//	superseded_at timestamp set, optionally linked to a replacement.
func (h *Handlers) HandleForget(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleForget")

	var req ForgetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}

	if err := h.svc.Forget(c.Request.Context(), c.Param("session"), c.Param("id"), req.ReplacementID); err != nil {
		logger.Warn("Forget failed", "error", err)
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleDeleteMemory handles DELETE /v1/memory/sessions/:session/memories/:id.
func (h *Handlers) HandleDeleteMemory(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteMemory")

	if err := h.svc.DeleteMemory(c.Request.Context(), c.Param("session"), c.Param("id")); err != nil {
		logger.Warn("Delete memory failed", "error", err)
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGraphQuery handles POST /v1/memory/sessions/:session/memories/:id/related.
func (h *Handlers) HandleGraphQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGraphQuery")

	var req GraphQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	related, err := h.svc.QueryGraph(c.Request.Context(), c.Param("session"), c.Param("id"), req)
	if err != nil {
		logger.Warn("Graph query failed", "error", err)
		writeError(c, err)
		return
	}
	if related == nil {
		related = []longterm.Related{}
	}
	c.JSON(http.StatusOK, GraphQueryResponse{Related: related})
}

// HandleStats handles GET /v1/memory/sessions/:session/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStats")

	stats, err := h.svc.Stats(c.Request.Context(), c.Param("session"))
	if err != nil {
		logger.Warn("Stats failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleExport handles GET /v1/memory/sessions/:session/memories/:id/triples.
func (h *Handlers) HandleExport(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleExport")

	triples, err := h.svc.ExportTriples(c.Request.Context(), c.Param("session"), c.Param("id"))
	if err != nil {
		logger.Warn("Export failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ExportResponse{Triples: triples})
}

// HandleWorkingSet handles PUT /v1/memory/sessions/:session/working.
func (h *Handlers) HandleWorkingSet(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWorkingSet")

	var req WorkingSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	if err := h.svc.WorkingSet(c.Param("session"), req.Key, req.Value); err != nil {
		logger.Warn("Working set failed", "error", err)
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleWorkingGet handles GET /v1/memory/sessions/:session/working/:key.
func (h *Handlers) HandleWorkingGet(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWorkingGet")

	entry, err := h.svc.WorkingGet(c.Param("session"), working.Key(c.Param("key")))
	if err != nil {
		logger.Warn("Working get failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// HandleWorkingDelete handles DELETE /v1/memory/sessions/:session/working/:key.
func (h *Handlers) HandleWorkingDelete(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWorkingDelete")

	if err := h.svc.WorkingDelete(c.Param("session"), working.Key(c.Param("key"))); err != nil {
		logger.Warn("Working delete failed", "error", err)
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleWorkingSnapshot handles GET /v1/memory/sessions/:session/working.
func (h *Handlers) HandleWorkingSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWorkingSnapshot")

	entries, err := h.svc.WorkingSnapshot(c.Param("session"))
	if err != nil {
		logger.Warn("Working snapshot failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, WorkingResponse{Entries: entries})
}

// HandlePromote handles POST /v1/memory/sessions/:session/promote.
func (h *Handlers) HandlePromote(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePromote")

	ev, err := h.svc.Promote(c.Request.Context(), c.Param("session"))
	if err != nil {
		logger.Warn("Promote failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PromoteResponse{Event: ev})
}

// HandleAssemble handles POST /v1/memory/sessions/:session/context.
func (h *Handlers) HandleAssemble(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAssemble")

	var req AssembleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	assembled, err := h.svc.Assemble(c.Request.Context(), c.Param("session"), req)
	if err != nil {
		logger.Warn("Assemble failed", "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, AssembleResponse{Context: assembled})
}

// HandleHealth handles GET /v1/memory/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  ServiceVersion,
		Sessions: h.svc.SessionCount(),
	})
}
