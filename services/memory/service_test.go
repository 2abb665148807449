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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianMemory/services/memory/longterm"
	"github.com/AleutianAI/AleutianMemory/services/memory/record"
	"github.com/AleutianAI/AleutianMemory/services/memory/session"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := session.DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	manager, err := session.NewManager(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	svc, err := NewService(manager, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	return router, svc
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return out
}

func openSession(t *testing.T, router *gin.Engine, sessionID, projectID string) {
	t.Helper()
	w := doJSON(t, router, "POST", "/v1/memory/sessions", OpenSessionRequest{
		SessionID: sessionID,
		ProjectID: projectID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("open session: status %d body %s", w.Code, w.Body.String())
	}
}

func TestService_SessionLifecycle(t *testing.T) {
	router, _ := setupTestRouter(t)

	openSession(t, router, "sess-1", "proj")

	t.Run("duplicate open conflicts", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/v1/memory/sessions", OpenSessionRequest{
			SessionID: "sess-1", ProjectID: "proj",
		})
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("malformed session id rejected", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/v1/memory/sessions", OpenSessionRequest{
			SessionID: "bad id!", ProjectID: "proj",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("teardown then not found", func(t *testing.T) {
		w := doJSON(t, router, "DELETE", "/v1/memory/sessions/sess-1", nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("teardown status = %d", w.Code)
		}
		w = doJSON(t, router, "GET", "/v1/memory/sessions/sess-1/stats", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("stats after teardown: status = %d, want 404", w.Code)
		}
	})
}

// TestService_MemoryLifecycle walks the full remember / recall / supersede /
// graph flow through the HTTP surface.
func TestService_MemoryLifecycle(t *testing.T) {
	router, _ := setupTestRouter(t)
	openSession(t, router, "sess-1", "proj")
	base := "/v1/memory/sessions/sess-1"

	// Explicit remember.
	w := doJSON(t, router, "POST", base+"/memories", RememberRequest{
		Content:    "we use badger for the durable store",
		MemoryType: record.TypeDecision,
		Confidence: 0.9,
		Rationale:  "embedded and durable per project",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("remember: status %d body %s", w.Code, w.Body.String())
	}
	first := decode[RememberResponse](t, w).Memory
	if !record.IsMemoryID(first.ID) {
		t.Fatalf("bad memory id %q", first.ID)
	}

	// Recall finds it and marks it accessed.
	w = doJSON(t, router, "POST", base+"/recall", RecallRequest{Query: "badger"})
	if w.Code != http.StatusOK {
		t.Fatalf("recall: status %d", w.Code)
	}
	hits := decode[RecallResponse](t, w).Hits
	if len(hits) != 1 || hits[0].Record.ID != first.ID {
		t.Fatalf("recall hits = %+v", hits)
	}

	// A replacement supersedes the original.
	w = doJSON(t, router, "POST", base+"/memories", RememberRequest{
		Content:      "we moved the durable store to a new badger layout",
		MemoryType:   record.TypeDecision,
		Confidence:   0.9,
		EvidenceRefs: []string{first.ID},
	})
	replacement := decode[RememberResponse](t, w).Memory

	w = doJSON(t, router, "POST", base+"/memories/"+first.ID+"/forget", ForgetRequest{
		ReplacementID: replacement.ID,
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("forget: status %d body %s", w.Code, w.Body.String())
	}

	t.Run("superseded record excluded from listing", func(t *testing.T) {
		w := doJSON(t, router, "GET", base+"/memories", nil)
		memories := decode[QueryResponse](t, w).Memories
		if len(memories) != 1 || memories[0].ID != replacement.ID {
			t.Errorf("memories = %+v", memories)
		}
	})

	t.Run("double forget conflicts", func(t *testing.T) {
		w := doJSON(t, router, "POST", base+"/memories/"+first.ID+"/forget", nil)
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("graph reaches the replaced record", func(t *testing.T) {
		w := doJSON(t, router, "POST", base+"/memories/"+replacement.ID+"/related", GraphQueryRequest{
			Relationship: longterm.RelSupersedes,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", w.Code, w.Body.String())
		}
		related := decode[GraphQueryResponse](t, w).Related
		if len(related) != 1 || related[0].Record.ID != first.ID {
			t.Errorf("related = %+v", related)
		}
	})

	t.Run("evidence edge traverses", func(t *testing.T) {
		w := doJSON(t, router, "POST", base+"/memories/"+replacement.ID+"/related", GraphQueryRequest{
			Relationship:      longterm.RelDerivedFrom,
			IncludeSuperseded: true,
		})
		related := decode[GraphQueryResponse](t, w).Related
		if len(related) != 1 || related[0].Record.ID != first.ID {
			t.Errorf("related = %+v", related)
		}
	})

	t.Run("stats reflect supersession", func(t *testing.T) {
		w := doJSON(t, router, "GET", base+"/stats", nil)
		stats := decode[StatsResponse](t, w)
		if stats.Store.Total != 2 || stats.Store.Superseded != 1 {
			t.Errorf("stats = %+v", stats.Store)
		}
	})

	t.Run("triples export", func(t *testing.T) {
		w := doJSON(t, router, "GET", base+"/memories/"+replacement.ID+"/triples", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		triples := decode[ExportResponse](t, w).Triples
		if len(triples) == 0 {
			t.Error("expected triples")
		}
		for _, tr := range triples {
			if tr.Subject != replacement.ID {
				t.Errorf("triple subject = %q", tr.Subject)
			}
		}
	})

	t.Run("unknown memory id is 404", func(t *testing.T) {
		w := doJSON(t, router, "GET", base+"/memories/"+record.NewMemoryID(), nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

// TestService_ObservationFlow exercises the implicit path: observations
// stage, a promotion run persists the qualifying ones, and recall sees them.
func TestService_ObservationFlow(t *testing.T) {
	router, _ := setupTestRouter(t)
	openSession(t, router, "sess-1", "proj")
	base := "/v1/memory/sessions/sess-1"

	// A strong implicit observation and a weak one.
	w := doJSON(t, router, "POST", base+"/observations", ObserveRequest{
		Content:       "always run the linter before committing",
		SuggestedType: record.TypeConvention,
		Confidence:    0.9,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("observe: status %d body %s", w.Code, w.Body.String())
	}
	strong := decode[ObserveResponse](t, w).Candidate
	if strong.ImportanceScore < 0.6 {
		t.Fatalf("strong candidate score %v below threshold", strong.ImportanceScore)
	}

	w = doJSON(t, router, "POST", base+"/observations", ObserveRequest{
		Content:       "might be flaky",
		SuggestedType: record.TypeAssumption,
		Confidence:    0.1,
	})
	weak := decode[ObserveResponse](t, w).Candidate

	// An explicit agent decision is pinned at 1.0.
	w = doJSON(t, router, "POST", base+"/observations", ObserveRequest{
		Content:       "switching the formatter to gofumpt",
		SuggestedType: record.TypeDecision,
		AgentDecision: true,
	})
	agent := decode[ObserveResponse](t, w).Candidate
	if agent.ImportanceScore != 1.0 {
		t.Fatalf("agent candidate score = %v", agent.ImportanceScore)
	}

	// Promotion persists the strong and agent candidates only.
	w = doJSON(t, router, "POST", base+"/promote", nil)
	ev := decode[PromoteResponse](t, w).Event
	if ev.TotalCandidates != 2 || ev.SuccessCount != 2 {
		t.Fatalf("promotion event = %+v", ev)
	}
	_ = weak

	w = doJSON(t, router, "POST", base+"/recall", RecallRequest{Query: "linter"})
	hits := decode[RecallResponse](t, w).Hits
	if len(hits) != 1 {
		t.Fatalf("recall hits = %+v", hits)
	}
	if hits[0].Record.MemoryType != record.TypeConvention {
		t.Errorf("promoted type = %q", hits[0].Record.MemoryType)
	}
}

func TestService_WorkingAndContext(t *testing.T) {
	router, _ := setupTestRouter(t)
	openSession(t, router, "sess-1", "proj")
	base := "/v1/memory/sessions/sess-1"

	w := doJSON(t, router, "PUT", base+"/working", WorkingSetRequest{
		Key: "current_task", Value: "wire the scheduler",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("working set: status %d body %s", w.Code, w.Body.String())
	}

	t.Run("unknown key rejected", func(t *testing.T) {
		w := doJSON(t, router, "PUT", base+"/working", WorkingSetRequest{
			Key: "favorite_color", Value: "green",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("reserved slot hidden from reads", func(t *testing.T) {
		w := doJSON(t, router, "GET", base+"/working/__summary_cache", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("assemble includes working state", func(t *testing.T) {
		w := doJSON(t, router, "POST", base+"/context", AssembleRequest{
			SystemPrompt: "you are a coding assistant",
			TotalBudget:  32000,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", w.Code, w.Body.String())
		}
		assembled := decode[AssembleResponse](t, w).Context
		if assembled.Budget.Conversation != 20000 {
			t.Errorf("conversation budget = %d", assembled.Budget.Conversation)
		}
		if _, ok := assembled.Working["current_task"]; !ok {
			t.Errorf("working section = %+v", assembled.Working)
		}
	})
}

func TestService_DurableAcrossSessions(t *testing.T) {
	router, _ := setupTestRouter(t)
	openSession(t, router, "first", "proj")

	w := doJSON(t, router, "POST", "/v1/memory/sessions/first/memories", RememberRequest{
		Content:    "retry with backoff on 429",
		MemoryType: record.TypeConvention,
		Confidence: 0.8,
	})
	stored := decode[RememberResponse](t, w).Memory

	w = doJSON(t, router, "DELETE", "/v1/memory/sessions/first", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("teardown: status %d", w.Code)
	}

	openSession(t, router, "second", "proj")
	w = doJSON(t, router, "GET", "/v1/memory/sessions/second/memories/"+stored.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cross-session get: status %d body %s", w.Code, w.Body.String())
	}
	got := decode[RememberResponse](t, w).Memory
	if got.Content != "retry with backoff on 429" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestService_Health(t *testing.T) {
	router, _ := setupTestRouter(t)
	openSession(t, router, "sess-1", "proj")

	w := doJSON(t, router, "GET", "/v1/memory/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: status %d", w.Code)
	}
	health := decode[HealthResponse](t, w)
	if health.Status != "ok" || health.Sessions != 1 {
		t.Errorf("health = %+v", health)
	}
}

func TestService_RecordCeilingSurfacesAsInsufficientStorage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := session.DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	cfg.MaxRecords = 1
	manager, err := session.NewManager(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	svc, err := NewService(manager, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))

	openSession(t, router, "sess-1", "proj")
	for i := 0; i < 2; i++ {
		w := doJSON(t, router, "POST", "/v1/memory/sessions/sess-1/memories", RememberRequest{
			Content:    fmt.Sprintf("fact %d", i),
			MemoryType: record.TypeFact,
			Confidence: 0.5,
		})
		if i == 0 && w.Code != http.StatusCreated {
			t.Fatalf("first remember: status %d", w.Code)
		}
		if i == 1 && w.Code != http.StatusInsufficientStorage {
			t.Errorf("second remember: status %d, want 507", w.Code)
		}
	}
}
