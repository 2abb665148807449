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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all memory service routes with the router.
//
// Description:
//
//	Registers all /v1/memory/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST   /v1/memory/sessions - Open a session
//	DELETE /v1/memory/sessions/:session - Tear a session down
//	POST   /v1/memory/sessions/:session/memories - Explicit remember
//	GET    /v1/memory/sessions/:session/memories - List with filters
//	GET    /v1/memory/sessions/:session/memories/:id - Get one record
//	PATCH  /v1/memory/sessions/:session/memories/:id - Partial update
//	DELETE /v1/memory/sessions/:session/memories/:id - Hard delete
//	POST   /v1/memory/sessions/:session/memories/:id/forget - Supersede
//	POST   /v1/memory/sessions/:session/memories/:id/related - Graph query
//	GET    /v1/memory/sessions/:session/memories/:id/triples - Vocabulary export
//	POST   /v1/memory/sessions/:session/observations - Stage an observation
//	POST   /v1/memory/sessions/:session/recall - Semantic recall
//	GET    /v1/memory/sessions/:session/stats - Aggregate stats
//	GET    /v1/memory/sessions/:session/working - Working snapshot
//	PUT    /v1/memory/sessions/:session/working - Set a working slot
//	GET    /v1/memory/sessions/:session/working/:key - Get a working slot
//	DELETE /v1/memory/sessions/:session/working/:key - Clear a working slot
//	POST   /v1/memory/sessions/:session/promote - Run a promotion cycle
//	POST   /v1/memory/sessions/:session/context - Assemble budgeted context
//	GET    /v1/memory/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	mem := rg.Group("/memory")
	{
		// Session lifecycle
		mem.POST("/sessions", handlers.HandleOpenSession)
		mem.DELETE("/sessions/:session", handlers.HandleTeardown)

		// Durable records
		mem.POST("/sessions/:session/memories", handlers.HandleRemember)
		mem.GET("/sessions/:session/memories", handlers.HandleQueryMemories)
		mem.GET("/sessions/:session/memories/:id", handlers.HandleGetMemory)
		mem.PATCH("/sessions/:session/memories/:id", handlers.HandleUpdateMemory)
		mem.DELETE("/sessions/:session/memories/:id", handlers.HandleDeleteMemory)
		mem.POST("/sessions/:session/memories/:id/forget", handlers.HandleForget)
		mem.POST("/sessions/:session/memories/:id/related", handlers.HandleGraphQuery)
		mem.GET("/sessions/:session/memories/:id/triples", handlers.HandleExport)

		// Staging and recall
		mem.POST("/sessions/:session/observations", handlers.HandleObserve)
		mem.POST("/sessions/:session/recall", handlers.HandleRecall)
		mem.GET("/sessions/:session/stats", handlers.HandleStats)

		// Working context
		mem.GET("/sessions/:session/working", handlers.HandleWorkingSnapshot)
		mem.PUT("/sessions/:session/working", handlers.HandleWorkingSet)
		mem.GET("/sessions/:session/working/:key", handlers.HandleWorkingGet)
		mem.DELETE("/sessions/:session/working/:key", handlers.HandleWorkingDelete)

		// Promotion and assembly
		mem.POST("/sessions/:session/promote", handlers.HandlePromote)
		mem.POST("/sessions/:session/context", handlers.HandleAssemble)

		// Health check
		mem.GET("/health", handlers.HandleHealth)
	}
}
