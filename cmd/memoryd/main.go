// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command memoryd runs the memory subsystem as a standalone HTTP daemon.
//
// Usage:
//
//	memoryd serve
//	memoryd serve --config memoryd.yaml --port 9090 --debug
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/memory/health
//
//	# Open a session
//	curl -X POST http://localhost:8080/v1/memory/sessions \
//	  -H "Content-Type: application/json" \
//	  -d '{"session_id": "s-1", "project_id": "myproject"}'
//
//	# Remember something durable
//	curl -X POST http://localhost:8080/v1/memory/sessions/s-1/memories \
//	  -H "Content-Type: application/json" \
//	  -d '{"content": "We use testify for assertions", "memory_type": "convention", "confidence": 0.9}'
//
//	# Recall it later
//	curl -X POST http://localhost:8080/v1/memory/sessions/s-1/recall \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "testify assertions"}'
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
	"github.com/AleutianAI/AleutianMemory/services/memory"
	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/AleutianAI/AleutianMemory/services/memory/promotion"
	"github.com/AleutianAI/AleutianMemory/services/memory/session"
)

var (
	flagConfig string
	flagPort   int
	flagDebug  bool

	rootCmd = &cobra.Command{
		Use:   "memoryd",
		Short: "The Aleutian memory daemon",
		Long: `memoryd manages layered memory for coding sessions: a working
context, a staging buffer for implicit observations, and a durable
per-project store with graph traversal and semantic recall.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the memory HTTP server",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "Listen port (overrides config)")
	serveCmd.Flags().BoolVar(&flagDebug, "debug", false, "Enable debug logging and Gin debug mode")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flagPort > 0 {
		cfg.Server.Port = flagPort
	}
	if flagDebug {
		cfg.Logging.Level = "debug"
	}

	logger := logging.New(cfg.LoggingConfig())
	defer logger.Close()

	if flagDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := promotion.NewMetrics()
	manager, err := session.NewManager(cfg.SessionConfig(), metrics, logger.Slog())
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	svc, err := memory.NewService(manager, logger.Slog())
	if err != nil {
		return fmt.Errorf("memory service: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if flagDebug {
		router.Use(gin.Logger())
	}
	memory.RegisterRoutes(router.Group("/v1"), memory.NewHandlers(svc))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("memoryd listening",
			"addr", srv.Addr,
			"data_dir", cfg.Store.DataDir,
			"version", memory.ServiceVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
		// Tear sessions down after the listener stops accepting work so
		// final promotion passes see a quiet store.
		if err := svc.Close(shutdownCtx); err != nil {
			return fmt.Errorf("closing sessions: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("memoryd exited with error", "error", err)
		return err
	}
	logger.Info("memoryd stopped")
	return nil
}
