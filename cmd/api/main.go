/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/alexandremaciel-ai/DashProductJira/internal/adapters/jira"
	"github.com/alexandremaciel-ai/DashProductJira/internal/config"
	httpx "github.com/alexandremaciel-ai/DashProductJira/internal/http"
	"github.com/alexandremaciel-ai/DashProductJira/internal/jobs"
	"github.com/alexandremaciel-ai/DashProductJira/internal/logger"
	"github.com/alexandremaciel-ai/DashProductJira/internal/repo"
	"github.com/alexandremaciel-ai/DashProductJira/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db := repo.MustOpen(ctx, cfg, log)
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema init failed")
	}

	// Adapters
	jc := jira.NewClient(cfg, log)

	// Services
	repository := repo.NewRepository(db, log)
	svc := services.New(cfg, log, repository, jc)

	// HTTP server (Gin)
	router := httpx.NewRouter(cfg, log, svc)

	// Cron
	cr := jobs.NewCron(cfg, log, svc, repository)
	cr.Start()
	defer cr.Stop()

	// graceful shutdown
	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(cfg.HTTPAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil { log.Error().Err(err).Msg("http server error") }
	}

	time.Sleep(500 * time.Millisecond)
}
