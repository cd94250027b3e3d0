/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/alexandremaciel-ai/DashProductJira/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc Service) *gin.Engine {
	if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, svc)

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/jira/auth", h.Auth)
		api.POST("/jira/projects", h.Projects)
		api.POST("/jira/issues", h.Issues)
		api.POST("/jira/sprints", h.Sprints)

		api.POST("/dashboard", h.Dashboard)
		api.POST("/kanban", h.Kanban)
		api.POST("/ai/insights", h.Insights)

		api.POST("/filters", h.SaveFilter)
		api.GET("/filters/:user/:project", h.LoadFilter)
		api.GET("/reports/:user/:project", h.ReportHistory)
	}

	return r
}
