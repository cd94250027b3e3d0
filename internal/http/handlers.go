/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/alexandremaciel-ai/DashProductJira/internal/config"
	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
	"github.com/alexandremaciel-ai/DashProductJira/internal/metrics"
	"github.com/alexandremaciel-ai/DashProductJira/internal/repo"
	"github.com/alexandremaciel-ai/DashProductJira/internal/services"
)

type Service interface {
	Auth(ctx context.Context, creds domain.Credentials) (*domain.User, error)
	Projects(ctx context.Context, creds domain.Credentials) ([]domain.Project, error)
	Issues(ctx context.Context, creds domain.Credentials, projectKey string, filters domain.Filters) ([]domain.Issue, error)
	Sprints(ctx context.Context, creds domain.Credentials, projectKey string) ([]domain.Sprint, error)
	Dashboard(ctx context.Context, req services.DashboardRequest) (*services.DashboardReport, error)
	Kanban(ctx context.Context, req services.DashboardRequest) (*services.KanbanBoard, error)
	Insights(ctx context.Context, snap metrics.Snapshot) metrics.Insights
	SaveFilter(ctx context.Context, userID, projectKey string, filters domain.Filters) error
	LoadFilter(ctx context.Context, userID, projectKey string) (domain.Filters, error)
	ReportHistory(ctx context.Context, userID, projectKey string, limit int) ([]repo.AuditEntry, error)
}

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc Service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc Service) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// proxyRequest is the body every Jira-touching endpoint accepts:
// credentials plus the project and filter context.
type proxyRequest struct {
	domain.Credentials
	ProjectKey  string         `json:"projectKey"`
	Filters     domain.Filters `json:"filters"`
	Granularity string         `json:"granularity"`
}

func (p proxyRequest) creds() domain.Credentials {
	return domain.Credentials{JiraURL: p.JiraURL, Username: p.Username, APIToken: p.APIToken}
}

// fail maps service errors onto status codes: caller mistakes are 400,
// missing rows 404 and everything from Jira's side 502 with the
// upstream message preserved.
func (h *Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidFilters):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (h *Handlers) Auth(c *gin.Context) {
	var creds domain.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	user, err := h.svc.Auth(c.Request.Context(), creds)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *Handlers) Projects(c *gin.Context) {
	var req proxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	projects, err := h.svc.Projects(c.Request.Context(), req.creds())
	if err != nil { h.fail(c, err); return }
	c.JSON(http.StatusOK, projects)
}

func (h *Handlers) Issues(c *gin.Context) {
	var req proxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	issues, err := h.svc.Issues(c.Request.Context(), req.creds(), req.ProjectKey, req.Filters)
	if err != nil { h.fail(c, err); return }
	c.JSON(http.StatusOK, gin.H{"issues": issues, "total": len(issues)})
}

func (h *Handlers) Sprints(c *gin.Context) {
	var req proxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sprints, err := h.svc.Sprints(c.Request.Context(), req.creds(), req.ProjectKey)
	if err != nil { h.fail(c, err); return }
	if sprints == nil { sprints = []domain.Sprint{} }
	c.JSON(http.StatusOK, sprints)
}

func (h *Handlers) Dashboard(c *gin.Context) {
	var req proxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.svc.Dashboard(c.Request.Context(), services.DashboardRequest{
		Credentials: req.creds(),
		ProjectKey:  req.ProjectKey,
		Filters:     req.Filters,
		Granularity: req.Granularity,
	})
	if err != nil { h.fail(c, err); return }
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) Kanban(c *gin.Context) {
	var req proxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	board, err := h.svc.Kanban(c.Request.Context(), services.DashboardRequest{
		Credentials: req.creds(),
		ProjectKey:  req.ProjectKey,
		Filters:     req.Filters,
	})
	if err != nil { h.fail(c, err); return }
	c.JSON(http.StatusOK, board)
}

func (h *Handlers) Insights(c *gin.Context) {
	var body struct {
		Metrics metrics.Snapshot `json:"metrics"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.svc.Insights(c.Request.Context(), body.Metrics))
}

func (h *Handlers) SaveFilter(c *gin.Context) {
	var body struct {
		UserID     string         `json:"userId"`
		ProjectKey string         `json:"projectKey"`
		Filters    domain.Filters `json:"filters"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.SaveFilter(c.Request.Context(), body.UserID, body.ProjectKey, body.Filters); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) LoadFilter(c *gin.Context) {
	filters, err := h.svc.LoadFilter(c.Request.Context(), c.Param("user"), c.Param("project"))
	if err != nil { h.fail(c, err); return }
	c.JSON(http.StatusOK, filters)
}

func (h *Handlers) ReportHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.svc.ReportHistory(c.Request.Context(), c.Param("user"), c.Param("project"), limit)
	if err != nil { h.fail(c, err); return }
	if entries == nil { entries = []repo.AuditEntry{} }
	c.JSON(http.StatusOK, entries)
}
