/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alexandremaciel-ai/DashProductJira/internal/adapters/jira"
	"github.com/alexandremaciel-ai/DashProductJira/internal/config"
	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
	"github.com/alexandremaciel-ai/DashProductJira/internal/metrics"
	"github.com/alexandremaciel-ai/DashProductJira/internal/repo"
)

type JiraClient interface {
	Myself(ctx context.Context, creds domain.Credentials) (*domain.User, error)
	Projects(ctx context.Context, creds domain.Credentials) ([]domain.Project, error)
	SearchIssues(ctx context.Context, creds domain.Credentials, jql string) ([]domain.Issue, error)
	Sprints(ctx context.Context, creds domain.Credentials, projectKey string) ([]domain.Sprint, error)
	ProjectStatuses(ctx context.Context, creds domain.Credentials, projectKey string) ([]domain.IssueTypeStatuses, error)
}

type FilterStore interface {
	UpsertFilter(ctx context.Context, userID, projectKey string, filters domain.Filters) error
	GetFilter(ctx context.Context, userID, projectKey string) (domain.Filters, error)
	InsertAudit(ctx context.Context, e repo.AuditEntry) error
	ListAudit(ctx context.Context, userID, projectKey string, limit int) ([]repo.AuditEntry, error)
}

// ErrInvalidFilters marks caller mistakes (bad period, inverted custom
// range) so the transport can answer 400 instead of 502.
var ErrInvalidFilters = errors.New("invalid filters")

type mappingEntry struct {
	mapping metrics.StatusMapping
	expires time.Time
}

type Service struct {
	cfg  config.Config
	log  zerolog.Logger
	repo FilterStore
	jira JiraClient

	mu       sync.Mutex
	mappings map[string]mappingEntry
}

func New(cfg config.Config, log zerolog.Logger, r FilterStore, jc JiraClient) *Service {
	return &Service{cfg: cfg, log: log, repo: r, jira: jc, mappings: map[string]mappingEntry{}}
}

// Auth validates the caller's credentials against their Jira site.
func (s *Service) Auth(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	return s.jira.Myself(ctx, creds)
}

func (s *Service) Projects(ctx context.Context, creds domain.Credentials) ([]domain.Project, error) {
	return s.jira.Projects(ctx, creds)
}

func (s *Service) Sprints(ctx context.Context, creds domain.Credentials, projectKey string) ([]domain.Sprint, error) {
	return s.jira.Sprints(ctx, creds, projectKey)
}

// Issues is the raw proxy: the filtered issue list without any
// aggregation on top.
func (s *Service) Issues(ctx context.Context, creds domain.Credentials, projectKey string, filters domain.Filters) ([]domain.Issue, error) {
	if projectKey == "" {
		return nil, fmt.Errorf("%w: missing project key", ErrInvalidFilters)
	}
	return s.jira.SearchIssues(ctx, creds, jira.BuildJQL(projectKey, filters))
}

// statusMapping resolves the project's workflow mapping, cached per
// site+project for the configured TTL. A fetch failure degrades to the
// keyword heuristics rather than failing the report.
func (s *Service) statusMapping(ctx context.Context, creds domain.Credentials, projectKey string) metrics.StatusMapping {
	key := creds.JiraURL + "|" + projectKey
	now := time.Now()

	s.mu.Lock()
	if e, ok := s.mappings[key]; ok && now.Before(e.expires) {
		s.mu.Unlock()
		return e.mapping
	}
	s.mu.Unlock()

	types, err := s.jira.ProjectStatuses(ctx, creds, projectKey)
	if err != nil {
		s.log.Warn().Str("project", projectKey).Err(err).Msg("status mapping unavailable, falling back to heuristics")
		return nil
	}
	mapping := metrics.BuildStatusMapping(types)

	s.mu.Lock()
	s.mappings[key] = mappingEntry{mapping: mapping, expires: now.Add(s.cfg.MappingCacheTTL)}
	s.mu.Unlock()
	return mapping
}

// EvictExpiredMappings drops stale cache entries and returns how many
// were removed.
func (s *Service) EvictExpiredMappings(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for key, e := range s.mappings {
		if !now.Before(e.expires) {
			delete(s.mappings, key)
			evicted++
		}
	}
	return evicted
}

type DashboardRequest struct {
	Credentials domain.Credentials `json:"credentials"`
	ProjectKey  string             `json:"projectKey"`
	Filters     domain.Filters     `json:"filters"`
	Granularity string             `json:"granularity,omitempty"`
}

type DashboardReport struct {
	Metrics    metrics.Snapshot         `json:"metrics"`
	Series     []metrics.SeriesPoint    `json:"completionSeries"`
	Developers []metrics.DeveloperStats `json:"developers"`
	Types      []metrics.TypeCount      `json:"typeDistribution"`
	Buckets    metrics.BucketCounts     `json:"buckets"`
	Insights   metrics.Insights         `json:"insights"`
}

// Dashboard fetches the project's issues and workflow in parallel and
// computes the full report for the requested window.
func (s *Service) Dashboard(ctx context.Context, req DashboardRequest) (*DashboardReport, error) {
	if req.ProjectKey == "" {
		return nil, fmt.Errorf("%w: missing project key", ErrInvalidFilters)
	}

	var (
		issues  []domain.Issue
		mapping metrics.StatusMapping
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issues, err = s.jira.SearchIssues(gctx, req.Credentials, jira.BuildJQL(req.ProjectKey, req.Filters))
		return err
	})
	g.Go(func() error {
		mapping = s.statusMapping(gctx, req.Credentials, req.ProjectKey)
		return nil
	})
	if err := g.Wait(); err != nil { return nil, err }

	agg := metrics.NewAggregator(mapping)
	now := time.Now()
	snap, err := agg.Aggregate(issues, metrics.Period(req.Filters.TimePeriod), now, req.Filters.CustomStartDate, req.Filters.CustomEndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}

	report := &DashboardReport{
		Metrics:    snap,
		Series:     agg.CompletionSeries(issues, granularity(req.Granularity), now),
		Developers: agg.DeveloperRollup(issues),
		Types:      metrics.TypeDistribution(issues),
		Buckets:    agg.CountBuckets(issues),
		Insights:   metrics.GenerateInsights(snap),
	}

	// audit is best-effort; a failed insert never fails the report
	if err := s.repo.InsertAudit(ctx, repo.AuditEntry{
		UserID:      req.Credentials.Username,
		ProjectKey:  req.ProjectKey,
		TimePeriod:  req.Filters.TimePeriod,
		Delivered:   snap.TasksDelivered,
		Velocity:    snap.Velocity,
		CycleTime:   snap.CycleTime,
		BugRate:     float64(snap.BugRate),
		GeneratedAt: now,
	}); err != nil {
		s.log.Warn().Err(err).Msg("report audit insert failed")
	}
	return report, nil
}

func granularity(g string) metrics.Granularity {
	switch g {
	case "week":
		return metrics.ByWeek
	case "month":
		return metrics.ByMonth
	default:
		return metrics.ByDay
	}
}

type KanbanBoard struct {
	ToDo          []domain.Issue       `json:"todo"`
	InProgress    []domain.Issue       `json:"inProgress"`
	Done          []domain.Issue       `json:"done"`
	Uncategorized []domain.Issue       `json:"uncategorized"`
	Counts        metrics.BucketCounts `json:"counts"`
}

// Kanban groups the filtered issues into workflow columns. Issues the
// mapping and heuristics both miss stay visible in their own column.
func (s *Service) Kanban(ctx context.Context, req DashboardRequest) (*KanbanBoard, error) {
	if req.ProjectKey == "" {
		return nil, fmt.Errorf("%w: missing project key", ErrInvalidFilters)
	}
	issues, err := s.jira.SearchIssues(ctx, req.Credentials, jira.BuildJQL(req.ProjectKey, req.Filters))
	if err != nil { return nil, err }
	mapping := s.statusMapping(ctx, req.Credentials, req.ProjectKey)

	agg := metrics.NewAggregator(mapping)
	board := &KanbanBoard{Counts: agg.CountBuckets(issues)}
	for _, issue := range issues {
		switch agg.Classifier.Classify(issue.Status, mapping) {
		case metrics.ToDo:
			board.ToDo = append(board.ToDo, issue)
		case metrics.InProgress:
			board.InProgress = append(board.InProgress, issue)
		case metrics.Done:
			board.Done = append(board.Done, issue)
		default:
			board.Uncategorized = append(board.Uncategorized, issue)
		}
	}
	return board, nil
}

// Insights re-derives advice from an already-computed snapshot, for
// callers that hold a report and only want the texts refreshed.
func (s *Service) Insights(_ context.Context, snap metrics.Snapshot) metrics.Insights {
	return metrics.GenerateInsights(snap)
}

func (s *Service) SaveFilter(ctx context.Context, userID, projectKey string, filters domain.Filters) error {
	if userID == "" || projectKey == "" {
		return fmt.Errorf("%w: missing user or project", ErrInvalidFilters)
	}
	if _, err := metrics.ResolveWindow(metrics.Period(filters.TimePeriod), time.Now(), filters.CustomStartDate, filters.CustomEndDate); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}
	return s.repo.UpsertFilter(ctx, userID, projectKey, filters)
}

func (s *Service) LoadFilter(ctx context.Context, userID, projectKey string) (domain.Filters, error) {
	return s.repo.GetFilter(ctx, userID, projectKey)
}

func (s *Service) ReportHistory(ctx context.Context, userID, projectKey string, limit int) ([]repo.AuditEntry, error) {
	return s.repo.ListAudit(ctx, userID, projectKey, limit)
}
