package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexandremaciel-ai/DashProductJira/internal/config"
	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
	"github.com/alexandremaciel-ai/DashProductJira/internal/repo"
)

type fakeJira struct {
	issues      []domain.Issue
	statuses    []domain.IssueTypeStatuses
	statusCalls int
	searchCalls int
	lastJQL     string
	searchErr   error
	statusErr   error
}

func (f *fakeJira) Myself(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	return &domain.User{AccountID: "me", DisplayName: "Me", Email: creds.Username}, nil
}

func (f *fakeJira) Projects(ctx context.Context, creds domain.Credentials) ([]domain.Project, error) {
	return []domain.Project{{Key: "PROJ", Name: "Project"}}, nil
}

func (f *fakeJira) SearchIssues(ctx context.Context, creds domain.Credentials, jql string) ([]domain.Issue, error) {
	f.searchCalls++
	f.lastJQL = jql
	return f.issues, f.searchErr
}

func (f *fakeJira) Sprints(ctx context.Context, creds domain.Credentials, projectKey string) ([]domain.Sprint, error) {
	return nil, nil
}

func (f *fakeJira) ProjectStatuses(ctx context.Context, creds domain.Credentials, projectKey string) ([]domain.IssueTypeStatuses, error) {
	f.statusCalls++
	return f.statuses, f.statusErr
}

type fakeStore struct {
	filters  map[string]domain.Filters
	audits   []repo.AuditEntry
	auditErr error
}

func newFakeStore() *fakeStore { return &fakeStore{filters: map[string]domain.Filters{}} }

func (f *fakeStore) UpsertFilter(ctx context.Context, userID, projectKey string, filters domain.Filters) error {
	f.filters[userID+"/"+projectKey] = filters
	return nil
}

func (f *fakeStore) GetFilter(ctx context.Context, userID, projectKey string) (domain.Filters, error) {
	fl, ok := f.filters[userID+"/"+projectKey]
	if !ok { return domain.Filters{}, repo.ErrNotFound }
	return fl, nil
}

func (f *fakeStore) InsertAudit(ctx context.Context, e repo.AuditEntry) error {
	if f.auditErr != nil { return f.auditErr }
	f.audits = append(f.audits, e)
	return nil
}

func (f *fakeStore) ListAudit(ctx context.Context, userID, projectKey string, limit int) ([]repo.AuditEntry, error) {
	return f.audits, nil
}

func testConfig() config.Config {
	return config.Config{MappingCacheTTL: 10 * time.Minute, JiraPageSize: 100, JiraMaxIssues: 1000}
}

func doneStatus() domain.Status {
	return domain.Status{ID: "3", Name: "Done", Category: domain.StatusCategory{Key: "done", Name: "Done"}}
}

func progressStatus() domain.Status {
	return domain.Status{ID: "2", Name: "Em Andamento", Category: domain.StatusCategory{Key: "indeterminate", Name: "In Progress"}}
}

func sampleIssues() []domain.Issue {
	created := time.Now().AddDate(0, 0, -5)
	resolved := time.Now().AddDate(0, 0, -2)
	return []domain.Issue{
		{Key: "PROJ-1", Type: "Story", Status: doneStatus(), Created: created, Updated: resolved, Resolved: &resolved},
		{Key: "PROJ-2", Type: "Bug", Status: doneStatus(), Created: created, Updated: resolved, Resolved: &resolved},
		{Key: "PROJ-3", Type: "Story", Status: progressStatus(), Created: created, Updated: resolved},
	}
}

func TestDashboard(t *testing.T) {
	jc := &fakeJira{issues: sampleIssues()}
	store := newFakeStore()
	svc := New(testConfig(), zerolog.Nop(), store, jc)

	report, err := svc.Dashboard(context.Background(), DashboardRequest{
		Credentials: domain.Credentials{JiraURL: "https://x.atlassian.net", Username: "maria@example.com", APIToken: "t"},
		ProjectKey:  "PROJ",
		Filters:     domain.Filters{TimePeriod: "week"},
	})
	if err != nil { t.Fatalf("Dashboard: %v", err) }

	if report.Metrics.TasksDelivered != 2 {
		t.Fatalf("tasksDelivered = %d, want 2", report.Metrics.TasksDelivered)
	}
	if report.Buckets.Done != 2 || report.Buckets.InProgress != 1 {
		t.Fatalf("buckets = %+v", report.Buckets)
	}
	if report.Insights.Performance == "" || report.Insights.Predictions == "" {
		t.Fatalf("insights missing: %+v", report.Insights)
	}
	if jc.lastJQL != "project = PROJ AND updated >= -1w" {
		t.Fatalf("jql = %q", jc.lastJQL)
	}
	if len(store.audits) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(store.audits))
	}
	if got := store.audits[0]; got.UserID != "maria@example.com" || got.ProjectKey != "PROJ" || got.Delivered != 2 {
		t.Fatalf("audit = %+v", got)
	}
}

func TestDashboardValidation(t *testing.T) {
	svc := New(testConfig(), zerolog.Nop(), newFakeStore(), &fakeJira{})

	_, err := svc.Dashboard(context.Background(), DashboardRequest{})
	if !errors.Is(err, ErrInvalidFilters) {
		t.Fatalf("missing project key: err = %v", err)
	}

	start := time.Now()
	end := start.AddDate(0, 0, -1)
	_, err = svc.Dashboard(context.Background(), DashboardRequest{
		ProjectKey: "PROJ",
		Filters:    domain.Filters{TimePeriod: "custom", CustomStartDate: &start, CustomEndDate: &end},
	})
	if !errors.Is(err, ErrInvalidFilters) {
		t.Fatalf("inverted range: err = %v", err)
	}
}

func TestDashboardAuditFailureDoesNotFailReport(t *testing.T) {
	store := newFakeStore()
	store.auditErr = errors.New("db down")
	svc := New(testConfig(), zerolog.Nop(), store, &fakeJira{issues: sampleIssues()})

	_, err := svc.Dashboard(context.Background(), DashboardRequest{ProjectKey: "PROJ", Filters: domain.Filters{TimePeriod: "week"}})
	if err != nil { t.Fatalf("Dashboard: %v", err) }
}

func TestStatusMappingCache(t *testing.T) {
	jc := &fakeJira{statuses: []domain.IssueTypeStatuses{
		{IssueType: "Story", Statuses: []domain.Status{doneStatus()}},
	}}
	svc := New(testConfig(), zerolog.Nop(), newFakeStore(), jc)
	creds := domain.Credentials{JiraURL: "https://x.atlassian.net"}

	svc.statusMapping(context.Background(), creds, "PROJ")
	svc.statusMapping(context.Background(), creds, "PROJ")
	if jc.statusCalls != 1 {
		t.Fatalf("statusCalls = %d, want 1 (second hit served from cache)", jc.statusCalls)
	}

	// a different project misses the cache
	svc.statusMapping(context.Background(), creds, "OTHER")
	if jc.statusCalls != 2 {
		t.Fatalf("statusCalls = %d, want 2", jc.statusCalls)
	}

	if evicted := svc.EvictExpiredMappings(time.Now().Add(time.Hour)); evicted != 2 {
		t.Fatalf("evicted = %d, want 2", evicted)
	}
}

func TestStatusMappingFetchFailureFallsBack(t *testing.T) {
	jc := &fakeJira{statusErr: errors.New("jira api status=500 body=oops"), issues: sampleIssues()}
	svc := New(testConfig(), zerolog.Nop(), newFakeStore(), jc)

	report, err := svc.Dashboard(context.Background(), DashboardRequest{ProjectKey: "PROJ", Filters: domain.Filters{TimePeriod: "week"}})
	if err != nil { t.Fatalf("Dashboard: %v", err) }
	// category heuristics still classify everything
	if report.Buckets.Uncategorized != 0 {
		t.Fatalf("uncategorized = %d, want 0", report.Buckets.Uncategorized)
	}
}

func TestKanban(t *testing.T) {
	svc := New(testConfig(), zerolog.Nop(), newFakeStore(), &fakeJira{issues: sampleIssues()})

	board, err := svc.Kanban(context.Background(), DashboardRequest{ProjectKey: "PROJ"})
	if err != nil { t.Fatalf("Kanban: %v", err) }
	if len(board.Done) != 2 || len(board.InProgress) != 1 || len(board.ToDo) != 0 {
		t.Fatalf("board = done:%d inprogress:%d todo:%d", len(board.Done), len(board.InProgress), len(board.ToDo))
	}
	if board.Counts.Total != 3 {
		t.Fatalf("counts.Total = %d, want 3", board.Counts.Total)
	}
}

func TestSaveAndLoadFilter(t *testing.T) {
	svc := New(testConfig(), zerolog.Nop(), newFakeStore(), &fakeJira{})
	ctx := context.Background()

	filters := domain.Filters{TimePeriod: "month", Assignee: "Maria Silva"}
	if err := svc.SaveFilter(ctx, "maria@example.com", "PROJ", filters); err != nil {
		t.Fatalf("SaveFilter: %v", err)
	}
	got, err := svc.LoadFilter(ctx, "maria@example.com", "PROJ")
	if err != nil { t.Fatalf("LoadFilter: %v", err) }
	if got.TimePeriod != "month" || got.Assignee != "Maria Silva" {
		t.Fatalf("loaded = %+v", got)
	}

	if err := svc.SaveFilter(ctx, "", "PROJ", filters); !errors.Is(err, ErrInvalidFilters) {
		t.Fatalf("missing user: err = %v", err)
	}
	if err := svc.SaveFilter(ctx, "maria@example.com", "PROJ", domain.Filters{TimePeriod: "fortnight"}); !errors.Is(err, ErrInvalidFilters) {
		t.Fatalf("bad period: err = %v", err)
	}
}
