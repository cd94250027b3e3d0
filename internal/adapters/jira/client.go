/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexandremaciel-ai/DashProductJira/internal/config"
	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
)

// issueFields is what we ask Jira for on every search. The customfield
// entries are the usual story-point slots across site configurations.
const issueFields = "summary,status,assignee,created,updated,resolutiondate,issuetype," +
	"customfield_10016,customfield_10002,customfield_10004,customfield_10008"

// Client talks to a Jira Cloud site on behalf of a caller. It holds no
// credentials of its own; every call carries them, so one Client serves
// any number of users and sites.
type Client struct {
	http      *http.Client
	log       zerolog.Logger
	pageSize  int
	maxIssues int
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.HTTPTimeout},
		log:       log,
		pageSize:  cfg.JiraPageSize,
		maxIssues: cfg.JiraMaxIssues,
	}
}

func apiURL(creds domain.Credentials, path string, q url.Values) string {
	base := strings.TrimRight(creds.JiraURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := base + path
	if len(q) > 0 {
		u = u + "?" + q.Encode()
	}
	return u
}

func (c *Client) doJSON(ctx context.Context, creds domain.Credentials, method, u string, body, out any) error {
	if creds.JiraURL == "" {
		return errors.New("jira: empty base url")
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		var r io.Reader
		if payload != nil {
			r = strings.NewReader(string(payload))
		}
		req, err := http.NewRequestWithContext(ctx, method, u, r)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.SetBasicAuth(creds.Username, creds.APIToken)
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			b, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return readErr
			}
			if resp.StatusCode >= 300 {
				apiErr := fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
				// retry on 429/5xx
				if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
					lastErr = apiErr
				} else {
					return apiErr
				}
			} else {
				if out == nil {
					return nil
				}
				return json.Unmarshal(b, out)
			}
		}
		// backoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return lastErr
}

// jiraTime handles the timestamp format Jira Cloud actually emits,
// which is not plain RFC 3339.
type jiraTime struct{ time.Time }

func (t *jiraTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.000-0700", time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("jira: unparsable timestamp %q", s)
}

type userPayload struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

func (u *userPayload) toDomain() *domain.User {
	if u == nil {
		return nil
	}
	return &domain.User{AccountID: u.AccountID, DisplayName: u.DisplayName, Email: u.EmailAddress}
}

// Myself validates credentials by fetching the calling user.
func (c *Client) Myself(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	var out userPayload
	if err := c.doJSON(ctx, creds, http.MethodGet, apiURL(creds, "/rest/api/3/myself", nil), nil, &out); err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// Projects lists the projects visible to the caller.
func (c *Client) Projects(ctx context.Context, creds domain.Credentials) ([]domain.Project, error) {
	var out []struct {
		ID   string `json:"id"`
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if err := c.doJSON(ctx, creds, http.MethodGet, apiURL(creds, "/rest/api/3/project", nil), nil, &out); err != nil {
		return nil, err
	}
	projects := make([]domain.Project, 0, len(out))
	for _, p := range out {
		projects = append(projects, domain.Project{ID: p.ID, Key: p.Key, Name: p.Name})
	}
	return projects, nil
}

type issuePayload struct {
	Key    string          `json:"key"`
	Fields json.RawMessage `json:"fields"`
}

type knownFields struct {
	Summary string `json:"summary"`
	Status  struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		StatusCategory struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"statusCategory"`
	} `json:"status"`
	IssueType struct {
		Name string `json:"name"`
	} `json:"issuetype"`
	Assignee       *userPayload `json:"assignee"`
	Created        jiraTime     `json:"created"`
	Updated        jiraTime     `json:"updated"`
	ResolutionDate *jiraTime    `json:"resolutiondate"`
}

func (p issuePayload) toDomain() (domain.Issue, error) {
	var f knownFields
	if err := json.Unmarshal(p.Fields, &f); err != nil {
		return domain.Issue{}, fmt.Errorf("jira: issue %s: %w", p.Key, err)
	}
	issue := domain.Issue{
		Key:     p.Key,
		Summary: f.Summary,
		Status: domain.Status{
			ID:   f.Status.ID,
			Name: f.Status.Name,
			Category: domain.StatusCategory{
				Key:  f.Status.StatusCategory.Key,
				Name: f.Status.StatusCategory.Name,
			},
		},
		Type:     f.IssueType.Name,
		Assignee: f.Assignee.toDomain(),
		Created:  f.Created.Time,
		Updated:  f.Updated.Time,
	}
	if f.ResolutionDate != nil && !f.ResolutionDate.IsZero() {
		resolved := f.ResolutionDate.Time
		issue.Resolved = &resolved
	}
	// keep the raw customfield values around for story-point probing
	var all map[string]any
	if err := json.Unmarshal(p.Fields, &all); err == nil {
		custom := map[string]any{}
		for k, v := range all {
			if strings.HasPrefix(k, "customfield_") && v != nil {
				custom[k] = v
			}
		}
		if len(custom) > 0 {
			issue.CustomFields = custom
		}
	}
	return issue, nil
}

// SearchIssues runs a JQL search and pages through the results up to
// the configured issue cap.
func (c *Client) SearchIssues(ctx context.Context, creds domain.Credentials, jql string) ([]domain.Issue, error) {
	if jql == "" {
		return nil, errors.New("jira: empty jql")
	}
	var issues []domain.Issue
	startAt := 0
	for {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("fields", issueFields)
		q.Set("startAt", fmt.Sprint(startAt))
		q.Set("maxResults", fmt.Sprint(c.pageSize))
		var page struct {
			StartAt    int            `json:"startAt"`
			MaxResults int            `json:"maxResults"`
			Total      int            `json:"total"`
			Issues     []issuePayload `json:"issues"`
		}
		if err := c.doJSON(ctx, creds, http.MethodGet, apiURL(creds, "/rest/api/3/search", q), nil, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Issues {
			issue, err := p.toDomain()
			if err != nil {
				c.log.Warn().Str("issue", p.Key).Err(err).Msg("skipping unparsable issue")
				continue
			}
			issues = append(issues, issue)
		}
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total || startAt >= c.maxIssues {
			break
		}
	}
	if len(issues) > c.maxIssues {
		issues = issues[:c.maxIssues]
	}
	return issues, nil
}

// Sprints returns the sprints of the project's first board, or nil when
// the project has no boards.
func (c *Client) Sprints(ctx context.Context, creds domain.Credentials, projectKey string) ([]domain.Sprint, error) {
	if projectKey == "" {
		return nil, errors.New("jira: empty project key")
	}
	q := url.Values{}
	q.Set("projectKeyOrId", projectKey)
	var boards struct {
		Values []struct {
			ID int64 `json:"id"`
		} `json:"values"`
	}
	if err := c.doJSON(ctx, creds, http.MethodGet, apiURL(creds, "/rest/agile/1.0/board", q), nil, &boards); err != nil {
		return nil, err
	}
	if len(boards.Values) == 0 {
		return nil, nil
	}
	path := fmt.Sprintf("/rest/agile/1.0/board/%d/sprint", boards.Values[0].ID)
	var sprints struct {
		Values []struct {
			ID        int64     `json:"id"`
			Name      string    `json:"name"`
			State     string    `json:"state"`
			StartDate *jiraTime `json:"startDate"`
			EndDate   *jiraTime `json:"endDate"`
		} `json:"values"`
	}
	if err := c.doJSON(ctx, creds, http.MethodGet, apiURL(creds, path, nil), nil, &sprints); err != nil {
		return nil, err
	}
	out := make([]domain.Sprint, 0, len(sprints.Values))
	for _, s := range sprints.Values {
		sprint := domain.Sprint{ID: s.ID, Name: s.Name, State: s.State}
		if s.StartDate != nil {
			start := s.StartDate.Time
			sprint.Start = &start
		}
		if s.EndDate != nil {
			end := s.EndDate.Time
			sprint.End = &end
		}
		out = append(out, sprint)
	}
	return out, nil
}

// ProjectStatuses fetches the project's workflow statuses grouped by
// issue type. This is the authoritative source for kanban columns.
func (c *Client) ProjectStatuses(ctx context.Context, creds domain.Credentials, projectKey string) ([]domain.IssueTypeStatuses, error) {
	if projectKey == "" {
		return nil, errors.New("jira: empty project key")
	}
	path := "/rest/api/3/project/" + url.PathEscape(projectKey) + "/statuses"
	var out []struct {
		Name     string `json:"name"`
		Statuses []struct {
			ID             string `json:"id"`
			Name           string `json:"name"`
			StatusCategory struct {
				Key  string `json:"key"`
				Name string `json:"name"`
			} `json:"statusCategory"`
		} `json:"statuses"`
	}
	if err := c.doJSON(ctx, creds, http.MethodGet, apiURL(creds, path, nil), nil, &out); err != nil {
		return nil, err
	}
	types := make([]domain.IssueTypeStatuses, 0, len(out))
	for _, t := range out {
		its := domain.IssueTypeStatuses{IssueType: t.Name}
		for _, s := range t.Statuses {
			its.Statuses = append(its.Statuses, domain.Status{
				ID:   s.ID,
				Name: s.Name,
				Category: domain.StatusCategory{
					Key:  s.StatusCategory.Key,
					Name: s.StatusCategory.Name,
				},
			})
		}
		types = append(types, its)
	}
	return types, nil
}
