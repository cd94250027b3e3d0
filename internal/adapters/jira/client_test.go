package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexandremaciel-ai/DashProductJira/internal/config"
	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
)

func testClient() *Client {
	return NewClient(config.Config{JiraPageSize: 2, JiraMaxIssues: 10, HTTPTimeout: 5 * time.Second}, zerolog.Nop())
}

func creds(url string) domain.Credentials {
	return domain.Credentials{JiraURL: url, Username: "user@example.com", APIToken: "token"}
}

func issueJSON(key, resolved string) string {
	res := "null"
	if resolved != "" {
		res = fmt.Sprintf("%q", resolved)
	}
	return fmt.Sprintf(`{
		"key": %q,
		"fields": {
			"summary": "Something",
			"status": {"id": "3", "name": "Concluído", "statusCategory": {"key": "done", "name": "Done"}},
			"issuetype": {"name": "Story"},
			"assignee": {"accountId": "a1", "displayName": "Alice", "emailAddress": "alice@example.com"},
			"created": "2024-06-01T09:00:00.000-0300",
			"updated": "2024-06-10T09:00:00.000-0300",
			"resolutiondate": %s,
			"customfield_10016": 5
		}
	}`, key, res)
}

func TestSearchIssuesPaginates(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/rest/api/3/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		switch r.URL.Query().Get("startAt") {
		case "0":
			fmt.Fprintf(w, `{"startAt":0,"maxResults":2,"total":3,"issues":[%s,%s]}`,
				issueJSON("PROJ-1", "2024-06-10T09:00:00.000-0300"), issueJSON("PROJ-2", ""))
		default:
			fmt.Fprintf(w, `{"startAt":2,"maxResults":2,"total":3,"issues":[%s]}`,
				issueJSON("PROJ-3", "2024-06-11T09:00:00.000-0300"))
		}
	}))
	defer srv.Close()

	issues, err := testClient().SearchIssues(context.Background(), creds(srv.URL), "project = PROJ")
	if err != nil { t.Fatalf("SearchIssues: %v", err) }
	if len(issues) != 3 {
		t.Fatalf("len = %d, want 3", len(issues))
	}
	if gotAuth == "" || !strings.HasPrefix(gotAuth, "Basic ") {
		t.Fatalf("authorization = %q, want basic auth", gotAuth)
	}

	first := issues[0]
	if first.Key != "PROJ-1" || first.Type != "Story" || first.Status.Category.Key != "done" {
		t.Fatalf("issue = %+v", first)
	}
	if first.Resolved == nil {
		t.Fatal("resolutiondate not parsed")
	}
	if first.Assignee == nil || first.Assignee.Email != "alice@example.com" {
		t.Fatalf("assignee = %+v", first.Assignee)
	}
	if v, ok := first.CustomFields["customfield_10016"].(float64); !ok || v != 5 {
		t.Fatalf("customfield_10016 = %v", first.CustomFields["customfield_10016"])
	}
	if issues[1].Resolved != nil {
		t.Fatal("null resolutiondate must stay nil")
	}
}

func TestDoJSONPreservesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorMessages":["The value 'NOPE' does not exist for the field 'project'."]}`)
	}))
	defer srv.Close()

	_, err := testClient().SearchIssues(context.Background(), creds(srv.URL), "project = NOPE")
	if err == nil { t.Fatal("expected error") }
	if !strings.Contains(err.Error(), "status=400") || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("err = %v", err)
	}
}

func TestDoJSONRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"accountId":"a1","displayName":"Alice","emailAddress":"alice@example.com"}`)
	}))
	defer srv.Close()

	user, err := testClient().Myself(context.Background(), creds(srv.URL))
	if err != nil { t.Fatalf("Myself: %v", err) }
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if user.DisplayName != "Alice" {
		t.Fatalf("user = %+v", user)
	}
}

func TestProjectStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/project/PROJ/statuses" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `[
			{"name":"Story","statuses":[
				{"id":"1","name":"Backlog","statusCategory":{"key":"new","name":"To Do"}},
				{"id":"3","name":"Concluído","statusCategory":{"key":"done","name":"Done"}}
			]}
		]`)
	}))
	defer srv.Close()

	types, err := testClient().ProjectStatuses(context.Background(), creds(srv.URL), "PROJ")
	if err != nil { t.Fatalf("ProjectStatuses: %v", err) }
	if len(types) != 1 || types[0].IssueType != "Story" || len(types[0].Statuses) != 2 {
		t.Fatalf("types = %+v", types)
	}
	if types[0].Statuses[1].Category.Key != "done" {
		t.Fatalf("category = %+v", types[0].Statuses[1].Category)
	}
}

func TestSprintsNoBoards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values":[]}`)
	}))
	defer srv.Close()

	sprints, err := testClient().Sprints(context.Background(), creds(srv.URL), "PROJ")
	if err != nil { t.Fatalf("Sprints: %v", err) }
	if sprints != nil {
		t.Fatalf("sprints = %+v, want nil for a project without boards", sprints)
	}
}
