package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/model"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := New(&config.GitHubConfig{
		Common: config.Common{URL: srv.URL, Project: "acme/widgets"},
		Token:  "tok",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestTestRequiresPushAccess(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Fatalf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"permissions": map[string]bool{"push": false},
		})
	})

	if err := a.Test(context.Background()); err == nil {
		t.Fatal("expected an error when push access is missing")
	}
}

func TestSendReportCreatesIssue(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/issues" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number":   42,
			"html_url": "https://github.com/acme/widgets/issues/42",
			"state":    "open",
		})
	})

	issue, err := a.SendReport(context.Background(), model.Report{}, "title", "body")
	if err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	if issue.IssueID != "42" || issue.IssueURL == "" {
		t.Fatalf("unexpected issue: %+v", issue)
	}
}

func TestGetIssueNotFoundReturnsNilIssue(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	issue, err := a.GetIssue(context.Background(), "99")
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if issue != nil {
		t.Fatalf("expected nil issue, got %+v", issue)
	}
}

func TestGetIssueCommentsExcludesIDs(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "body": "first", "user": map[string]string{"login": "alice"}},
			{"id": 2, "body": "second", "user": map[string]string{"login": "bob"}},
		})
	})

	comments, err := a.GetIssueComments(context.Background(), "42", map[string]bool{"1": true})
	if err != nil {
		t.Fatalf("GetIssueComments: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "2" {
		t.Fatalf("unexpected comments: %+v", comments)
	}
}
