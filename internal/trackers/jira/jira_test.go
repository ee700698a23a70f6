package jira

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

	a, err := New(&config.JiraConfig{
		Common:   config.Common{URL: srv.URL, Project: "SEC"},
		Login:    "bot",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestToJiraImagesRewritesMarkdownSyntax(t *testing.T) {
	out := toJiraImages("see ![screenshot](https://example.com/a.png) above")
	want := "see !screenshot|https://example.com/a.png! above"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestNormalizeFieldsLowercasesKeysOnce(t *testing.T) {
	fields := normalizeFields(map[string]any{
		"Summary": "first",
		"summary": "second",
	})
	if len(fields) != 1 {
		t.Fatalf("expected mixed-case keys to collapse to one, got %+v", fields)
	}
}

func TestSendReportCreatesIssue(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Fields["summary"] != "title" {
			t.Fatalf("unexpected fields: %+v", body.Fields)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"key": "SEC-12"})
	})

	issue, err := a.SendReport(context.Background(), model.Report{}, "title", "desc")
	if err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	if issue.IssueID != "SEC-12" {
		t.Fatalf("unexpected issue: %+v", issue)
	}
}
