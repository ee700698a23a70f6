package servicenow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yeswehack/ywh2bt-go/internal/config"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := New(&config.ServiceNowConfig{
		Common:   config.Common{URL: srv.URL},
		Login:    "bot",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestGetIssueCommentsMergesJournalAndAttachmentsChronologically(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/now/table/incident":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": []map[string]any{{"sys_id": "inc1", "number": "INC0001", "state": "2"}},
			})
		case r.URL.Path == "/api/now/table/sys_journal_field":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": []map[string]any{
					{"sys_id": "j1", "value": "second note", "sys_created_on": "2024-01-02 10:00:00", "sys_created_by": "agent"},
				},
			})
		case r.URL.Path == "/api/now/attachment":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": []map[string]any{
					{"sys_id": "a1", "file_name": "proof.png", "sys_created_on": "2024-01-01 09:00:00", "sys_created_by": "hunter"},
				},
			})
		case r.URL.Path == "/api/now/attachment/a1/file":
			_, _ = w.Write([]byte("binary-data"))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	comments, err := a.GetIssueComments(context.Background(), "INC0001", nil)
	if err != nil {
		t.Fatalf("GetIssueComments: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 merged comments, got %+v", comments)
	}
	if comments[0].ID != "a1" || comments[1].ID != "j1" {
		t.Fatalf("expected attachment entry before later journal entry, got %+v", comments)
	}
	if string(comments[0].Attachments["proof.png"]) != "binary-data" {
		t.Fatalf("expected attachment bytes to be loaded, got %+v", comments[0].Attachments)
	}
}
