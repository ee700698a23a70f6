package render

import (
	"strings"
	"testing"

	"github.com/yeswehack/ywh2bt-go/internal/model"
)

func TestRenderDescriptionMarkdown(t *testing.T) {
	f := NewFormatter(DialectMarkdown)
	view := ReportView{
		LocalID:       "YWH-PC-1",
		BugTypeName:   "XSS",
		Scope:         "example.com",
		CVSSCriticity: "high",
		CVSSScore:     7.5,
		Description:   "A description",
	}

	out, err := f.RenderDescription(view)
	if err != nil {
		t.Fatalf("RenderDescription: %v", err)
	}
	if !strings.Contains(out, "YWH-PC-1") || !strings.Contains(out, "A description") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderDescriptionWiki(t *testing.T) {
	f := NewFormatter(DialectWiki)
	out, err := f.RenderDescription(ReportView{LocalID: "YWH-PC-2"})
	if err != nil {
		t.Fatalf("RenderDescription: %v", err)
	}
	if !strings.Contains(out, "h2. Description") {
		t.Fatalf("expected wiki heading in output: %q", out)
	}
}

func TestRenderTrackingStatusUpdate(t *testing.T) {
	f := NewFormatter(DialectMarkdown)
	out, err := f.RenderTrackingStatusUpdate(FeedbackView{
		TrackerType:    "gitlab",
		TrackerBaseURL: "https://gitlab.example.com",
		Project:        "42",
		IssueURL:       "https://gitlab.example.com/issues/1",
	})
	if err != nil {
		t.Fatalf("RenderTrackingStatusUpdate: %v", err)
	}
	if !strings.Contains(out, "gitlab") || !strings.Contains(out, "https://gitlab.example.com/issues/1") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderSynchronizationDoneIncludesStateTransition(t *testing.T) {
	f := NewFormatter(DialectMarkdown)
	out, err := f.RenderSynchronizationDone(FeedbackView{
		TrackerType:     "gitlab",
		CommentsAdded:   2,
		StateTransition: "reopened",
	})
	if err != nil {
		t.Fatalf("RenderSynchronizationDone: %v", err)
	}
	if !strings.Contains(out, "Comments added to the issue in this round: 2") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "reopened") {
		t.Fatalf("expected state transition line, got: %q", out)
	}
}

func TestRenderLogCommentCVSSUpdate(t *testing.T) {
	f := NewFormatter(DialectMarkdown)
	l := model.Log{
		Kind:    model.LogKindCVSSUpdate,
		OldCVSS: &model.CVSS{Criticity: "medium", Score: 5.0},
		NewCVSS: &model.CVSS{Criticity: "high", Score: 8.0},
	}

	out, err := f.RenderLogComment(l, "")
	if err != nil {
		t.Fatalf("RenderLogComment: %v", err)
	}
	if !strings.Contains(out, "medium") || !strings.Contains(out, "high") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRenderLogCommentDefaultsToRawBody(t *testing.T) {
	f := NewFormatter(DialectMarkdown)
	l := model.Log{Kind: "some-future-kind"}

	out, err := f.RenderLogComment(l, "raw html already transformed")
	if err != nil {
		t.Fatalf("RenderLogComment: %v", err)
	}
	if out != "raw html already transformed" {
		t.Fatalf("expected default arm to pass body through unchanged, got: %q", out)
	}
}
