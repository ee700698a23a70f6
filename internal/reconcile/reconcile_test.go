package reconcile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/events"
	"github.com/yeswehack/ywh2bt-go/internal/model"
	"github.com/yeswehack/ywh2bt-go/internal/platform"
	"github.com/yeswehack/ywh2bt-go/internal/render"
	"github.com/yeswehack/ywh2bt-go/internal/state"
	"github.com/yeswehack/ywh2bt-go/internal/trackers"
)

// stubAdapter is a hand-built trackers.Adapter test double; it never
// talks to a real tracker, just records what it was asked to do and
// replays canned responses.
type stubAdapter struct {
	issues map[string]*model.TrackerIssue

	sendReportCalls int
	nextIssueID     string

	sentLogs  []trackers.CommentInput
	comments  []model.TrackerIssueComment
	sendErr   error
}

func (s *stubAdapter) Test(ctx context.Context) error { return nil }

func (s *stubAdapter) GetIssue(ctx context.Context, issueID string) (*model.TrackerIssue, error) {
	return s.issues[issueID], nil
}

func (s *stubAdapter) SendReport(ctx context.Context, report model.Report, title, description string) (model.TrackerIssue, error) {
	s.sendReportCalls++
	id := s.nextIssueID
	if id == "" {
		id = "NEW-1"
	}
	issue := model.TrackerIssue{IssueID: id, IssueURL: "https://tracker.example/" + id, TrackerURL: "https://tracker.example", Project: "proj"}
	if s.issues == nil {
		s.issues = map[string]*model.TrackerIssue{}
	}
	s.issues[id] = &issue
	return issue, nil
}

func (s *stubAdapter) SendLogs(ctx context.Context, issue model.TrackerIssue, comments []trackers.CommentInput) ([]model.SentComment, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sentLogs = append(s.sentLogs, comments...)
	out := make([]model.SentComment, len(comments))
	for i := range comments {
		out[i] = model.SentComment{CommentID: "c" + string(rune('0'+i))}
	}
	return out, nil
}

func (s *stubAdapter) GetIssueComments(ctx context.Context, issueID string, excludeIDs map[string]bool) ([]model.TrackerIssueComment, error) {
	var out []model.TrackerIssueComment
	for _, c := range s.comments {
		if excludeIDs[c.ID] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func newTestDeps(t *testing.T, adapter trackers.Adapter, handler http.HandlerFunc) (Dependencies, *events.Recorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := platform.New(config.PlatformConfig{APIURL: srv.URL})
	if err != nil {
		t.Fatalf("platform.New: %v", err)
	}
	if err := p.Authenticate(context.Background(), platform.Credentials{PAT: "x"}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	rec := &events.Recorder{}
	deps := Dependencies{
		Platform:     p,
		Adapter:      adapter,
		Formatter:    render.NewFormatter(render.DialectMarkdown),
		TrackerName:  "github",
		PlatformHost: "yeswehack.com",
		YWHDomain:    "yeswehack.com",
		Options: config.SynchronizeOptions{
			UploadPublicComments:  true,
			UploadPrivateComments: true,
			UploadDetailsUpdate:   true,
			UploadRewardUpdate:    true,
			UploadStatusUpdate:    true,
		},
		Feedback: config.FeedbackOptions{DownloadComments: true},
		Listener: rec.Listener(),
	}
	return deps, rec
}

// trackingStatusPutPath/trackerUpdatePostPath let handlers in the tests
// below recognize platform.Client's two write-back endpoints without
// hardcoding the report id in every handler.
func trackingStatusPutPath(reportID int64) string {
	return "/reports/" + itoa(reportID) + "/tracking-status"
}

func trackerUpdatePostPath(reportID int64) string {
	return "/reports/" + itoa(reportID) + "/tracker-update"
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestSynchronizeNewReportCreatesIssue(t *testing.T) {
	adapter := &stubAdapter{}
	var sawTrackingStatus, sawTrackerUpdate bool

	report := model.Report{ID: 1, LocalID: "YWH-PC-1", Title: "XSS"}

	deps, rec := newTestDeps(t, adapter, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
		case trackingStatusPutPath(1):
			sawTrackingStatus = true
		case trackerUpdatePostPath(1):
			sawTrackerUpdate = true
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	if err := Synchronize(context.Background(), deps, report); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if adapter.sendReportCalls != 1 {
		t.Fatalf("expected exactly one SendReport call, got %d", adapter.sendReportCalls)
	}
	if !sawTrackingStatus {
		t.Fatal("expected a tracking-status write for a newly created issue")
	}
	if sawTrackerUpdate {
		t.Fatal("expected no tracker-update write for a first sync with no logs to send")
	}
	if len(rec.Ends) != 1 || rec.Ends[0].Action != events.ActionCreatedIssue {
		t.Fatalf("unexpected end events: %+v", rec.Ends)
	}
}

func TestSynchronizeReusesExistingIssueAndSendsOnlyNewLogs(t *testing.T) {
	tok, err := state.Encode("2", stateClassTrackerIssue, model.TrackerIssueState{
		BugtrackerName: "github",
	})
	if err != nil {
		t.Fatalf("state.Encode: %v", err)
	}

	adapter := &stubAdapter{issues: map[string]*model.TrackerIssue{
		"GH-9": {IssueID: "GH-9", IssueURL: "https://tracker.example/GH-9"},
	}}

	report := model.Report{
		ID: 2, LocalID: "YWH-PC-2", Title: "SQLi",
		TrackingStatus: model.TrackingStatusTracked,
		Logs: []model.Log{
			{ID: 1, Kind: model.LogKindTrackingStatus, TrackerName: "github", TrackerID: "GH-9"},
			{ID: 2, Kind: model.LogKindTrackerUpdate, StateToken: tok},
			{ID: 3, Kind: model.LogKindComment, Message: "a new remark", Private: false},
		},
	}

	var trackerUpdateCalls int
	deps, rec := newTestDeps(t, adapter, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
		case trackingStatusPutPath(2):
			t.Fatal("reused issue that is already tracked should not rewrite tracking-status")
		case trackerUpdatePostPath(2):
			trackerUpdateCalls++
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	if err := Synchronize(context.Background(), deps, report); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if adapter.sendReportCalls != 0 {
		t.Fatalf("expected no SendReport call when the issue is reused, got %d", adapter.sendReportCalls)
	}
	if len(adapter.sentLogs) != 1 {
		t.Fatalf("expected exactly the one log after the cursor to be sent, got %+v", adapter.sentLogs)
	}
	if trackerUpdateCalls != 1 {
		t.Fatalf("expected a tracker-update write after sending a log, got %d calls", trackerUpdateCalls)
	}
	if len(rec.Ends) != 1 || rec.Ends[0].Action != events.ActionReusedIssue {
		t.Fatalf("unexpected end events: %+v", rec.Ends)
	}
}

func TestSynchronizeRecoversFromStaleIssue(t *testing.T) {
	adapter := &stubAdapter{nextIssueID: "GH-NEW"}

	report := model.Report{
		ID: 3, LocalID: "YWH-PC-3", Title: "CSRF",
		TrackingStatus: model.TrackingStatusTracked,
		Logs: []model.Log{
			{ID: 1, Kind: model.LogKindTrackingStatus, TrackerName: "github", TrackerID: "GH-DELETED"},
		},
	}

	deps, rec := newTestDeps(t, adapter, func(w http.ResponseWriter, r *http.Request) {})

	if err := Synchronize(context.Background(), deps, report); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if adapter.sendReportCalls != 1 {
		t.Fatalf("expected SendReport to recover the stale mapping, got %d calls", adapter.sendReportCalls)
	}
	if len(rec.Ends) != 1 || rec.Ends[0].Action != events.ActionRecoveredStale {
		t.Fatalf("unexpected end events: %+v", rec.Ends)
	}
}

func TestSynchronizePullsCommentsExcludingPreviouslyDownloaded(t *testing.T) {
	tok, err := state.Encode("4", stateClassTrackerIssue, model.TrackerIssueState{
		BugtrackerName:     "github",
		DownloadedComments: []string{"tc-old"},
	})
	if err != nil {
		t.Fatalf("state.Encode: %v", err)
	}

	adapter := &stubAdapter{
		issues: map[string]*model.TrackerIssue{"GH-1": {IssueID: "GH-1", IssueURL: "https://tracker.example/GH-1"}},
		comments: []model.TrackerIssueComment{
			{ID: "tc-old", Author: "bot", CreatedAt: time.Now(), Body: "already seen"},
			{ID: "tc-new", Author: "hunter", CreatedAt: time.Now(), Body: "fresh feedback"},
		},
	}

	report := model.Report{
		ID: 4, LocalID: "YWH-PC-4", Title: "IDOR",
		TrackingStatus: model.TrackingStatusTracked,
		Logs: []model.Log{
			{ID: 1, Kind: model.LogKindTrackingStatus, TrackerName: "github", TrackerID: "GH-1"},
			{ID: 2, Kind: model.LogKindTrackerUpdate, StateToken: tok},
		},
	}

	var postedComments int
	deps, _ := newTestDeps(t, adapter, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login", trackerUpdatePostPath(4), trackingStatusPutPath(4):
		case "/reports/4/comments":
			postedComments++
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	if err := Synchronize(context.Background(), deps, report); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if postedComments != 1 {
		t.Fatalf("expected exactly the not-yet-downloaded comment to be mirrored, got %d", postedComments)
	}
}

func TestSynchronizeDoesNotAdvanceCursorWhenSendLogsFails(t *testing.T) {
	adapter := &stubAdapter{
		issues:  map[string]*model.TrackerIssue{"GH-1": {IssueID: "GH-1", IssueURL: "https://tracker.example/GH-1"}},
		sendErr: errSendFailed{},
	}

	report := model.Report{
		ID: 5, LocalID: "YWH-PC-5", Title: "RCE",
		TrackingStatus: model.TrackingStatusTracked,
		Logs: []model.Log{
			{ID: 1, Kind: model.LogKindTrackingStatus, TrackerName: "github", TrackerID: "GH-1"},
			{ID: 2, Kind: model.LogKindComment, Message: "please forward"},
		},
	}

	var sawTrackerUpdate bool
	deps, _ := newTestDeps(t, adapter, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
		case trackerUpdatePostPath(5):
			sawTrackerUpdate = true
		}
	})

	if err := Synchronize(context.Background(), deps, report); err == nil {
		t.Fatal("expected Synchronize to surface the SendLogs failure")
	}
	if sawTrackerUpdate {
		t.Fatal("a failed send must not advance the cursor via a written state token")
	}
}

type errSendFailed struct{}

func (errSendFailed) Error() string { return "send failed" }
