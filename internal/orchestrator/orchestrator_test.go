package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/events"
	"github.com/yeswehack/ywh2bt-go/internal/model"
	"github.com/yeswehack/ywh2bt-go/internal/trackers"
)

// stubTrackerConfig/stubTrackerAdapter let these tests exercise the
// orchestrator's fan-out without depending on any concrete tracker
// package (importing one here would not cycle, but would couple this
// package's tests to a specific adapter's wire format for no reason).
type stubTrackerConfig struct {
	config.Common
}

func (stubTrackerConfig) Type() string { return "orchestrator-test-tracker" }

type stubTrackerAdapter struct {
	mu          sync.Mutex
	maxInFlight int
	inFlight    int
	sendReports int
}

func (s *stubTrackerAdapter) Test(ctx context.Context) error { return nil }

func (s *stubTrackerAdapter) GetIssue(ctx context.Context, issueID string) (*model.TrackerIssue, error) {
	return nil, nil
}

func (s *stubTrackerAdapter) SendReport(ctx context.Context, report model.Report, title, description string) (model.TrackerIssue, error) {
	s.mu.Lock()
	s.inFlight++
	s.sendReports++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	// Give other goroutines a chance to race in, so a concurrency bound
	// that isn't actually enforced would show up as a higher maxInFlight.
	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	return model.TrackerIssue{IssueID: "T-1", IssueURL: "https://tracker.example/T-1"}, nil
}

func (s *stubTrackerAdapter) SendLogs(ctx context.Context, issue model.TrackerIssue, comments []trackers.CommentInput) ([]model.SentComment, error) {
	return nil, nil
}

func (s *stubTrackerAdapter) GetIssueComments(ctx context.Context, issueID string, excludeIDs map[string]bool) ([]model.TrackerIssueComment, error) {
	return nil, nil
}

func newTestConfig(t *testing.T, platformURL string, adapter *stubTrackerAdapter) config.Config {
	t.Helper()
	trackers.Register("orchestrator-test-tracker", func(cfg config.TrackerConfig) (trackers.Adapter, error) {
		return adapter, nil
	})

	return config.Config{
		Trackers: map[string]config.TrackerConfig{
			"primary": stubTrackerConfig{},
		},
		Platforms: map[string]config.PlatformConfig{
			"yeswehack": {
				APIURL: platformURL,
				PAT:    "pat-token",
				Programs: []config.ProgramConfig{
					{
						Slug:            "acme-program",
						BugTrackersName: []string{"primary"},
					},
				},
			},
		},
	}
}

func TestRunDispatchesEveryReportToEveryNamedTracker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/login":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
		case r.URL.Path == "/programs/acme-program/reports":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": 1, "local_id": "YWH-PC-1"},
					{"id": 2, "local_id": "YWH-PC-2"},
				},
			})
		default:
			// tracking-status / tracker-update writes: accept silently.
		}
	}))
	defer srv.Close()

	adapter := &stubTrackerAdapter{}
	cfg := newTestConfig(t, srv.URL, adapter)

	rec := &events.Recorder{}
	err := Run(context.Background(), cfg, Options{Listener: rec.Listener(), MaxConcurrencyPerTracker: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if adapter.sendReports != 2 {
		t.Fatalf("expected both reports to be synchronized, got %d SendReport calls", adapter.sendReports)
	}
	if adapter.maxInFlight > 1 {
		t.Fatalf("expected concurrency bounded to 1, observed %d in flight", adapter.maxInFlight)
	}
}

func TestRunSkipsUnknownTrackerNameWithoutAbortingOtherPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/login":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
		case r.URL.Path == "/programs/acme-program/reports":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{"id": 1, "local_id": "YWH-PC-1"}},
			})
		}
	}))
	defer srv.Close()

	adapter := &stubTrackerAdapter{}
	cfg := newTestConfig(t, srv.URL, adapter)
	platformCfg := cfg.Platforms["yeswehack"]
	platformCfg.Programs[0].BugTrackersName = []string{"primary", "does-not-exist"}
	cfg.Platforms["yeswehack"] = platformCfg

	rec := &events.Recorder{}
	err := Run(context.Background(), cfg, Options{Listener: rec.Listener()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var programErr error
	for _, end := range rec.Ends {
		if end.Phase == events.PhaseProgram {
			programErr = end.Err
		}
	}
	if programErr == nil || !strings.Contains(programErr.Error(), "does-not-exist") {
		t.Fatalf("expected the program end event to name the unknown tracker, got %v", programErr)
	}
	if adapter.sendReports != 1 {
		t.Fatalf("expected the valid tracker pair to still run, got %d SendReport calls", adapter.sendReports)
	}
}
