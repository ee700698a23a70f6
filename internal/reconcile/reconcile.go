// Package reconcile implements C6, the report synchronizer: the core
// per-(report, tracker) state machine described in spec §4.6. It decides
// the tracker-side issue, which outbound logs to send, which inbound
// tracker comments to pull in, whether the issue's closed state
// transitioned, and writes the result back through C4 — emitting one
// start/end event pair at events.PhaseTracker per pair via internal/events.
package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rakunlabs/logi"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/content"
	"github.com/yeswehack/ywh2bt-go/internal/events"
	"github.com/yeswehack/ywh2bt-go/internal/model"
	"github.com/yeswehack/ywh2bt-go/internal/platform"
	"github.com/yeswehack/ywh2bt-go/internal/render"
	"github.com/yeswehack/ywh2bt-go/internal/state"
	"github.com/yeswehack/ywh2bt-go/internal/trackers"
	"github.com/yeswehack/ywh2bt-go/internal/ywherr"
)

const stateClassTrackerIssue = "TrackerIssueState"

// Dependencies are the collaborators one (report, tracker) pair needs;
// all are already authenticated/constructed by the orchestrator (C7).
type Dependencies struct {
	Platform     *platform.Client
	Adapter      trackers.Adapter
	Formatter    *render.Formatter
	TrackerName  string
	PlatformHost string
	YWHDomain    string
	Options      config.SynchronizeOptions
	Feedback     config.FeedbackOptions
	Listener     *events.Listener
}

// Synchronize runs the full C6 state machine for one (report, tracker)
// pair. It never mutates report; every decision is derived from the
// immutable snapshot passed in (spec §3.b logs are never reordered,
// §4.6 "the synchronizer decides among four macro-actions").
func Synchronize(ctx context.Context, deps Dependencies, report model.Report) (err error) {
	start := time.Now()
	deps.Listener.EmitStart(events.Start{
		Phase: events.PhaseTracker, Platform: deps.PlatformHost, ReportID: report.ID,
		Tracker: deps.TrackerName, StartedAt: start,
	})

	result := events.Result{Phase: events.PhaseTracker, Platform: deps.PlatformHost, ReportID: report.ID, Tracker: deps.TrackerName}
	defer func() {
		result.Duration = time.Since(start)
		result.Err = err
		deps.Listener.EmitEnd(result)
	}()

	reportID := strconv.FormatInt(report.ID, 10)
	log := logi.Ctx(ctx).With("report_id", report.ID, "tracker", deps.TrackerName)

	issue, action, err := resolveIssue(ctx, deps, report)
	if err != nil {
		return err
	}
	result.Action = action

	needsTrackingStatus := action != events.ActionReusedIssue || report.TrackingStatus != model.TrackingStatusTracked

	cursorIdx, lastState := latestTrackerUpdateState(report, deps.TrackerName)

	outbound := selectOutboundLogs(report, deps.Options, cursorIdx)
	sent, err := sendLogs(ctx, deps, issue, outbound)
	if err != nil {
		// spec §4.6 "Failure semantics": N already-succeeded sends stay in
		// place; the state token is deliberately not written, so the cursor
		// does not advance and the remaining logs retry next round.
		log.Warn("send_logs failed partway", "sent", len(sent), "error", err)
		return err
	}
	result.LogsSent = len(sent)

	var pulled []model.TrackerIssueComment
	if deps.Feedback.DownloadComments {
		excludeIDs := unionDownloadedCommentIDs(report, deps.TrackerName)
		pulled, err = pullTrackerComments(ctx, deps, report.ID, issue.IssueID, excludeIDs)
		if err != nil {
			return err
		}
	}
	result.CommentsPulled = len(pulled)

	closedChanged := lastState != nil && lastState.Closed != issue.Closed
	if closedChanged {
		result.StateTransition = transitionLabel(issue.Closed)
	}

	if needsTrackingStatus {
		if err := writeTrackingStatus(ctx, deps, report, issue); err != nil {
			return err
		}
	}

	if len(sent) > 0 || len(pulled) > 0 || closedChanged {
		downloaded := append(pulledIDs(pulled), previousDownloadedIDs(lastState)...)
		if err := writeTrackerUpdate(ctx, deps, report, issue, reportID, len(sent), result.StateTransition, downloaded); err != nil {
			return err
		}
	} else if !needsTrackingStatus {
		result.Action = events.ActionNoOp
	}

	return nil
}

// resolveIssue determines the tracker-side issue for the pair (spec
// §4.6 "Determine the tracker-side issue"). It returns the resolved
// issue and which macro-action was taken.
func resolveIssue(ctx context.Context, deps Dependencies, report model.Report) (model.TrackerIssue, events.Action, error) {
	var trackedID string
	for _, l := range report.LogsNewestFirst() {
		if l.Kind == model.LogKindTrackingStatus && l.TrackerName == deps.TrackerName && l.TrackerID != "" {
			trackedID = l.TrackerID
			break
		}
	}

	if trackedID != "" {
		issue, err := deps.Adapter.GetIssue(ctx, trackedID)
		if err != nil {
			return model.TrackerIssue{}, "", err
		}
		if issue != nil {
			return *issue, events.ActionReusedIssue, nil
		}
		// Stale mapping: the stored issue id no longer resolves. Recover by
		// creating a new issue rather than blocking on a deleted remote
		// (spec §4.6 step 2, a deliberate recovery choice).
		created, err := sendReport(ctx, deps, report)
		if err != nil {
			return model.TrackerIssue{}, "", err
		}
		return created, events.ActionRecoveredStale, nil
	}

	created, err := sendReport(ctx, deps, report)
	if err != nil {
		return model.TrackerIssue{}, "", err
	}
	return created, events.ActionCreatedIssue, nil
}

func sendReport(ctx context.Context, deps Dependencies, report model.Report) (model.TrackerIssue, error) {
	body, err := transformBody(deps, report.DescriptionHTML, report.Attachments)
	if err != nil {
		return model.TrackerIssue{}, ywherr.New(ywherr.KindAdapterInternal, "reconcile.sendReport", err)
	}
	view := render.NewReportView(report, body)
	description, err := deps.Formatter.RenderDescription(view)
	if err != nil {
		return model.TrackerIssue{}, ywherr.New(ywherr.KindAdapterInternal, "reconcile.sendReport", err)
	}

	title := fmt.Sprintf("%s: %s", report.LocalID, report.Title)
	issue, err := deps.Adapter.SendReport(ctx, report, title, description)
	if err != nil {
		// Issue creation failure is fatal for this pair (spec §4.6
		// "Failure semantics").
		return model.TrackerIssue{}, ywherr.Fatal(ywherr.KindOf(err), "reconcile.sendReport", err)
	}
	return issue, nil
}

func transformBody(deps Dependencies, html string, attachments []model.Attachment) (string, error) {
	scrubbed, err := content.ScrubAttachmentURLs(html, attachments, deps.PlatformHost)
	if err != nil {
		return "", err
	}
	unwrapped := content.UnwrapRedirects(scrubbed, deps.YWHDomain)
	if deps.Formatter.Dialect == render.DialectWiki {
		return content.HTMLToWiki(unwrapped), nil
	}
	return content.HTMLToMarkdown(unwrapped), nil
}

// latestTrackerUpdateState finds the most recent tracker-update log
// whose decoded state names this tracker — the cursor that makes log
// replay incremental (spec §4.6 "Decide which logs to send out", step
// 1) and the "last known state" compared against for closed/opened
// transitions (spec §4.6 "Decide whether the issue's closed/opened
// state changed"). idx is -1 and ts is nil when no such log exists.
func latestTrackerUpdateState(report model.Report, trackerName string) (idx int, ts *model.TrackerIssueState) {
	reportID := strconv.FormatInt(report.ID, 10)
	idx = -1
	for i, l := range report.Logs {
		if l.Kind != model.LogKindTrackerUpdate {
			continue
		}
		var decoded model.TrackerIssueState
		ok, err := state.Decode(l.StateToken, reportID, stateClassTrackerIssue, &decoded)
		if err != nil || !ok || decoded.BugtrackerName != trackerName {
			continue
		}
		idx = i
		ts = &decoded
	}
	return idx, ts
}

// selectOutboundLogs narrows the full log list to the cursor-bounded,
// option-gated, already-tracked-on-tracker-excluded set that should be
// sent out this round (spec §4.6 "Decide which logs to send out").
func selectOutboundLogs(report model.Report, opts config.SynchronizeOptions, cursorIdx int) []model.Log {
	candidates := report.Logs
	if cursorIdx >= 0 {
		candidates = report.Logs[cursorIdx+1:]
	}

	out := make([]model.Log, 0, len(candidates))
	for _, l := range candidates {
		if sendable(l, opts) {
			out = append(out, l)
		}
	}
	return out
}

// sendable gates one log against SynchronizeOptions (spec §4.6 step 2:
// "each log kind ... is independently gated"). cvss-update and
// priority-update are not named among the gated kinds in spec §4.6, so
// they are always forwarded; tracking-status/tracker-update/
// tracker-message are this engine's own bookkeeping and platform-side
// mirrored content, never re-sent to the tracker they came from.
func sendable(l model.Log, opts config.SynchronizeOptions) bool {
	switch l.Kind {
	case model.LogKindComment:
		if l.Private {
			return opts.UploadPrivateComments
		}
		return opts.UploadPublicComments
	case model.LogKindDetailsUpdate:
		return opts.UploadDetailsUpdate
	case model.LogKindReward:
		return opts.UploadRewardUpdate
	case model.LogKindStatusUpdate:
		return opts.UploadStatusUpdate
	case model.LogKindCVSSUpdate, model.LogKindPriorityUpdate:
		return true
	default:
		return false
	}
}

func sendLogs(ctx context.Context, deps Dependencies, issue model.TrackerIssue, logs []model.Log) ([]model.SentComment, error) {
	if len(logs) == 0 {
		return nil, nil
	}

	inputs := make([]trackers.CommentInput, 0, len(logs))
	for _, l := range logs {
		body, err := transformBody(deps, l.Message, l.Attachments)
		if err != nil {
			return nil, ywherr.New(ywherr.KindAdapterInternal, "reconcile.sendLogs", err)
		}
		rendered, err := deps.Formatter.RenderLogComment(l, body)
		if err != nil {
			return nil, ywherr.New(ywherr.KindAdapterInternal, "reconcile.sendLogs", err)
		}
		inputs = append(inputs, trackers.CommentInput{Log: l, Body: rendered})
	}

	return deps.Adapter.SendLogs(ctx, issue, inputs)
}

// unionDownloadedCommentIDs computes exclude_ids as the union of
// downloaded_comments across every tracker-update log naming this
// tracker (DESIGN.md "Open Questions resolved": a newer tracker-update
// log does not drop ids an older one still names).
func unionDownloadedCommentIDs(report model.Report, trackerName string) map[string]bool {
	ids := map[string]bool{}
	reportID := strconv.FormatInt(report.ID, 10)
	for _, l := range report.Logs {
		if l.Kind != model.LogKindTrackerUpdate {
			continue
		}
		var ts model.TrackerIssueState
		ok, err := state.Decode(l.StateToken, reportID, stateClassTrackerIssue, &ts)
		if err != nil || !ok || ts.BugtrackerName != trackerName {
			continue
		}
		for _, id := range ts.DownloadedComments {
			ids[id] = true
		}
	}
	return ids
}

func pullTrackerComments(ctx context.Context, deps Dependencies, reportID int64, issueID string, excludeIDs map[string]bool) ([]model.TrackerIssueComment, error) {
	comments, err := deps.Adapter.GetIssueComments(ctx, issueID, excludeIDs)
	if err != nil {
		return nil, err
	}

	var mirrored []model.TrackerIssueComment
	for _, c := range comments {
		body := c.Body
		if deps.Formatter.Dialect == render.DialectWiki {
			// spec §4.1 "Wiki → markdown": a Jira-origin comment is wiki
			// markup and must be converted before it is mirrored back to
			// the platform, which only ever renders markdown.
			body = content.WikiToMarkdown(body)
		}
		view := render.DownloadCommentView{
			TrackerType: deps.TrackerName,
			Author:      c.Author,
			CreatedAt:   c.CreatedAt.Format(time.RFC3339),
			Body:        body,
		}
		body, err := deps.Formatter.RenderDownloadComment(view)
		if err != nil {
			// spec §4.6 "Tracker comment download failure on a single
			// comment: skip that comment, record others."
			continue
		}
		if err := deps.Platform.PostComment(ctx, reportID, body, false); err != nil {
			continue
		}
		mirrored = append(mirrored, c)
	}
	return mirrored, nil
}

func writeTrackingStatus(ctx context.Context, deps Dependencies, report model.Report, issue model.TrackerIssue) error {
	msg, err := deps.Formatter.RenderTrackingStatusUpdate(render.FeedbackView{
		TrackerType:    deps.TrackerName,
		TrackerBaseURL: issue.TrackerURL,
		Project:        issue.Project,
		IssueURL:       issue.IssueURL,
	})
	if err != nil {
		return ywherr.New(ywherr.KindAdapterInternal, "reconcile.writeTrackingStatus", err)
	}

	err = deps.Platform.PutTrackingStatus(ctx, report.ID, model.TrackingStatusTracked, deps.TrackerName, issue.IssueID, issue.IssueURL, msg)
	if err != nil {
		// spec §4.6 "Tracking-status write failure: fatal for this pair
		// this round."
		return ywherr.Fatal(ywherr.KindOf(err), "reconcile.writeTrackingStatus", err)
	}
	return nil
}

func writeTrackerUpdate(ctx context.Context, deps Dependencies, report model.Report, issue model.TrackerIssue, reportID string, commentsAdded int, transition string, downloaded []string) error {
	msg, err := deps.Formatter.RenderSynchronizationDone(render.FeedbackView{
		TrackerType:     deps.TrackerName,
		TrackerBaseURL:  issue.TrackerURL,
		Project:         issue.Project,
		IssueURL:        issue.IssueURL,
		CommentsAdded:   commentsAdded,
		StateTransition: transition,
	})
	if err != nil {
		return ywherr.New(ywherr.KindAdapterInternal, "reconcile.writeTrackerUpdate", err)
	}

	token, err := state.Encode(reportID, stateClassTrackerIssue, model.TrackerIssueState{
		Closed:             issue.Closed,
		BugtrackerName:     deps.TrackerName,
		DownloadedComments: dedupe(downloaded),
	})
	if err != nil {
		return ywherr.New(ywherr.KindAdapterInternal, "reconcile.writeTrackerUpdate", err)
	}

	return deps.Platform.PostTrackerUpdate(ctx, report.ID, deps.TrackerName, issue.IssueID, issue.IssueURL, token, msg)
}

func pulledIDs(comments []model.TrackerIssueComment) []string {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	return ids
}

func previousDownloadedIDs(last *model.TrackerIssueState) []string {
	if last == nil {
		return nil
	}
	return last.DownloadedComments
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func transitionLabel(closed bool) string {
	if closed {
		return "closed"
	}
	return "reopened"
}
