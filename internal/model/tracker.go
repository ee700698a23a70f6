package model

import "time"

// TrackerIssue is an adapter's view of a tracker-side issue. Never
// persisted by the engine (spec §3 "Data model" — TrackerIssue).
type TrackerIssue struct {
	TrackerURL string
	Project    string
	IssueID    string
	IssueURL   string
	Closed     bool
}

// TrackerIssueComment is a single tracker-origin comment, returned in
// chronological order by an adapter's GetIssueComments.
type TrackerIssueComment struct {
	ID        string
	Author    string
	CreatedAt time.Time
	Body      string
	// Attachments maps an inline image reference's display name to its
	// downloaded bytes, fetched through the adapter's credentialed
	// session (spec §4.5 get_issue_comments).
	Attachments map[string][]byte
}

// TrackerIssueState is the per-report, per-tracker synchronization state
// carried inside a state token (spec §3, §4.2). DownloadedComments
// records tracker-side comment ids already mirrored back to the
// platform, so the engine never double-mirrors one (spec P4).
type TrackerIssueState struct {
	Closed             bool     `json:"closed"`
	BugtrackerName     string   `json:"bugtracker_name"`
	DownloadedComments []string `json:"downloaded_comments"`
}

// SentComment is the result of sending one log to a tracker as a comment:
// the adapter reports back what it actually created so the synchronizer
// can log it and, on partial failure, know how far it got (spec §4.5
// send_logs, §4.6 failure semantics).
type SentComment struct {
	CommentID string
	CreatedAt time.Time
	Author    string
}
