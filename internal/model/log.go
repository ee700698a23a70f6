package model

import "time"

// LogKind tags the typed variants a Log can carry. Design Notes §9
// re-architects the source's singledispatchmethod as a tagged union
// matched with a switch on Kind in LogVisitor.Visit — one arm per kind, with
// a default arm for anything the engine does not specifically recognize.
type LogKind string

const (
	LogKindComment         LogKind = "comment"
	LogKindCVSSUpdate      LogKind = "cvss-update"
	LogKindDetailsUpdate   LogKind = "details-update"
	LogKindPriorityUpdate  LogKind = "priority-update"
	LogKindReward          LogKind = "reward"
	LogKindStatusUpdate    LogKind = "status-update"
	LogKindTrackingStatus  LogKind = "tracking-status"
	LogKindTrackerUpdate   LogKind = "tracker-update"
	LogKindTrackerMessage  LogKind = "tracker-message"
)

// Log is a single timestamped, append-only event on a report (spec §3).
// Only the fields relevant to its Kind are populated; the rest are zero
// values. This mirrors the flat-struct-plus-discriminator shape the
// teacher uses for LLMConfig (internal/config before adaptation), chosen
// here over N separate Go types because the synchronizer needs to walk a
// single ordered []Log slice (spec §3.b forbids reordering).
type Log struct {
	ID        int64
	Kind      LogKind
	CreatedAt time.Time
	Author    string
	Private   bool
	Message   string // HTML, present for comment/tracker-message kinds
	Attachments []Attachment

	// cvss-update
	OldCVSS *CVSS
	NewCVSS *CVSS

	// details-update
	OldDetails map[string]string
	NewDetails map[string]string

	// priority-update
	NewPriority string

	// reward
	RewardAmount   float64
	RewardCurrency string

	// status-update
	OldStatus string
	NewStatus string

	// tracking-status / tracker-update
	TrackerName string
	TrackerID   string
	TrackerURL  string
	// StateToken is only set on tracker-update logs: the encrypted blob
	// produced by internal/state and embedded in the human comment.
	StateToken string
}

// LogVisitor dispatches on a Log's Kind. Each field handles one variant;
// Default handles everything the engine does not specifically recognize
// (Design Notes §9) — callers typically wire Default to "emit the raw
// message HTML through the content transformer".
type LogVisitor struct {
	Comment        func(Log)
	CVSSUpdate     func(Log)
	DetailsUpdate  func(Log)
	PriorityUpdate func(Log)
	Reward         func(Log)
	StatusUpdate   func(Log)
	TrackingStatus func(Log)
	TrackerUpdate  func(Log)
	TrackerMessage func(Log)
	Default        func(Log)
}

// Visit dispatches l to the matching handler in v, falling back to
// v.Default (or doing nothing if neither is set).
func (v LogVisitor) Visit(l Log) {
	var fn func(Log)
	switch l.Kind {
	case LogKindComment:
		fn = v.Comment
	case LogKindCVSSUpdate:
		fn = v.CVSSUpdate
	case LogKindDetailsUpdate:
		fn = v.DetailsUpdate
	case LogKindPriorityUpdate:
		fn = v.PriorityUpdate
	case LogKindReward:
		fn = v.Reward
	case LogKindStatusUpdate:
		fn = v.StatusUpdate
	case LogKindTrackingStatus:
		fn = v.TrackingStatus
	case LogKindTrackerUpdate:
		fn = v.TrackerUpdate
	case LogKindTrackerMessage:
		fn = v.TrackerMessage
	}
	if fn == nil {
		fn = v.Default
	}
	if fn != nil {
		fn(l)
	}
}
