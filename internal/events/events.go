// Package events defines the listener contract the orchestrator (C7) and
// report synchronizer (C6) emit through (spec §6 "Events surface through
// a listener interface to the driver", §4.6 "Events"): start/end events
// at each phase, carrying inputs on start and a result record on end.
//
// There is no event bus or pub/sub framework here: Listener is a plain
// struct of optional callbacks, invoked synchronously and in order —
// mirroring the teacher's own trigger-callback shape in
// internal/server/triggers.go (a handler struct invoked inline from the
// scheduler, not routed through a generic broker).
package events

import "time"

// Phase names one level of the orchestration hierarchy an event belongs
// to (spec §4.6 "overall, per-platform, per-program, per-report,
// per-tracker").
type Phase string

const (
	PhaseRun      Phase = "run"
	PhasePlatform Phase = "platform"
	PhaseProgram  Phase = "program"
	PhaseReport   Phase = "report"
	PhaseTracker  Phase = "tracker"
)

// Start carries a phase's inputs at the moment it begins.
type Start struct {
	Phase     Phase
	Platform  string
	Program   string
	ReportID  int64
	Tracker   string
	StartedAt time.Time
}

// Action records which macro-action the synchronizer took for a
// (report, tracker) pair (spec §4.6 "the synchronizer decides among four
// macro-actions").
type Action string

const (
	ActionCreatedIssue   Action = "created-issue"
	ActionReusedIssue    Action = "reused-issue"
	ActionRecoveredStale Action = "recovered-stale-issue"
	ActionNoOp           Action = "no-op"
)

// Result carries a phase's outcome at the moment it ends (spec §4.6
// "a result record"). Err is non-nil iff the phase failed; per the
// propagation policy (spec §7) a per-pair error here does not abort
// sibling phases, while a platform/configuration-level error aborts the
// whole run. The orchestrator does not inspect Err to decide which: an
// error building or authenticating a platform client ends the run, while
// a program's errors are logged and carried in its end event.
type Result struct {
	Phase    Phase
	Platform string
	Program  string
	ReportID int64
	Tracker  string
	Duration time.Duration

	Action          Action
	LogsSent        int
	CommentsPulled  int
	StateTransition string

	Err error
}

// Listener is a plain struct of optional callbacks; nil fields are
// skipped. All methods below are safe to call on a nil *Listener.
type Listener struct {
	OnStart func(Start)
	OnEnd   func(Result)
}

// EmitStart invokes OnStart if set; a nil *Listener is a no-op, so
// callers never need a nil check before emitting.
func (l *Listener) EmitStart(s Start) {
	if l != nil && l.OnStart != nil {
		l.OnStart(s)
	}
}

// EmitEnd invokes OnEnd if set; a nil *Listener is a no-op.
func (l *Listener) EmitEnd(r Result) {
	if l != nil && l.OnEnd != nil {
		l.OnEnd(r)
	}
}

// Recorder is a small, test-facing Listener that captures every event
// in order so event-sequence assertions (spec §8 scenarios S1-S6) can
// inspect what actually fired, without needing a real tracker/platform.
type Recorder struct {
	Starts []Start
	Ends   []Result
}

// Listener returns an events.Listener wired to append into r.
func (r *Recorder) Listener() *Listener {
	return &Listener{
		OnStart: func(s Start) { r.Starts = append(r.Starts, s) },
		OnEnd:   func(res Result) { r.Ends = append(r.Ends, res) },
	}
}
