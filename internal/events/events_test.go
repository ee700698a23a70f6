package events

import "testing"

func TestNilListenerIsNoOp(t *testing.T) {
	var l *Listener
	l.EmitStart(Start{Phase: PhaseReport})
	l.EmitEnd(Result{Phase: PhaseReport})
}

func TestRecorderCapturesEventsInOrder(t *testing.T) {
	r := &Recorder{}
	l := r.Listener()

	l.EmitStart(Start{Phase: PhaseReport, ReportID: 1})
	l.EmitEnd(Result{Phase: PhaseReport, ReportID: 1, Action: ActionCreatedIssue})

	if len(r.Starts) != 1 || r.Starts[0].ReportID != 1 {
		t.Fatalf("unexpected starts: %+v", r.Starts)
	}
	if len(r.Ends) != 1 || r.Ends[0].Action != ActionCreatedIssue {
		t.Fatalf("unexpected ends: %+v", r.Ends)
	}
}
