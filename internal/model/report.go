// Package model holds the plain data types shared across the synchronization
// engine: reports, logs, attachments and the tracker-side mirrors of them.
//
// None of these types carry behavior beyond simple accessors; they are the
// immutable snapshot a single reconciliation round operates over (a report
// fetched from the platform is never mutated in place — see
// internal/reconcile).
package model

import "time"

// CVSS is the criticity/score/vector triple carried by a report and by
// cvss-update logs.
type CVSS struct {
	Criticity string  `json:"criticity"`
	Score     float64 `json:"score"`
	Vector    string  `json:"vector"`
}

// BugType names a vulnerability class with links to further reading and
// remediation guidance.
type BugType struct {
	Name             string `json:"name"`
	Link             string `json:"link"`
	RemediationLink  string `json:"remediation_link"`
}

// Attachment describes a file attached to a report or a log. Bytes are
// never read eagerly: Load is a thunk invoked only by whatever needs the
// payload (the tracker adapters, when uploading it). See Design Notes §9
// "Attachment lazy loading".
type Attachment struct {
	ID           int64
	Name         string
	OriginalName string
	MIME         string
	Size         int64
	URL          string

	// Load fetches the attachment bytes on demand. Implementations come
	// from the platform client (internal/platform) and close over the
	// authenticated session needed to retrieve them.
	Load func() ([]byte, error)
}

// TrackingStatus is the report's coarse workflow position on the platform
// with respect to tracker synchronization.
type TrackingStatus string

const (
	TrackingStatusAwaitingImplementation TrackingStatus = "AFI"
	TrackingStatusTracked                TrackingStatus = "T"
)

// Report is an immutable snapshot of one vulnerability submission, fetched
// once per reconciliation round.
type Report struct {
	ID      int64
	LocalID string

	Title            string
	Scope            string
	VulnerablePart   string
	EndPoint         string
	CVSS             CVSS
	BugType          BugType
	PayloadSample    string
	TechnicalEnv     string
	DescriptionHTML  string
	Attachments      []Attachment
	Hunter           string
	ProgramSlug      string
	Status           string
	TrackingStatus   TrackingStatus

	Logs []Log
}

// LogsNewestFirst returns the report's logs in reverse delivery order,
// convenient for the "walk newest to oldest" lookups the synchronizer
// performs (spec §4.6 step 1). The original slice is never mutated.
func (r Report) LogsNewestFirst() []Log {
	out := make([]Log, len(r.Logs))
	for i, l := range r.Logs {
		out[len(r.Logs)-1-i] = l
	}
	return out
}

// Time is an alias of time.Time.
type Time = time.Time
