// Package trackers defines the uniform tracker-adapter contract (spec
// §4.5, C5) and the init-time registry that maps a configuration type
// discriminator to an adapter constructor.
//
// The registry is the same tagged-sum + init-time-registry pattern
// internal/config uses for configuration variants (Design Notes §9),
// applied here to adapter construction — directly modeled on the
// teacher's node-type registry
// (_examples/rakunlabs-at/internal/service/workflow/node.go:
// RegisterNodeType/GetNodeFactory). Concrete adapters in
// internal/trackers/{github,gitlab,jira,servicenow} register themselves
// from an init() function exactly as the teacher's nodes/register.go
// registers node types.
package trackers

import (
	"context"
	"fmt"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/model"
)

// CommentInput is one outbound comment body queued for SendLogs, paired
// with the log it was rendered from so adapters needing per-log metadata
// (e.g. visibility) can use it.
type CommentInput struct {
	Log  model.Log
	Body string
}

// Adapter is the uniform contract every tracker implementation satisfies
// (spec §4.5). Inputs/outputs are stated as contracts there, not
// signatures; this interface is this repository's concrete rendering of
// that contract.
type Adapter interface {
	// Test succeeds iff credentials grant enough access to create and
	// list issues.
	Test(ctx context.Context) error

	// GetIssue returns the tracker issue, or nil iff the tracker
	// definitively reports no such issue. Errors MUST NOT be silently
	// collapsed to a nil TrackerIssue.
	GetIssue(ctx context.Context, issueID string) (*model.TrackerIssue, error)

	// SendReport creates a new issue containing the formatted description
	// and uploads all attachments. The returned TrackerIssue has
	// non-empty IssueID and IssueURL.
	SendReport(ctx context.Context, report model.Report, title, description string) (model.TrackerIssue, error)

	// SendLogs appends one tracker comment per input in input order;
	// partial failure is surfaced as an error, and previously-created
	// comments are not rolled back.
	SendLogs(ctx context.Context, issue model.TrackerIssue, comments []CommentInput) ([]model.SentComment, error)

	// GetIssueComments returns tracker-origin comments in chronological
	// order, excluding ids present in excludeIDs. Only the servicenow
	// adapter fills TrackerIssueComment.Attachments (with the bytes of
	// files attached to the incident); the github, gitlab and jira
	// adapters return comment bodies without fetching the images they
	// reference.
	GetIssueComments(ctx context.Context, issueID string, excludeIDs map[string]bool) ([]model.TrackerIssueComment, error)
}

// Factory constructs an Adapter from its configuration variant.
type Factory func(cfg config.TrackerConfig) (Adapter, error)

var factories = map[string]Factory{}

// Register registers an adapter factory for a given tracker type
// discriminator. Called from init() functions in the
// internal/trackers/{github,gitlab,jira,servicenow} packages.
func Register(typeName string, factory Factory) {
	factories[typeName] = factory
}

// New constructs the adapter registered for cfg.Type().
func New(cfg config.TrackerConfig) (Adapter, error) {
	factory, ok := factories[cfg.Type()]
	if !ok {
		return nil, fmt.Errorf("trackers: no adapter registered for type %q", cfg.Type())
	}
	return factory(cfg)
}

// RegisteredTypes lists every registered tracker type, in no particular
// order. No CLI command calls it.
func RegisteredTypes() []string {
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	return out
}
