// Package render implements C3, the message formatter: report
// descriptions, issue titles, comment bodies and feedback messages,
// rendered from templates per tracker dialect (spec §4.3).
//
// Template execution is unchanged from the teacher's own
// internal/render/render.go (rytsh/mugo's templatex/fstore function map);
// only the templates and the calling code are new, built for this
// package's domain instead of the teacher's LLM-prompt rendering.
package render

import (
	"embed"
	"fmt"
	"strings"

	"github.com/yeswehack/ywh2bt-go/internal/model"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

func mustTemplate(name string) string {
	b, err := templatesFS.ReadFile("templates/" + name)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Dialect selects which markup a tracker expects (spec §4.1, §4.3):
// markdown (GitHub, GitLab, ServiceNow) or wiki (Jira).
type Dialect string

const (
	DialectMarkdown Dialect = "markdown"
	DialectWiki     Dialect = "wiki"
)

// ReportView is the flattened, template-ready projection of a Report the
// description template is parameterized with (spec §4.3): local-id,
// title, priority name, bug-type triple, scope, CVSS triple, end-point,
// vulnerable part, part name, payload sample, technical environment, and
// the post-transform description.
type ReportView struct {
	LocalID      string
	Title        string
	PriorityName string

	BugTypeName             string
	BugTypeLink             string
	BugTypeRemediationLink  string

	Scope          string
	PartName       string
	VulnerablePart string
	EndPoint       string

	CVSSCriticity string
	CVSSScore     float64
	CVSSVector    string

	PayloadSample string
	TechnicalEnv  string
	Description   string
}

// NewReportView projects r into a ReportView, substituting description for
// r.DescriptionHTML already run through the content transformer (the
// caller decides dialect and does that transform — this package only
// renders the result into position).
func NewReportView(r model.Report, description string) ReportView {
	return ReportView{
		LocalID:                r.LocalID,
		Title:                  r.Title,
		PriorityName:           r.BugType.Name,
		BugTypeName:            r.BugType.Name,
		BugTypeLink:            r.BugType.Link,
		BugTypeRemediationLink: r.BugType.RemediationLink,
		Scope:                  r.Scope,
		PartName:               r.VulnerablePart,
		VulnerablePart:         r.VulnerablePart,
		EndPoint:               r.EndPoint,
		CVSSCriticity:          r.CVSS.Criticity,
		CVSSScore:              r.CVSS.Score,
		CVSSVector:             r.CVSS.Vector,
		PayloadSample:          r.PayloadSample,
		TechnicalEnv:           r.TechnicalEnv,
		Description:            description,
	}
}

// statusLabels is the fixed mapping from platform workflow status names to
// human strings (spec §4.3 "Status labels are translated through a fixed
// mapping to human strings"). Unknown statuses fall back to the raw name.
var statusLabels = map[string]string{
	"new":               "New",
	"accepted":          "Accepted",
	"ask_for_more_info": "Waiting for more information",
	"resolved":          "Resolved",
	"rejected":          "Rejected",
	"duplicate":         "Duplicate",
	"informative":       "Informative",
}

func statusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

// Formatter renders report descriptions, comment bodies and feedback
// messages for one tracker dialect.
type Formatter struct {
	Dialect Dialect
}

func NewFormatter(dialect Dialect) *Formatter {
	return &Formatter{Dialect: dialect}
}

// RenderDescription renders view's dialect-specific description template.
func (f *Formatter) RenderDescription(view ReportView) (string, error) {
	tmpl := mustTemplate("description.md.tmpl")
	if f.Dialect == DialectWiki {
		tmpl = mustTemplate("description.wiki.tmpl")
	}
	return f.execute(tmpl, view)
}

// FeedbackView parameterizes the tracking-status-update and
// synchronization-done feedback messages (spec §4.3).
type FeedbackView struct {
	TrackerType    string
	TrackerBaseURL string
	Project        string
	IssueURL       string
	CommentsAdded  int
	StateTransition string
}

// RenderTrackingStatusUpdate renders the message sent the first time a
// report becomes tracked in a given tracker (spec §4.3, §4.6 "Write
// back").
func (f *Formatter) RenderTrackingStatusUpdate(view FeedbackView) (string, error) {
	return f.execute(mustTemplate("tracking_status_update.tmpl"), view)
}

// RenderSynchronizationDone renders the message sent on every subsequent
// successful synchronization round (spec §4.3, §4.6).
func (f *Formatter) RenderSynchronizationDone(view FeedbackView) (string, error) {
	return f.execute(mustTemplate("synchronization_done.tmpl"), view)
}

// logCommentTemplates maps each typed log variant to its comment-body
// template (spec §4.3 "A separate template set formats logs into comment
// bodies for each typed log variant").
var logCommentTemplates = map[model.LogKind]string{
	model.LogKindComment:        "log_comment.md.tmpl",
	model.LogKindCVSSUpdate:     "log_cvss_update.md.tmpl",
	model.LogKindDetailsUpdate:  "log_details_update.md.tmpl",
	model.LogKindPriorityUpdate: "log_priority_update.md.tmpl",
	model.LogKindReward:         "log_reward.md.tmpl",
	model.LogKindStatusUpdate:   "log_status_update.md.tmpl",
	model.LogKindTrackerMessage: "log_comment.md.tmpl",
}

// logCommentData is the per-kind template data assembled from a Log
// (Design Notes §9 "single dispatch on log variants", re-architected as a
// tagged-union match — here the match is this function's switch on
// l.Kind instead of model.LogVisitor since the formatter only needs to
// pick a template and a data shape, not run side effects per kind).
func logCommentData(l model.Log, body string) any {
	switch l.Kind {
	case model.LogKindCVSSUpdate:
		oldCVSS, newCVSS := l.OldCVSS, l.NewCVSS
		if oldCVSS == nil {
			oldCVSS = &model.CVSS{}
		}
		if newCVSS == nil {
			newCVSS = &model.CVSS{}
		}
		return struct {
			OldCriticity, NewCriticity string
			OldScore, NewScore         float64
			OldVector, NewVector       string
		}{oldCVSS.Criticity, newCVSS.Criticity, oldCVSS.Score, newCVSS.Score, oldCVSS.Vector, newCVSS.Vector}
	case model.LogKindDetailsUpdate:
		return struct{ NewDetails map[string]string }{l.NewDetails}
	case model.LogKindPriorityUpdate:
		return struct{ NewPriority string }{l.NewPriority}
	case model.LogKindReward:
		return struct {
			RewardAmount   float64
			RewardCurrency string
		}{l.RewardAmount, l.RewardCurrency}
	case model.LogKindStatusUpdate:
		return struct{ OldStatusLabel, NewStatusLabel string }{statusLabel(l.OldStatus), statusLabel(l.NewStatus)}
	default:
		return struct{ Body string }{body}
	}
}

// RenderLogComment renders one log as a tracker comment body. body is the
// log's Message already run through the content transformer for this
// dialect; it is used as-is for comment/tracker-message kinds and ignored
// by kinds that render structured fields instead (spec §4.3).
func (f *Formatter) RenderLogComment(l model.Log, body string) (string, error) {
	name, ok := logCommentTemplates[l.Kind]
	if !ok {
		// Design Notes §9 default arm: emit the raw message through the
		// content transformer.
		return body, nil
	}
	return f.execute(mustTemplate(name), logCommentData(l, body))
}

// DownloadCommentView parameterizes the "download comment" template used
// to mirror a tracker-origin comment back to the platform (spec §4.6
// "Decide which tracker comments to pull in", step 2).
type DownloadCommentView struct {
	TrackerType string
	Author      string
	CreatedAt   string
	Body        string
}

func (f *Formatter) RenderDownloadComment(view DownloadCommentView) (string, error) {
	return f.execute(mustTemplate("download_comment.md.tmpl"), view)
}

func (f *Formatter) execute(tmpl string, data any) (string, error) {
	out, err := ExecuteWithFuncs(tmpl, data, nil)
	if err != nil {
		return "", fmt.Errorf("render message: %w", err)
	}
	return strings.TrimRight(string(out), "\n") + "\n", nil
}
