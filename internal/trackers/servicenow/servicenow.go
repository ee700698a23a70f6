// Package servicenow implements the servicenow tracker adapter (spec
// §4.5): incidents as tracker issues, journal entries as sent/received
// logs, and GetIssueComments merging two resource streams — journal
// entries and attachment metadata — into one chronologically ordered
// comment list, since ServiceNow exposes them as separate tables.
package servicenow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/worldline-go/klient"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/model"
	"github.com/yeswehack/ywh2bt-go/internal/trackers"
	"github.com/yeswehack/ywh2bt-go/internal/ywherr"
)

func init() {
	trackers.Register("servicenow", func(cfg config.TrackerConfig) (trackers.Adapter, error) {
		sn, ok := cfg.(*config.ServiceNowConfig)
		if !ok {
			return nil, fmt.Errorf("servicenow: unexpected config type %T", cfg)
		}
		return New(sn)
	})
}

// Adapter is the servicenow tracker adapter. Project is the incident
// table's sys_id of the target record's parent, typically unused — the
// incident number itself is the TrackerIssue.IssueID.
type Adapter struct {
	http *klient.Client
	base string
}

func New(cfg *config.ServiceNowConfig) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, ywherr.New(ywherr.KindConfiguration, "servicenow.New", fmt.Errorf("url is required"))
	}

	opts := []klient.OptionClientFn{
		klient.WithBaseURL(cfg.URL),
		klient.WithHeaderSet(http.Header{
			"Authorization": []string{basicAuth(cfg.Login, cfg.Password)},
		}),
		klient.WithDisableEnvValues(true),
	}
	if !cfg.VerifyTLS() {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}
	c, err := klient.New(opts...)
	if err != nil {
		return nil, ywherr.New(ywherr.KindConfiguration, "servicenow.New", err)
	}
	return &Adapter{http: c, base: cfg.URL}, nil
}

func basicAuth(login, password string) string {
	return "Basic " + basicToken(login, password)
}

func (a *Adapter) Test(ctx context.Context) error {
	var resp struct {
		Result []struct{} `json:"result"`
	}
	return a.doJSON(ctx, http.MethodGet, "/api/now/table/incident?sysparm_limit=1", nil, &resp)
}

func (a *Adapter) GetIssue(ctx context.Context, issueID string) (*model.TrackerIssue, error) {
	var resp struct {
		Result []incidentDTO `json:"result"`
	}
	path := "/api/now/table/incident?sysparm_query=number=" + issueID + "&sysparm_limit=1"
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	ti := a.toTrackerIssue(resp.Result[0])
	return &ti, nil
}

func (a *Adapter) SendReport(ctx context.Context, report model.Report, title, description string) (model.TrackerIssue, error) {
	body := map[string]any{
		"short_description": title,
		"description":       description,
	}
	var resp struct {
		Result incidentDTO `json:"result"`
	}
	if err := a.doJSON(ctx, http.MethodPost, "/api/now/table/incident", body, &resp); err != nil {
		return model.TrackerIssue{}, err
	}

	if err := a.uploadAttachments(ctx, resp.Result.SysID, report.Attachments); err != nil {
		return model.TrackerIssue{}, err
	}

	return a.toTrackerIssue(resp.Result), nil
}

func (a *Adapter) uploadAttachments(ctx context.Context, incidentSysID string, atts []model.Attachment) error {
	for _, att := range atts {
		data, err := att.Load()
		if err != nil {
			return ywherr.New(ywherr.KindAdapterInternal, "servicenow.uploadAttachments", err)
		}
		path := fmt.Sprintf("/api/now/attachment/file?table_name=incident&table_sys_id=%s&file_name=%s", incidentSysID, att.Name)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(data))
		if err != nil {
			return ywherr.New(ywherr.KindTransport, "servicenow.uploadAttachments", err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		if err := a.doRequest(req, nil); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) SendLogs(ctx context.Context, issue model.TrackerIssue, comments []trackers.CommentInput) ([]model.SentComment, error) {
	sent := make([]model.SentComment, 0, len(comments))
	for _, c := range comments {
		field := "comments"
		if c.Log.Private {
			field = "work_notes"
		}
		path := "/api/now/table/incident/" + issue.IssueID
		var resp struct {
			Result incidentDTO `json:"result"`
		}
		if err := a.doJSON(ctx, http.MethodPut, path, map[string]any{field: c.Body}, &resp); err != nil {
			return sent, err
		}
		sent = append(sent, model.SentComment{CreatedAt: time.Now()})
	}
	return sent, nil
}

// GetIssueComments merges ServiceNow's journal-entry table (comments and
// work notes) with its attachment-metadata table into one chronological
// comment list, tagging attachment-origin entries with their downloaded
// bytes (spec §4.5 "Two resource streams... merged chronologically").
func (a *Adapter) GetIssueComments(ctx context.Context, issueID string, excludeIDs map[string]bool) ([]model.TrackerIssueComment, error) {
	incidentSysID, err := a.resolveSysID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	var journal struct {
		Result []journalEntryDTO `json:"result"`
	}
	jpath := "/api/now/table/sys_journal_field?sysparm_query=element_id=" + incidentSysID
	if err := a.doJSON(ctx, http.MethodGet, jpath, nil, &journal); err != nil {
		return nil, err
	}

	var atts struct {
		Result []attachmentMetaDTO `json:"result"`
	}
	apath := "/api/now/attachment?sysparm_query=table_sys_id=" + incidentSysID
	if err := a.doJSON(ctx, http.MethodGet, apath, nil, &atts); err != nil {
		return nil, err
	}

	var merged []model.TrackerIssueComment
	for _, j := range journal.Result {
		if excludeIDs[j.SysID] {
			continue
		}
		merged = append(merged, model.TrackerIssueComment{
			ID:        j.SysID,
			Author:    j.SysCreatedBy,
			CreatedAt: j.createdAt(),
			Body:      j.Value,
		})
	}
	for _, att := range atts.Result {
		if excludeIDs[att.SysID] {
			continue
		}
		data, err := a.downloadAttachment(ctx, att.SysID)
		if err != nil {
			return nil, err
		}
		merged = append(merged, model.TrackerIssueComment{
			ID:          att.SysID,
			Author:      att.SysCreatedBy,
			CreatedAt:   att.createdAt(),
			Body:        "attached file: " + att.FileName,
			Attachments: map[string][]byte{att.FileName: data},
		})
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].CreatedAt.Before(merged[j].CreatedAt) })
	return merged, nil
}

func (a *Adapter) resolveSysID(ctx context.Context, issueID string) (string, error) {
	var resp struct {
		Result []incidentDTO `json:"result"`
	}
	path := "/api/now/table/incident?sysparm_query=number=" + issueID + "&sysparm_limit=1"
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Result) == 0 {
		return "", ywherr.New(ywherr.KindNotFound, "servicenow.resolveSysID", fmt.Errorf("no incident with number %s", issueID))
	}
	return resp.Result[0].SysID, nil
}

func (a *Adapter) downloadAttachment(ctx context.Context, sysID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/api/now/attachment/"+sysID+"/file", nil)
	if err != nil {
		return nil, ywherr.New(ywherr.KindTransport, "servicenow.downloadAttachment", err)
	}
	var data []byte
	err = a.http.Do(req, func(r *http.Response) error {
		if r.StatusCode >= 400 {
			return ywherr.New(ywherr.KindTransport, "servicenow.downloadAttachment", fmt.Errorf("status %d", r.StatusCode))
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	return data, err
}

type incidentDTO struct {
	SysID  string `json:"sys_id"`
	Number string `json:"number"`
	State  string `json:"state"`
}

// ServiceNow's "Closed"/"Resolved" states, the terminal states this
// adapter treats as closed.
const (
	stateClosed   = "7"
	stateResolved = "6"
)

func (a *Adapter) toTrackerIssue(inc incidentDTO) model.TrackerIssue {
	return model.TrackerIssue{
		TrackerURL: a.base,
		IssueID:    inc.Number,
		IssueURL:   a.base + "/nav_to.do?uri=incident.do?sys_id=" + inc.SysID,
		Closed:     inc.State == stateClosed || inc.State == stateResolved,
	}
}

type journalEntryDTO struct {
	SysID        string `json:"sys_id"`
	Value        string `json:"value"`
	SysCreatedOn string `json:"sys_created_on"`
	SysCreatedBy string `json:"sys_created_by"`
}

func (j journalEntryDTO) createdAt() time.Time {
	t, _ := time.Parse("2006-01-02 15:04:05", j.SysCreatedOn)
	return t
}

type attachmentMetaDTO struct {
	SysID        string `json:"sys_id"`
	FileName     string `json:"file_name"`
	SysCreatedOn string `json:"sys_created_on"`
	SysCreatedBy string `json:"sys_created_by"`
}

func (a attachmentMetaDTO) createdAt() time.Time {
	t, _ := time.Parse("2006-01-02 15:04:05", a.SysCreatedOn)
	return t
}

func (a *Adapter) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return ywherr.New(ywherr.KindProtocol, "servicenow.doJSON", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return ywherr.New(ywherr.KindTransport, "servicenow.doJSON", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.doRequest(req, out)
}

func (a *Adapter) doRequest(req *http.Request, out any) error {
	return a.http.Do(req, func(r *http.Response) error {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return ywherr.New(ywherr.KindTransport, "servicenow.doRequest", err)
		}
		switch {
		case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
			return ywherr.Fatal(ywherr.KindAuthentication, "servicenow.doRequest", fmt.Errorf("status %d: %s", r.StatusCode, data))
		case r.StatusCode == http.StatusNotFound:
			return ywherr.New(ywherr.KindNotFound, "servicenow.doRequest", fmt.Errorf("not found: %s", req.URL.Path))
		case r.StatusCode >= 500:
			return ywherr.New(ywherr.KindTransport, "servicenow.doRequest", fmt.Errorf("status %d: %s", r.StatusCode, data))
		case r.StatusCode >= 400:
			return ywherr.New(ywherr.KindProtocol, "servicenow.doRequest", fmt.Errorf("status %d: %s", r.StatusCode, data))
		}
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return ywherr.New(ywherr.KindProtocol, "servicenow.doRequest", fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}

func basicToken(login, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(login + ":" + password))
}
