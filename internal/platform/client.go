// Package platform implements C4, the platform client: authenticate,
// fetch reports with filters, retrieve logs, write tracking-status
// updates and tracker-update feedback logs (spec §4.4).
//
// The request/response envelope is grounded on the teacher's
// internal/service/client.go HTTPMCPClient and the klient-based provider
// adapters in internal/service/llm/* (e.g. openai.Provider): a
// worldline-go/klient client configured once with a base URL and default
// headers, requests built with http.NewRequestWithContext, responses
// consumed through klient's callback-style client.Do(req, func(*http.Response)
// error). That JSON-RPC-shaped envelope is generalized here to the
// platform's plain REST framing.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/worldline-go/klient"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/model"
	"github.com/yeswehack/ywh2bt-go/internal/ywherr"
)

// Credentials selects one of the two authentication flows spec §4.4
// "authenticate" accepts: login/password(+TOTP) or a personal access
// token.
type Credentials struct {
	Login    string
	Password string
	Totp     string
	PAT      string
}

// Client is a single platform's authenticated HTTP session, shared across
// one orchestration run per spec §5 "Shared resources". It does not
// authenticate itself on first use: Authenticate must be called before
// any other operation, and the orchestrator calls it once per run.
type Client struct {
	http        *klient.Client
	baseURL     string
	appsHeaders map[string]string

	sessionToken string
}

// New builds a Client for one platform configuration. The HTTP session is
// not authenticated yet; Authenticate must be called before any other
// operation.
func New(cfg config.PlatformConfig) (*Client, error) {
	headers := http.Header{
		"Content-Type": []string{"application/json"},
	}
	for k, v := range cfg.AppsHeaders {
		headers.Set(k, v)
	}

	opts := []klient.OptionClientFn{
		klient.WithBaseURL(cfg.APIURL),
		klient.WithHeaderSet(headers),
		klient.WithDisableEnvValues(true),
	}
	if !cfg.VerifyTLS() {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}

	c, err := klient.New(opts...)
	if err != nil {
		return nil, ywherr.New(ywherr.KindConfiguration, "platform.New", err)
	}

	return &Client{http: c, baseURL: cfg.APIURL, appsHeaders: cfg.AppsHeaders}, nil
}

// Authenticate exchanges creds for a session token (spec §4.4
// "authenticate"). Subsequent operations attach it as a bearer token.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.PAT != "" {
		var resp struct {
			Token string `json:"token"`
		}
		body := map[string]string{"pat": creds.PAT}
		if err := c.doJSON(ctx, http.MethodPost, "/login", body, &resp); err != nil {
			return err
		}
		c.sessionToken = resp.Token
		return nil
	}

	if creds.Login == "" {
		return ywherr.Fatal(ywherr.KindAuthentication, "platform.Authenticate", fmt.Errorf("no credentials configured"))
	}

	body := map[string]string{"login": creds.Login, "password": creds.Password}
	if creds.Totp != "" {
		body["totp"] = creds.Totp
	}

	var resp struct {
		Token        string `json:"token"`
		TotpRequired bool   `json:"totp_required"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return err
	}
	if resp.TotpRequired && creds.Totp == "" {
		return ywherr.Fatal(ywherr.KindAuthentication, "platform.Authenticate", fmt.Errorf("TOTP code required"))
	}

	c.sessionToken = resp.Token
	return nil
}

// reportDTO is the platform's wire representation of a Report, decoded
// into model.Report by toReport.
type reportDTO struct {
	ID              int64             `json:"id"`
	LocalID         string            `json:"local_id"`
	Title           string            `json:"title"`
	Scope           string            `json:"scope"`
	VulnerablePart  string            `json:"vulnerable_part"`
	EndPoint        string            `json:"end_point"`
	CVSS            model.CVSS        `json:"cvss"`
	BugType         model.BugType     `json:"bug_type"`
	PayloadSample   string            `json:"payload_sample"`
	TechnicalEnv    string            `json:"technical_environment"`
	DescriptionHTML string            `json:"description_html"`
	Attachments     []attachmentDTO   `json:"attachments"`
	Hunter          string            `json:"hunter"`
	ProgramSlug     string            `json:"program_slug"`
	Status          string            `json:"status"`
	TrackingStatus  string            `json:"tracking_status"`
	Logs            []logDTO          `json:"logs"`
}

type attachmentDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	MIME         string `json:"mime_type"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

type logDTO struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	CreatedAt     time.Time       `json:"created_at"`
	Author        string          `json:"author"`
	Private       bool            `json:"private_comment"`
	Message       string          `json:"message_html"`
	Attachments   []attachmentDTO `json:"attachments"`
	OldCVSS       *model.CVSS     `json:"old_cvss,omitempty"`
	NewCVSS       *model.CVSS     `json:"new_cvss,omitempty"`
	OldDetails    map[string]string `json:"old_details,omitempty"`
	NewDetails    map[string]string `json:"new_details,omitempty"`
	NewPriority   string          `json:"new_priority,omitempty"`
	RewardAmount  float64         `json:"reward_amount,omitempty"`
	RewardCurrency string         `json:"reward_currency,omitempty"`
	OldStatus     string          `json:"old_status,omitempty"`
	NewStatus     string          `json:"new_status,omitempty"`
	TrackerName   string          `json:"tracker_name,omitempty"`
	TrackerID     string          `json:"tracker_id,omitempty"`
	TrackerURL    string          `json:"tracker_url,omitempty"`
	StateToken    string          `json:"state_token,omitempty"`
}

func (c *Client) toAttachment(a attachmentDTO) model.Attachment {
	return model.Attachment{
		ID:           a.ID,
		Name:         a.Name,
		OriginalName: a.OriginalName,
		MIME:         a.MIME,
		Size:         a.Size,
		URL:          a.URL,
		Load: func() ([]byte, error) {
			return c.downloadAttachment(context.Background(), a.URL)
		},
	}
}

func (c *Client) toReport(dto reportDTO) model.Report {
	r := model.Report{
		ID:              dto.ID,
		LocalID:         dto.LocalID,
		Title:           dto.Title,
		Scope:           dto.Scope,
		VulnerablePart:  dto.VulnerablePart,
		EndPoint:        dto.EndPoint,
		CVSS:            dto.CVSS,
		BugType:         dto.BugType,
		PayloadSample:   dto.PayloadSample,
		TechnicalEnv:    dto.TechnicalEnv,
		DescriptionHTML: dto.DescriptionHTML,
		Hunter:          dto.Hunter,
		ProgramSlug:     dto.ProgramSlug,
		Status:          dto.Status,
		TrackingStatus:  model.TrackingStatus(dto.TrackingStatus),
	}
	for _, a := range dto.Attachments {
		r.Attachments = append(r.Attachments, c.toAttachment(a))
	}
	for _, l := range dto.Logs {
		log := model.Log{
			ID:             l.ID,
			Kind:           model.LogKind(l.Type),
			CreatedAt:      l.CreatedAt,
			Author:         l.Author,
			Private:        l.Private,
			Message:        l.Message,
			OldCVSS:        l.OldCVSS,
			NewCVSS:        l.NewCVSS,
			OldDetails:     l.OldDetails,
			NewDetails:     l.NewDetails,
			NewPriority:    l.NewPriority,
			RewardAmount:   l.RewardAmount,
			RewardCurrency: l.RewardCurrency,
			OldStatus:      l.OldStatus,
			NewStatus:      l.NewStatus,
			TrackerName:    l.TrackerName,
			TrackerID:      l.TrackerID,
			TrackerURL:     l.TrackerURL,
			StateToken:     l.StateToken,
		}
		for _, a := range l.Attachments {
			log.Attachments = append(log.Attachments, c.toAttachment(a))
		}
		r.Logs = append(r.Logs, log)
	}
	return r
}

// ListReports fetches candidate reports for one program (spec §4.4 "list
// reports").
func (c *Client) ListReports(ctx context.Context, programSlug string, filters map[string]string) ([]model.Report, error) {
	path := fmt.Sprintf("/programs/%s/reports", programSlug)
	if len(filters) > 0 {
		q := "?"
		first := true
		for k, v := range filters {
			if !first {
				q += "&"
			}
			first = false
			q += k + "=" + v
		}
		path += q
	}

	var resp struct {
		Items []reportDTO `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	reports := make([]model.Report, 0, len(resp.Items))
	for _, dto := range resp.Items {
		reports = append(reports, c.toReport(dto))
	}
	return reports, nil
}

// GetReport fetches one report with its logs and attachment metadata
// (spec §4.4 "get report").
func (c *Client) GetReport(ctx context.Context, reportID int64) (model.Report, error) {
	var dto reportDTO
	path := fmt.Sprintf("/reports/%d", reportID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return model.Report{}, err
	}
	return c.toReport(dto), nil
}

// PutTrackingStatus writes a tracking-status log (spec §4.4 "put
// tracking-status"), called exactly once per report the first time it
// becomes tracked in a given tracker (spec §4.4 "Semantics").
func (c *Client) PutTrackingStatus(ctx context.Context, reportID int64, status model.TrackingStatus, trackerName, trackerID, trackerURL, comment string) error {
	body := map[string]any{
		"status":       status,
		"tracker_name": trackerName,
		"tracker_id":   trackerID,
		"tracker_url":  trackerURL,
		"comment":      comment,
	}
	path := fmt.Sprintf("/reports/%d/tracking-status", reportID)
	return c.doJSON(ctx, http.MethodPut, path, body, nil)
}

// PostTrackerUpdate writes a tracker-update feedback log embedding a fresh
// state token (spec §4.4 "post tracker-update"), called after every
// successful synchronization round that changed the tracker side.
func (c *Client) PostTrackerUpdate(ctx context.Context, reportID int64, trackerName, trackerID, trackerURL, stateToken, comment string) error {
	body := map[string]any{
		"tracker_name": trackerName,
		"tracker_id":   trackerID,
		"tracker_url":  trackerURL,
		"state_token":  stateToken,
		"comment":      comment,
	}
	path := fmt.Sprintf("/reports/%d/tracker-update", reportID)
	return c.doJSON(ctx, http.MethodPost, path, body, nil)
}

// PostComment posts a platform-side comment, used to mirror tracker-origin
// comments back in (spec §4.6 "Decide which tracker comments to pull in").
func (c *Client) PostComment(ctx context.Context, reportID int64, body string, private bool) error {
	payload := map[string]any{"message": body, "private": private}
	path := fmt.Sprintf("/reports/%d/comments", reportID)
	return c.doJSON(ctx, http.MethodPost, path, payload, nil)
}

func (c *Client) downloadAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ywherr.New(ywherr.KindTransport, "platform.downloadAttachment", err)
	}
	c.authorize(req)

	var data []byte
	err = c.http.Do(req, func(r *http.Response) error {
		if r.StatusCode >= 400 {
			return ywherr.New(classifyStatus(r.StatusCode), "platform.downloadAttachment", fmt.Errorf("status %d", r.StatusCode))
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}
}

// doJSON issues one request/response round trip through the shared klient
// client, generalizing HTTPMCPClient's single sendRequest entry point from
// JSON-RPC framing to the platform's plain REST framing.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return ywherr.New(ywherr.KindProtocol, "platform.doJSON", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return ywherr.New(ywherr.KindTransport, "platform.doJSON", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	return c.http.Do(req, func(r *http.Response) error {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return ywherr.New(ywherr.KindTransport, "platform.doJSON", err)
		}

		if r.StatusCode == http.StatusUnauthorized {
			return ywherr.Fatal(ywherr.KindAuthentication, "platform.doJSON", fmt.Errorf("unauthorized: %s", data))
		}
		if r.StatusCode == http.StatusNotFound {
			return ywherr.New(ywherr.KindNotFound, "platform.doJSON", fmt.Errorf("not found: %s %s", method, path))
		}
		if r.StatusCode >= 400 {
			return ywherr.New(classifyStatus(r.StatusCode), "platform.doJSON", fmt.Errorf("status %d: %s", r.StatusCode, data))
		}

		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return ywherr.New(ywherr.KindProtocol, "platform.doJSON", fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}

func classifyStatus(status int) ywherr.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ywherr.KindAuthentication
	case status == http.StatusNotFound:
		return ywherr.KindNotFound
	case status >= 500:
		return ywherr.KindTransport
	default:
		return ywherr.KindProtocol
	}
}
