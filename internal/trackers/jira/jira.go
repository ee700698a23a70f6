// Package jira implements the jira tracker adapter (spec §4.5): wiki
// dialect per C1, inline image syntax rewritten from markdown's
// `![alt](src)` to Jira's `!alt|src!`, and OAuth2-based authentication.
//
// REDESIGN FLAG (spec §"Hot-patching of a third-party case-insensitive
// dictionary"): the original adapter patches a third-party
// case-insensitive-dictionary type at runtime so that later mixed-case
// custom-field keys don't silently clobber earlier lowercase ones. This
// adapter instead normalizes every outbound issue-fields map exactly
// once, at the single boundary where a caller assembles one
// (normalizeFields), behind the plain map[string]any this package already
// uses — no patched dictionary type, no runtime surprise.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/worldline-go/klient"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/model"
	"github.com/yeswehack/ywh2bt-go/internal/trackers"
	"github.com/yeswehack/ywh2bt-go/internal/ywherr"
)

func init() {
	trackers.Register("jira", func(cfg config.TrackerConfig) (trackers.Adapter, error) {
		jc, ok := cfg.(*config.JiraConfig)
		if !ok {
			return nil, fmt.Errorf("jira: unexpected config type %T", cfg)
		}
		return New(jc)
	})
}

// Adapter is the jira tracker adapter. Project is a Jira project key.
type Adapter struct {
	http          *klient.Client
	baseURL       string
	project       string
	issuetypeName string
}

func New(cfg *config.JiraConfig) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, ywherr.New(ywherr.KindConfiguration, "jira.New", fmt.Errorf("url is required"))
	}

	headers := http.Header{}
	if len(cfg.OAuthArgs) > 0 {
		token, err := oauthToken(cfg)
		if err != nil {
			return nil, ywherr.New(ywherr.KindAuthentication, "jira.New", err)
		}
		headers.Set("Authorization", "Bearer "+token)
	} else if cfg.Login != "" {
		headers.Set("Authorization", basicAuth(cfg.Login, cfg.Password))
	}

	opts := []klient.OptionClientFn{
		klient.WithBaseURL(strings.TrimRight(cfg.URL, "/") + "/rest/api/2"),
		klient.WithHeaderSet(headers),
		klient.WithDisableEnvValues(true),
	}
	if !cfg.VerifyTLS() {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}
	c, err := klient.New(opts...)
	if err != nil {
		return nil, ywherr.New(ywherr.KindConfiguration, "jira.New", err)
	}

	issuetypeName := cfg.IssuetypeName
	if issuetypeName == "" {
		issuetypeName = "Bug"
	}
	return &Adapter{http: c, baseURL: cfg.URL, project: cfg.Project, issuetypeName: issuetypeName}, nil
}

// oauthToken obtains a bearer token through the client-credentials grant,
// grounded on the pack's golang.org/x/oauth2 usage for non-interactive
// service-to-service auth (there is no browser redirect step available in
// a batch CLI run).
func oauthToken(cfg *config.JiraConfig) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     cfg.OAuthArgs["client_id"],
		ClientSecret: cfg.OAuthArgs["client_secret"],
		TokenURL:     cfg.OAuthArgs["token_url"],
	}
	tok, err := cc.Token(context.Background())
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func basicAuth(login, password string) string {
	raw := login + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// normalizeFields lower-cases every key of an outbound issue-fields map
// exactly once, at this single construction boundary, so a later
// mixed-case key can never silently shadow an earlier lowercase one
// (REDESIGN FLAG, package doc).
func normalizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[strings.ToLower(k)] = v
	}
	return out
}

var markdownImagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

// toJiraImages rewrites markdown-style inline images into Jira wiki's
// `!alt|src!` syntax (spec §4.1 Jira-specific note), applied after C1's
// HTMLToWiki conversion since that conversion only produces the generic
// wiki dialect, not Jira's image syntax specifically.
func toJiraImages(wiki string) string {
	return markdownImagePattern.ReplaceAllString(wiki, "!$1|$2!")
}

func (a *Adapter) Test(ctx context.Context) error {
	var proj struct {
		Key string `json:"key"`
	}
	return a.doJSON(ctx, http.MethodGet, "/project/"+a.project, nil, &proj)
}

func (a *Adapter) GetIssue(ctx context.Context, issueID string) (*model.TrackerIssue, error) {
	var issue issueDTO
	err := a.doJSON(ctx, http.MethodGet, "/issue/"+issueID, nil, &issue)
	if ywherr.KindOf(err) == ywherr.KindNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ti := a.toTrackerIssue(issue)
	return &ti, nil
}

func (a *Adapter) SendReport(ctx context.Context, report model.Report, title, description string) (model.TrackerIssue, error) {
	description = toJiraImages(description)

	fields := normalizeFields(map[string]any{
		"project":     map[string]string{"key": a.project},
		"summary":     title,
		"description": description,
		"issuetype":   map[string]string{"name": a.issuetypeName},
	})

	var created struct {
		Key string `json:"key"`
	}
	if err := a.doJSON(ctx, http.MethodPost, "/issue", map[string]any{"fields": fields}, &created); err != nil {
		return model.TrackerIssue{}, err
	}

	if err := a.uploadAttachments(ctx, created.Key, report.Attachments); err != nil {
		return model.TrackerIssue{}, err
	}

	return model.TrackerIssue{
		TrackerURL: a.baseURL,
		Project:    a.project,
		IssueID:    created.Key,
		IssueURL:   strings.TrimRight(a.baseURL, "/") + "/browse/" + created.Key,
	}, nil
}

func (a *Adapter) uploadAttachments(ctx context.Context, issueKey string, atts []model.Attachment) error {
	for _, att := range atts {
		data, err := att.Load()
		if err != nil {
			return ywherr.New(ywherr.KindAdapterInternal, "jira.uploadAttachments", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/issue/"+issueKey+"/attachments", bytes.NewReader(data))
		if err != nil {
			return ywherr.New(ywherr.KindTransport, "jira.uploadAttachments", err)
		}
		req.Header.Set("X-Atlassian-Token", "no-check")
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
		body := toJiraImages(c.Body)
		var resp struct {
			ID string `json:"id"`
		}
		path := "/issue/" + issue.IssueID + "/comment"
		if err := a.doJSON(ctx, http.MethodPost, path, map[string]any{"body": body}, &resp); err != nil {
			return sent, err
		}
		sent = append(sent, model.SentComment{CommentID: resp.ID})
	}
	return sent, nil
}

func (a *Adapter) GetIssueComments(ctx context.Context, issueID string, excludeIDs map[string]bool) ([]model.TrackerIssueComment, error) {
	var resp struct {
		Comments []struct {
			ID     string `json:"id"`
			Body   string `json:"body"`
			Author struct{ DisplayName string `json:"displayName"` } `json:"author"`
		} `json:"comments"`
	}
	if err := a.doJSON(ctx, http.MethodGet, "/issue/"+issueID+"/comment", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]model.TrackerIssueComment, 0, len(resp.Comments))
	for _, c := range resp.Comments {
		if excludeIDs[c.ID] {
			continue
		}
		out = append(out, model.TrackerIssueComment{ID: c.ID, Author: c.Author.DisplayName, Body: c.Body})
	}
	return out, nil
}

type issueDTO struct {
	Key    string `json:"key"`
	Fields struct {
		Status struct {
			StatusCategory struct {
				Key string `json:"key"`
			} `json:"statusCategory"`
		} `json:"status"`
	} `json:"fields"`
}

func (a *Adapter) toTrackerIssue(issue issueDTO) model.TrackerIssue {
	return model.TrackerIssue{
		TrackerURL: a.baseURL,
		Project:    a.project,
		IssueID:    issue.Key,
		IssueURL:   strings.TrimRight(a.baseURL, "/") + "/browse/" + issue.Key,
		Closed:     issue.Fields.Status.StatusCategory.Key == "done",
	}
}

func (a *Adapter) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return ywherr.New(ywherr.KindProtocol, "jira.doJSON", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return ywherr.New(ywherr.KindTransport, "jira.doJSON", err)
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
			return ywherr.New(ywherr.KindTransport, "jira.doRequest", err)
		}
		switch {
		case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
			return ywherr.Fatal(ywherr.KindAuthentication, "jira.doRequest", fmt.Errorf("status %d: %s", r.StatusCode, data))
		case r.StatusCode == http.StatusNotFound:
			return ywherr.New(ywherr.KindNotFound, "jira.doRequest", fmt.Errorf("not found: %s", req.URL.Path))
		case r.StatusCode >= 500:
			return ywherr.New(ywherr.KindTransport, "jira.doRequest", fmt.Errorf("status %d: %s", r.StatusCode, data))
		case r.StatusCode >= 400:
			return ywherr.New(ywherr.KindProtocol, "jira.doRequest", fmt.Errorf("status %d: %s", r.StatusCode, data))
		}
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return ywherr.New(ywherr.KindProtocol, "jira.doRequest", fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}
