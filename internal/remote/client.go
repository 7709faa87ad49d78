// Package remote is the HTTP boundary to the issue-tracking service.
//
// All calls are synchronous request/response against the tracker's REST v2
// API. Non-2xx responses (except 204) are returned as *StatusError carrying
// the server-provided status and body text so callers can report them
// per-item without losing detail.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultTimeout bounds a single request; pull/apply loops make many
// independent calls and must not hang on one of them.
const defaultTimeout = 30 * time.Second

// StatusError is a non-success response from the remote service.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("remote error: %s %s returned %d: %s",
		e.Method, e.Path, e.StatusCode, body)
}

// Client talks to one remote host.
type Client struct {
	baseURL string
	user    string
	token   string
	http    *http.Client
	logger  *log.Logger
}

// NewClient creates a client for the given host. Credentials are sent as
// basic auth on every request. If logger is nil, a default logger writing
// to stderr is used.
func NewClient(baseURL, user, token string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// Host returns the base URL this client talks to.
func (c *Client) Host() string {
	return c.baseURL
}

// do issues one request and decodes the JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" || c.token != "" {
		req.SetBasicAuth(c.user, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetIssue fetches one issue by key. When withHistory is set the revision
// history is included via expand=changelog.
func (c *Client) GetIssue(ctx context.Context, key string, withHistory bool) (*Issue, error) {
	q := url.Values{}
	if withHistory {
		q.Set("expand", "changelog")
	}
	var issue Issue
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+key, q, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// Search runs a paged JQL query.
func (c *Client) Search(ctx context.Context, jql string, startAt, maxResults int) (*SearchPage, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("startAt", strconv.Itoa(startAt))
	q.Set("maxResults", strconv.Itoa(maxResults))
	var page SearchPage
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/search", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Comments fetches all comments on an issue.
func (c *Client) Comments(ctx context.Context, key string) ([]Comment, error) {
	var page CommentPage
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+key+"/comment", nil, nil, &page); err != nil {
		return nil, err
	}
	return page.Comments, nil
}

// History fetches the revision history of an issue.
func (c *Client) History(ctx context.Context, key string) ([]ChangelogEntry, error) {
	issue, err := c.GetIssue(ctx, key, true)
	if err != nil {
		return nil, err
	}
	if issue.Changelog == nil {
		return nil, nil
	}
	return issue.Changelog.Histories, nil
}

// Transitions lists the workflow transitions reachable from the issue's
// current status.
func (c *Client) Transitions(ctx context.Context, key string) ([]Transition, error) {
	var out struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+key+"/transitions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Transitions, nil
}

// DoTransition executes a workflow transition.
func (c *Client) DoTransition(ctx context.Context, key, transitionID string) error {
	body := map[string]any{
		"transition": map[string]string{"id": transitionID},
	}
	return c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+key+"/transitions", nil, body, nil)
}

// EditIssue applies a batched field update to an issue.
func (c *Client) EditIssue(ctx context.Context, key string, fields map[string]any) error {
	body := map[string]any{"fields": fields}
	return c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+key, nil, body, nil)
}

// AddComment creates one comment on an issue.
func (c *Client) AddComment(ctx context.Context, key, text string) (*Comment, error) {
	var created Comment
	body := map[string]string{"body": text}
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+key+"/comment", nil, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Links returns the current links of an issue.
func (c *Client) Links(ctx context.Context, key string) ([]IssueLink, error) {
	issue, err := c.GetIssue(ctx, key, false)
	if err != nil {
		return nil, err
	}
	return issue.Fields.Links, nil
}

// CreateLink links two issues with the given link type name.
func (c *Client) CreateLink(ctx context.Context, linkType, inwardKey, outwardKey string) error {
	body := map[string]any{
		"type":         map[string]string{"name": linkType},
		"inwardIssue":  map[string]string{"key": inwardKey},
		"outwardIssue": map[string]string{"key": outwardKey},
	}
	return c.do(ctx, http.MethodPost, "/rest/api/2/issueLink", nil, body, nil)
}

// DeleteLink removes an existing link by id.
func (c *Client) DeleteLink(ctx context.Context, linkID string) error {
	return c.do(ctx, http.MethodDelete, "/rest/api/2/issueLink/"+linkID, nil, nil, nil)
}

// DeleteIssue deletes an issue remotely.
func (c *Client) DeleteIssue(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/rest/api/2/issue/"+key, nil, nil, nil)
}

// Fields lists the field definitions of the host, used to refresh the
// local alias cache.
func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	var fields []Field
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/field", nil, nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
