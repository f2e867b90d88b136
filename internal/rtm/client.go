// Package rtm is the HTTP client for the remote requirements and test
// management REST surface. It is a thin wrapper: paths, auth and decoding
// live here, payload semantics live in the mapper.
package rtm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quayside/rtmirror/internal/mapper"
)

const apiBase = "/rest/rtm/1.0/api"

// Config carries the connection identity for one remote project.
type Config struct {
	BaseURL    string
	Username   string
	APIToken   string
	ProjectKey string
	ProjectID  int64
}

// Client talks to one remote instance with basic auth.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a client. A nil httpClient gets a 30s-timeout default.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient}
}

// APIError is a non-2xx remote response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("rtm: %s %s: status %d: %s", e.Method, e.Path, e.Status, body)
}

// entityPath maps a kind to its REST path segment.
func entityPath(kind mapper.Kind) string {
	switch kind {
	case mapper.KindRequirement:
		return apiBase + "/requirement"
	case mapper.KindTestCase:
		return apiBase + "/test-case"
	case mapper.KindTestPlan:
		return apiBase + "/test-plan"
	case mapper.KindTestExecution:
		return apiBase + "/test-execution"
	case mapper.KindDefect:
		return apiBase + "/defect"
	}
	return apiBase + "/issue"
}

// do runs one request and decodes the JSON response into out when out is
// non-nil. An empty body with a 2xx status is fine.
func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("rtm: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("rtm: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rtm: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rtm: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("rtm: decode %s %s: %w", method, path, err)
	}
	return nil
}

// GetEntity fetches one issue's full remote representation.
func (c *Client) GetEntity(ctx context.Context, kind mapper.Kind, testKey string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, entityPath(kind)+"/"+testKey, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEntity creates an issue and returns the remote response, which
// carries the assigned testKey.
func (c *Client) CreateEntity(ctx context.Context, kind mapper.Kind, payload map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodPost, entityPath(kind), payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateEntity overwrites an issue's writable fields.
func (c *Client) UpdateEntity(ctx context.Context, kind mapper.Kind, testKey string, payload map[string]any) error {
	return c.do(ctx, http.MethodPut, entityPath(kind)+"/"+testKey, payload, nil)
}

// DeleteEntity removes an issue on the remote.
func (c *Client) DeleteEntity(ctx context.Context, kind mapper.Kind, testKey string) error {
	return c.do(ctx, http.MethodDelete, entityPath(kind)+"/"+testKey, nil, nil)
}

// GetSteps fetches a test case's step payload.
func (c *Client) GetSteps(ctx context.Context, testKey string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, entityPath(mapper.KindTestCase)+"/"+testKey+"/steps", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSteps replaces a test case's steps wholesale.
func (c *Client) UpdateSteps(ctx context.Context, testKey string, payload map[string]any) error {
	return c.do(ctx, http.MethodPut, entityPath(mapper.KindTestCase)+"/"+testKey+"/steps", payload, nil)
}

// GetPlanTestCases fetches a plan's case membership.
func (c *Client) GetPlanTestCases(ctx context.Context, testKey string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, entityPath(mapper.KindTestPlan)+"/"+testKey+"/testcases", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePlanTestCases replaces a plan's case membership wholesale.
func (c *Client) UpdatePlanTestCases(ctx context.Context, testKey string, payload map[string]any) error {
	return c.do(ctx, http.MethodPut, entityPath(mapper.KindTestPlan)+"/"+testKey+"/testcases", payload, nil)
}

// GetExecutionTestCases fetches an execution's run rows.
func (c *Client) GetExecutionTestCases(ctx context.Context, testKey string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, entityPath(mapper.KindTestExecution)+"/"+testKey+"/testcases", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateExecutionTestCases replaces an execution's run rows wholesale.
func (c *Client) UpdateExecutionTestCases(ctx context.Context, testKey string, payload map[string]any) error {
	return c.do(ctx, http.MethodPut, entityPath(mapper.KindTestExecution)+"/"+testKey+"/testcases", payload, nil)
}

// CreateIssueLink makes a directional link through the host's standard
// issue-link endpoint.
func (c *Client) CreateIssueLink(ctx context.Context, linkType, inwardKey, outwardKey string) error {
	payload := map[string]any{
		"type":         map[string]any{"name": linkType},
		"inwardIssue":  map[string]any{"key": inwardKey},
		"outwardIssue": map[string]any{"key": outwardKey},
	}
	return c.do(ctx, http.MethodPost, "/rest/api/2/issueLink", payload, nil)
}
