// Package client provides the Go SDK for the VAL verification service
// (vald): triggering verification runs, verifying offline snapshots, and
// querying stored reports.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrNotFound is returned when the server reports a missing run.
var ErrNotFound = errors.New("run not found")

// Issue is a single finding from a verification run.
type Issue struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Sequence int64  `json:"sequence,omitempty"`
}

// Report is the outcome of a verification run.
type Report struct {
	Verdict        string         `json:"verdict"`
	RecordCount    int            `json:"record_count"`
	Issues         []Issue        `json:"issues"`
	TypeCounts     map[string]int `json:"type_counts"`
	SeverityCounts map[string]int `json:"severity_counts"`
	Incomplete     bool           `json:"incomplete"`
}

// Run is a stored verification run.
type Run struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Network    string    `json:"network"`
	Report     *Report   `json:"report"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// TopicMessage is a raw mirror-node topic message for snapshot verification.
type TopicMessage struct {
	ConsensusTimestamp string `json:"consensus_timestamp"`
	Message            string `json:"message"`
	SequenceNumber     int64  `json:"sequence_number"`
	TopicID            string `json:"topic_id,omitempty"`
}

// Client is the vald SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches an admin bearer token to every request. Required
// for DeleteRun.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the vald server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server base URL is required")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Verify asks the server to fetch agentID's attestation log from its mirror
// node and verify it. limit > 0 caps the number of fetched messages. The run
// is persisted server-side; the full stored run is returned.
func (c *Client) Verify(ctx context.Context, agentID string, limit int) (*Run, error) {
	payload, _ := json.Marshal(map[string]any{"agent_id": agentID, "limit": limit})
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/verify", payload)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var run Run
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

// VerifySnapshot verifies caller-supplied raw messages without fetching or
// persisting anything server-side.
func (c *Client) VerifySnapshot(ctx context.Context, agentID string, msgs []TopicMessage) (*Report, error) {
	payload, err := json.Marshal(map[string]any{"agent_id": agentID, "messages": msgs})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/verify/snapshot", payload)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Report *Report `json:"report"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return wrapper.Report, nil
}

// GetRun fetches a stored run by ID.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/runs/"+id, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var run Run
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

// ListRuns returns stored runs, newest first, optionally filtered by agent.
func (c *Client) ListRuns(ctx context.Context, agentID string, limit int) ([]Run, error) {
	path := "/api/v1/runs?limit=" + strconv.Itoa(limit)
	if agentID != "" {
		path += "&agent_id=" + agentID
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Runs []Run `json:"runs"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode runs: %w", err)
	}
	return wrapper.Runs, nil
}

// DeleteRun removes a stored run. Requires WithBearerToken with an admin
// token.
func (c *Client) DeleteRun(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/v1/runs/"+id, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do executes an HTTP request, attaching the bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized: %s", string(body))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
