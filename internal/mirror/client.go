package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Networks maps well-known network names to their public mirror-node base URLs.
var Networks = map[string]string{
	"mainnet": "https://mainnet-public.mirrornode.hedera.com",
	"testnet": "https://testnet.mirrornode.hedera.com",
}

// BaseURLForNetwork returns the mirror base URL for a named network, falling
// back to testnet for unknown names.
func BaseURLForNetwork(network string) string {
	if u, ok := Networks[network]; ok {
		return u
	}
	return Networks["testnet"]
}

const (
	defaultPageSize    = 100
	defaultMaxAttempts = 3
	defaultRetryBase   = 500 * time.Millisecond
	retryCap           = 5 * time.Second
)

// Client fetches topic messages from a mirror node over HTTP. It implements
// Fetcher with bounded capped-exponential retry for transient failures.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      *zap.Logger
	pageSize    int
	maxAttempts int
	retryBase   time.Duration
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageSize sets the per-request message limit (default 100, the mirror
// node's maximum).
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRetry overrides the retry policy: attempts is the total number of tries
// per page, base the initial backoff delay (doubled per retry, capped at 5s).
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if base > 0 {
			c.retryBase = base
		}
	}
}

// NewClient creates a mirror Client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
		pageSize:    defaultPageSize,
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// messagesResponse is the mirror node's topic messages payload.
type messagesResponse struct {
	Messages []RawTopicMessage `json:"messages"`
	Links    struct {
		Next string `json:"next"`
	} `json:"links"`
}

// FetchPage implements Fetcher. cursor is either empty (first page) or the
// links.next path returned by the previous page, followed verbatim.
func (c *Client) FetchPage(ctx context.Context, topicID, cursor string) (*Page, error) {
	url := c.baseURL + cursor
	if cursor == "" {
		url = fmt.Sprintf("%s/api/v1/topics/%s/messages?order=asc&limit=%d", c.baseURL, topicID, c.pageSize)
	}

	var lastErr error
	delay := c.retryBase
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("retrying mirror fetch",
				zap.String("topic_id", topicID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > retryCap {
				delay = retryCap
			}
		}

		page, status, err := c.fetchOnce(ctx, url)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !transient(status) {
			return nil, &FetchError{TopicID: topicID, Status: status, Err: err}
		}
		lastErr = err
		if status != 0 {
			lastErr = fmt.Errorf("HTTP %d: %w", status, err)
		}
	}
	return nil, &FetchError{TopicID: topicID, Err: fmt.Errorf("%d attempts failed: %w", c.maxAttempts, lastErr)}
}

// fetchOnce performs a single HTTP round-trip. status is 0 for transport
// failures.
func (c *Client) fetchOnce(ctx context.Context, url string) (*Page, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("%s", truncate(string(body), 200))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return &Page{Messages: parsed.Messages, NextCursor: parsed.Links.Next}, resp.StatusCode, nil
}

// transient reports whether a failure is worth retrying. Transport errors
// (status 0), rate limiting, and server errors are transient; any other 4xx —
// unknown topic most prominently — is terminal.
func transient(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
