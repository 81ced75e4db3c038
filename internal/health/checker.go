// Package health probes the mirror node the verification service depends on.
// A failing probe does not stop the service — verification of caller-supplied
// snapshots still works — but the state is surfaced on /healthz and as a
// metric so operators can tell "mirror down" apart from "verification broken".
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// Status is the outcome of the most recent probe.
type Status struct {
	OK        bool      `json:"ok"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// Checker periodically probes a mirror node's API root.
type Checker struct {
	probeURL   string
	interval   time.Duration
	httpClient *http.Client
	logger     *zap.Logger
	metrics    MetricsRecordFunc

	mu   sync.RWMutex
	last Status
}

// NewChecker creates a Checker for the given mirror base URL. interval <= 0
// defaults to one minute.
func NewChecker(mirrorBaseURL string, interval time.Duration, logger *zap.Logger) *Checker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Checker{
		probeURL:   mirrorBaseURL + "/api/v1/network/nodes?limit=1",
		interval:   interval,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SetMetricsRecorder registers a callback invoked after every probe.
func (c *Checker) SetMetricsRecorder(fn MetricsRecordFunc) { c.metrics = fn }

// Start launches the probe loop. It returns immediately; the loop stops when
// ctx is cancelled. The first probe runs right away so /healthz is meaningful
// at startup.
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.probe(ctx)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.probe(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Status returns the most recent probe outcome. The zero Status (never
// probed) reports not-OK.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Checker) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := c.probeOnce(probeCtx)

	status := Status{OK: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		status.Error = err.Error()
		c.logger.Warn("mirror probe failed", zap.Error(err))
	}

	c.mu.Lock()
	c.last = status
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics(err == nil)
	}
}

func (c *Checker) probeOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.probeURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mirror returned HTTP %d", resp.StatusCode)
	}
	return nil
}
