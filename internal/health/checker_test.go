package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/val-protocol/val-verify/internal/health"
	"go.uber.org/zap"
)

func waitForProbe(t *testing.T, c *health.Checker) health.Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := c.Status(); !s.CheckedAt.IsZero() {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("probe never completed")
	return health.Status{}
}

func TestChecker_probeUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/network/nodes" {
			t.Errorf("probe path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	probed := make(chan bool, 1)
	c := health.NewChecker(srv.URL, time.Hour, zap.NewNop())
	c.SetMetricsRecorder(func(ok bool) {
		select {
		case probed <- ok:
		default:
		}
	})
	c.Start(ctx)

	s := waitForProbe(t, c)
	if !s.OK || s.Error != "" {
		t.Errorf("status: %+v", s)
	}
	if ok := <-probed; !ok {
		t.Error("metrics recorder saw a failed probe")
	}
}

func TestChecker_probeDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := health.NewChecker(srv.URL, time.Hour, zap.NewNop())
	c.Start(ctx)

	s := waitForProbe(t, c)
	if s.OK {
		t.Error("expected not-OK status for HTTP 502")
	}
	if s.Error == "" {
		t.Error("expected error detail")
	}
}

func TestChecker_zeroStatusBeforeFirstProbe(t *testing.T) {
	c := health.NewChecker("http://127.0.0.1:1", time.Hour, zap.NewNop())
	if s := c.Status(); s.OK {
		t.Error("never-probed checker must report not-OK")
	}
}
