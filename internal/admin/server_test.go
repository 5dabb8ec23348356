package admin

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/frameecho/internal/observability"
	"github.com/danmuck/frameecho/internal/testutil/testlog"
)

func newTestServer(t *testing.T, status StatusFunc) *Server {
	t.Helper()
	logger := testlog.Start(t)
	return New(Config{Name: "echod-test", Status: status, Logger: &logger})
}

func TestHealthReportsOK(t *testing.T) {
	s := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["component"] != "echod-test" {
		t.Fatalf("unexpected response body: %#v", body)
	}
}

func TestStatusRendersSource(t *testing.T) {
	s := newTestServer(t, func() any {
		return map[string]any{"active_sessions": 3}
	})

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["active_sessions"] != float64(3) {
		t.Fatalf("unexpected response body: %#v", body)
	}
}

func TestStatusWithoutSourceIsNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestMetricsExposesSessionCounters(t *testing.T) {
	s := newTestServer(t, nil)
	observability.RecordFrameRead(observability.RoleServer, "complete")

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "frameecho_frame_reads_total") {
		t.Fatalf("metrics output missing frame counter")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	s := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned err: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("admin server did not stop")
	}
}

func TestRunRequiresAddress(t *testing.T) {
	s := newTestServer(t, nil)
	if err := s.Run(context.Background()); err != ErrListenAddrRequired {
		t.Fatalf("expected ErrListenAddrRequired, got %v", err)
	}
}
