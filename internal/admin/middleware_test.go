package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/frameecho/internal/testutil/testlog"
)

func TestObserveRequestsLabelsByComponentAndRoute(t *testing.T) {
	logger := testlog.Start(t)
	s := New(Config{Name: "echoctl-mw", Logger: &logger})

	for _, path := range []string{"/health", "/nope/1", "/nope/2"} {
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		`frameecho_http_requests_total{component="echoctl-mw",method="GET",route="/health",status="200"} 1`,
		`frameecho_http_requests_total{component="echoctl-mw",method="GET",route="unmatched",status="404"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
	if strings.Contains(body, `route="/nope/1"`) {
		t.Fatalf("unmatched paths must not become route labels")
	}
}
