package observability

import (
	"testing"
	"time"

	"github.com/danmuck/frameecho/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("echod", "GET", "/health", 200, 12*time.Millisecond)
	RecordFrameRead(RoleServer, "complete")
	RecordBytesWritten(RoleServer, 0)
	RecordIOError(RoleClient, "write", "transport")
	RecordConnectAttempt("refused")
}

func TestSessionStartedTracksActiveGauge(t *testing.T) {
	testlog.Start(t)

	gauge := sessionsActive.WithLabelValues(RoleServer)
	before := testutil.ToFloat64(gauge)

	done := SessionStarted(RoleServer)
	if got := testutil.ToFloat64(gauge); got != before+1 {
		t.Fatalf("expected active=%v, got %v", before+1, got)
	}
	done()
	if got := testutil.ToFloat64(gauge); got != before {
		t.Fatalf("expected active=%v after done, got %v", before, got)
	}
}

func TestRecordBytesWrittenAccumulates(t *testing.T) {
	testlog.Start(t)

	counter := bytesWritten.WithLabelValues(RoleClient)
	before := testutil.ToFloat64(counter)
	RecordBytesWritten(RoleClient, 24)
	RecordBytesWritten(RoleClient, -1)
	if got := testutil.ToFloat64(counter); got != before+24 {
		t.Fatalf("expected %v bytes, got %v", before+24, got)
	}
}
