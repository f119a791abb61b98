package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOperationMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperationMetrics(reg)

	start := time.Now().Add(-50 * time.Millisecond)
	m.Observe("split", start, nil)
	m.Observe("split", start, nil)
	m.Observe("split", start, errors.New("boom"))

	got := testutil.ToFloat64(m.success.WithLabelValues("split"))
	if got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	got = testutil.ToFloat64(m.failure.WithLabelValues("split"))
	if got != 1 {
		t.Fatalf("failure count = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration, "lot_operation_duration_seconds"); n != 1 {
		t.Fatalf("duration series = %d, want 1", n)
	}
}

func TestOperationMetricsNilSafe(t *testing.T) {
	var m *OperationMetrics
	m.Observe("consume", time.Now(), nil)

	empty := NewOperationMetrics(nil)
	empty.Observe("", time.Now(), errors.New("boom"))
}

func TestHTTPMetricsObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	start := time.Now().Add(-10 * time.Millisecond)
	m.ObserveRequest("POST", "/api/v1/lots", 201, start)
	m.ObserveRequest("POST", "/api/v1/lots", 201, start)
	m.ObserveRequest("GET", "", 200, start)

	got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/lots", "201"))
	if got != 2 {
		t.Fatalf("request count = %v, want 2", got)
	}
	got = testutil.ToFloat64(m.requests.WithLabelValues("GET", "unknown", "200"))
	if got != 1 {
		t.Fatalf("unknown-route count = %v, want 1", got)
	}
}
