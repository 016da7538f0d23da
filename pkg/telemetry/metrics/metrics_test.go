package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/janitor/pkg/config"
)

func newTestCollector(enabled bool) *Collector {
	return NewCollector(&config.MetricsConfig{Enabled: enabled}, nil)
}

func TestCollector_RecordTick(t *testing.T) {
	c := newTestCollector(true)

	c.RecordTick("messages", "success", 20, 15*time.Millisecond)
	c.RecordTick("messages", "success", 20, 10*time.Millisecond)
	c.RecordTick("messages", "done", 15, 5*time.Millisecond)
	c.RecordTick("messages", "soft_error", 0, time.Millisecond)

	if got := testutil.ToFloat64(c.cleanup.ticksTotal.WithLabelValues("messages", "success")); got != 2 {
		t.Errorf("Expected 2 successful ticks, got %v", got)
	}
	if got := testutil.ToFloat64(c.cleanup.rowsDeleted.WithLabelValues("messages")); got != 55 {
		t.Errorf("Expected 55 rows deleted, got %v", got)
	}
	if n := testutil.CollectAndCount(c.cleanup.tickDuration); n != 1 {
		t.Errorf("Expected 1 histogram series, got %d", n)
	}
}

func TestCollector_TransitionsAndEstimates(t *testing.T) {
	c := newTestCollector(true)

	c.RecordTransition("messages", "paused")
	c.RecordTransition("messages", "paused")
	c.RecordEstimate("messages", 1234)
	c.RecordEstimate("messages", -1)

	if got := testutil.ToFloat64(c.cleanup.transitions.WithLabelValues("messages", "paused")); got != 2 {
		t.Errorf("Expected 2 transitions, got %v", got)
	}
	if got := testutil.ToFloat64(c.cleanup.scanEstimate.WithLabelValues("messages")); got != -1 {
		t.Errorf("Expected latest estimate -1, got %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := newTestCollector(false)

	c.RecordTick("messages", "success", 20, time.Millisecond)
	c.RecordRPC("tick", 200)

	if n := testutil.CollectAndCount(c.cleanup.ticksTotal); n != 0 {
		t.Errorf("Expected no series when disabled, got %d", n)
	}
	if n := testutil.CollectAndCount(c.rpc.requests); n != 0 {
		t.Errorf("Expected no RPC series when disabled, got %d", n)
	}
}

func TestCollector_RecordRPC(t *testing.T) {
	c := newTestCollector(true)
	c.RecordRPC("start", 200)
	c.RecordRPC("start", 409)
	c.RecordRPC("start", 404)

	if got := testutil.ToFloat64(c.rpc.requests.WithLabelValues("start", "4xx")); got != 2 {
		t.Errorf("Expected 2 4xx calls, got %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector(true)
	c.RecordTick("feed_cache", "success", 3, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `janitor_cleanup_ticks_total{category="feed_cache",outcome="success"} 1`) {
		t.Errorf("Metric not found in output:\n%s", rec.Body.String())
	}
}

func TestStatusLabel(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 302: "3xx", 422: "4xx", 503: "5xx"} {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %s, want %s", code, got, want)
		}
	}
}
