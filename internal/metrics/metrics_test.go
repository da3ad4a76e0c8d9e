// v0
// internal/metrics/metrics_test.go
package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"nrgchamp/ventilation/internal/models"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.ReadingProcessed(3 * time.Millisecond)
	m.ReadingRejected()
	m.Alerts([]models.AlertRecord{{Category: "CO_CEILING", Severity: models.SeverityCritical}})
	m.Decision(models.VentilationAction{Mode: models.ModeEmergencyPurge, FanSupplySpeed: 40, FanExhaustSpeed: 100})
	m.StageError("store")
	m.SetCircuitBreakerState("kafka", 2)
	m.CacheHit()
	m.CacheMiss()

	if got := testutil.ToFloat64(m.readingsTotal.WithLabelValues("processed")); got != 1 {
		t.Fatalf("processed = %v", got)
	}
	if got := testutil.ToFloat64(m.setpoint.WithLabelValues("fan_exhaust")); got != 100 {
		t.Fatalf("exhaust gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.alertsTotal.WithLabelValues("CO_CEILING", "critical")); got != 1 {
		t.Fatalf("alerts = %v", got)
	}

	h := m.WrapHandler("metrics", m.Handler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	for _, want := range []string{"ventilation_mode_decisions_total", "cb_state", "cache_misses_total"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("exposition missing %s", want)
		}
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("metrics", "200")); got != 1 {
		t.Fatalf("http requests = %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ReadingProcessed(time.Second)
	m.Alerts([]models.AlertRecord{{Category: "x"}})
	m.Decision(models.VentilationAction{})
	m.CacheHit()
	rec := httptest.NewRecorder()
	m.WrapHandler("x", http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestSeparateInstancesDoNotCollide(t *testing.T) {
	a, b := New(), New()
	a.ReadingRejected()
	if got := testutil.ToFloat64(b.readingsTotal.WithLabelValues("rejected")); got != 0 {
		t.Fatalf("instances share state: %v", got)
	}
}
