package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorsRegistered(t *testing.T) {
	TicksTotal.WithLabelValues("NQ").Inc()
	DecisionsTotal.WithLabelValues("NQ", "hold", "warmup").Inc()
	Anomalies.WithLabelValues("session_date").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{"vwap_ticks_total": false, "vwap_decisions_total": false, "vwap_anomalies_total": false}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not found", name)
		}
	}
}

func TestHandlerServesText(t *testing.T) {
	TicksTotal.WithLabelValues("ES").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `vwap_ticks_total{symbol="ES"}`) {
		t.Errorf("Expected ES tick counter in exposition output")
	}
}
