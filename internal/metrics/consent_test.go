package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegister_ServesTheRegistryItRegisteredOn(t *testing.T) {
	// Registry propio, no el default: el handler devuelto tiene que
	// exponer los collectors registrados en ESTE registry.
	reg := prometheus.NewRegistry()
	h := Register(reg)

	ObserveDecision("APPROVED", "cached-grant")
	ObserveMerge(true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, metric := range []string{"consent_decisions_total", "consent_grant_merges_total"} {
		if !strings.Contains(body, metric) {
			t.Fatalf("metric %s not exposed by handler", metric)
		}
	}
}
