package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpOnce sync.Once

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
)

// RegisterHTTP inicializa las métricas HTTP. Idempotente.
func RegisterHTTP(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	httpOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Requests HTTP por método, ruta y status",
		}, []string{"method", "path", "status"})

		httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		reg.MustRegister(httpRequestsTotal, httpDuration)
	})
}

// ObserveHTTP registra un request completado.
func ObserveHTTP(method, path, status string, seconds float64) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	}
	if httpDuration != nil {
		httpDuration.WithLabelValues(method, path).Observe(seconds)
	}
}
