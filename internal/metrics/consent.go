// Package metrics registra las métricas Prometheus del motor de consent.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	decisionsTotal    *prometheus.CounterVec
	grantMergesTotal  *prometheus.CounterVec
	sessionsExpired   prometheus.Counter
	decisionDuration  prometheus.Histogram
	storeDegradations prometheus.Counter
)

// Register inicializa las métricas y devuelve el handler para /metrics.
// Idempotente: registros posteriores reutilizan los collectors.
func Register(reg prometheus.Registerer) http.Handler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	once.Do(func() {
		decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_decisions_total",
			Help: "Decisiones de consent por outcome y razón",
		}, []string{"outcome", "reason"})

		grantMergesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_grant_merges_total",
			Help: "Mutaciones de grants por tipo (create|merge)",
		}, []string{"kind"})

		sessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consent_sessions_expired_total",
			Help: "Sesiones de interacción expiradas por TTL",
		})

		decisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "consent_decision_duration_seconds",
			Help:    "Latencia de la evaluación de una interacción",
			Buckets: prometheus.DefBuckets,
		})

		storeDegradations = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consent_store_degradations_total",
			Help: "Lookups de grant/policy caídos que degradaron a consent completo",
		})

		reg.MustRegister(decisionsTotal, grantMergesTotal, sessionsExpired, decisionDuration, storeDegradations)
	})

	// Servir el mismo registry donde se registró; con un registerer que no
	// gathera (p.ej. uno con prefijo) caemos al default.
	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// ObserveDecision registra una decisión tomada.
func ObserveDecision(outcome, reason string) {
	if decisionsTotal != nil {
		decisionsTotal.WithLabelValues(outcome, reason).Inc()
	}
}

// ObserveMerge registra una mutación de grant.
func ObserveMerge(created bool) {
	if grantMergesTotal == nil {
		return
	}
	if created {
		grantMergesTotal.WithLabelValues("create").Inc()
	} else {
		grantMergesTotal.WithLabelValues("merge").Inc()
	}
}

// ObserveExpiry registra una sesión expirada.
func ObserveExpiry() {
	if sessionsExpired != nil {
		sessionsExpired.Inc()
	}
}

// ObserveDecisionDuration registra la latencia de evaluación.
func ObserveDecisionDuration(seconds float64) {
	if decisionDuration != nil {
		decisionDuration.Observe(seconds)
	}
}

// ObserveStoreDegradation registra una degradación fail-safe.
func ObserveStoreDegradation() {
	if storeDegradations != nil {
		storeDegradations.Inc()
	}
}
