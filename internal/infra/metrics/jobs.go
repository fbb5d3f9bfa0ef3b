package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(resetProfilesTotal, resetRunsTotal, stalePaymentsCancelledTotal)
}

var (
	resetProfilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "free_reset_profiles_total",
			Help: "Profiles processed by the free-account reset, labeled by result.",
		},
		[]string{"result"}, // 'success', 'failed'
	)

	resetRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "free_reset_runs_total",
			Help: "Free-account reset runs, labeled by outcome.",
		},
		[]string{"outcome"}, // 'completed', 'locked', 'error'
	)

	stalePaymentsCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_payments_cancelled_total",
			Help: "Pending payments cancelled after waiting too long for a callback.",
		},
	)
)

func AddResetProfiles(success, failed int) {
	resetProfilesTotal.WithLabelValues("success").Add(float64(success))
	resetProfilesTotal.WithLabelValues("failed").Add(float64(failed))
}

func IncResetRun(outcome string) {
	resetRunsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddStalePaymentsCancelled(n int) {
	stalePaymentsCancelledTotal.Add(float64(n))
}
