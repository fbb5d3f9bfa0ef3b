package metrics

import (
	"a2z-marketplace/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionsPromotedTotal,
		trialsStartedTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of profiles moved back to free by the expiry worker.",
		},
	)

	subscriptionsPromotedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_promoted_total",
			Help: "Profiles promoted by a completed payment, labeled by tier.",
		},
		[]string{"tier"},
	)

	trialsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trials_started_total",
			Help: "Premium trials granted.",
		},
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncSubscriptionPromoted(tier model.Tier) {
	subscriptionsPromotedTotal.WithLabelValues(string(tier)).Inc()
}

func IncTrialStarted() {
	trialsStartedTotal.Inc()
}
