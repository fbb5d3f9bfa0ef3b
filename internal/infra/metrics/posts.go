package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(postsCreatedTotal, postLimitRejectionsTotal, analyticsEventsTotal) }

var (
	postsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posts_created_total",
			Help: "Listings created, labeled by the owner's tier.",
		},
		[]string{"tier"},
	)

	postLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_limit_rejections_total",
			Help: "Listing writes rejected by tier limits.",
		},
		[]string{"tier", "limit"}, // limit: 'listings' | 'images'
	)

	// result: recorded|dropped|rate_limited|error
	analyticsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_total",
			Help: "Listing view/click increments by kind and result.",
		},
		[]string{"kind", "result"},
	)
)

func IncPostCreated(tier string) {
	postsCreatedTotal.WithLabelValues(norm(tier)).Inc()
}

func IncPostLimitRejection(tier, limit string) {
	postLimitRejectionsTotal.WithLabelValues(norm(tier), norm(limit)).Inc()
}

func IncAnalyticsEvent(kind, result string) {
	analyticsEventsTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}
