package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScanMetrics holds all Prometheus metrics for the scan pipeline.
type ScanMetrics struct {
	TicksTotal        *prometheus.CounterVec
	CohortsDispatched *prometheus.CounterVec
	ScansTotal        *prometheus.CounterVec
	ScanDuration      prometheus.Histogram
	ListingsFetched   prometheus.Counter
	MatchesDetected   prometheus.Counter
	MatchesPublished  prometheus.Counter
	PublishFailures   prometheus.Counter
	MatchesPurged     prometheus.Counter
}

// NewScanMetrics initializes and registers the scan metrics on the given
// registerer. Tests pass a fresh prometheus.NewRegistry to avoid duplicate
// registration across cases.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	factory := promauto.With(reg)
	return &ScanMetrics{
		TicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listing_sentinel",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total scheduler ticks by outcome.",
		}, []string{"outcome"}), // outcome: fired, skipped, error
		CohortsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listing_sentinel",
			Subsystem: "scheduler",
			Name:      "cohorts_dispatched_total",
			Help:      "Total scan cohorts dispatched by result.",
		}, []string{"result"}), // result: ok, error
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listing_sentinel",
			Subsystem: "orchestrator",
			Name:      "scans_total",
			Help:      "Total scan jobs by terminal status.",
		}, []string{"status"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "listing_sentinel",
			Subsystem: "orchestrator",
			Name:      "scan_duration_seconds",
			Help:      "Duration of a single scan job.",
			Buckets:   prometheus.DefBuckets,
		}),
		ListingsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "listing_sentinel",
			Subsystem: "engine",
			Name:      "listings_fetched_total",
			Help:      "Total listings fetched from the upstream source.",
		}),
		MatchesDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "listing_sentinel",
			Subsystem: "engine",
			Name:      "matches_detected_total",
			Help:      "Total listing matches detected.",
		}),
		MatchesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "listing_sentinel",
			Subsystem: "engine",
			Name:      "matches_published_total",
			Help:      "Total listing matches delivered to the alert publisher.",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "listing_sentinel",
			Subsystem: "engine",
			Name:      "publish_failures_total",
			Help:      "Total alert publisher failures.",
		}),
		MatchesPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "listing_sentinel",
			Subsystem: "retention",
			Name:      "matches_purged_total",
			Help:      "Total matches removed by the retention sweep.",
		}),
	}
}
