package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the analytics read-path metrics.
type Metrics struct {
	OverviewReads *prometheus.CounterVec
	TrendsDays    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		OverviewReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_analytics_overview_reads_total",
			Help: "Total overview reads, by cache outcome",
		}, []string{"outcome"}),
		TrendsDays: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "timeclock_analytics_trends_window_days",
			Help:    "Requested trends window sizes after clamping",
			Buckets: []float64{7, 14, 30, 60, 90},
		}),
	}
}
