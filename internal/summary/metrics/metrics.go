package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the summary memoization metrics.
type Metrics struct {
	Recomputes *prometheus.CounterVec
	CacheHits  *prometheus.CounterVec
	DirtyMarks prometheus.Counter
}

// New creates and registers all summary metrics, labelled by period type so
// the cost of each rollup granularity is visible separately.
func New() *Metrics {
	return &Metrics{
		Recomputes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_summary_recomputes_total",
			Help: "Total summary rollups recomputed, by period type",
		}, []string{"period"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_summary_cache_hits_total",
			Help: "Total summary reads served from a clean cached row, by period type",
		}, []string{"period"}),
		DirtyMarks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeclock_summary_dirty_marks_total",
			Help: "Total cached summary rows invalidated by ingested events",
		}),
	}
}
