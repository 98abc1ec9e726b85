package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the attendance ingestion metrics.
type Metrics struct {
	EventsIngested  *prometheus.CounterVec
	EventsDuplicate *prometheus.CounterVec
	EventsFlagged   *prometheus.CounterVec
	EventsRejected  *prometheus.CounterVec
	PairingsTotal   prometheus.Counter
	UnpairedOuts    prometheus.Counter
}

// New creates and registers all attendance metrics. Counters are labelled by
// delivery channel so the three trust levels can be monitored separately.
func New() *Metrics {
	return &Metrics{
		EventsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_attendance_events_ingested_total",
			Help: "Total attendance events stored, by delivery channel",
		}, []string{"channel"}),
		EventsDuplicate: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_attendance_events_duplicate_total",
			Help: "Total duplicate submissions absorbed, by delivery channel",
		}, []string{"channel"}),
		EventsFlagged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_attendance_events_flagged_total",
			Help: "Total events stored with anomaly flags, by delivery channel",
		}, []string{"channel"}),
		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_attendance_events_rejected_total",
			Help: "Total submissions rejected before persistence, by delivery channel",
		}, []string{"channel"}),
		PairingsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeclock_attendance_pairings_total",
			Help: "Total check-outs paired against an open check-in",
		}),
		UnpairedOuts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeclock_attendance_unpaired_checkouts_total",
			Help: "Total check-outs stored without a matching open check-in",
		}),
	}
}
