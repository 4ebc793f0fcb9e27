package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fairlead_submissions_created_total",
		Help: "Submissions persisted.",
	})
	statusUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fairlead_status_updates_total",
		Help: "Successful submission status transitions.",
	})
	timelineAppends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fairlead_timeline_events_total",
		Help: "Timeline events appended.",
	})
	retentionPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fairlead_retention_purged_total",
		Help: "Submissions deleted by retention sweeps.",
	})
)
