package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fairlead_notifications_dispatched_total",
	Help: "Dispatch attempts by channel and outcome.",
}, []string{"channel", "outcome"})
