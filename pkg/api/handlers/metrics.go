package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fairlead/pkg/models"
)

var rotationConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fairlead_rotation_conflicts_total",
	Help: "Conflicts reported by the rotation detector, by type.",
}, []string{"type"})

func countConflicts(conflicts []models.Conflict) {
	for _, c := range conflicts {
		rotationConflicts.WithLabelValues(c.Type).Inc()
	}
}
