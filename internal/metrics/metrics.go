// Package metrics defines the Prometheus collectors shared across
// complaintdesk. They are registered with the default registry and exposed
// by the health server on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeInvalid = "invalid"
)

var (
	// RefreshTotal counts snapshot refreshes by resource and outcome.
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "complaintdesk",
		Name:      "refresh_total",
		Help:      "Snapshot refreshes by resource and outcome.",
	}, []string{"resource", "outcome"})

	// MutationTotal counts dashboard mutations by kind and outcome.
	MutationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "complaintdesk",
		Name:      "mutation_total",
		Help:      "Mutations (submit, update, profile, password, delete) by outcome.",
	}, []string{"kind", "outcome"})

	// TransitionTotal counts status transitions by target status and outcome.
	TransitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "complaintdesk",
		Name:      "transition_total",
		Help:      "Complaint status transitions by target status and outcome.",
	}, []string{"status", "outcome"})

	// NotificationsTotal counts Telegram sends by kind and outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "complaintdesk",
		Name:      "notifications_total",
		Help:      "Telegram notifications by kind and outcome.",
	}, []string{"kind", "outcome"})

	// WatchCycleDuration observes how long one watch cycle takes.
	WatchCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "complaintdesk",
		Name:      "watch_cycle_duration_seconds",
		Help:      "Duration of one watch cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// ComplaintsByStatus is the last observed global count per status.
	ComplaintsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "complaintdesk",
		Name:      "complaints",
		Help:      "Complaints by status as of the last admin stats refresh.",
	}, []string{"status"})
)

// Outcome maps an error to a success/failure label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
