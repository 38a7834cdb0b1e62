// Package metrics exposes Prometheus instrumentation for the resolution core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IdentityResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unify_identity_resolutions_total",
		Help: "Identity resolution calls by outcome.",
	}, []string{"outcome"})

	IdentityResolutionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "unify_identity_resolution_seconds",
		Help:    "Wall time of identity resolution calls.",
		Buckets: prometheus.DefBuckets,
	})

	ConflictsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unify_conflicts_resolved_total",
		Help: "Attribute conflicts resolved across all calls.",
	})

	ConflictsRemaining = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unify_conflicts_remaining_total",
		Help: "Attribute conflicts no strategy could handle.",
	})

	GraphNodesArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unify_graph_nodes_archived_total",
		Help: "Identity graph nodes written to the archive store.",
	})
)
