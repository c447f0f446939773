// Package metrics holds the Prometheus collectors for reading sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProgressWrites counts debounced reading-progress upserts.
	// Labels: result (success, error)
	ProgressWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clurb",
			Subsystem: "progress",
			Name:      "writes_total",
			Help:      "Reading progress upserts after debounce",
		},
		[]string{"result"},
	)

	// ProgressCoalesced counts page changes absorbed by a pending debounce window.
	ProgressCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clurb",
			Subsystem: "progress",
			Name:      "coalesced_total",
			Help:      "Page changes replaced before their write fired",
		},
	)

	// ChatMessages counts chat sends.
	// Labels: result (success, error, rate_limited)
	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clurb",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages sent",
		},
		[]string{"result"},
	)

	// AnnotationOps counts annotation mutations.
	// Labels: op (create, move, delete), result (success, error, forbidden)
	AnnotationOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clurb",
			Subsystem: "annotation",
			Name:      "operations_total",
			Help:      "Annotation mutations",
		},
		[]string{"op", "result"},
	)

	// AgentToolCalls counts assistant tool executions.
	// Labels: tool, result (success, error)
	AgentToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clurb",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Assistant tool executions",
		},
		[]string{"tool", "result"},
	)

	RealtimeStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clurb",
			Subsystem: "realtime",
			Name:      "open_streams",
			Help:      "Currently open document event streams",
		},
	)
)
