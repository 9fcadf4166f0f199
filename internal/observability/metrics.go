// Package observability exposes prometheus counters for both pipelines.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relocation pipeline counters.
var (
	EventsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scdlpicker_events_evaluated_total",
		Help: "Pending events evaluated by the readiness gate.",
	})
	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scdlpicker_events_rejected_total",
		Help: "Events permanently rejected by the readiness gate.",
	})
	RelocationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scdlpicker_relocations_sent_total",
		Help: "Relocated origins published to the catalog.",
	})
	RelocationsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scdlpicker_relocations_suppressed_total",
		Help: "Relocations withheld because they did not improve on the last published one.",
	})
	RelocationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scdlpicker_relocations_failed_total",
		Help: "Relocation attempts that failed or returned too few arrivals.",
	})
)

// Repicker pipeline counters.
var (
	SpoolItemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scdlpicker_spool_items_processed_total",
		Help: "Spool items consumed and acknowledged.",
	})
	PicksDerived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scdlpicker_picks_derived_total",
		Help: "Derived picks accepted by the annotation associator.",
	})
	PicksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scdlpicker_picks_dropped_total",
		Help: "Picks dropped for missing or too-short waveform components.",
	})
)
