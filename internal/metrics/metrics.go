package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Extraction metrics
	EventsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_etl_events_extracted_total",
			Help: "Total number of raw events read from the event store",
		},
	)

	PagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_etl_event_pages_total",
			Help: "Total number of paged event-store queries issued",
		},
	)

	// Transform metrics
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_etl_events_dropped_total",
			Help: "Total number of events dropped by a filter rule",
		},
		[]string{"reason"},
	)

	RecordsTransformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_etl_records_transformed_total",
			Help: "Total number of attendance records produced",
		},
	)

	// Hydration metrics
	HydrationCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_etl_hydration_calls_total",
			Help: "Total number of batched entity hydration round-trips",
		},
	)

	HydrationEntities = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_etl_hydration_entities_total",
			Help: "Total number of distinct entity ids hydrated",
		},
	)

	// Load metrics
	RecordsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_etl_records_loaded_total",
			Help: "Total number of records bulk-inserted into the sink",
		},
	)

	InsertBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_etl_insert_batches_total",
			Help: "Total number of bulk-insert calls",
		},
	)

	InsertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendance_etl_insert_duration_seconds",
			Help:    "Duration of bulk-insert calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
