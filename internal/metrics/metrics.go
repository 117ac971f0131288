package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Telemetry
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_readings_total",
			Help: "Readings produced by the active source",
		},
		[]string{"source"}, // generator | ingest
	)

	ChannelValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agri_channel_value",
			Help: "Latest value per telemetry channel",
		},
		[]string{"channel"},
	)

	// Alerting
	AlertsRaisedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_alerts_raised_total",
			Help: "Alerts emitted by the threshold evaluator",
		},
		[]string{"channel", "severity"},
	)

	AlertsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agri_alerts_active",
			Help: "Alerts currently held by the ledger",
		},
	)

	AlertsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agri_alerts_expired_total",
			Help: "Alerts dropped by retention sweeps",
		},
	)

	// Irrigation
	IrrigationActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agri_irrigation_active",
			Help: "1 while the irrigation actuator is running",
		},
	)

	IrrigationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_irrigation_transitions_total",
			Help: "Irrigation state transitions",
		},
		[]string{"state", "reason"},
	)

	// Persistence
	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_store_writes_total",
			Help: "Reading writes to the persistence collaborator",
		},
		[]string{"status"}, // ok | failed
	)

	StoreWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agri_store_write_duration_seconds",
			Help:    "Latency of reading writes",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Events
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_events_published_total",
			Help: "Events delivered to sinks",
		},
		[]string{"sink", "status"},
	)

	// Scheduler
	LoopErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_loop_errors_total",
			Help: "Errors and recovered panics per scheduler loop",
		},
		[]string{"loop"},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agri_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)
)
