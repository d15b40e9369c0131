package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ObservationsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observations_ingested_total",
		Help: "Total number of observations accepted into the store",
	})

	ObservationsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observations_duplicate_total",
		Help: "Total number of same-instant duplicate observations (last write wins)",
	})

	ObservationsStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observations_stale_total",
		Help: "Total number of out-of-order observations dropped",
	})

	ObservationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "observations_rejected_total",
		Help: "Total number of observations rejected by validation",
	}, []string{"reason"})

	ChangeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_events_total",
		Help: "Total number of detected change events",
	}, []string{"type"})

	AlertsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerts_recorded_total",
		Help: "Total number of alert rows written to the ledger",
	})

	AlertsMarkedReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerts_marked_read_total",
		Help: "Total number of alerts acknowledged",
	})

	AlertWriteFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_write_failed_total",
		Help: "Total number of alert writes that failed after retries",
	}, []string{"reason"})

	IngestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "observation_ingest_latency_seconds",
		Help:    "Latency of the ingest critical section per observation",
		Buckets: prometheus.DefBuckets,
	})

	LatestStateRebuildTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "latest_state_rebuild_total",
		Help: "Total number of latest-state index rebuilds from the observation store",
	})

	RetentionPurgedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retention_purged_rows_total",
		Help: "Total number of rows removed by the retention worker",
	}, []string{"table"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
