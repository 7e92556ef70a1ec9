package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchesTotal counts verified trigger matches.
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goodluck_bot_matches_total",
		Help: "Total number of messages that matched a trigger phrase",
	})

	// BufferedRecords is the number of records waiting for the next flush.
	BufferedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goodluck_bot_buffered_records",
		Help: "Records waiting in the write buffer",
	})

	// FlushesTotal counts flush runs by outcome (ok, partial, skipped).
	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goodluck_bot_flushes_total",
			Help: "Total number of flush runs",
		},
		[]string{"outcome"},
	)

	// FlushedRecordsTotal counts drained records by result (written, requeued, dropped).
	FlushedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goodluck_bot_flushed_records_total",
			Help: "Records handled by the flusher",
		},
		[]string{"result"},
	)

	// StoreLatency records external store latency per operation.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goodluck_bot_store_latency_seconds",
			Help:    "External store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// EventsTotal counts inbound events by kind.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goodluck_bot_events_total",
			Help: "Inbound chat events by kind",
		},
		[]string{"kind"},
	)
)
