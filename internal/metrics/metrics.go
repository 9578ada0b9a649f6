package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HeartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_heartbeats_total",
			Help: "Total number of agent heartbeats accepted",
		},
	)

	EventsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_events_accepted_total",
			Help: "Total number of activity events persisted",
		},
	)

	DuplicateBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_batches_duplicate_total",
			Help: "Total number of event batches recognized as replays",
		},
	)

	ScreenshotRelayBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screenshot_relay_bytes",
			Help:    "Size of screenshot payloads relayed to blob storage",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	CredentialsIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentials_issued_total",
			Help: "Total number of access credentials minted",
		},
		[]string{"via"},
	)
)
