package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_intents_processed_total",
		Help: "The total number of processed intents by path and outcome",
	}, []string{"path", "outcome"})

	IntentProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_intent_processing_seconds",
		Help:    "Time taken to process due intents",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"path"})

	DueIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_due_intents",
		Help: "The number of due intents found by the last tick",
	})

	InFlightIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_inflight_intents",
		Help: "The number of intents currently being processed",
	})

	InFlightSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_inflight_skips_total",
		Help: "Due intents skipped because a previous execution was still in flight",
	})

	ExecutionsDelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_executions_delayed_total",
		Help: "The total number of delayed executions by constraint reason",
	}, []string{"reason"})

	GasUsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_gas_used",
		Help:    "Gas used by on-chain intent executions",
		Buckets: prometheus.ExponentialBuckets(21000, 2, 10),
	})

	GasPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_gas_price_gwei",
		Help: "Gas price observed at the last on-chain execution, in gwei",
	})

	PayoutRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_payout_requests_total",
		Help: "The total number of off-ramp payout requests by outcome",
	}, []string{"outcome"})

	StoreWriteRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_store_write_retries_total",
		Help: "Outcome writes that had to be retried after a store error",
	})

	UnrecordedOutcomes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_unrecorded_outcomes_total",
		Help: "Execution outcomes that could not be persisted after exhausting retries",
	})

	BreakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_breaker_rejections_total",
		Help: "Executions deferred because a gateway circuit breaker was open",
	}, []string{"gateway"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_notifications_sent_total",
		Help: "The total number of notifications sent by type and channel",
	}, []string{"type", "channel"})
)
