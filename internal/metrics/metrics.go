package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	dispatchBucketStart  = 0.25
	dispatchBucketFactor = 2.0
	dispatchBucketCount  = 10
)

const (
	webhookBucketStart  = 0.05
	webhookBucketFactor = 2.0
	webhookBucketCount  = 12
)

var CallDispatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "call_dispatch_duration_seconds",
		Help: "Time taken to dispatch one outbound call",
		Buckets: prometheus.ExponentialBuckets(
			dispatchBucketStart,
			dispatchBucketFactor,
			dispatchBucketCount,
		),
	},
	[]string{"outcome"},
)

var WebhookProcessDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name: "webhook_process_duration_seconds",
		Help: "Time taken to process a call completion notification",
		Buckets: prometheus.ExponentialBuckets(
			webhookBucketStart,
			webhookBucketFactor,
			webhookBucketCount,
		),
	},
)

var JobsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "jobs_in_flight",
		Help: "Number of jobs currently running",
	},
)

var JobCallOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "job_call_outcomes_total",
		Help: "Terminal job call outcomes by status",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(CallDispatchDuration)
	prometheus.MustRegister(WebhookProcessDuration)
	prometheus.MustRegister(JobsInFlight)
	prometheus.MustRegister(JobCallOutcomes)
}
