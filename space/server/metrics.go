package server

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK      = "ok"
	resultInvalid = "invalid"
	resultError   = "error"
	resultStopped = "stopped"
)

var (
	pushCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinysync",
			Subsystem: "server",
			Name:      "push_total",
			Help:      "Counter of push requests by result.",
		}, []string{"result"})

	pullCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinysync",
			Subsystem: "server",
			Name:      "pull_total",
			Help:      "Counter of pull requests by result.",
		}, []string{"result"})

	mutationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinysync",
			Subsystem: "server",
			Name:      "mutations_total",
			Help:      "Counter of pushed mutations by outcome.",
		}, []string{"outcome"})

	pushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinysync",
			Subsystem: "server",
			Name:      "push_duration_seconds",
			Help:      "Bucketed histogram of push processing time.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		})

	pullDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinysync",
			Subsystem: "server",
			Name:      "pull_duration_seconds",
			Help:      "Bucketed histogram of pull processing time.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		})

	patchSizeHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinysync",
			Subsystem: "server",
			Name:      "patch_operations",
			Help:      "Bucketed histogram of the number of operations in pull patches.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		})
)

func init() {
	prometheus.MustRegister(pushCounter)
	prometheus.MustRegister(pullCounter)
	prometheus.MustRegister(mutationCounter)
	prometheus.MustRegister(pushDuration)
	prometheus.MustRegister(pullDuration)
	prometheus.MustRegister(patchSizeHistogram)
}
