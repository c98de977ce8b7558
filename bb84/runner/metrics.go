package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// roundsTotal counts finished rounds by outcome.
	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bb84_rounds_total",
		Help: "Total BB84 rounds by outcome",
	}, []string{"outcome"})

	// roundQBER tracks the sampled error rate of rounds that reached
	// estimation.
	roundQBER = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bb84_round_qber",
		Help:    "Sampled quantum bit error rate per round",
		Buckets: prometheus.LinearBuckets(0, 0.025, 21), // 0 to 0.5
	})

	// keyBits tracks distilled key length.
	keyBits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bb84_key_bits",
		Help:    "Distilled raw key bits per round",
		Buckets: prometheus.ExponentialBuckets(16, 2, 14), // 16 to ~128k
	})

	// roundDuration tracks wall time per round.
	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bb84_round_duration_seconds",
		Help:    "BB84 round duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	})

	// channelFailures counts rounds lost to channel errors.
	channelFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bb84_channel_failures_total",
		Help: "Total BB84 rounds failed by the quantum channel",
	})
)
