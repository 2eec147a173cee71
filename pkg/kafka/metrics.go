package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_publish_total",
		Help: "Kafka publish attempts by topic and result (ok, error)",
	}, []string{"topic", "result"})

	publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_producer_publish_duration_seconds",
		Help:    "Duration of Kafka publish operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)
