package optimizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OptimizeDuration observes end-to-end optimization time per output format.
	OptimizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_optimize_duration_seconds",
			Help:    "Duration of image optimizations in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"format", "outcome"},
	)

	// OptimizedBytes observes the encoded output size per output format.
	OptimizedBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_optimized_bytes",
			Help:    "Size of optimized images in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		},
		[]string{"format"},
	)
)
