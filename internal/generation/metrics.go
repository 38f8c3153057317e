package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindText   = "text"
	kindImage  = "image"
	kindSpeech = "speech"

	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeInvalid  = "invalid"
	outcomeFallback = "fallback"
	outcomeEmpty    = "empty"
)

var (
	generationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyquest_generation_requests_total",
			Help: "Generation calls by kind (text, image, speech) and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyquest_generation_duration_seconds",
			Help:    "Latency of generation calls including retries.",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"kind"},
	)
	narrationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storyquest_narration_retries_total",
			Help: "Speech requests retried after a rate-limit response.",
		},
	)
)

func observe(kind, outcome string, start time.Time) {
	generationRequests.WithLabelValues(kind, outcome).Inc()
	generationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
