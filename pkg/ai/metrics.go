package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "graderbot",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Duration of LLM completion requests",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider", "model"})

	llmFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graderbot",
		Subsystem: "llm",
		Name:      "request_failures_total",
		Help:      "Number of failed LLM completion requests",
	}, []string{"provider", "model"})
)
