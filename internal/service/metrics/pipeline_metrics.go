package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    MergeOutcomes = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "featpipe",
            Subsystem: "merge",
            Name:      "outcomes_total",
            Help:      "Feature merges by outcome (ok, incomplete, gap, misaligned, missing_norm, error)",
        },
        []string{"outcome"},
    )

    LabelsAssigned = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "featpipe",
            Subsystem: "labels",
            Name:      "assigned_total",
            Help:      "Labels written by bucket",
        },
        []string{"label"},
    )

    ThresholdMisses = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "featpipe",
            Subsystem: "labels",
            Name:      "threshold_misses_total",
            Help:      "Percentage changes not covered by the threshold table",
        },
    )

    StageLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "featpipe",
            Subsystem: "pipeline",
            Name:      "stage_seconds",
            Help:      "Latency of pipeline stages",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"stage"},
    )

    APILatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "featpipe",
            Subsystem: "api",
            Name:      "latency_seconds",
            Help:      "Latency of feature API endpoints",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    APIErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "featpipe",
            Subsystem: "api",
            Name:      "errors_total",
            Help:      "Errors by feature API endpoint",
        },
        []string{"endpoint"},
    )
)

// Register adds the pipeline collectors to reg; later calls are no-ops.
func Register(reg prometheus.Registerer) {
    once.Do(func() {
        reg.MustRegister(MergeOutcomes, LabelsAssigned, ThresholdMisses, StageLatency, APILatency, APIErrors)
    })
}
