package entities

import (
	"math"
	"sort"
	"time"
)

const (
	// LatencyWindow bounds how many successful durations are kept per queue.
	LatencyWindow     = 200
	minTimeoutSamples = 20
)

type TimeoutSource string

const (
	TimeoutFromBase TimeoutSource = "base"
	TimeoutFromP95  TimeoutSource = "p95"
)

type TimeoutRecommendation struct {
	Queue       string
	Timeout     time.Duration
	P95         time.Duration
	SampleCount int
	Source      TimeoutSource
}

// AdaptiveTimeout derives a job timeout from recent successful durations:
// p95 scaled by the policy multiplier and clamped to the policy bounds.
func AdaptiveTimeout(queue string, samples []time.Duration, policy QueuePolicy) TimeoutRecommendation {
	if len(samples) > LatencyWindow {
		samples = samples[len(samples)-LatencyWindow:]
	}
	rec := TimeoutRecommendation{
		Queue:       queue,
		Timeout:     policy.BaseTimeout,
		SampleCount: len(samples),
		Source:      TimeoutFromBase,
	}
	if len(samples) < minTimeoutSamples {
		return rec
	}

	rec.P95 = Percentile(samples, 0.95)
	timeout := time.Duration(float64(rec.P95) * policy.TimeoutMultiplier)
	if timeout < policy.MinTimeout {
		timeout = policy.MinTimeout
	}
	if timeout > policy.MaxTimeout {
		timeout = policy.MaxTimeout
	}
	rec.Timeout = timeout
	rec.Source = TimeoutFromP95
	return rec
}

// Percentile uses the nearest-rank method on a sorted copy of samples.
func Percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
