package engine

import (
	"github.com/vshulcz/heapwatch/internal/domain"
)

// trendDeadZone is the slope magnitude, in bytes per millisecond, below
// which the trend label stays "stable". It keeps sampling noise from
// flapping the label between increasing and decreasing on every tick.
const trendDeadZone = 10.0

// minTrendSamples is the smallest sample count the regression accepts;
// below it Analyze returns the neutral result.
const minTrendSamples = 2

// Analyze fits an ordinary least-squares line of heap-used bytes against
// elapsed milliseconds since the first usable sample. Samples without a
// heap-used reading are skipped. With fewer than minTrendSamples usable
// points the neutral result (zero slope, zero r²) is returned instead of
// an error: too little data is not a failure.
func Analyze(samples []domain.MetricSample) domain.RegressionResult {
	xs := make([]float64, 0, len(samples))
	ys := make([]float64, 0, len(samples))
	var t0 int64
	for _, s := range samples {
		if !s.HasHeapUsed() {
			continue
		}
		if len(xs) == 0 {
			t0 = s.Timestamp.UnixMilli()
		}
		xs = append(xs, float64(s.Timestamp.UnixMilli()-t0))
		ys = append(ys, float64(*s.HeapUsed))
	}
	if len(xs) < minTrendSamples {
		return domain.RegressionResult{SampleCount: len(xs)}
	}

	n := float64(len(xs))
	var sumX, sumY, sumXX, sumXY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXX += xs[i] * xs[i]
		sumXY += xs[i] * ys[i]
	}

	den := n*sumXX - sumX*sumX
	if den == 0 {
		// All points share one timestamp; no line to fit.
		return domain.RegressionResult{SampleCount: len(xs)}
	}
	slope := (n*sumXY - sumX*sumY) / den
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i := range xs {
		pred := intercept + slope*xs[i]
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = clamp01(1 - ssRes/ssTot)
	}

	return domain.RegressionResult{Slope: slope, Intercept: intercept, RSquared: r2, SampleCount: len(xs)}
}

// Trend maps a regression slope to its discrete label using trendDeadZone.
func Trend(slope float64) domain.TrendLabel {
	switch {
	case slope > trendDeadZone:
		return domain.TrendIncreasing
	case slope < -trendDeadZone:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
