package engine

import "github.com/vshulcz/heapwatch/internal/domain"

// Leak scoring constants. The probability is the product of two normalized
// signals: how steep the growth is relative to a sensitivity-scaled
// reference slope, and how linear the fit is above a fixed r² floor.
// Neither a steep-but-noisy rise nor a clean-but-flat one scores high on
// its own. Sensitivity only reshapes how probability is earned; the
// verdict threshold itself never moves.
const (
	// leakMinSamples is the smallest fitted point count the heuristic
	// will judge. Below it the verdict is always probability 0, not
	// detected.
	leakMinSamples = 5

	// leakR2Floor is the r² below which a fit contributes nothing.
	leakR2Floor = 0.5

	// leakVerdictThreshold is the probability at which IsLeakDetected
	// flips, independent of sensitivity.
	leakVerdictThreshold = 60.0
)

// referenceSlope returns the bytes-per-millisecond growth rate that earns a
// full slope score at the given sensitivity. Higher sensitivity means a
// smaller reference, so the same slope normalizes higher.
func referenceSlope(s domain.Sensitivity) float64 {
	switch s {
	case domain.SensitivityHigh:
		return 10
	case domain.SensitivityMedium:
		return 50
	default:
		return 200
	}
}

// EvaluateLeak turns a regression into a leak verdict. The minimum-sample
// gate judges reg.SampleCount, the points the line was actually fitted
// over, so a window padded with unreadable samples cannot pass it.
// Insufficient data, a non-positive slope, or a poor fit all yield
// probability 0; the heuristic never reports confidence it does not have.
func EvaluateLeak(reg domain.RegressionResult, sensitivity domain.Sensitivity) domain.LeakVerdict {
	if reg.SampleCount < leakMinSamples || reg.Slope <= 0 {
		return domain.LeakVerdict{}
	}

	slopeNorm := clamp01(reg.Slope / referenceSlope(sensitivity))
	fitNorm := clamp01((clamp01(reg.RSquared) - leakR2Floor) / (1 - leakR2Floor))

	p := 100 * slopeNorm * fitNorm
	return domain.LeakVerdict{
		Probability:    p,
		IsLeakDetected: p >= leakVerdictThreshold,
	}
}
