package engine

import (
	"fmt"

	"github.com/vshulcz/heapwatch/internal/domain"
)

// Thresholds are the usage-ratio breakpoints for severity classification.
type Thresholds struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// Validate enforces 0 < Warning < Critical <= 1. Malformed thresholds are
// rejected, never clamped.
func (t Thresholds) Validate() error {
	if t.Warning <= 0 || t.Critical > 1 || t.Warning >= t.Critical {
		return fmt.Errorf("%w: thresholds must satisfy 0 < warning (%v) < critical (%v) <= 1",
			domain.ErrInvalidConfig, t.Warning, t.Critical)
	}
	return nil
}

// Classify maps the current usage ratio against the thresholds. Both
// breakpoints are inclusive lower bounds. A missing limit means the ratio
// is undefined, which classifies as normal: severity cannot be computed
// without a denominator and partial support must still produce a reading.
func Classify(heapUsed, heapLimit *uint64, t Thresholds) domain.SeverityTier {
	if heapUsed == nil || heapLimit == nil || *heapLimit == 0 {
		return domain.SeverityNormal
	}
	ratio := float64(*heapUsed) / float64(*heapLimit)
	switch {
	case ratio >= t.Critical:
		return domain.SeverityCritical
	case ratio >= t.Warning:
		return domain.SeverityWarning
	default:
		return domain.SeverityNormal
	}
}

// UsagePercent returns heapUsed/heapLimit as a percentage, or 0 when the
// ratio is undefined.
func UsagePercent(heapUsed, heapLimit *uint64) float64 {
	if heapUsed == nil || heapLimit == nil || *heapLimit == 0 {
		return 0
	}
	return 100 * float64(*heapUsed) / float64(*heapLimit)
}
