// Package domain holds the core value types of the memory telemetry engine.
package domain

import "time"

// SupportLevel describes how much of the metric surface the host can provide.
type SupportLevel string

const (
	// SupportFull means precise heap counters are available.
	SupportFull SupportLevel = "full"
	// SupportPartial means only legacy heap counters or UI counters are available.
	SupportPartial SupportLevel = "partial"
	// SupportNone means the host exposes no memory metrics at all.
	SupportNone SupportLevel = "none"
)

// Metric names reported in SupportProfile.AvailableMetrics.
const (
	MetricHeapUsed       = "heapUsed"
	MetricHeapTotal      = "heapTotal"
	MetricHeapLimit      = "heapLimit"
	MetricDOMNodes       = "domNodeCount"
	MetricEventListeners = "eventListenerCount"
)

// SupportProfile is the result of capability detection, computed once at
// engine construction and constant for the engine's lifetime.
type SupportProfile struct {
	Level            SupportLevel `json:"level"`
	AvailableMetrics []string     `json:"availableMetrics"`
}

// Has reports whether the named metric is obtainable in this host.
func (p SupportProfile) Has(metric string) bool {
	for _, m := range p.AvailableMetrics {
		if m == metric {
			return true
		}
	}
	return false
}

// MetricSample is one observation of the host's memory and UI counters.
// Byte counters are pointers because partial hosts cannot provide them;
// a nil field means "not supported", not zero. Immutable once created.
type MetricSample struct {
	Timestamp      time.Time `json:"timestamp"`
	HeapUsed       *uint64   `json:"heapUsed,omitempty"`
	HeapTotal      *uint64   `json:"heapTotal,omitempty"`
	HeapLimit      *uint64   `json:"heapLimit,omitempty"`
	DOMNodes       *int64    `json:"domNodeCount,omitempty"`
	EventListeners *int64    `json:"eventListenerCount,omitempty"`
}

// HasHeapUsed reports whether the sample carries a usable heap-used reading.
func (s MetricSample) HasHeapUsed() bool { return s.HeapUsed != nil }

// TrendLabel is the discrete direction of the heap-usage trend.
type TrendLabel string

const (
	TrendIncreasing TrendLabel = "increasing"
	TrendDecreasing TrendLabel = "decreasing"
	TrendStable     TrendLabel = "stable"
)

// SeverityTier classifies current usage pressure against configured thresholds.
type SeverityTier string

const (
	SeverityNormal   SeverityTier = "normal"
	SeverityWarning  SeverityTier = "warning"
	SeverityCritical SeverityTier = "critical"
)

// Sensitivity scales how readily the leak heuristic raises its probability.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Valid reports whether s is one of the three defined tiers.
func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return true
	}
	return false
}
