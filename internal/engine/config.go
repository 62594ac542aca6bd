package engine

import (
	"fmt"
	"time"

	"github.com/vshulcz/heapwatch/internal/domain"
)

// LeakConfig controls the leak heuristic.
type LeakConfig struct {
	Enabled     bool
	Sensitivity domain.Sensitivity
}

// Config is the engine's construction-time configuration. It is validated
// once at construction; malformed values are rejected with a descriptive
// error, never silently coerced.
type Config struct {
	// Interval is the sampling period.
	Interval time.Duration
	// AutoStart begins polling immediately after construction.
	AutoStart bool
	// EnableHistory retains samples in the ring buffer. When false the
	// engine runs latest-only: derived trend state stays neutral.
	EnableHistory bool
	// HistorySize is the ring capacity when history is enabled.
	HistorySize int
	// Thresholds are the severity breakpoints.
	Thresholds Thresholds
	// TrackDOMNodes and TrackEventListeners gate UI counter reads.
	TrackDOMNodes       bool
	TrackEventListeners bool
	// Leak configures the leak heuristic.
	Leak LeakConfig
}

// DefaultConfig returns one-second sampling, sixty samples of history,
// 70/90 severity breakpoints, and leak detection at medium sensitivity.
func DefaultConfig() Config {
	return Config{
		Interval:            time.Second,
		AutoStart:           false,
		EnableHistory:       true,
		HistorySize:         60,
		Thresholds:          Thresholds{Warning: 0.7, Critical: 0.9},
		TrackDOMNodes:       true,
		TrackEventListeners: true,
		Leak:                LeakConfig{Enabled: true, Sensitivity: domain.SensitivityMedium},
	}
}

// Validate rejects non-positive intervals and history sizes, malformed
// thresholds, and unknown sensitivity tiers.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be > 0, got %v", domain.ErrInvalidConfig, c.Interval)
	}
	if c.EnableHistory && c.HistorySize <= 0 {
		return fmt.Errorf("%w: history size must be > 0, got %d", domain.ErrInvalidConfig, c.HistorySize)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Leak.Enabled && !c.Leak.Sensitivity.Valid() {
		return fmt.Errorf("%w: unknown sensitivity %q", domain.ErrInvalidConfig, c.Leak.Sensitivity)
	}
	return nil
}
