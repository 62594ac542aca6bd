// Package ports declares the host collaborators the engine consumes but
// never owns: clocks, metric sources, visibility feeds, and archives.
package ports

import (
	"context"
	"time"
)

// Clock supplies monotonic time to the scheduler and analyzer.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now returns the wrapped function's reading.
func (f ClockFunc) Now() time.Time { return f() }

// HeapReading is one raw read from a heap metric source. Nil fields mean the
// source cannot provide that counter.
type HeapReading struct {
	Used  *uint64
	Total *uint64
	Limit *uint64
}

// HeapSource provides heap counters for the monitored memory region.
// Precise reports whether the counters come from an exact accounting
// facility rather than a legacy estimate; the capability detector prefers
// precise sources when both are wired.
type HeapSource interface {
	ReadHeap() (HeapReading, error)
	Precise() bool
}

// GCHinter is optionally implemented by heap sources that can forward a
// best-effort garbage collection hint to the host.
type GCHinter interface {
	HintGC(ctx context.Context) error
}

// UICounters is one raw read of the host UI surface's object counters.
type UICounters struct {
	DOMNodes       *int64
	EventListeners *int64
}

// UICounterSource counts live UI objects (DOM nodes, attached listeners)
// on hosts that have a UI surface. Hosts without one wire no source.
type UICounterSource interface {
	ReadUICounters() (UICounters, error)
}

// VisibilitySource reports whether the host surface is currently visible
// and streams visibility transitions. Changes must not block the sender;
// implementations deliver over a buffered channel and drop on overflow.
type VisibilitySource interface {
	Visible() bool
	Changes() <-chan bool
}
