package engine

import (
	"github.com/vshulcz/heapwatch/internal/domain"
	"github.com/vshulcz/heapwatch/internal/ports"
)

// Detect probes the wired sources once and reports what the host can
// provide. A nil source is a normal degraded state, never an error: a
// headless process simply detects as "none". Precise heap sources take
// precedence over legacy ones for the support level; UI counters are
// additive and independent of heap support.
func Detect(heap ports.HeapSource, ui ports.UICounterSource) domain.SupportProfile {
	var metrics []string

	heapOK := false
	if heap != nil {
		if r, err := heap.ReadHeap(); err == nil {
			if r.Used != nil {
				metrics = append(metrics, domain.MetricHeapUsed)
				heapOK = true
			}
			if r.Total != nil {
				metrics = append(metrics, domain.MetricHeapTotal)
			}
			if r.Limit != nil {
				metrics = append(metrics, domain.MetricHeapLimit)
			}
		}
	}

	if ui != nil {
		if c, err := ui.ReadUICounters(); err == nil {
			if c.DOMNodes != nil {
				metrics = append(metrics, domain.MetricDOMNodes)
			}
			if c.EventListeners != nil {
				metrics = append(metrics, domain.MetricEventListeners)
			}
		}
	}

	level := domain.SupportNone
	switch {
	case heapOK && heap.Precise():
		level = domain.SupportFull
	case len(metrics) > 0:
		level = domain.SupportPartial
	}

	return domain.SupportProfile{Level: level, AvailableMetrics: metrics}
}
