// Package runtimeheap implements a heap metric source for the current Go
// process. It prefers the precise runtime/metrics counters and falls back
// to the legacy runtime.ReadMemStats accounting when they are unavailable.
// The heap ceiling comes from GOMEMLIMIT when one is set, otherwise from
// the host's physical memory via gopsutil.
package runtimeheap

import (
	"context"
	"math"
	"runtime"
	"runtime/metrics"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vshulcz/heapwatch/internal/ports"
)

const (
	sampleHeapObjects  = "/memory/classes/heap/objects:bytes"
	sampleHeapUnused   = "/memory/classes/heap/unused:bytes"
	sampleHeapFree     = "/memory/classes/heap/free:bytes"
	sampleHeapReleased = "/memory/classes/heap/released:bytes"
	sampleGoMemLimit   = "/gc/gomemlimit:bytes"
)

// Source reads heap counters for the current process.
type Source struct {
	precise    bool
	limit      uint64
	hasLimit   bool
	gcInFlight atomic.Bool
}

var _ ports.HeapSource = (*Source)(nil)
var _ ports.GCHinter = (*Source)(nil)

// New probes the runtime once to choose the precise or legacy counter path
// and resolve the heap ceiling. Construction never fails: a host with no
// resolvable ceiling just reports no limit.
func New() *Source {
	s := &Source{precise: probePrecise()}

	if limit, ok := readGoMemLimit(); ok {
		s.limit, s.hasLimit = limit, true
	} else if vm, err := mem.VirtualMemory(); err == nil && vm != nil && vm.Total > 0 {
		s.limit, s.hasLimit = vm.Total, true
	}
	return s
}

// Precise reports whether runtime/metrics counters are in use.
func (s *Source) Precise() bool { return s.precise }

// ReadHeap returns the current heap counters.
func (s *Source) ReadHeap() (ports.HeapReading, error) {
	if s.precise {
		return s.readPrecise(), nil
	}
	return s.readLegacy(), nil
}

// HintGC schedules a collection without blocking the caller. Overlapping
// hints coalesce into one cycle.
func (s *Source) HintGC(_ context.Context) error {
	if !s.gcInFlight.CompareAndSwap(false, true) {
		return nil
	}
	go func() {
		defer s.gcInFlight.Store(false)
		runtime.GC()
	}()
	return nil
}

func (s *Source) readPrecise() ports.HeapReading {
	samples := []metrics.Sample{
		{Name: sampleHeapObjects},
		{Name: sampleHeapUnused},
		{Name: sampleHeapFree},
		{Name: sampleHeapReleased},
	}
	metrics.Read(samples)

	used := samples[0].Value.Uint64()
	total := used
	for _, smp := range samples[1:] {
		if smp.Value.Kind() == metrics.KindUint64 {
			total += smp.Value.Uint64()
		}
	}

	r := ports.HeapReading{Used: &used, Total: &total}
	if s.hasLimit {
		limit := s.limit
		r.Limit = &limit
	}
	return r
}

func (s *Source) readLegacy() ports.HeapReading {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	used, total := ms.HeapAlloc, ms.HeapSys
	r := ports.HeapReading{Used: &used, Total: &total}
	if s.hasLimit {
		limit := s.limit
		r.Limit = &limit
	}
	return r
}

func probePrecise() bool {
	samples := []metrics.Sample{{Name: sampleHeapObjects}}
	metrics.Read(samples)
	return samples[0].Value.Kind() == metrics.KindUint64
}

func readGoMemLimit() (uint64, bool) {
	samples := []metrics.Sample{{Name: sampleGoMemLimit}}
	metrics.Read(samples)
	if samples[0].Value.Kind() != metrics.KindUint64 {
		return 0, false
	}
	v := samples[0].Value.Uint64()
	// math.MaxInt64 means no limit was configured.
	if v == 0 || v == math.MaxInt64 {
		return 0, false
	}
	return v, true
}
