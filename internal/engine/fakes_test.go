package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vshulcz/heapwatch/internal/ports"
)

// fakeHeap serves scripted heap readings.
type fakeHeap struct {
	mu      sync.Mutex
	used    uint64
	total   uint64
	limit   uint64
	noLimit bool
	step    uint64
	precise bool
	fail    bool
	gcCalls int
	reads   int
}

func (f *fakeHeap) ReadHeap() (ports.HeapReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.fail {
		return ports.HeapReading{}, errors.New("heap read failed")
	}
	used, total := f.used, f.total
	f.used += f.step
	r := ports.HeapReading{Used: &used, Total: &total}
	if !f.noLimit {
		limit := f.limit
		r.Limit = &limit
	}
	return r, nil
}

func (f *fakeHeap) Precise() bool { return f.precise }

func (f *fakeHeap) HintGC(context.Context) error {
	f.mu.Lock()
	f.gcCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeHeap) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

// fakeUI serves fixed UI counters.
type fakeUI struct {
	nodes     int64
	listeners int64
	fail      bool
}

func (f *fakeUI) ReadUICounters() (ports.UICounters, error) {
	if f.fail {
		return ports.UICounters{}, errors.New("ui read failed")
	}
	n, l := f.nodes, f.listeners
	return ports.UICounters{DOMNodes: &n, EventListeners: &l}, nil
}

// fakeVis is a switchable visibility source.
type fakeVis struct {
	mu      sync.Mutex
	visible bool
	ch      chan bool
}

func newFakeVis(visible bool) *fakeVis {
	return &fakeVis{visible: visible, ch: make(chan bool, 8)}
}

func (f *fakeVis) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

func (f *fakeVis) Changes() <-chan bool { return f.ch }

func (f *fakeVis) set(visible bool) {
	f.mu.Lock()
	f.visible = visible
	f.mu.Unlock()
	f.ch <- visible
}

// fakeClock advances a fixed step on every reading so regression inputs
// are deterministic.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock(start time.Time, step time.Duration) *fakeClock {
	return &fakeClock{now: start, step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Interval = 5 * time.Millisecond
	return cfg
}

func mustEngine(t interface{ Fatalf(string, ...any) }, cfg Config, opts ...Option) *Engine {
	e, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return e
}
