package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/heapwatch/internal/domain"
	"github.com/vshulcz/heapwatch/internal/ports"
	"github.com/vshulcz/heapwatch/pkg/observer"
)

// State is the engine's published view, recomputed on every tick. Values
// are copies; holding a State across ticks is safe.
type State struct {
	Reading          domain.MetricSample   `json:"reading"`
	UsagePercentage  float64               `json:"usagePercentage"`
	Severity         domain.SeverityTier   `json:"severity"`
	Trend            domain.TrendLabel     `json:"trend"`
	LeakProbability  float64               `json:"leakProbability"`
	IsLeakDetected   bool                  `json:"isLeakDetected"`
	History          []domain.MetricSample `json:"history"`
	SupportLevel     domain.SupportLevel   `json:"supportLevel"`
	AvailableMetrics []string              `json:"availableMetrics"`
	IsMonitoring     bool                  `json:"isMonitoring"`
}

type options struct {
	log     *zap.Logger
	clock   ports.Clock
	heap    ports.HeapSource
	ui      ports.UICounterSource
	vis     ports.VisibilitySource
	archive ports.SampleArchive
}

// Option customizes engine construction.
type Option func(*options)

// WithLogger sets the engine logger. Default is a nop logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithClock sets the monotonic clock source. Default is time.Now.
func WithClock(c ports.Clock) Option { return func(o *options) { o.clock = c } }

// WithHeapSource wires the raw heap metric source.
func WithHeapSource(h ports.HeapSource) Option { return func(o *options) { o.heap = h } }

// WithUICounterSource wires the DOM/listener counter source.
func WithUICounterSource(u ports.UICounterSource) Option { return func(o *options) { o.ui = u } }

// WithVisibilitySource wires the host-surface visibility feed.
func WithVisibilitySource(v ports.VisibilitySource) Option { return func(o *options) { o.vis = v } }

// WithArchive wires optional sample/snapshot persistence.
func WithArchive(a ports.SampleArchive) Option { return func(o *options) { o.archive = a } }

// Engine owns one sample buffer, one snapshot store, and one scheduler.
// Engines are not shared: each caller constructs its own with independent
// state.
type Engine struct {
	cfg     Config
	log     *zap.Logger
	clock   ports.Clock
	heap    ports.HeapSource
	ui      ports.UICounterSource
	archive ports.SampleArchive

	profile domain.SupportProfile
	buf     *SampleBuffer
	snaps   *SnapshotStore
	sched   *scheduler
	subject *observer.Subject[State]

	mu     sync.RWMutex
	state  State
	closed bool
}

// New builds an engine from a validated config and wired sources.
// Capability detection runs once here and the resulting profile is
// constant for the engine's lifetime.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, f := range opts {
		f(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.clock == nil {
		o.clock = ports.ClockFunc(time.Now)
	}

	capacity := 0
	if cfg.EnableHistory {
		capacity = cfg.HistorySize
	}

	e := &Engine{
		cfg:     cfg,
		log:     o.log,
		clock:   o.clock,
		heap:    o.heap,
		ui:      o.ui,
		archive: o.archive,
		profile: Detect(o.heap, o.ui),
		buf:     NewSampleBuffer(capacity),
		snaps:   NewSnapshotStore(),
		subject: observer.NewSubject[State](),
	}
	e.sched = newScheduler(cfg.Interval, o.vis, o.log, e.tick)
	e.state = e.deriveLocked(domain.MetricSample{}, nil)

	e.log.Info("engine constructed",
		zap.String("support", string(e.profile.Level)),
		zap.Strings("metrics", e.profile.AvailableMetrics),
	)

	if cfg.AutoStart {
		e.sched.Start()
	}
	return e, nil
}

// Support returns the capability profile detected at construction.
func (e *Engine) Support() domain.SupportProfile { return e.profile }

// Subscribe attaches observers that receive the State published each tick.
func (e *Engine) Subscribe(obs ...observer.Observer[State]) {
	e.subject.Attach(obs...)
}

// State returns the most recently published state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.state
	st.IsMonitoring = e.sched.Running()
	return st
}

// Start begins periodic sampling. Idempotent while running.
func (e *Engine) Start() error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return domain.ErrEngineClosed
	}
	e.sched.Start()
	return nil
}

// Stop halts periodic sampling. Idempotent while idle.
func (e *Engine) Stop() {
	e.sched.Stop()
}

// Close stops sampling and bars restart. Safe from any state, including
// concurrently with a tick or a second Close.
func (e *Engine) Close() {
	e.sched.Close()
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.log.Info("engine closed")
}

// TakeSnapshot captures the latest sample under id. If no tick has run
// yet, a direct read is taken instead so the snapshot is never empty on a
// supported host.
func (e *Engine) TakeSnapshot(id string) (domain.Snapshot, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return domain.Snapshot{}, domain.ErrEngineClosed
	}
	s, ok := e.buf.Latest()
	e.mu.RUnlock()

	if !ok {
		var err error
		s, err = e.readSample()
		if err != nil {
			return domain.Snapshot{}, err
		}
	}

	snap := e.snaps.Capture(id, s, e.clock.Now())
	e.archiveSnapshot(snap)
	return snap, nil
}

// CompareSnapshots diffs the captures under idA and idB, in that order.
// An absent id reports ok=false, never an error.
func (e *Engine) CompareSnapshots(idA, idB string) (domain.SnapshotDiff, bool) {
	return e.snaps.Diff(idA, idB)
}

// Snapshots lists all captures in chronological order.
func (e *Engine) Snapshots() []domain.Snapshot {
	return e.snaps.List()
}

// ClearSnapshots drops every capture.
func (e *Engine) ClearSnapshots() {
	e.snaps.Clear()
}

// ClearHistory empties the ring buffer and resets derived trend state.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	e.buf.Clear()
	e.state = e.deriveLocked(domain.MetricSample{}, nil)
	e.mu.Unlock()
}

// RequestGCHint forwards a best-effort collection hint to whichever source
// supports one. Hosts without the facility make this a no-op.
func (e *Engine) RequestGCHint(ctx context.Context) error {
	if h, ok := e.heap.(ports.GCHinter); ok {
		return h.HintGC(ctx)
	}
	if h, ok := e.ui.(ports.GCHinter); ok {
		return h.HintGC(ctx)
	}
	return nil
}

// tick runs on the scheduler goroutine. A transient read failure skips the
// whole tick: no sample pushed, no state mutated, scheduling continues.
func (e *Engine) tick() {
	s, err := e.readSample()
	if err != nil {
		e.log.Warn("metric read failed, skipping tick", zap.Error(err))
		return
	}

	e.mu.Lock()
	e.buf.Push(s)
	history := e.buf.Ordered()
	st := e.deriveLocked(s, history)
	e.state = st
	e.mu.Unlock()

	st.IsMonitoring = true
	e.subject.Publish(context.Background(), st)

	if e.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Interval)
		if err := e.archive.SaveSample(ctx, s); err != nil {
			e.log.Warn("archive write failed", zap.Error(err))
		}
		cancel()
	}
}

// readSample gathers one observation from the wired sources.
func (e *Engine) readSample() (domain.MetricSample, error) {
	s := domain.MetricSample{Timestamp: e.clock.Now()}

	if e.heap != nil && e.profile.Has(domain.MetricHeapUsed) {
		r, err := e.heap.ReadHeap()
		if err != nil {
			return domain.MetricSample{}, err
		}
		s.HeapUsed, s.HeapTotal, s.HeapLimit = r.Used, r.Total, r.Limit
	}

	if e.ui != nil && (e.cfg.TrackDOMNodes || e.cfg.TrackEventListeners) {
		c, err := e.ui.ReadUICounters()
		if err != nil {
			return domain.MetricSample{}, err
		}
		if e.cfg.TrackDOMNodes {
			s.DOMNodes = c.DOMNodes
		}
		if e.cfg.TrackEventListeners {
			s.EventListeners = c.EventListeners
		}
	}

	return s, nil
}

// deriveLocked recomputes the published state from the current reading and
// an ordered history. Callers hold e.mu.
func (e *Engine) deriveLocked(reading domain.MetricSample, history []domain.MetricSample) State {
	reg := Analyze(history)

	verdict := domain.LeakVerdict{}
	if e.cfg.Leak.Enabled {
		verdict = EvaluateLeak(reg, e.cfg.Leak.Sensitivity)
	}

	if history == nil {
		history = []domain.MetricSample{}
	}

	return State{
		Reading:          reading,
		UsagePercentage:  UsagePercent(reading.HeapUsed, reading.HeapLimit),
		Severity:         Classify(reading.HeapUsed, reading.HeapLimit, e.cfg.Thresholds),
		Trend:            Trend(reg.Slope),
		LeakProbability:  verdict.Probability,
		IsLeakDetected:   verdict.IsLeakDetected,
		History:          history,
		SupportLevel:     e.profile.Level,
		AvailableMetrics: e.profile.AvailableMetrics,
	}
}

func (e *Engine) archiveSnapshot(snap domain.Snapshot) {
	if e.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Interval)
	defer cancel()
	if err := e.archive.SaveSnapshot(ctx, snap); err != nil {
		e.log.Warn("snapshot archive failed", zap.Error(err))
	}
}
