package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/heapwatch/internal/ports"
)

// scheduler drives periodic sampling. It is the single source of truth for
// whether a tick should execute: logical running state (idle/running) plus
// an orthogonal suspended flag that tracks host-surface visibility.
// Suspension withholds ticks without leaving the running state, so a
// visibility round-trip needs no stop/start cycle, and resuming waits for
// the next scheduled tick instead of firing a catch-up burst.
type scheduler struct {
	interval time.Duration
	tick     func()
	vis      ports.VisibilitySource
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}

	susMu     sync.RWMutex
	suspended bool
}

func newScheduler(interval time.Duration, vis ports.VisibilitySource, log *zap.Logger, tick func()) *scheduler {
	return &scheduler{interval: interval, tick: tick, vis: vis, log: log}
}

// Start transitions idle to running. Starting a running or closed
// scheduler is a no-op.
func (s *scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.closed {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	s.setSuspended(s.vis != nil && !s.vis.Visible())

	go s.loop(s.stop, s.done)
	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
}

// Stop transitions running to idle and cancels the pending timer. Stopping
// an idle scheduler is a no-op.
func (s *scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stop)
	<-s.done
	s.running = false
	s.log.Info("scheduler stopped")
}

// Close stops the scheduler and bars any restart. Callable from any state,
// any number of times.
func (s *scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.running {
		close(s.stop)
		<-s.done
		s.running = false
	}
	s.closed = true
}

// Running reports the logical state; a suspended scheduler still counts as
// running.
func (s *scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Suspended reports whether ticks are currently withheld.
func (s *scheduler) Suspended() bool {
	s.susMu.RLock()
	defer s.susMu.RUnlock()
	return s.suspended
}

func (s *scheduler) setSuspended(v bool) {
	s.susMu.Lock()
	s.suspended = v
	s.susMu.Unlock()
}

func (s *scheduler) loop(stop, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(s.interval)
	defer t.Stop()

	var changes <-chan bool
	if s.vis != nil {
		changes = s.vis.Changes()
	}

	for {
		select {
		case <-stop:
			return
		case visible, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.setSuspended(!visible)
			s.log.Debug("visibility change", zap.Bool("visible", visible))
		case <-t.C:
			if s.Suspended() {
				continue
			}
			s.tick()
		}
	}
}
