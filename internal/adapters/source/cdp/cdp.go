// Package cdp implements heap, UI counter, and visibility sources backed
// by a browser surface over the Chrome DevTools Protocol. One Source
// serves all three ports for the attached page: JS heap counters from the
// Performance domain, DOM node and event listener counts from
// Memory.getDOMCounters, and visibility transitions pushed through an
// injected page binding.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chromedp/cdproto/heapprofiler"
	"github.com/chromedp/cdproto/memory"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/performance"
	rt "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/vshulcz/heapwatch/internal/ports"
)

const (
	visibilityBinding = "__heapwatchVisibility"

	visibilityScript = `document.addEventListener('visibilitychange', function () {
  window.` + visibilityBinding + `(document.visibilityState);
});`

	metricJSHeapUsed  = "JSHeapUsedSize"
	metricJSHeapTotal = "JSHeapTotalSize"

	heapLimitExpr = "performance.memory ? performance.memory.jsHeapSizeLimit : 0"
)

// Source reads memory and UI metrics from one attached browser page.
type Source struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	log         *zap.Logger

	visible atomic.Bool
	changes chan bool
}

var (
	_ ports.HeapSource       = (*Source)(nil)
	_ ports.UICounterSource  = (*Source)(nil)
	_ ports.VisibilitySource = (*Source)(nil)
	_ ports.GCHinter         = (*Source)(nil)
)

// New attaches to a running browser at the given DevTools websocket URL,
// enables the required protocol domains, and installs the visibility
// binding on the active page.
func New(parent context.Context, devtoolsURL string, log *zap.Logger) (*Source, error) {
	if strings.TrimSpace(devtoolsURL) == "" {
		return nil, errors.New("cdp: devtools URL is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(parent, devtoolsURL)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	s := &Source{
		ctx:         ctx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		log:         log,
		changes:     make(chan bool, 8),
	}
	s.visible.Store(true)

	chromedp.ListenTarget(ctx, func(ev any) {
		bc, ok := ev.(*rt.EventBindingCalled)
		if !ok || bc.Name != visibilityBinding {
			return
		}
		visible := strings.Contains(bc.Payload, "visible")
		s.visible.Store(visible)
		select {
		case s.changes <- visible:
		default:
			// A slow consumer only needs the latest state; drop.
		}
	})

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := performance.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable performance domain: %w", err)
		}
		if err := rt.AddBinding(visibilityBinding).Do(ctx); err != nil {
			return fmt.Errorf("add visibility binding: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(visibilityScript).Do(ctx); err != nil {
			return fmt.Errorf("install visibility script: %w", err)
		}
		if _, _, err := rt.Evaluate(visibilityScript).Do(ctx); err != nil {
			return fmt.Errorf("attach visibility listener: %w", err)
		}

		var state string
		if err := chromedp.Evaluate("document.visibilityState", &state).Do(ctx); err == nil {
			s.visible.Store(state == "visible")
		}
		return nil
	}))
	if err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, err
	}

	return s, nil
}

// Precise reports true: the DevTools heap counters are exact.
func (s *Source) Precise() bool { return true }

// ReadHeap returns the page's JS heap counters.
func (s *Source) ReadHeap() (ports.HeapReading, error) {
	var r ports.HeapReading
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		ms, err := performance.GetMetrics().Do(ctx)
		if err != nil {
			return fmt.Errorf("performance metrics: %w", err)
		}
		for _, m := range ms {
			v := uint64(m.Value)
			switch m.Name {
			case metricJSHeapUsed:
				r.Used = &v
			case metricJSHeapTotal:
				r.Total = &v
			}
		}

		var limit float64
		if err := chromedp.Evaluate(heapLimitExpr, &limit).Do(ctx); err == nil && limit > 0 {
			l := uint64(limit)
			r.Limit = &l
		}
		return nil
	}))
	if err != nil {
		return ports.HeapReading{}, err
	}
	return r, nil
}

// ReadUICounters returns the page's live DOM node and listener counts.
func (s *Source) ReadUICounters() (ports.UICounters, error) {
	var c ports.UICounters
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, nodes, listeners, err := memory.GetDOMCounters().Do(ctx)
		if err != nil {
			return fmt.Errorf("dom counters: %w", err)
		}
		c.DOMNodes = &nodes
		c.EventListeners = &listeners
		return nil
	}))
	if err != nil {
		return ports.UICounters{}, err
	}
	return c, nil
}

// Visible reports the last observed visibility state of the page.
func (s *Source) Visible() bool { return s.visible.Load() }

// Changes streams visibility transitions. The channel is buffered and
// drops when the consumer lags; only the latest state matters.
func (s *Source) Changes() <-chan bool { return s.changes }

// HintGC asks the page's heap profiler to collect garbage.
func (s *Source) HintGC(ctx context.Context) error {
	runCtx := s.ctx
	if ctx != nil {
		var cancel context.CancelFunc
		runCtx, cancel = mergeContext(s.ctx, ctx)
		defer cancel()
	}
	return chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return heapprofiler.CollectGarbage().Do(ctx)
	}))
}

// Close detaches from the browser.
func (s *Source) Close() {
	s.cancelCtx()
	s.cancelAlloc()
}

// mergeContext bounds the browser context by the caller's deadline and
// cancellation. The returned cancel releases the watcher on caller.
func mergeContext(base, caller context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(base)
	if dl, ok := caller.Deadline(); ok {
		ctx, cancel = context.WithDeadline(base, dl)
	}
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
