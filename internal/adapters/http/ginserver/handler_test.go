package ginserver

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/heapwatch/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/heapwatch/internal/domain"
	"github.com/vshulcz/heapwatch/internal/engine"
	"github.com/vshulcz/heapwatch/internal/ports"
)

type stubHeap struct {
	used    uint64
	gcErr   error
	hinted  bool
	precise bool
}

func (s *stubHeap) ReadHeap() (ports.HeapReading, error) {
	used := s.used
	total := used * 2
	limit := uint64(1 << 30)
	return ports.HeapReading{Used: &used, Total: &total, Limit: &limit}, nil
}

func (s *stubHeap) Precise() bool { return s.precise }

func (s *stubHeap) HintGC(_ context.Context) error {
	s.hinted = true
	return s.gcErr
}

type stubArchive struct {
	pingErr error
}

func (a *stubArchive) SaveSample(context.Context, domain.MetricSample) error { return nil }
func (a *stubArchive) SaveSnapshot(context.Context, domain.Snapshot) error  { return nil }
func (a *stubArchive) Snapshots(context.Context) ([]domain.Snapshot, error) { return nil, nil }
func (a *stubArchive) Ping(context.Context) error                           { return a.pingErr }

func newServer(t *testing.T, heap *stubHeap, archive ports.SampleArchive) (*httptest.Server, *engine.Engine) {
	t.Helper()

	cfg := engine.DefaultConfig()
	cfg.Interval = 50 * time.Millisecond

	opts := []engine.Option{engine.WithHeapSource(heap)}
	if archive != nil {
		opts = append(opts, engine.WithArchive(archive))
	}
	eng, err := engine.New(cfg, opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Close)

	h := NewHandler(eng, archive)
	r := NewRouter(
		h,
		zap.NewNop(),
		middlewares.ZapLogger(zap.NewNop()),
		middlewares.GzipRequest(),
		middlewares.GzipResponse(),
	)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, eng
}

func doReq(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	data := readMaybeGzip(t, resp)
	return resp, data
}

func readMaybeGzip(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	var r io.Reader = resp.Body
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			t.Fatalf("gzip reader: %v", err)
		}
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func TestHandler_Ping(t *testing.T) {
	t.Run("no archive", func(t *testing.T) {
		srv, _ := newServer(t, &stubHeap{used: 1000, precise: true}, nil)
		resp, body := doReq(t, http.MethodGet, srv.URL+"/ping")
		if resp.StatusCode != http.StatusOK || !bytes.Equal(body, []byte("pong")) {
			t.Fatalf("got %d %q, want 200 pong", resp.StatusCode, body)
		}
	})

	t.Run("archive healthy", func(t *testing.T) {
		srv, _ := newServer(t, &stubHeap{used: 1000, precise: true}, &stubArchive{})
		resp, _ := doReq(t, http.MethodGet, srv.URL+"/ping")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("archive down", func(t *testing.T) {
		srv, _ := newServer(t, &stubHeap{used: 1000, precise: true}, &stubArchive{pingErr: errors.New("down")})
		resp, _ := doReq(t, http.MethodGet, srv.URL+"/ping")
		if resp.StatusCode != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", resp.StatusCode)
		}
	})
}

func TestHandler_StateAndSupport(t *testing.T) {
	srv, _ := newServer(t, &stubHeap{used: 1000, precise: true}, nil)

	resp, body := doReq(t, http.MethodGet, srv.URL+"/state")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /state = %d, want 200", resp.StatusCode)
	}
	var st engine.State
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st.SupportLevel != domain.SupportFull {
		t.Errorf("supportLevel = %q, want full", st.SupportLevel)
	}
	if st.IsMonitoring {
		t.Error("isMonitoring must be false before /start")
	}

	resp, body = doReq(t, http.MethodGet, srv.URL+"/support")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /support = %d, want 200", resp.StatusCode)
	}
	var prof domain.SupportProfile
	if err := json.Unmarshal(body, &prof); err != nil {
		t.Fatalf("unmarshal support: %v", err)
	}
	if prof.Level != domain.SupportFull {
		t.Errorf("support level = %q, want full", prof.Level)
	}
}

func TestHandler_SnapshotLifecycle(t *testing.T) {
	srv, _ := newServer(t, &stubHeap{used: 4096, precise: true}, nil)

	resp, body := doReq(t, http.MethodPost, srv.URL+"/snapshots/before")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /snapshots/before = %d %q, want 200", resp.StatusCode, body)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.ID != "before" || snap.Sample.HeapUsed == nil || *snap.Sample.HeapUsed != 4096 {
		t.Fatalf("snapshot = %+v", snap)
	}

	resp, _ = doReq(t, http.MethodPost, srv.URL+"/snapshots/after")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /snapshots/after = %d, want 200", resp.StatusCode)
	}

	resp, body = doReq(t, http.MethodGet, srv.URL+"/snapshots/diff/before/after")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET diff = %d, want 200", resp.StatusCode)
	}
	var diff domain.SnapshotDiff
	if err := json.Unmarshal(body, &diff); err != nil {
		t.Fatalf("unmarshal diff: %v", err)
	}
	if diff.HeapDelta != 0 {
		t.Errorf("heapDelta = %d, want 0 for identical readings", diff.HeapDelta)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal raw diff: %v", err)
	}
	// elapsedMs is whole milliseconds on the wire; back-to-back captures
	// must report a sub-second value, not raw nanoseconds.
	var elapsedMs int64
	if err := json.Unmarshal(raw["elapsedMs"], &elapsedMs); err != nil {
		t.Fatalf("elapsedMs missing or non-numeric: %v", err)
	}
	if elapsedMs < 0 || elapsedMs > 1000 {
		t.Errorf("elapsedMs = %d, not in milliseconds", elapsedMs)
	}

	resp, _ = doReq(t, http.MethodGet, srv.URL+"/snapshots/diff/before/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("diff with missing id = %d, want 404", resp.StatusCode)
	}

	resp, body = doReq(t, http.MethodGet, srv.URL+"/snapshots")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /snapshots = %d, want 200", resp.StatusCode)
	}
	var list []domain.Snapshot
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}

	resp, _ = doReq(t, http.MethodDelete, srv.URL+"/snapshots")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE /snapshots = %d, want 204", resp.StatusCode)
	}
	_, body = doReq(t, http.MethodGet, srv.URL+"/snapshots")
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("len(list) after clear = %d, want 0", len(list))
	}
}

func TestHandler_SnapshotBlankID(t *testing.T) {
	srv, _ := newServer(t, &stubHeap{used: 1, precise: true}, nil)

	resp, _ := doReq(t, http.MethodPost, srv.URL+"/snapshots/%20")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank id = %d, want 400", resp.StatusCode)
	}
}

func TestHandler_StartStop(t *testing.T) {
	srv, eng := newServer(t, &stubHeap{used: 1000, precise: true}, nil)

	resp, _ := doReq(t, http.MethodPost, srv.URL+"/start")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("POST /start = %d, want 204", resp.StatusCode)
	}
	if !eng.State().IsMonitoring {
		t.Error("engine not monitoring after /start")
	}

	// starting twice is not an error
	resp, _ = doReq(t, http.MethodPost, srv.URL+"/start")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("second POST /start = %d, want 204", resp.StatusCode)
	}

	resp, _ = doReq(t, http.MethodPost, srv.URL+"/stop")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("POST /stop = %d, want 204", resp.StatusCode)
	}
	if eng.State().IsMonitoring {
		t.Error("engine still monitoring after /stop")
	}
}

func TestHandler_History(t *testing.T) {
	srv, _ := newServer(t, &stubHeap{used: 1000, precise: true}, nil)

	resp, _ := doReq(t, http.MethodPost, srv.URL+"/start")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("POST /start = %d", resp.StatusCode)
	}
	time.Sleep(180 * time.Millisecond)

	_, body := doReq(t, http.MethodGet, srv.URL+"/history")
	var hist []domain.MetricSample
	if err := json.Unmarshal(body, &hist); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(hist) == 0 {
		t.Fatal("history empty after polling")
	}

	resp, _ = doReq(t, http.MethodDelete, srv.URL+"/history")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE /history = %d, want 204", resp.StatusCode)
	}
}

func TestHandler_GCHint(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		heap := &stubHeap{used: 1000, precise: true}
		srv, _ := newServer(t, heap, nil)
		resp, _ := doReq(t, http.MethodPost, srv.URL+"/gc")
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("POST /gc = %d, want 202", resp.StatusCode)
		}
		if !heap.hinted {
			t.Error("hint not forwarded to the heap source")
		}
	})

	t.Run("failed", func(t *testing.T) {
		heap := &stubHeap{used: 1000, precise: true, gcErr: errors.New("hint refused")}
		srv, _ := newServer(t, heap, nil)
		resp, _ := doReq(t, http.MethodPost, srv.URL+"/gc")
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("POST /gc = %d, want 502", resp.StatusCode)
		}
	})
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv, _ := newServer(t, &stubHeap{used: 1, precise: true}, nil)

	resp, _ := doReq(t, http.MethodGet, srv.URL+"/start")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /start = %d, want 405", resp.StatusCode)
	}
}
