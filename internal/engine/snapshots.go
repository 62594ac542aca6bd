package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/vshulcz/heapwatch/internal/domain"
)

// SnapshotStore is a keyed collection of immutable point-in-time captures.
// Capturing under an existing id overwrites it; snapshots are never
// auto-evicted.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]domain.Snapshot
}

// NewSnapshotStore returns an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snaps: make(map[string]domain.Snapshot)}
}

// Capture records s under id at the given time. Last write wins on
// duplicate ids.
func (st *SnapshotStore) Capture(id string, s domain.MetricSample, at time.Time) domain.Snapshot {
	snap := domain.Snapshot{ID: id, Timestamp: at, Sample: s}
	st.mu.Lock()
	st.snaps[id] = snap
	st.mu.Unlock()
	return snap
}

// Get returns the snapshot under id, if present.
func (st *SnapshotStore) Get(id string) (domain.Snapshot, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.snaps[id]
	return s, ok
}

// Remove deletes the snapshot under id. Removing an absent id is a no-op.
func (st *SnapshotStore) Remove(id string) {
	st.mu.Lock()
	delete(st.snaps, id)
	st.mu.Unlock()
}

// Diff compares the snapshots under idA and idB, in that order:
// HeapDelta = b.heapUsed - a.heapUsed. If either id is absent it reports
// false rather than failing; a diff is a query, and a caller racing a
// clear should just get nothing.
func (st *SnapshotStore) Diff(idA, idB string) (domain.SnapshotDiff, bool) {
	st.mu.RLock()
	a, okA := st.snaps[idA]
	b, okB := st.snaps[idB]
	st.mu.RUnlock()
	if !okA || !okB {
		return domain.SnapshotDiff{}, false
	}

	var usedA, usedB uint64
	if a.Sample.HeapUsed != nil {
		usedA = *a.Sample.HeapUsed
	}
	if b.Sample.HeapUsed != nil {
		usedB = *b.Sample.HeapUsed
	}
	delta := int64(usedB) - int64(usedA)

	pct := 0.0
	if usedA > 0 {
		pct = 100 * float64(delta) / float64(usedA)
	}

	return domain.SnapshotDiff{
		HeapDelta:         delta,
		HeapPercentChange: pct,
		Elapsed:           b.Timestamp.Sub(a.Timestamp),
	}, true
}

// List returns all snapshots ordered by capture time, then id.
func (st *SnapshotStore) List() []domain.Snapshot {
	st.mu.RLock()
	out := make([]domain.Snapshot, 0, len(st.snaps))
	for _, s := range st.snaps {
		out = append(out, s)
	}
	st.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Clear removes every snapshot.
func (st *SnapshotStore) Clear() {
	st.mu.Lock()
	st.snaps = make(map[string]domain.Snapshot)
	st.mu.Unlock()
}
