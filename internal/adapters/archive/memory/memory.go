// Package memory implements an in-memory sample archive.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vshulcz/heapwatch/internal/domain"
	"github.com/vshulcz/heapwatch/internal/ports"
)

// Archive keeps archived samples and snapshots in memory with
// coarse-grained RW locking.
type Archive struct {
	mu      sync.RWMutex
	samples []domain.MetricSample
	snaps   map[string]domain.Snapshot
}

var _ ports.SampleArchive = (*Archive)(nil)

// New returns an empty in-memory archive.
func New() *Archive {
	return &Archive{snaps: make(map[string]domain.Snapshot)}
}

// SaveSample appends one observation.
func (a *Archive) SaveSample(_ context.Context, s domain.MetricSample) error {
	a.mu.Lock()
	a.samples = append(a.samples, s)
	a.mu.Unlock()
	return nil
}

// SaveSnapshot stores a capture, overwriting any prior one under the same id.
func (a *Archive) SaveSnapshot(_ context.Context, s domain.Snapshot) error {
	a.mu.Lock()
	a.snaps[s.ID] = s
	a.mu.Unlock()
	return nil
}

// Snapshots returns all archived captures ordered by capture time, then id.
func (a *Archive) Snapshots(_ context.Context) ([]domain.Snapshot, error) {
	a.mu.RLock()
	out := make([]domain.Snapshot, 0, len(a.snaps))
	for _, s := range a.snaps {
		out = append(out, s)
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Samples returns a copy of all archived observations in insertion order.
func (a *Archive) Samples() []domain.MetricSample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.MetricSample, len(a.samples))
	copy(out, a.samples)
	return out
}

// Ping always succeeds for the in-memory archive.
func (a *Archive) Ping(_ context.Context) error { return nil }
