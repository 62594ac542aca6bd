package ports

import (
	"context"

	"github.com/vshulcz/heapwatch/internal/domain"
)

// SampleArchive persists observations and captured snapshots for offline
// analysis. It is additive: the engine's in-memory stores remain the source
// of truth and never read back from the archive.
type SampleArchive interface {
	SaveSample(ctx context.Context, s domain.MetricSample) error
	SaveSnapshot(ctx context.Context, s domain.Snapshot) error
	Snapshots(ctx context.Context) ([]domain.Snapshot, error)
	Ping(ctx context.Context) error
}
