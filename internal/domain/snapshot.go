package domain

import (
	"encoding/json"
	"time"
)

// Snapshot is a named, immutable copy of one MetricSample. Snapshots are
// never auto-evicted; they live until explicit removal or a store clear.
type Snapshot struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Sample    MetricSample `json:"sample"`
}

// SnapshotDiff is the computed difference between two snapshots. Derived on
// demand, never persisted. Elapsed serializes as whole milliseconds under
// elapsedMs.
type SnapshotDiff struct {
	HeapDelta         int64
	HeapPercentChange float64
	Elapsed           time.Duration
}

type snapshotDiffJSON struct {
	HeapDelta         int64   `json:"heapDelta"`
	HeapPercentChange float64 `json:"heapPercentChange"`
	ElapsedMs         int64   `json:"elapsedMs"`
}

func (d SnapshotDiff) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotDiffJSON{
		HeapDelta:         d.HeapDelta,
		HeapPercentChange: d.HeapPercentChange,
		ElapsedMs:         d.Elapsed.Milliseconds(),
	})
}

func (d *SnapshotDiff) UnmarshalJSON(b []byte) error {
	var j snapshotDiffJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*d = SnapshotDiff{
		HeapDelta:         j.HeapDelta,
		HeapPercentChange: j.HeapPercentChange,
		Elapsed:           time.Duration(j.ElapsedMs) * time.Millisecond,
	}
	return nil
}

// RegressionResult is the least-squares fit of heap-used over elapsed time.
// Slope is in bytes per millisecond; RSquared is clamped to [0,1].
// SampleCount is the number of points the line was actually fitted over,
// which can be smaller than the analyzed window when readings are missing.
type RegressionResult struct {
	Slope       float64 `json:"slope"`
	Intercept   float64 `json:"intercept"`
	RSquared    float64 `json:"rSquared"`
	SampleCount int     `json:"sampleCount"`
}

// LeakVerdict is the heuristic's judgement over the current regression.
type LeakVerdict struct {
	Probability    float64 `json:"probability"`
	IsLeakDetected bool    `json:"isLeakDetected"`
}
