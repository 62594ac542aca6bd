package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSnapshotDiff_JSONElapsedMilliseconds(t *testing.T) {
	d := SnapshotDiff{
		HeapDelta:         100,
		HeapPercentChange: 100,
		Elapsed:           1500 * time.Millisecond,
	}

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"heapDelta":100,"heapPercentChange":100,"elapsedMs":1500}`
	if string(b) != want {
		t.Fatalf("marshal = %s, want %s", b, want)
	}

	var back SnapshotDiff
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != d {
		t.Fatalf("round trip = %+v, want %+v", back, d)
	}
}

func TestSnapshotDiff_JSONSubMillisecondTruncates(t *testing.T) {
	d := SnapshotDiff{Elapsed: 999 * time.Microsecond}

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"heapDelta":0,"heapPercentChange":0,"elapsedMs":0}`
	if string(b) != want {
		t.Fatalf("marshal = %s, want %s", b, want)
	}
}
