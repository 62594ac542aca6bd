// Package engine implements the sampling, trend-analysis, and snapshot
// subsystem: a bounded sample ring, least-squares trend regression,
// leak-probability scoring, severity classification, and the poll scheduler
// that drives them.
package engine

import "github.com/vshulcz/heapwatch/internal/domain"

// SampleBuffer is a fixed-capacity ring of the most recent metric samples.
// Push overwrites the oldest sample once the ring is full; reads come back
// in chronological order. Capacity is fixed at construction; a different
// capacity means a new buffer.
//
// A zero-capacity buffer is valid: it retains nothing, but Latest still
// tracks the most recent push so latest-only operation works without
// history.
type SampleBuffer struct {
	buf     []domain.MetricSample
	head    int
	count   int
	last    domain.MetricSample
	hasLast bool
}

// NewSampleBuffer returns a ring holding at most capacity samples.
// Negative capacities are treated as zero.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &SampleBuffer{buf: make([]domain.MetricSample, capacity)}
}

// Push appends s, evicting the oldest sample if the ring is full. O(1).
func (b *SampleBuffer) Push(s domain.MetricSample) {
	b.last = s
	b.hasLast = true
	if len(b.buf) == 0 {
		return
	}
	if b.count < len(b.buf) {
		b.buf[(b.head+b.count)%len(b.buf)] = s
		b.count++
		return
	}
	b.buf[b.head] = s
	b.head = (b.head + 1) % len(b.buf)
}

// Ordered returns the buffered samples oldest to newest. The returned slice
// is a copy; callers may hold it across further pushes.
func (b *SampleBuffer) Ordered() []domain.MetricSample {
	out := make([]domain.MetricSample, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.buf[(b.head+i)%len(b.buf)]
	}
	return out
}

// Latest returns the most recently pushed sample, even when capacity is zero.
func (b *SampleBuffer) Latest() (domain.MetricSample, bool) {
	return b.last, b.hasLast
}

// Len returns the number of retained samples.
func (b *SampleBuffer) Len() int { return b.count }

// Cap returns the fixed capacity chosen at construction.
func (b *SampleBuffer) Cap() int { return len(b.buf) }

// Clear drops all retained samples and the latest slot.
func (b *SampleBuffer) Clear() {
	b.head = 0
	b.count = 0
	b.hasLast = false
	b.last = domain.MetricSample{}
}
