package engine

import (
	"math"
	"testing"
	"time"

	"github.com/vshulcz/heapwatch/internal/domain"
)

func linearSamples(n int, startBytes uint64, bytesPerMs float64, stepMs int64) []domain.MetricSample {
	t0 := time.Unix(1_700_000_000, 0)
	out := make([]domain.MetricSample, 0, n)
	for i := 0; i < n; i++ {
		elapsed := float64(int64(i) * stepMs)
		out = append(out, sampleWithUsed(t0, int64(i)*stepMs, startBytes+uint64(bytesPerMs*elapsed)))
	}
	return out
}

func TestAnalyze_NeutralBelowMinimum(t *testing.T) {
	t0 := time.Unix(0, 0)

	tests := []struct {
		name    string
		samples []domain.MetricSample
	}{
		{"nil", nil},
		{"empty", []domain.MetricSample{}},
		{"single sample", []domain.MetricSample{sampleWithUsed(t0, 0, 100)}},
		{"two samples without heap", []domain.MetricSample{
			{Timestamp: t0},
			{Timestamp: t0.Add(time.Second)},
		}},
		{"one usable among unusable", []domain.MetricSample{
			{Timestamp: t0},
			sampleWithUsed(t0, 1000, 100),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.samples)
			if got.Slope != 0 || got.RSquared != 0 {
				t.Errorf("Analyze() = %+v, want neutral result", got)
			}
		})
	}
}

func TestAnalyze_PerfectLinearIncrease(t *testing.T) {
	// 100 bytes/ms growth, sampled every second.
	samples := linearSamples(10, 1<<20, 100, 1000)

	got := Analyze(samples)

	if math.Abs(got.Slope-100) > 1e-6 {
		t.Errorf("slope = %v, want 100", got.Slope)
	}
	if math.Abs(got.RSquared-1) > 1e-9 {
		t.Errorf("rSquared = %v, want 1", got.RSquared)
	}
	if Trend(got.Slope) != domain.TrendIncreasing {
		t.Errorf("trend = %v, want increasing", Trend(got.Slope))
	}
}

func TestAnalyze_ConstantSequence(t *testing.T) {
	samples := linearSamples(8, 1<<20, 0, 1000)

	got := Analyze(samples)

	if got.Slope != 0 {
		t.Errorf("slope = %v, want 0", got.Slope)
	}
	if Trend(got.Slope) != domain.TrendStable {
		t.Errorf("trend = %v, want stable", Trend(got.Slope))
	}
}

func TestAnalyze_DecreasingSequence(t *testing.T) {
	samples := linearSamples(10, 1<<24, -100, 1000)

	got := Analyze(samples)

	if got.Slope >= 0 {
		t.Fatalf("slope = %v, want negative", got.Slope)
	}
	if Trend(got.Slope) != domain.TrendDecreasing {
		t.Errorf("trend = %v, want decreasing", Trend(got.Slope))
	}
}

func TestAnalyze_SkipsSamplesWithoutHeap(t *testing.T) {
	samples := linearSamples(6, 1000, 100, 1000)
	// Interleave unusable samples; the fit must ignore them.
	gap := domain.MetricSample{Timestamp: samples[2].Timestamp.Add(time.Millisecond)}
	withGaps := append(append([]domain.MetricSample{}, samples[:3]...), gap)
	withGaps = append(withGaps, samples[3:]...)

	got := Analyze(withGaps)

	if math.Abs(got.Slope-100) > 1e-6 {
		t.Errorf("slope = %v, want 100", got.Slope)
	}
	if got.SampleCount != 6 {
		t.Errorf("SampleCount = %d, want the 6 usable points", got.SampleCount)
	}
}

func TestTrend_DeadZone(t *testing.T) {
	tests := []struct {
		name  string
		slope float64
		want  domain.TrendLabel
	}{
		{"well above dead zone", trendDeadZone * 10, domain.TrendIncreasing},
		{"just above dead zone", trendDeadZone + 0.001, domain.TrendIncreasing},
		{"at dead zone boundary", trendDeadZone, domain.TrendStable},
		{"small positive noise", trendDeadZone / 2, domain.TrendStable},
		{"zero", 0, domain.TrendStable},
		{"small negative noise", -trendDeadZone / 2, domain.TrendStable},
		{"at negative boundary", -trendDeadZone, domain.TrendStable},
		{"below negative dead zone", -trendDeadZone - 0.001, domain.TrendDecreasing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Trend(tt.slope); got != tt.want {
				t.Errorf("Trend(%v) = %v, want %v", tt.slope, got, tt.want)
			}
		})
	}
}

func TestAnalyze_RSquaredStaysInRange(t *testing.T) {
	// Noisy but rising series.
	t0 := time.Unix(0, 0)
	noise := []uint64{1000, 5000, 2000, 9000, 4000, 12000, 7000, 15000}
	samples := make([]domain.MetricSample, 0, len(noise))
	for i, v := range noise {
		samples = append(samples, sampleWithUsed(t0, int64(i)*500, v))
	}

	got := Analyze(samples)

	if got.RSquared < 0 || got.RSquared > 1 {
		t.Errorf("rSquared = %v, out of [0,1]", got.RSquared)
	}
}

func BenchmarkAnalyze(b *testing.B) {
	samples := linearSamples(256, 1<<20, 50, 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Analyze(samples)
	}
}
