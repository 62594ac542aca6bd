package engine

import (
	"errors"
	"testing"

	"github.com/vshulcz/heapwatch/internal/domain"
)

func uintp(v uint64) *uint64 { return &v }

func TestClassify(t *testing.T) {
	th := Thresholds{Warning: 0.5, Critical: 0.9}

	tests := []struct {
		name  string
		used  *uint64
		limit *uint64
		want  domain.SeverityTier
	}{
		{"well below warning", uintp(30), uintp(100), domain.SeverityNormal},
		{"between warning and critical", uintp(60), uintp(100), domain.SeverityWarning},
		{"above critical", uintp(95), uintp(100), domain.SeverityCritical},
		{"exactly at warning", uintp(50), uintp(100), domain.SeverityWarning},
		{"exactly at critical", uintp(90), uintp(100), domain.SeverityCritical},
		{"missing limit", uintp(95), nil, domain.SeverityNormal},
		{"missing used", nil, uintp(100), domain.SeverityNormal},
		{"zero limit", uintp(95), uintp(0), domain.SeverityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.used, tt.limit, th); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name    string
		th      Thresholds
		wantErr bool
	}{
		{"valid", Thresholds{Warning: 0.5, Critical: 0.9}, false},
		{"critical at one", Thresholds{Warning: 0.5, Critical: 1}, false},
		{"zero warning", Thresholds{Warning: 0, Critical: 0.9}, true},
		{"negative warning", Thresholds{Warning: -0.1, Critical: 0.9}, true},
		{"critical above one", Thresholds{Warning: 0.5, Critical: 1.1}, true},
		{"warning equals critical", Thresholds{Warning: 0.9, Critical: 0.9}, true},
		{"warning above critical", Thresholds{Warning: 0.95, Critical: 0.9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.th.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("error %v is not ErrInvalidConfig", err)
			}
		})
	}
}

func TestUsagePercent(t *testing.T) {
	if got := UsagePercent(uintp(25), uintp(100)); got != 25 {
		t.Errorf("UsagePercent = %v, want 25", got)
	}
	if got := UsagePercent(uintp(25), nil); got != 0 {
		t.Errorf("UsagePercent without limit = %v, want 0", got)
	}
}
