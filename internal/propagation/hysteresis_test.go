package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawStatus(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "GOOD", RawStatus(70, cfg.NVIS))
	assert.Equal(t, "MARGINAL", RawStatus(69.9, cfg.NVIS))
	assert.Equal(t, "MARGINAL", RawStatus(40, cfg.NVIS))
	assert.Equal(t, "POOR", RawStatus(39.9, cfg.NVIS))
	assert.Equal(t, "OPEN", RawStatus(60, cfg.MainlandPath))
	assert.Equal(t, "INTERMITTENT", RawStatus(30, cfg.MainlandPath))
	assert.Equal(t, "CLOSED", RawStatus(29, cfg.MainlandPath))
}

func TestStabilizedStatus(t *testing.T) {
	cfg := DefaultConfig()
	margin := cfg.Hysteresis

	tests := []struct {
		name     string
		cc       CategoryConfig
		score    float64
		previous string
		want     string
	}{
		{"cold start uses raw", cfg.NVIS, 72, "", "GOOD"},
		{"foreign previous label is cold start", cfg.NVIS, 72, "OPEN", "GOOD"},
		{"unknown previous label is cold start", cfg.NVIS, 20, StatusUnknown, "POOR"},
		{"worst holds inside mid margin", cfg.NVIS, 44.9, "POOR", "POOR"},
		{"worst upgrades past mid margin", cfg.NVIS, 45, "POOR", "MARGINAL"},
		{"worst jump to best needs high margin", cfg.NVIS, 72, "POOR", "POOR"},
		{"worst jumps to best past high margin", cfg.NVIS, 75, "POOR", "GOOD"},
		{"mid holds inside high margin", cfg.NVIS, 74, "MARGINAL", "MARGINAL"},
		{"mid upgrades past high margin", cfg.NVIS, 75, "MARGINAL", "GOOD"},
		{"mid holds just under threshold", cfg.NVIS, 35, "MARGINAL", "MARGINAL"},
		{"mid downgrades below margin", cfg.NVIS, 34.9, "MARGINAL", "POOR"},
		{"best holds just under threshold", cfg.NVIS, 65, "GOOD", "GOOD"},
		{"best downgrades to mid below margin", cfg.NVIS, 64.9, "GOOD", "MARGINAL"},
		{"best falls straight to worst", cfg.NVIS, 10, "GOOD", "POOR"},
		{"steady state", cfg.NVIS, 50, "MARGINAL", "MARGINAL"},
		{"mainland holds closed", cfg.MainlandPath, 33, "CLOSED", "CLOSED"},
		{"mainland opens", cfg.MainlandPath, 66, "INTERMITTENT", "OPEN"},
		{"mainland closes", cfg.MainlandPath, 24, "INTERMITTENT", "CLOSED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StabilizedStatus(tc.score, tc.previous, tc.cc, margin))
		})
	}
}

func TestStabilizedStatus_WorstRetainedAcrossMarginBand(t *testing.T) {
	cfg := DefaultConfig()
	for _, cc := range []CategoryConfig{cfg.NVIS, cfg.MainlandPath} {
		for s := cc.Thresholds.Mid; s < cc.Thresholds.Mid+cfg.Hysteresis; s += 0.25 {
			assert.Equal(t, cc.Labels.Worst, StabilizedStatus(s, cc.Labels.Worst, cc, cfg.Hysteresis), "score %.2f", s)
		}
	}
}
