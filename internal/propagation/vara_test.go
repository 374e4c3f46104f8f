package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaraBand_SingleModeDiscount(t *testing.T) {
	cfg := DefaultConfig()
	m := -6.0
	ft8Only := bandStats{score: 50, ft8: 4, medianSNR: &m}
	// no JS8: 100*(0 + .35*1 + .20*.5) * .7
	assert.InDelta(t, 31.5, varaBand(ft8Only, cfg.NVIS, cfg), 1e-9)

	mixed := bandStats{score: 50, js8: 1, ft8: 3, medianSNR: &m}
	// JS8 share 25% saturates the mix factor
	assert.InDelta(t, 90, varaBand(mixed, cfg.NVIS, cfg), 1e-9)

	unknownSNR := bandStats{score: 0, js8: 1}
	assert.InDelta(t, 100*(0.45+0.35*0.3), varaBand(unknownSNR, cfg.NVIS, cfg), 1e-9)
}

func TestVara_FlooredAtPossibleWithJS8AtOkSNR(t *testing.T) {
	cfg := DefaultConfig()
	recs := []ReceptionRecord{spot(t, ModeJS8, "40m", "BL11", "BL10", snr(-10))}

	st := scoreBand(recs, cfg.NVIS, cfg)
	raw := cfg.NVIS.BandWeights["40m"] * varaBand(st, cfg.NVIS, cfg)
	require.Less(t, raw, cfg.NVIS.VaraPossible)

	sum := Evaluate(recs, cfg.NVIS, "", Evidence{Now: testNow}, cfg)
	assert.Equal(t, 35, sum.VaraScore)
	assert.Equal(t, VaraPossible, sum.VaraClass)
}

func TestVara_NoFloorBelowOkSNR(t *testing.T) {
	cfg := DefaultConfig()
	recs := []ReceptionRecord{spot(t, ModeJS8, "40m", "BL11", "BL10", snr(-11))}
	sum := Evaluate(recs, cfg.NVIS, "", Evidence{Now: testNow}, cfg)
	assert.Less(t, sum.VaraScore, 35)
	assert.Equal(t, VaraUnlikely, sum.VaraClass)
}

func TestApplyVaraOverrides_MainlandMultiBandBonus(t *testing.T) {
	cfg := DefaultConfig()
	stats := map[string]bandStats{
		"20m": {js8: 1},
		"17m": {js8: 1},
	}
	assert.InDelta(t, 25, applyVaraOverrides(15, stats, cfg.MainlandPath), 1e-9)
	assert.InDelta(t, 15, applyVaraOverrides(15, stats, cfg.NVIS), 1e-9, "no bonus for inter-island")

	heavy := map[string]bandStats{"20m": {js8: 3}}
	assert.InDelta(t, 100, applyVaraOverrides(95, heavy, cfg.MainlandPath), 1e-9)

	single := map[string]bandStats{"20m": {js8: 2}}
	assert.InDelta(t, 15, applyVaraOverrides(15, single, cfg.MainlandPath), 1e-9)
}

func TestVaraClass(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, VaraLikely, VaraClass(65, cfg.NVIS))
	assert.Equal(t, VaraPossible, VaraClass(64.9, cfg.NVIS))
	assert.Equal(t, VaraUnlikely, VaraClass(34.9, cfg.NVIS))
	assert.Equal(t, VaraLikely, VaraClass(60, cfg.MainlandPath))
	assert.Equal(t, VaraPossible, VaraClass(30, cfg.MainlandPath))
}
