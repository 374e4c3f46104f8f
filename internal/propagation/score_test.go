package propagation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreBand_WithSNR(t *testing.T) {
	cfg := DefaultConfig()
	st := scoreBand([]ReceptionRecord{spot(t, ModeFT8, "40m", "BL11", "BL10", snr(-10))}, cfg.NVIS, cfg)

	pNorm := math.Log(2) / math.Log(9)
	dNorm := math.Log(2) / math.Log(4)
	sNorm := 14.0 / 24.0
	want := 100 * (0.45*pNorm + 0.20*dNorm + 0.35*sNorm)

	assert.InDelta(t, want, st.score, 1e-9)
	assert.Equal(t, 1, st.pairs)
	assert.Equal(t, 1, st.ft8)
	assert.Equal(t, 0, st.js8)
	require.NotNil(t, st.medianSNR)
	assert.Equal(t, -10.0, *st.medianSNR)
}

func TestScoreBand_WithoutSNR(t *testing.T) {
	cfg := DefaultConfig()
	st := scoreBand([]ReceptionRecord{spot(t, ModeWSPR, "30m", "BL11", "BL10", nil)}, cfg.NVIS, cfg)

	pNorm := math.Log(1.4) / math.Log(9)
	dNorm := math.Log(1.4) / math.Log(4)
	assert.InDelta(t, 100*(0.70*pNorm+0.30*dNorm), st.score, 1e-9)
	assert.Nil(t, st.medianSNR)
}

func TestScoreBand_DiversityUsesBestModePerGrid(t *testing.T) {
	cfg := DefaultConfig()
	recs := []ReceptionRecord{
		spot(t, ModeWSPR, "40m", "BL11", "BL10", nil),
		spot(t, ModeJS8, "40m", "BL11", "BL10", nil),
		spot(t, ModeFT8, "40m", "BL11", "BL01", nil),
		spot(t, ModeFT8, "40m", "BL01", "BL10", nil),
	}
	st := scoreBand(recs, cfg.NVIS, cfg)

	assert.InDelta(t, 0.4+1.8+1.0+1.0, st.pathWeight, 1e-9)
	// senders: BL11 (JS8), BL01 (FT8)
	assert.InDelta(t, 2.8, st.tx, 1e-9)
	// receivers: BL10 (JS8), BL01 (FT8)
	assert.InDelta(t, 2.8, st.rx, 1e-9)
	assert.Equal(t, 3, st.pairs)
	assert.Equal(t, 1, st.js8)
	assert.Equal(t, 2, st.ft8)
}

func TestScoreBand_SaturatesAtOneHundred(t *testing.T) {
	cfg := DefaultConfig()
	var recs []ReceptionRecord
	for _, s := range []string{"BL10", "BL11", "BL01", "BK29"} {
		for _, r := range []string{"BL10", "BL11", "BL01", "BK29"} {
			recs = append(recs, spot(t, ModeJS8, "40m", s, r, snr(0)))
		}
	}
	st := scoreBand(recs, cfg.NVIS, cfg)
	assert.InDelta(t, 100, st.score, 1e-9)
}

func TestMedianSNR_EvenCountAverages(t *testing.T) {
	recs := []ReceptionRecord{
		spot(t, ModeFT8, "40m", "BL11", "BL10", snr(-3)),
		spot(t, ModeFT8, "40m", "BL11", "BL01", snr(-14)),
		spot(t, ModeFT8, "40m", "BL11", "BK29", nil),
		spot(t, ModeFT8, "40m", "BL10", "BL01", snr(-8)),
		spot(t, ModeFT8, "40m", "BL01", "BL10", snr(-20)),
	}
	m := medianSNR(recs)
	require.NotNil(t, m)
	assert.Equal(t, -11.0, *m)
}

func TestBandOutput_Rounding(t *testing.T) {
	m := -10.25
	out := bandStats{score: 44.5, pairs: 2, tx: 2.345, rx: 1.0 / 3, medianSNR: &m, js8: 1, ft8: 1}.output()
	assert.Equal(t, 44, out.Score)
	assert.Equal(t, 2.34, out.TX)
	assert.Equal(t, 0.33, out.RX)
	require.NotNil(t, out.MedianSNRdB)
	assert.Equal(t, -10.2, *out.MedianSNRdB)
}

func TestEvaluate_EmptyBandsDragAggregate(t *testing.T) {
	cfg := DefaultConfig()
	recs := []ReceptionRecord{spot(t, ModeFT8, "40m", "BL11", "BL10", snr(-10))}
	band := scoreBand(recs, cfg.NVIS, cfg).score

	sum := Evaluate(recs, cfg.NVIS, "", Evidence{AnchorsReporting: 1, Now: testNow}, cfg)

	// 80m and 30m have no reports but keep their share of the weight
	assert.Equal(t, roundScore(0.45*band), sum.Score)
	assert.Equal(t, 20, sum.Score)
	assert.Equal(t, 45, sum.Bands["40m"].Score)
	assert.Equal(t, BandOutput{}, sum.Bands["80m"])
	assert.Nil(t, sum.Bands["30m"].MedianSNRdB)
}
