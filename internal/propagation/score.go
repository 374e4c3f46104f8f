package propagation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	weightPaths        = 0.70
	weightDiversity    = 0.30
	weightPathsSNR     = 0.45
	weightDiversitySNR = 0.20
	weightSNR          = 0.35
)

// bandStats is the unrounded evaluation of one band's records.
type bandStats struct {
	score      float64
	medianSNR  *float64
	pathWeight float64
	tx         float64
	rx         float64
	js8        int
	ft8        int
	pairs      int
}

func scoreBand(records []ReceptionRecord, cc CategoryConfig, cfg Config) bandStats {
	st := bandStats{}
	senders := map[string]Mode{}
	receivers := map[string]Mode{}
	pairs := map[[2]string]struct{}{}

	for _, rec := range records {
		st.pathWeight += cfg.ModeWeights.Weight(rec.Mode)
		switch rec.Mode {
		case ModeJS8:
			st.js8++
		case ModeFT8:
			st.ft8++
		}
		senders[rec.Sender4] = preferredMode(senders[rec.Sender4], rec.Mode)
		receivers[rec.Receiver4] = preferredMode(receivers[rec.Receiver4], rec.Mode)
		pairs[[2]string{rec.Sender4, rec.Receiver4}] = struct{}{}
	}
	for _, m := range senders {
		st.tx += cfg.ModeWeights.Weight(m)
	}
	for _, m := range receivers {
		st.rx += cfg.ModeWeights.Weight(m)
	}
	st.pairs = len(pairs)
	st.medianSNR = medianSNR(records)

	pNorm := normalizeLog(st.pathWeight, cc.PathTarget)
	dNorm := normalizeLog(math.Min(st.tx, st.rx), cc.DiversityTarget)
	if st.medianSNR == nil {
		st.score = 100 * (weightPaths*pNorm + weightDiversity*dNorm)
	} else {
		sNorm := clamp((*st.medianSNR-cfg.SNRMin)/(cfg.SNRMax-cfg.SNRMin), 0, 1)
		st.score = 100 * (weightPathsSNR*pNorm + weightDiversitySNR*dNorm + weightSNR*sNorm)
	}
	return st
}

func (st bandStats) output() BandOutput {
	out := BandOutput{
		Score:    roundScore(st.score),
		Paths:    st.pairs,
		TX:       roundPlaces(st.tx, 2),
		RX:       roundPlaces(st.rx, 2),
		JS8Paths: st.js8,
		FT8Paths: st.ft8,
	}
	if st.medianSNR != nil {
		m := roundPlaces(*st.medianSNR, 1)
		out.MedianSNRdB = &m
	}
	return out
}

// preferredMode ranks JS8 over FT8 over WSPR when a station shows up in
// several modes.
func preferredMode(current, next Mode) Mode {
	rank := func(m Mode) int {
		switch m {
		case ModeJS8:
			return 3
		case ModeFT8:
			return 2
		case ModeWSPR:
			return 1
		}
		return 0
	}
	if rank(next) > rank(current) {
		return next
	}
	return current
}

func normalizeLog(value, target float64) float64 {
	return math.Min(1, math.Log1p(value)/math.Log1p(target))
}

func medianSNR(records []ReceptionRecord) *float64 {
	values := make([]int, 0, len(records))
	for _, rec := range records {
		if rec.SNR != nil {
			values = append(values, *rec.SNR)
		}
	}
	if len(values) == 0 {
		return nil
	}
	sort.Ints(values)
	n := len(values)
	var m float64
	if n%2 == 1 {
		m = float64(values[n/2])
	} else {
		m = float64(values[n/2-1]+values[n/2]) / 2
	}
	return &m
}

func roundScore(v float64) int {
	return int(math.RoundToEven(v))
}

func roundPlaces(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).RoundBank(places).Float64()
	return f
}
