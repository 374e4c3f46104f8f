package propagation

// Summarize evaluates both categories for one cycle.
func Summarize(nvisRecords, mainlandRecords []ReceptionRecord, prev PreviousStatus, ev Evidence, cfg Config) (nvis, mainland IndicatorSummary) {
	nvis = Evaluate(nvisRecords, cfg.NVIS, prev.NVIS, ev, cfg)
	mainland = Evaluate(mainlandRecords, cfg.MainlandPath, prev.Mainland, ev, cfg)
	return nvis, mainland
}

// Evaluate scores one category. Every configured band appears in the result;
// bands without records score zero and still carry their weight in the
// aggregate.
func Evaluate(records []ReceptionRecord, cc CategoryConfig, previous string, ev Evidence, cfg Config) IndicatorSummary {
	byBand := make(map[string][]ReceptionRecord, len(cc.BandOrder))
	for _, rec := range records {
		byBand[rec.Band] = append(byBand[rec.Band], rec)
	}

	bands := make(map[string]BandOutput, len(cc.BandOrder))
	stats := make(map[string]bandStats, len(cc.BandOrder))
	var (
		weightedScore float64
		weightedVara  float64
		totalWeight   float64
		js8Total      int
		recordsTotal  int
	)
	for _, band := range cc.BandOrder {
		weight := cc.BandWeights[band]
		totalWeight += weight

		bandRecords := byBand[band]
		recordsTotal += len(bandRecords)
		if len(bandRecords) == 0 {
			bands[band] = BandOutput{}
			continue
		}

		st := scoreBand(bandRecords, cc, cfg)
		stats[band] = st
		bands[band] = st.output()
		weightedScore += weight * st.score
		weightedVara += weight * varaBand(st, cc, cfg)
		js8Total += st.js8
	}
	if totalWeight > 0 {
		weightedScore /= totalWeight
		weightedVara /= totalWeight
	}

	vara := applyVaraOverrides(weightedVara, stats, cc)
	status := StabilizedStatus(weightedScore, previous, cc, cfg.Hysteresis)
	confidence := ConfidenceLevel(recordsTotal, ev.AnchorsReporting, ev.freshMinutes())
	line := explain(cc.Category, status, js8Total)
	if confidence == ConfidenceLow {
		if recordsTotal == 0 {
			status = StatusUnknown
			line = explainLimited
		} else {
			line += explainLowVolume
		}
	}

	order := make([]string, len(cc.BandOrder))
	copy(order, cc.BandOrder)
	return IndicatorSummary{
		Category:     cc.Category,
		Status:       status,
		Score:        roundScore(weightedScore),
		Confidence:   confidence,
		VaraClass:    VaraClass(vara, cc),
		VaraScore:    roundScore(vara),
		Bands:        bands,
		BandOrder:    order,
		Explain:      line,
		RecordsTotal: recordsTotal,
	}
}
