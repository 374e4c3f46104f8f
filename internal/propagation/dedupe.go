package propagation

type dedupeKey struct {
	mode     Mode
	band     string
	sender   string
	receiver string
}

// Dedupe keeps one record per (mode, band, sender grid, receiver grid), the
// one with the strongest SNR. A record with an SNR always beats one without;
// on ties the first seen survives. Output preserves first-seen key order.
func Dedupe(records []ReceptionRecord) []ReceptionRecord {
	if len(records) == 0 {
		return nil
	}
	index := make(map[dedupeKey]int, len(records))
	out := make([]ReceptionRecord, 0, len(records))
	for _, rec := range records {
		key := dedupeKey{mode: rec.Mode, band: rec.Band, sender: rec.Sender4, receiver: rec.Receiver4}
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, rec)
			continue
		}
		if betterSNR(rec, out[i]) {
			out[i] = rec
		}
	}
	return out
}

func betterSNR(candidate, existing ReceptionRecord) bool {
	switch {
	case candidate.SNR == nil:
		return false
	case existing.SNR == nil:
		return true
	default:
		return *candidate.SNR > *existing.SNR
	}
}
