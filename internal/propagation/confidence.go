package propagation

// ConfidenceLevel grades how much evidence backs a category.
func ConfidenceLevel(records, anchors int, freshMinutes float64) string {
	switch {
	case records >= 30 && anchors >= 3 && freshMinutes <= 10:
		return ConfidenceHigh
	case records >= 10 && anchors >= 2 && freshMinutes <= 20:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

const (
	explainLimited   = "Limited recent reports."
	explainLowVolume = " Low report volume."
)

// explain returns the human line for a category status.
func explain(cat Category, status string, js8Total int) string {
	suffix := " (FT8)."
	if js8Total >= 1 {
		suffix = " (JS8)."
	}
	switch cat {
	case CategoryNVIS:
		switch status {
		case "GOOD":
			return "Strong inter-island paths on 40m/80m" + suffix
		case "MARGINAL":
			return "Some inter-island activity; expect variability."
		case "POOR":
			return "Little inter-island activity."
		}
	case CategoryMainland:
		switch status {
		case "OPEN":
			return "HI<->CONUS paths observed on 20m+" + suffix
		case "INTERMITTENT":
			return "Intermittent HI↔CONUS activity; openings may be brief."
		case "CLOSED":
			return "No recent HI↔CONUS paths observed."
		}
	}
	return explainLimited
}
