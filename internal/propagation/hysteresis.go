package propagation

// RawStatus maps a score straight onto the category's tiers.
func RawStatus(score float64, cc CategoryConfig) string {
	switch {
	case score >= cc.Thresholds.High:
		return cc.Labels.Best
	case score >= cc.Thresholds.Mid:
		return cc.Labels.Mid
	default:
		return cc.Labels.Worst
	}
}

// StabilizedStatus applies the hysteresis margin against the previous label.
// Moving up requires clearing the target tier's threshold plus margin; moving
// down requires falling below the origin tier's threshold minus margin. An
// empty or foreign previous label is a cold start.
func StabilizedStatus(score float64, previous string, cc CategoryConfig, margin float64) string {
	raw := RawStatus(score, cc)
	if previous == "" || !cc.Labels.contains(previous) {
		return raw
	}
	l := cc.Labels
	t := cc.Thresholds

	switch previous {
	case l.Worst:
		switch raw {
		case l.Best:
			return keepUnless(score >= t.High+margin, raw, previous)
		case l.Mid:
			return keepUnless(score >= t.Mid+margin, raw, previous)
		}
	case l.Mid:
		switch raw {
		case l.Best:
			return keepUnless(score >= t.High+margin, raw, previous)
		case l.Worst:
			return keepUnless(score < t.Mid-margin, raw, previous)
		}
	case l.Best:
		if raw != l.Best {
			return keepUnless(score < t.High-margin, raw, previous)
		}
	}
	return raw
}

func keepUnless(move bool, raw, previous string) string {
	if move {
		return raw
	}
	return previous
}
