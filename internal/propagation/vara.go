package propagation

const (
	varaMixTarget      = 0.25
	varaUnknownSNR     = 0.3
	varaSingleModeDamp = 0.70
	varaMultiBandBonus = 10
)

// varaBand estimates how well a band would carry VARA traffic from its JS8
// share, its median SNR and its own score.
func varaBand(st bandStats, cc CategoryConfig, cfg Config) float64 {
	total := st.js8 + st.ft8
	js8Ratio := float64(st.js8) / float64(max(1, total))
	js8Factor := clamp(js8Ratio/varaMixTarget, 0, 1)

	snrFactor := varaUnknownSNR
	if st.medianSNR != nil {
		snrFactor = clamp((*st.medianSNR-cc.SNROk)/(cfg.SNRStrong-cc.SNROk), 0, 1)
	}

	v := 100 * (0.45*js8Factor + 0.35*snrFactor + 0.20*st.score/100)
	if st.js8 == 0 {
		v *= varaSingleModeDamp
	}
	return v
}

// applyVaraOverrides floors the estimate when any band shows JS8 at a usable
// SNR and, where enabled, rewards simultaneous JS8 on several bands.
func applyVaraOverrides(v float64, stats map[string]bandStats, cc CategoryConfig) float64 {
	usable := false
	js8Bands := 0
	js8Total := 0
	for _, st := range stats {
		if st.js8 >= 1 {
			js8Bands++
			js8Total += st.js8
			if st.medianSNR != nil && *st.medianSNR >= cc.SNROk {
				usable = true
			}
		}
	}
	if usable && v < cc.VaraPossible {
		v = cc.VaraPossible
	}
	if cc.MultiBandBonus && (js8Bands >= 2 || js8Total >= 3) {
		v = min(100, v+varaMultiBandBonus)
	}
	return v
}

// VaraClass maps a VARA estimate onto its class.
func VaraClass(v float64, cc CategoryConfig) string {
	switch {
	case v >= cc.VaraLikely:
		return VaraLikely
	case v >= cc.VaraPossible:
		return VaraPossible
	default:
		return VaraUnlikely
	}
}
