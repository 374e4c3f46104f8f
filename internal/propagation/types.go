package propagation

import "time"

// Mode is a digital mode accepted from reception reports.
type Mode string

const (
	ModeFT8  Mode = "FT8"
	ModeJS8  Mode = "JS8"
	ModeWSPR Mode = "WSPR"
)

// Category identifies one of the two evaluated radio paths.
type Category string

const (
	CategoryNVIS     Category = "nvis"
	CategoryMainland Category = "mainland"
)

// StatusUnknown overrides any label when there is no current evidence.
const StatusUnknown = "UNKNOWN"

// Confidence tiers.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// VARA likelihood classes.
const (
	VaraLikely   = "LIKELY"
	VaraPossible = "POSSIBLE"
	VaraUnlikely = "UNLIKELY"
)

// ReceptionRecord is one decoded spot. Records are passed by value and never
// modified after ParseReports builds them.
type ReceptionRecord struct {
	Time        time.Time
	Mode        Mode
	Band        string
	FrequencyHz int64
	SNR         *int
	SenderLoc   string
	ReceiverLoc string
	Sender4     string
	Receiver4   string
	SenderLat   float64
	SenderLon   float64
	ReceiverLat float64
	ReceiverLon float64
	DistanceKm  float64
}

// HasSNR reports whether the spot carried a signal report.
func (r ReceptionRecord) HasSNR() bool {
	return r.SNR != nil
}

// BandOutput is the per-band aggregate for a single category.
type BandOutput struct {
	Score       int      `json:"score"`
	Paths       int      `json:"paths"`
	TX          float64  `json:"tx"`
	RX          float64  `json:"rx"`
	MedianSNRdB *float64 `json:"median_snr_db"`
	JS8Paths    int      `json:"js8_paths"`
	FT8Paths    int      `json:"ft8_paths"`
}

// IndicatorSummary is the evaluated result for one category.
type IndicatorSummary struct {
	Category     Category
	Status       string
	Score        int
	Confidence   string
	VaraClass    string
	VaraScore    int
	Bands        map[string]BandOutput
	BandOrder    []string
	Explain      string
	RecordsTotal int
}

// PreviousStatus carries the stabilized labels from the prior cycle. Empty
// strings mean no prior state.
type PreviousStatus struct {
	NVIS     string
	Mainland string
}

// Evidence describes how much upstream data backs a cycle.
type Evidence struct {
	AnchorsReporting int
	LastFetch        *time.Time
	Now              time.Time
}

// freshMinutes returns the age of the newest upstream data, or a large
// sentinel when nothing has ever been fetched.
func (e Evidence) freshMinutes() float64 {
	if e.LastFetch == nil {
		return 9999
	}
	age := e.Now.Sub(*e.LastFetch).Minutes()
	if age < 0 {
		return 0
	}
	return age
}
