package storage

import (
	"propwatch/internal/propagation"
)

// PersistedState is the last stabilized label per category. Nil fields mean
// no prior state.
type PersistedState struct {
	Last LastStatus `json:"last"`
}

// LastStatus mirrors the "last" object of the state file.
type LastStatus struct {
	NVISStatus     *string `json:"nvis_status"`
	MainlandStatus *string `json:"mainland_status"`
	TimestampUTC   *string `json:"timestamp_utc"`
}

// Previous converts the persisted labels into hysteresis input.
func (s PersistedState) Previous() propagation.PreviousStatus {
	var prev propagation.PreviousStatus
	if s.Last.NVISStatus != nil {
		prev.NVIS = *s.Last.NVISStatus
	}
	if s.Last.MainlandStatus != nil {
		prev.Mainland = *s.Last.MainlandStatus
	}
	return prev
}

// NewPersistedState records the labels of a finished cycle.
func NewPersistedState(nvis, mainland, timestamp string) PersistedState {
	return PersistedState{Last: LastStatus{
		NVISStatus:     &nvis,
		MainlandStatus: &mainland,
		TimestampUTC:   &timestamp,
	}}
}

// Payload is the document emitted at the end of every cycle.
type Payload struct {
	TimestampUTC  string          `json:"timestamp_utc"`
	WindowMinutes int             `json:"window_minutes"`
	NVIS          CategoryPayload `json:"nvis"`
	Mainland      CategoryPayload `json:"mainland"`
	Sources       Sources         `json:"sources"`
}

// CategoryPayload is the serialised IndicatorSummary.
type CategoryPayload struct {
	Status     string                            `json:"status"`
	VaraClass  string                            `json:"vara_class"`
	VaraScore  int                               `json:"vara_score"`
	Score      int                               `json:"score"`
	Confidence string                            `json:"confidence"`
	Bands      map[string]propagation.BandOutput `json:"bands"`
	Explain    string                            `json:"explain"`
	Records    int                               `json:"records"`
}

// Sources describes where the cycle's data came from.
type Sources struct {
	Upstream UpstreamSource `json:"upstream"`
	Notes    string         `json:"notes"`
}

// UpstreamSource reports the health of the spot feed.
type UpstreamSource struct {
	OK               bool    `json:"ok"`
	LastFetchUTC     *string `json:"last_fetch_utc"`
	RequestsLastHour int     `json:"requests_last_hour"`
}

// NewCategoryPayload serialises a summary.
func NewCategoryPayload(s propagation.IndicatorSummary) CategoryPayload {
	bands := make(map[string]propagation.BandOutput, len(s.Bands))
	for name, out := range s.Bands {
		bands[name] = out
	}
	return CategoryPayload{
		Status:     s.Status,
		VaraClass:  s.VaraClass,
		VaraScore:  s.VaraScore,
		Score:      s.Score,
		Confidence: s.Confidence,
		Bands:      bands,
		Explain:    s.Explain,
		Records:    s.RecordsTotal,
	}
}
