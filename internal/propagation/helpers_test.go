package propagation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

var bandCentreHz = map[string]int64{
	"80m": 3_573_000,
	"40m": 7_074_000,
	"30m": 10_136_000,
	"20m": 14_074_000,
	"17m": 18_100_000,
	"15m": 21_074_000,
	"12m": 24_915_000,
	"10m": 28_074_000,
}

func snr(v int) *int { return &v }

// spot builds a record the same way ParseReports would.
func spot(t *testing.T, mode Mode, band, sender, receiver string, db *int) ReceptionRecord {
	t.Helper()
	sLat, sLon, ok := LocatorToLatLon(sender)
	require.True(t, ok, sender)
	rLat, rLon, ok := LocatorToLatLon(receiver)
	require.True(t, ok, receiver)
	s4, _ := NormalizeGrid4(sender)
	r4, _ := NormalizeGrid4(receiver)
	return ReceptionRecord{
		Time:        testNow,
		Mode:        mode,
		Band:        band,
		FrequencyHz: bandCentreHz[band],
		SNR:         db,
		SenderLoc:   sender,
		ReceiverLoc: receiver,
		Sender4:     s4,
		Receiver4:   r4,
		SenderLat:   sLat,
		SenderLon:   sLon,
		ReceiverLat: rLat,
		ReceiverLon: rLon,
		DistanceKm:  HaversineKm(sLat, sLon, rLat, rLon),
	}
}
