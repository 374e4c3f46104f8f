package propagation

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

const reportElement = "receptionReport"

// aliasSet is the ordered list of attribute names a single field may appear
// under. The first non-empty match wins.
type aliasSet []string

var (
	senderLocatorKeys   = aliasSet{"senderLocator", "senderlocator", "senderGrid"}
	receiverLocatorKeys = aliasSet{"receiverLocator", "receiverlocator", "receiverGrid"}
	frequencyKeys       = aliasSet{"frequency", "freq"}
	modeKeys            = aliasSet{"mode", "rxMode", "txMode", "reportMode"}
	snrKeys             = aliasSet{"sNR", "snr"}
	timeKeys            = aliasSet{"time", "t", "flowStartSeconds"}
	ageKeys             = aliasSet{"reportAgeMinutes", "ageMinutes"}
)

func (a aliasSet) lookup(attrs map[string]string) (string, bool) {
	for _, key := range a {
		if v := attrs[key]; v != "" {
			return v, true
		}
	}
	return "", false
}

// ParseReports decodes an upstream XML document into reception records.
// Individual reports that are missing a field, carry an unknown mode or fall
// outside every configured band are dropped. A document that is empty or not
// well-formed yields no records.
func ParseReports(body []byte, now time.Time, cfg Config) []ReceptionRecord {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	reports, err := collectReportAttrs(body)
	if err != nil {
		return nil
	}

	records := make([]ReceptionRecord, 0, len(reports))
	for _, attrs := range reports {
		rec, ok := buildRecord(attrs, now, cfg)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func collectReportAttrs(body []byte) ([]map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var out []map[string]string
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if start.Name.Local != reportElement {
			continue
		}
		attrs := make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			attrs[a.Name.Local] = a.Value
		}
		out = append(out, attrs)
	}
	if !sawRoot {
		return nil, errors.New("no root element")
	}
	return out, nil
}

func buildRecord(attrs map[string]string, now time.Time, cfg Config) (ReceptionRecord, bool) {
	senderLoc, _ := senderLocatorKeys.lookup(attrs)
	receiverLoc, _ := receiverLocatorKeys.lookup(attrs)
	sender4, ok := NormalizeGrid4(senderLoc)
	if !ok {
		return ReceptionRecord{}, false
	}
	receiver4, ok := NormalizeGrid4(receiverLoc)
	if !ok {
		return ReceptionRecord{}, false
	}

	sLat, sLon, ok := LocatorToLatLon(senderLoc)
	if !ok {
		return ReceptionRecord{}, false
	}
	rLat, rLon, ok := LocatorToLatLon(receiverLoc)
	if !ok {
		return ReceptionRecord{}, false
	}

	rawFreq, ok := frequencyKeys.lookup(attrs)
	if !ok {
		return ReceptionRecord{}, false
	}
	freq, ok := parseFinite(rawFreq)
	if !ok {
		return ReceptionRecord{}, false
	}
	freqHz := int64(freq)

	rawMode, ok := modeKeys.lookup(attrs)
	if !ok {
		return ReceptionRecord{}, false
	}
	mode := Mode(strings.ToUpper(strings.TrimSpace(rawMode)))
	if !cfg.modeAccepted(mode) {
		return ReceptionRecord{}, false
	}

	band, ok := cfg.BandFor(freqHz)
	if !ok {
		return ReceptionRecord{}, false
	}

	var snr *int
	if rawSNR, ok := snrKeys.lookup(attrs); ok {
		if v, ok := parseFinite(rawSNR); ok {
			db := int(v)
			snr = &db
		}
	}

	return ReceptionRecord{
		Time:        reportTime(attrs, now),
		Mode:        mode,
		Band:        band,
		FrequencyHz: freqHz,
		SNR:         snr,
		SenderLoc:   strings.TrimSpace(senderLoc),
		ReceiverLoc: strings.TrimSpace(receiverLoc),
		Sender4:     sender4,
		Receiver4:   receiver4,
		SenderLat:   sLat,
		SenderLon:   sLon,
		ReceiverLat: rLat,
		ReceiverLon: rLon,
		DistanceKm:  HaversineKm(sLat, sLon, rLat, rLon),
	}, true
}

// parseFinite rejects NaN and infinities, which ParseFloat accepts.
func parseFinite(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// reportTime prefers an absolute stamp, then a relative age, then now.
func reportTime(attrs map[string]string, now time.Time) time.Time {
	if raw, ok := timeKeys.lookup(attrs); ok {
		raw = strings.TrimSpace(raw)
		if v, ok := parseFinite(raw); ok {
			if epoch := int64(v); epoch > 1_000_000_000 {
				return time.Unix(epoch, 0).UTC()
			}
		} else if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts.UTC()
		}
	}
	if raw, ok := ageKeys.lookup(attrs); ok {
		if mins, ok := parseFinite(raw); ok {
			return now.Add(-time.Duration(mins * float64(time.Minute))).UTC()
		}
	}
	return now.UTC()
}
