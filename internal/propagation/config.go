package propagation

import (
	"errors"
	"fmt"
	"math"
)

// BandRange is an inclusive frequency range in Hz.
type BandRange struct {
	Name   string
	LowHz  int64
	HighHz int64
}

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return b.LatMin <= lat && lat <= b.LatMax && b.LonMin <= lon && lon <= b.LonMax
}

// Labels are the three ordered status tiers of a category, best first.
type Labels struct {
	Best  string
	Mid   string
	Worst string
}

func (l Labels) contains(label string) bool {
	return label == l.Best || label == l.Mid || label == l.Worst
}

// Thresholds are the score cutoffs for the Best and Mid tiers.
type Thresholds struct {
	High float64
	Mid  float64
}

// CategoryConfig holds every tunable for one category.
type CategoryConfig struct {
	Category        Category
	BandOrder       []string
	BandWeights     map[string]float64
	PathTarget      float64
	DiversityTarget float64
	Labels          Labels
	Thresholds      Thresholds
	VaraLikely      float64
	VaraPossible    float64
	SNROk           float64
	MultiBandBonus  bool
}

// ModeWeights holds the per-mode path weights.
type ModeWeights struct {
	FT8  float64
	JS8  float64
	WSPR float64
}

// Weight returns the path weight for m.
func (w ModeWeights) Weight(m Mode) float64 {
	switch m {
	case ModeJS8:
		return w.JS8
	case ModeWSPR:
		return w.WSPR
	default:
		return w.FT8
	}
}

// Config is the immutable engine configuration. Build it once with
// DefaultConfig and pass it to every engine call.
type Config struct {
	Modes       []Mode
	Bands       []BandRange
	ModeWeights ModeWeights

	SNRMin    float64
	SNRMax    float64
	SNRStrong float64

	Hysteresis float64

	Island   BoundingBox
	Mainland BoundingBox

	NVISMaxKm     float64
	MainlandMinKm float64
	MainlandMaxKm float64

	NVIS         CategoryConfig
	MainlandPath CategoryConfig
}

// DefaultConfig returns the Hawaii inter-island / Hawaii-CONUS tables.
func DefaultConfig() Config {
	return Config{
		Modes: []Mode{ModeFT8, ModeJS8, ModeWSPR},
		Bands: []BandRange{
			{Name: "80m", LowHz: 3_500_000, HighHz: 4_000_000},
			{Name: "40m", LowHz: 7_000_000, HighHz: 7_300_000},
			{Name: "30m", LowHz: 10_100_000, HighHz: 10_150_000},
			{Name: "20m", LowHz: 14_000_000, HighHz: 14_350_000},
			{Name: "17m", LowHz: 18_068_000, HighHz: 18_168_000},
			{Name: "15m", LowHz: 21_000_000, HighHz: 21_450_000},
			{Name: "12m", LowHz: 24_890_000, HighHz: 24_990_000},
			{Name: "10m", LowHz: 28_000_000, HighHz: 29_700_000},
		},
		ModeWeights: ModeWeights{FT8: 1.0, JS8: 1.8, WSPR: 0.4},
		SNRMin:      -24,
		SNRMax:      0,
		SNRStrong:   -6,
		Hysteresis:  5,
		Island:      BoundingBox{LatMin: 18.5, LatMax: 23.0, LonMin: -161.0, LonMax: -154.0},
		Mainland:    BoundingBox{LatMin: 24.0, LatMax: 49.5, LonMin: -125.0, LonMax: -66.0},

		NVISMaxKm:     450,
		MainlandMinKm: 3000,
		MainlandMaxKm: 5200,

		NVIS: CategoryConfig{
			Category:        CategoryNVIS,
			BandOrder:       []string{"80m", "40m", "30m"},
			BandWeights:     map[string]float64{"80m": 0.40, "40m": 0.45, "30m": 0.15},
			PathTarget:      8,
			DiversityTarget: 3,
			Labels:          Labels{Best: "GOOD", Mid: "MARGINAL", Worst: "POOR"},
			Thresholds:      Thresholds{High: 70, Mid: 40},
			VaraLikely:      65,
			VaraPossible:    35,
			SNROk:           -10,
		},
		MainlandPath: CategoryConfig{
			Category:  CategoryMainland,
			BandOrder: []string{"80m", "40m", "30m", "20m", "17m", "15m", "12m", "10m"},
			BandWeights: map[string]float64{
				"80m": 0.08, "40m": 0.12, "30m": 0.10, "20m": 0.28,
				"17m": 0.14, "15m": 0.12, "12m": 0.10, "10m": 0.06,
			},
			PathTarget:      5,
			DiversityTarget: 3,
			Labels:          Labels{Best: "OPEN", Mid: "INTERMITTENT", Worst: "CLOSED"},
			Thresholds:      Thresholds{High: 60, Mid: 30},
			VaraLikely:      60,
			VaraPossible:    30,
			SNROk:           -12,
			MultiBandBonus:  true,
		},
	}
}

// Category returns the tables for c.
func (c Config) Category(cat Category) CategoryConfig {
	if cat == CategoryNVIS {
		return c.NVIS
	}
	return c.MainlandPath
}

// BandFor maps a frequency to its band name.
func (c Config) BandFor(freqHz int64) (string, bool) {
	for _, b := range c.Bands {
		if b.LowHz <= freqHz && freqHz <= b.HighHz {
			return b.Name, true
		}
	}
	return "", false
}

// Validate checks the static tables. A failure is a programming error.
func (c Config) Validate() error {
	if len(c.Modes) == 0 {
		return errors.New("no modes configured")
	}
	for i, a := range c.Bands {
		if a.LowHz > a.HighHz {
			return fmt.Errorf("band %s: low above high", a.Name)
		}
		for _, b := range c.Bands[i+1:] {
			if a.LowHz <= b.HighHz && b.LowHz <= a.HighHz {
				return fmt.Errorf("bands %s and %s overlap", a.Name, b.Name)
			}
		}
	}
	if c.SNRMax <= c.SNRMin {
		return errors.New("snr ceiling must exceed floor")
	}
	for _, cc := range []CategoryConfig{c.NVIS, c.MainlandPath} {
		if err := c.validateCategory(cc); err != nil {
			return fmt.Errorf("%s: %w", cc.Category, err)
		}
	}
	return nil
}

func (c Config) validateCategory(cc CategoryConfig) error {
	total := 0.0
	for _, band := range cc.BandOrder {
		w, ok := cc.BandWeights[band]
		if !ok {
			return fmt.Errorf("band %s has no weight", band)
		}
		if _, known := c.bandRange(band); !known {
			return fmt.Errorf("band %s has no frequency range", band)
		}
		total += w
	}
	if len(cc.BandWeights) != len(cc.BandOrder) {
		return errors.New("band weights and band order disagree")
	}
	if math.Abs(total-1) > 1e-9 {
		return fmt.Errorf("band weights sum to %.4f", total)
	}
	if cc.Thresholds.Mid >= cc.Thresholds.High {
		return errors.New("mid threshold must be below high threshold")
	}
	if cc.VaraPossible >= cc.VaraLikely {
		return errors.New("vara possible threshold must be below likely")
	}
	if cc.SNROk >= c.SNRStrong {
		return errors.New("snr ok floor must be below strong ceiling")
	}
	if cc.PathTarget <= 0 || cc.DiversityTarget <= 0 {
		return errors.New("targets must be positive")
	}
	return nil
}

func (c Config) bandRange(name string) (BandRange, bool) {
	for _, b := range c.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return BandRange{}, false
}

func (c Config) modeAccepted(m Mode) bool {
	for _, known := range c.Modes {
		if known == m {
			return true
		}
	}
	return false
}
