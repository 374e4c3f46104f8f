package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorToLatLon_SquareCentre(t *testing.T) {
	lat, lon, ok := LocatorToLatLon("BL11")
	require.True(t, ok)
	assert.InDelta(t, 21.5, lat, 1e-9)
	assert.InDelta(t, -157.0, lon, 1e-9)
}

func TestLocatorToLatLon_SubsquareCentre(t *testing.T) {
	lat, lon, ok := LocatorToLatLon("bl11aa")
	require.True(t, ok)
	assert.InDelta(t, 21.0+1.0/48, lat, 1e-9)
	assert.InDelta(t, -158.0+1.0/24, lon, 1e-9)

	lat, lon, ok = LocatorToLatLon("BL11XX")
	require.True(t, ok)
	assert.InDelta(t, 22.0-1.0/48, lat, 1e-9)
	assert.InDelta(t, -156.0-1.0/24, lon, 1e-9)
}

func TestLocatorToLatLon_IgnoresInvalidSubsquare(t *testing.T) {
	lat4, lon4, _ := LocatorToLatLon("BL11")
	lat, lon, ok := LocatorToLatLon("BL11zz")
	require.True(t, ok)
	assert.Equal(t, lat4, lat)
	assert.Equal(t, lon4, lon)
}

func TestLocatorToLatLon_Rejects(t *testing.T) {
	for _, loc := range []string{"", "BL1", "SL11", "BS11", "B111", "BLA1", "  "} {
		_, _, ok := LocatorToLatLon(loc)
		assert.False(t, ok, loc)
	}
}

func TestNormalizeGrid4(t *testing.T) {
	got, ok := NormalizeGrid4(" cm87wj ")
	require.True(t, ok)
	assert.Equal(t, "CM87", got)

	_, ok = NormalizeGrid4("C187")
	assert.False(t, ok)
	_, ok = NormalizeGrid4("CM8")
	assert.False(t, ok)
}

func TestLocatorRoundTripStaysInCell(t *testing.T) {
	for _, loc := range []string{"AA00", "BL11", "BK29", "CM87", "DM04", "FN31", "JO62", "RR99", "QF56"} {
		lat, lon, ok := LocatorToLatLon(loc)
		require.True(t, ok, loc)
		assert.Equal(t, loc, LatLonToLocator(lat, lon, 4), loc)
	}
	for _, loc := range []string{"BL11bh", "CM87wj", "FN31pr"} {
		lat, lon, ok := LocatorToLatLon(loc)
		require.True(t, ok, loc)
		assert.Equal(t, loc, LatLonToLocator(lat, lon, 6), loc)
	}
}

func TestHaversineKm(t *testing.T) {
	assert.InDelta(t, 0, HaversineKm(21.3, -157.8, 21.3, -157.8), 1e-9)

	// one degree of latitude
	assert.InDelta(t, 111.19, HaversineKm(0, 0, 1, 0), 0.01)

	a := HaversineKm(21.5, -157, 37.5, -123)
	b := HaversineKm(37.5, -123, 21.5, -157)
	assert.InDelta(t, a, b, 1e-9)
	assert.Greater(t, a, 3000.0)
	assert.Less(t, a, 5200.0)
}
