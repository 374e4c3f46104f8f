package propagation

import (
	"math"
	"strings"
)

const earthRadiusKm = 6371.0

// NormalizeGrid4 returns the upper-case 4-character grid square of a locator,
// or false when the locator is not letter-letter-digit-digit.
func NormalizeGrid4(locator string) (string, bool) {
	loc := strings.ToUpper(strings.TrimSpace(locator))
	if len(loc) < 4 {
		return "", false
	}
	if !isLetter(loc[0]) || !isLetter(loc[1]) || !isDigit(loc[2]) || !isDigit(loc[3]) {
		return "", false
	}
	return loc[:4], true
}

// LocatorToLatLon converts a Maidenhead locator to the centre of its finest
// resolved cell. Four characters resolve to a 2°x1° square; a valid 5th/6th
// subsquare pair narrows that to 1/24 of the square.
func LocatorToLatLon(locator string) (lat, lon float64, ok bool) {
	loc := strings.ToUpper(strings.TrimSpace(locator))
	if len(loc) < 4 {
		return 0, 0, false
	}
	fieldLon := int(loc[0]) - 'A'
	fieldLat := int(loc[1]) - 'A'
	if fieldLon < 0 || fieldLon > 17 || fieldLat < 0 || fieldLat > 17 {
		return 0, 0, false
	}
	if !isDigit(loc[2]) || !isDigit(loc[3]) {
		return 0, 0, false
	}
	squareLon := int(loc[2] - '0')
	squareLat := int(loc[3] - '0')

	lon = -180 + float64(fieldLon)*20 + float64(squareLon)*2 + 1
	lat = -90 + float64(fieldLat)*10 + float64(squareLat) + 0.5

	if len(loc) >= 6 && isLetter(loc[4]) && isLetter(loc[5]) {
		subLon := int(loc[4]) - 'A'
		subLat := int(loc[5]) - 'A'
		if subLon <= 23 && subLat <= 23 {
			// re-anchor from the square centre to the subsquare centre
			lon += -1 + (2.0/24)*float64(subLon) + (2.0/24)/2
			lat += -0.5 + (1.0/24)*float64(subLat) + (1.0/24)/2
		}
	}
	return lat, lon, true
}

// LatLonToLocator quantizes a coordinate into a Maidenhead locator of 4 or 6
// characters.
func LatLonToLocator(lat, lon float64, precision int) string {
	lon = clamp(lon+180, 0, 360-1e-9)
	lat = clamp(lat+90, 0, 180-1e-9)

	fieldLon := int(lon / 20)
	fieldLat := int(lat / 10)
	lon -= float64(fieldLon) * 20
	lat -= float64(fieldLat) * 10

	squareLon := int(lon / 2)
	squareLat := int(lat)
	lon -= float64(squareLon) * 2
	lat -= float64(squareLat)

	var b strings.Builder
	b.WriteByte(byte('A' + fieldLon))
	b.WriteByte(byte('A' + fieldLat))
	b.WriteByte(byte('0' + squareLon))
	b.WriteByte(byte('0' + squareLat))
	if precision >= 6 {
		subLon := int(lon / (2.0 / 24))
		subLat := int(lat / (1.0 / 24))
		b.WriteByte(byte('a' + min(subLon, 23)))
		b.WriteByte(byte('a' + min(subLat, 23)))
	}
	return b.String()
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
