// Package solar computes daily top-of-atmosphere insolation and daylight
// duration for a latitude, used as a context variable alongside melt
// climatologies. Antarctic latitudes spend much of the melt season in polar
// day, so the hour-angle terms clamp rather than error at the poles.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
)

const solarConstant = 1361.0 // W m-2

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// position returns the solar declination (radians) and the inverse square of
// the Sun-Earth distance (AU^-2) at solar noon of the given date.
func position(d calendar.Date) (declination, distFactor float64) {
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 12, 0, 0, 0, time.UTC)
	jd := julian.TimeToJD(t)
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	sunLong := L0 + C
	trueAnomaly := M + C

	omega := 125.04 - 1934.136*T
	lambda := sunLong - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60

	declination = math.Asin(math.Sin(degToRad(eps0)) * math.Sin(degToRad(lambda)))

	r := 1.000001018 * (1 - e*e) / (1 + e*math.Cos(degToRad(trueAnomaly)))
	distFactor = 1 / (r * r)
	return declination, distFactor
}

// sunsetHourAngle returns the hour angle of sunset in radians, clamped to
// [0, pi]: 0 is polar night, pi is polar day.
func sunsetHourAngle(latRad, declination float64) float64 {
	cosH := -math.Tan(latRad) * math.Tan(declination)
	switch {
	case cosH <= -1:
		return math.Pi
	case cosH >= 1:
		return 0
	default:
		return math.Acos(cosH)
	}
}

// DaylightHours returns the duration between sunrise and sunset in hours for
// the date at the given latitude: 0 during polar night, 24 during polar day.
func DaylightHours(d calendar.Date, latitude float64) float64 {
	decl, _ := position(d)
	h0 := sunsetHourAngle(degToRad(latitude), decl)
	return 24 * h0 / math.Pi
}

// TOAInsolation returns the daily mean top-of-atmosphere insolation in
// W m-2 for the date at the given latitude.
func TOAInsolation(d calendar.Date, latitude float64) float64 {
	decl, dr := position(d)
	lat := degToRad(latitude)
	h0 := sunsetHourAngle(lat, decl)

	q := solarConstant / math.Pi * dr *
		(h0*math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Sin(h0))
	if q < 0 {
		return 0
	}
	return q
}
