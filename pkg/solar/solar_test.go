package solar

import (
	"math"
	"testing"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
)

func TestDaylightHoursPolarConditions(t *testing.T) {
	// Deep inside the Antarctic circle at the December solstice the sun
	// never sets; at the June solstice it never rises.
	midsummer := calendar.Date{Year: 2000, Month: 12, Day: 21}
	midwinter := calendar.Date{Year: 2000, Month: 6, Day: 21}

	if h := DaylightHours(midsummer, -75); h != 24 {
		t.Errorf("polar day daylight = %v h, want 24", h)
	}
	if h := DaylightHours(midwinter, -75); h != 0 {
		t.Errorf("polar night daylight = %v h, want 0", h)
	}
}

func TestDaylightHoursEquatorNearTwelve(t *testing.T) {
	for _, d := range []calendar.Date{
		{Year: 2000, Month: 3, Day: 20},
		{Year: 2000, Month: 9, Day: 22},
		{Year: 2000, Month: 12, Day: 21},
	} {
		h := DaylightHours(d, 0)
		if math.Abs(h-12) > 0.2 {
			t.Errorf("%v: equatorial daylight = %v h, want ~12", d, h)
		}
	}
}

func TestTOAInsolation(t *testing.T) {
	midsummer := calendar.Date{Year: 2000, Month: 12, Day: 21}
	midwinter := calendar.Date{Year: 2000, Month: 6, Day: 21}

	// Polar night: no insolation at all.
	if q := TOAInsolation(midwinter, -75); q != 0 {
		t.Errorf("polar night insolation = %v, want 0", q)
	}

	// Antarctic midsummer daily-mean TOA flux exceeds the equatorial one
	// (24 h of sun beats a higher noon elevation) and stays below the
	// solar constant.
	qa := TOAInsolation(midsummer, -75)
	qe := TOAInsolation(midsummer, 0)
	if qa <= qe {
		t.Errorf("antarctic midsummer (%v) should exceed equatorial (%v)", qa, qe)
	}
	if qa >= solarConstant {
		t.Errorf("daily mean %v cannot exceed the solar constant", qa)
	}
	if qe < 300 || qe > 500 {
		t.Errorf("equatorial daily mean = %v, expected a few hundred W m-2", qe)
	}
}
