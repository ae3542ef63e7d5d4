// Package units enumerates the physical-quantity categories the pipeline
// derives and their conversions from model-native units to the units used in
// analysis output. The closed enumeration replaces name-string dispatch: a
// variable's category is resolved once, at configuration load.
package units

import "fmt"

// Quantity is a physical-quantity category.
type Quantity int

const (
	// MassFlux covers snowfall, melt, runoff and sublimation rates,
	// model-native kg m-2 s-1, reported as mm w.e. day-1.
	MassFlux Quantity = iota
	// EnergyFlux covers the surface energy balance terms, W m-2.
	EnergyFlux
	// Temperature is model-native kelvin, reported in degrees Celsius.
	Temperature
	// Wind is wind speed in m s-1.
	Wind
	// Pressure is model-native Pa, reported in hPa.
	Pressure
	// Geopotential is model-native m2 s-2, reported as geopotential
	// height in meters.
	Geopotential
)

const (
	secondsPerDay  = 86400.0
	zeroCelsiusK   = 273.15
	paPerHpa       = 100.0
	standardGravMS = 9.80665
)

var names = map[Quantity]string{
	MassFlux:     "mass-flux",
	EnergyFlux:   "energy-flux",
	Temperature:  "temperature",
	Wind:         "wind",
	Pressure:     "pressure",
	Geopotential: "geopotential",
}

var outputUnits = map[Quantity]string{
	MassFlux:     "mm w.e. day-1",
	EnergyFlux:   "W m-2",
	Temperature:  "degC",
	Wind:         "m s-1",
	Pressure:     "hPa",
	Geopotential: "m",
}

func (q Quantity) String() string {
	if n, ok := names[q]; ok {
		return n
	}
	return fmt.Sprintf("Quantity(%d)", int(q))
}

// Unit returns the output unit label for the quantity.
func (q Quantity) Unit() string {
	return outputUnits[q]
}

// Parse resolves a configuration name to its quantity category.
func Parse(name string) (Quantity, error) {
	for q, n := range names {
		if n == name {
			return q, nil
		}
	}
	return 0, fmt.Errorf("unknown quantity category %q", name)
}

// Convert maps a model-native value to the quantity's output unit.
func (q Quantity) Convert(v float64) float64 {
	switch q {
	case MassFlux:
		return v * secondsPerDay
	case Temperature:
		return v - zeroCelsiusK
	case Pressure:
		return v / paPerHpa
	case Geopotential:
		return v / standardGravMS
	default:
		return v
	}
}
