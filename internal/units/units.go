// Package units renders raw hardware measurements as display strings.
package units

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// TemperatureUnit selects how temperatures are displayed.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "celsius"
	Fahrenheit TemperatureUnit = "fahrenheit"
	Kelvin     TemperatureUnit = "kelvin"
)

// ParseTemperatureUnit accepts full names and the usual single-letter forms.
func ParseTemperatureUnit(input string) (TemperatureUnit, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	case "k", "kelvin":
		return Kelvin, nil
	default:
		return Celsius, fmt.Errorf("unsupported temperature unit %q", input)
	}
}

// Formatter implements the unit formatting used by tab derivation.
type Formatter struct {
	TempUnit TemperatureUnit
}

// Bytes formats a byte count with binary prefixes, e.g. "3.7 GiB".
func (Formatter) Bytes(value uint64) string {
	return humanize.IBytes(value)
}

// Frequency formats a frequency in Hz with SI prefixes, e.g. "1.4 GHz".
func (Formatter) Frequency(hz float64) string {
	return humanize.SIWithDigits(hz, 2, "Hz")
}

// Power formats a power reading in Watts, e.g. "15.2 W".
func (Formatter) Power(watts float64) string {
	return humanize.SIWithDigits(watts, 2, "W")
}

// Temperature formats a Celsius reading in the configured display unit.
func (f Formatter) Temperature(celsius float64) string {
	switch f.TempUnit {
	case Fahrenheit:
		return fmt.Sprintf("%d °F", int64(math.Round(celsius*9/5+32)))
	case Kelvin:
		return fmt.Sprintf("%d K", int64(math.Round(celsius+273.15)))
	default:
		return fmt.Sprintf("%d °C", int64(math.Round(celsius)))
	}
}
