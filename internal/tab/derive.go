package tab

import (
	"math"
	"strconv"
	"strings"
)

// Catalog keys used by the derivation. Translations are looked up by these
// exact strings.
const (
	KeyNotAvailable  = "N/A"
	KeyMemorySegment = "Memory: %s"
	KeyTabName       = "NPU"
)

const segmentDelimiter = " · "

// Localizer resolves catalog keys into display text for the active locale.
type Localizer interface {
	T(key string) string
	F(key string, args ...any) string
}

// UnitFormatter renders raw measurements as human-readable strings.
type UnitFormatter interface {
	Bytes(value uint64) string
	Frequency(hz float64) string
	Power(watts float64) string
	Temperature(celsius float64) string
}

// Derived is the display-ready reduction of one Snapshot.
type Derived struct {
	Usage          float64 `json:"usage"`
	UsageVisible   bool    `json:"usage_visible"`
	MemoryFraction float64 `json:"-"`
	MemoryVisible  bool    `json:"memory_visible"`

	UsageText       string `json:"usage_text"`
	MemoryText      string `json:"memory_text"`
	TemperatureText string `json:"temperature_text"`
	PowerText       string `json:"power_text"`
	CoreClockText   string `json:"core_clock_text"`
	MemoryClockText string `json:"memory_clock_text"`
	PowerCapMaxText string `json:"power_cap_max_text"`
	Summary         string `json:"summary"`
}

// Derive reduces a snapshot into fractions, formatted strings and visibility
// flags. It has no side effects and returns equal output for equal input.
func Derive(s Snapshot, loc Localizer, units UnitFormatter) Derived {
	na := loc.T(KeyNotAvailable)

	var d Derived
	if s.UsageFraction != nil {
		d.Usage = Finite(*s.UsageFraction)
		d.UsageVisible = true
	}
	d.MemoryFraction, d.MemoryVisible = memoryFraction(s.MemoryTotalBytes, s.MemoryUsedBytes)

	d.UsageText = percentOr(d.Usage, d.UsageVisible, na)
	memoryPercent := percentOr(d.MemoryFraction, d.MemoryVisible, na)

	if s.MemoryTotalBytes != nil && s.MemoryUsedBytes != nil {
		d.MemoryText = units.Bytes(*s.MemoryUsedBytes) + " / " + units.Bytes(*s.MemoryTotalBytes) + segmentDelimiter + memoryPercent
	} else {
		d.MemoryText = na
	}

	temperatureAvailable := s.TempC != nil
	if temperatureAvailable {
		d.TemperatureText = units.Temperature(*s.TempC)
	} else {
		d.TemperatureText = na
	}

	// Draw and cap are independent: a cap is appended even when draw is unknown.
	d.PowerText = formatOr(s.PowerW, units.Power, na)
	if s.PowerCapW != nil {
		d.PowerText += " / " + units.Power(*s.PowerCapW)
	}

	d.CoreClockText = formatOr(s.CoreClockHz, units.Frequency, na)
	d.MemoryClockText = formatOr(s.MemoryClockHz, units.Frequency, na)
	d.PowerCapMaxText = formatOr(s.PowerCapMaxW, units.Power, na)

	var summary strings.Builder
	summary.WriteString(d.UsageText)
	if d.MemoryVisible {
		summary.WriteString(segmentDelimiter)
		summary.WriteString(loc.F(KeyMemorySegment, memoryPercent))
	}
	if temperatureAvailable {
		summary.WriteString(segmentDelimiter)
		summary.WriteString(d.TemperatureText)
	}
	d.Summary = summary.String()

	return d
}

// MemoryFractionValue reports the memory fraction and whether it is defined.
func (d Derived) MemoryFractionValue() (float64, bool) {
	return d.MemoryFraction, d.MemoryVisible
}

func memoryFraction(total, used *uint64) (float64, bool) {
	if total == nil || used == nil || *total == 0 {
		return 0, false
	}
	return Finite(float64(*used) / float64(*total)), true
}

// FormatPercent renders a fraction as a rounded integer percentage, e.g. "43 %".
func FormatPercent(fraction float64) string {
	return strconv.FormatInt(int64(math.Round(fraction*100)), 10) + " %"
}

func percentOr(fraction float64, present bool, fallback string) string {
	if !present {
		return fallback
	}
	return FormatPercent(fraction)
}

func formatOr(value *float64, format func(float64) string, fallback string) string {
	if value == nil {
		return fallback
	}
	return format(*value)
}
