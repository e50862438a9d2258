package units

import "testing"

func TestFormatterBytes(t *testing.T) {
	t.Parallel()

	f := Formatter{}
	testCases := map[uint64]string{
		0:       "0 B",
		1 << 30: "1.0 GiB",
		8 << 30: "8.0 GiB",
	}
	for input, want := range testCases {
		if got := f.Bytes(input); got != want {
			t.Errorf("Bytes(%d): expected %q, got %q", input, want, got)
		}
	}
}

func TestFormatterFrequencyAndPower(t *testing.T) {
	t.Parallel()

	f := Formatter{}
	if got := f.Frequency(1_200_000_000); got != "1.2 GHz" {
		t.Errorf("unexpected frequency %q", got)
	}
	if got := f.Frequency(800_000_000); got != "800 MHz" {
		t.Errorf("unexpected frequency %q", got)
	}
	if got := f.Power(15); got != "15 W" {
		t.Errorf("unexpected power %q", got)
	}
}

func TestFormatterTemperature(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		unit TemperatureUnit
		want string
	}{
		{Celsius, "42 °C"},
		{Fahrenheit, "107 °F"},
		{Kelvin, "315 K"},
		{"", "42 °C"},
	}
	for _, tc := range testCases {
		f := Formatter{TempUnit: tc.unit}
		if got := f.Temperature(41.8); got != tc.want {
			t.Errorf("unit %q: expected %q, got %q", tc.unit, tc.want, got)
		}
	}
}

func TestParseTemperatureUnit(t *testing.T) {
	t.Parallel()

	valid := map[string]TemperatureUnit{
		"":           Celsius,
		"C":          Celsius,
		"fahrenheit": Fahrenheit,
		" k ":        Kelvin,
	}
	for input, want := range valid {
		got, err := ParseTemperatureUnit(input)
		if err != nil || got != want {
			t.Errorf("ParseTemperatureUnit(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParseTemperatureUnit("rankine"); err == nil {
		t.Errorf("expected error for unsupported unit")
	}
}
