package tab

import "time"

// Subtitles holds the display string for every detail row of a tab.
type Subtitles struct {
	Usage        string `json:"usage"`
	Memory       string `json:"memory"`
	Temperature  string `json:"temperature"`
	Power        string `json:"power"`
	CoreClock    string `json:"core_clock"`
	MemoryClock  string `json:"memory_clock"`
	MaxPowerCap  string `json:"max_power_cap"`
	Manufacturer string `json:"manufacturer"`
	BusSlot      string `json:"bus_slot"`
	Driver       string `json:"driver"`
}

// View is a consistent, read-only copy of a tab for transports and renderers.
type View struct {
	TabID          string     `json:"tab_id"`
	TabName        string     `json:"tab_name"`
	TabDetail      string     `json:"tab_detail"`
	DeviceKey      string     `json:"device_key"`
	Ordering       Ordering   `json:"ordering"`
	Usage          float64    `json:"usage"`
	UsageSummary   string     `json:"usage_summary"`
	UsageVisible   bool       `json:"usage_visible"`
	MemoryFraction *float64   `json:"memory_fraction"`
	MemoryVisible  bool       `json:"memory_visible"`
	Subtitles      Subtitles  `json:"subtitles"`
	Snapshot       Snapshot   `json:"snapshot"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// Order implements Ordered.
func (v View) Order() Ordering {
	return v.Ordering
}
