package tab

// Snapshot is a single telemetry reading for an NPU. Pointer fields are nil
// when the counter is unsupported or could not be read; no field is required.
type Snapshot struct {
	DeviceKey        string   `json:"device_key" yaml:"device_key"`
	UsageFraction    *float64 `json:"usage_fraction" yaml:"usage_fraction"`
	MemoryTotalBytes *uint64  `json:"memory_total_bytes" yaml:"memory_total_bytes"`
	MemoryUsedBytes  *uint64  `json:"memory_used_bytes" yaml:"memory_used_bytes"`
	CoreClockHz      *float64 `json:"core_clock_hz" yaml:"core_clock_hz"`
	MemoryClockHz    *float64 `json:"memory_clock_hz" yaml:"memory_clock_hz"`
	TempC            *float64 `json:"temp_c" yaml:"temp_c"`
	PowerW           *float64 `json:"power_w" yaml:"power_w"`
	PowerCapW        *float64 `json:"power_cap_w" yaml:"power_cap_w"`
	PowerCapMaxW     *float64 `json:"power_cap_max_w" yaml:"power_cap_max_w"`
}
