// Package ingest accepts telemetry snapshots pushed by external sampling
// agents and keeps the latest one per device.
package ingest

import (
	"math"
	"strings"
	"time"

	"github.com/skobkin/nputop-web/internal/tab"
)

// Payload is one snapshot as sent over the wire.
type Payload struct {
	Timestamp    time.Time `json:"ts" yaml:"ts"`
	tab.Snapshot `yaml:",inline"`
}

// Batch groups payloads for one request.
type Batch struct {
	Snapshots []Payload `json:"snapshots" yaml:"snapshots"`
}

// Normalize drops readings the derivation must never see: non-finite values,
// negative counters and out-of-range usage. Temperature may be negative.
func Normalize(p Payload) Payload {
	out := p
	out.DeviceKey = strings.TrimSpace(p.DeviceKey)
	out.UsageFraction = usageFraction(p.UsageFraction)
	out.CoreClockHz = nonNegative(p.CoreClockHz)
	out.MemoryClockHz = nonNegative(p.MemoryClockHz)
	out.TempC = finite(p.TempC)
	out.PowerW = nonNegative(p.PowerW)
	out.PowerCapW = nonNegative(p.PowerCapW)
	out.PowerCapMaxW = nonNegative(p.PowerCapMaxW)
	return out
}

func usageFraction(value *float64) *float64 {
	v := nonNegative(value)
	if v == nil {
		return nil
	}
	if *v > 1 {
		return float64Ptr(1)
	}
	return v
}

func nonNegative(value *float64) *float64 {
	v := finite(value)
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func finite(value *float64) *float64 {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return nil
	}
	return float64Ptr(*value)
}

func float64Ptr(value float64) *float64 {
	v := value
	return &v
}
