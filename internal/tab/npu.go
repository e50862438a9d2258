package tab

import (
	"strings"
	"time"
)

// Device is the static description of a discovered NPU handed to setup.
type Device struct {
	// Key matches Snapshot.DeviceKey. Defaults to BusSlot.
	Key       string `json:"key" yaml:"key"`
	BusSlot   string `json:"bus_slot" yaml:"bus_slot"`
	ModelName string `json:"model" yaml:"model"`
	Vendor    string `json:"vendor" yaml:"vendor"`
	Driver    string `json:"driver" yaml:"driver"`
}

// DeviceKey returns the key snapshots for this device are filed under.
func (d Device) DeviceKey() string {
	if key := strings.TrimSpace(d.Key); key != "" {
		return key
	}
	return strings.TrimSpace(d.BusSlot)
}

// NPU is one NPU tab: identity and ordering fixed at setup, plus the
// presentation state overwritten on every refresh.
type NPU struct {
	identity  Identity
	ordering  Ordering
	deviceKey string
	state     *State
	loc       Localizer
	units     UnitFormatter
}

// NewNPU runs the one-time setup for a device. Identity is never recomputed
// afterwards, even if later enumerations report a different model name.
func NewNPU(dev Device, secondaryOrd uint32, loc Localizer, units UnitFormatter) *NPU {
	key := dev.DeviceKey()
	slot := strings.TrimSpace(dev.BusSlot)
	idSource := slot
	if idSource == "" {
		idSource = key
	}

	p := &NPU{
		identity:  NewIdentity(idSource, strings.TrimSpace(dev.ModelName)),
		ordering:  Ordering{Primary: NPUPrimaryOrd, Secondary: secondaryOrd},
		deviceKey: key,
		state:     NewState(),
		loc:       loc,
		units:     units,
	}

	na := loc.T(KeyNotAvailable)
	p.state.SetTabName(loc.T(KeyTabName))
	p.state.SetTabID(p.identity.TabID)
	p.state.SetTabDetail(p.identity.TabDetail)
	p.state.SetLabels(Labels{
		Manufacturer: orDefault(dev.Vendor, na),
		BusSlot:      orDefault(slot, na),
		Driver:       orDefault(dev.Driver, na),
	})
	empty := Snapshot{DeviceKey: key}
	p.state.seed(Tick{Snapshot: empty, Derived: Derive(empty, loc, units)})

	return p
}

func (p *NPU) Identity() Identity {
	return p.identity
}

func (p *NPU) Order() Ordering {
	return p.ordering
}

func (p *NPU) DeviceKey() string {
	return p.deviceKey
}

func (p *NPU) State() *State {
	return p.state
}

// Refresh derives the presentation for snapshot and applies it.
func (p *NPU) Refresh(snapshot Snapshot, at time.Time) Derived {
	derived := Derive(snapshot, p.loc, p.units)
	p.state.Apply(Tick{At: at, Snapshot: snapshot, Derived: derived})
	return derived
}

// View returns a consistent copy of the tab.
func (p *NPU) View() View {
	s := p.state
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.tick.Derived
	v := View{
		TabID:         s.tabID,
		TabName:       s.tabName,
		TabDetail:     s.tabDetail,
		DeviceKey:     p.deviceKey,
		Ordering:      p.ordering,
		Usage:         d.Usage,
		UsageSummary:  d.Summary,
		UsageVisible:  d.UsageVisible,
		MemoryVisible: d.MemoryVisible,
		Subtitles: Subtitles{
			Usage:        d.UsageText,
			Memory:       d.MemoryText,
			Temperature:  d.TemperatureText,
			Power:        d.PowerText,
			CoreClock:    d.CoreClockText,
			MemoryClock:  d.MemoryClockText,
			MaxPowerCap:  d.PowerCapMaxText,
			Manufacturer: s.labels.Manufacturer,
			BusSlot:      s.labels.BusSlot,
			Driver:       s.labels.Driver,
		},
		Snapshot: s.tick.Snapshot,
	}
	if d.MemoryVisible {
		fraction := d.MemoryFraction
		v.MemoryFraction = &fraction
	}
	if s.refreshed {
		at := s.tick.At
		v.UpdatedAt = &at
	}
	return v
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
