package tab

import (
	"sync"
	"time"
)

// Tick is the outcome of one refresh pass for a device.
type Tick struct {
	At       time.Time
	Snapshot Snapshot
	Derived  Derived
}

// Labels are the static per-device strings computed at setup.
type Labels struct {
	Manufacturer string `json:"manufacturer"`
	BusSlot      string `json:"bus_slot"`
	Driver       string `json:"driver"`
}

// State is the externally readable presentation record of one tab. Apply
// replaces the per-tick fields under a single lock so readers never observe
// a partially updated tick.
type State struct {
	mu        sync.RWMutex
	tabName   string
	tabDetail string
	tabID     string
	labels    Labels
	tick      Tick
	refreshed bool
}

// NewState creates a State holding default values.
func NewState() *State {
	return &State{}
}

func (s *State) TabName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tabName
}

func (s *State) SetTabName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabName = name
}

func (s *State) TabDetail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tabDetail
}

func (s *State) SetTabDetail(detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabDetail = detail
}

func (s *State) TabID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tabID
}

func (s *State) SetTabID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabID = id
}

func (s *State) Labels() Labels {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels
}

func (s *State) SetLabels(labels Labels) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = labels
}

// Usage returns the most recent usage fraction, 0 when unknown.
func (s *State) Usage() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick.Derived.Usage
}

// UsageSummary returns the most recent compact summary string.
func (s *State) UsageSummary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick.Derived.Summary
}

// Apply overwrites the per-tick fields with the result of a refresh.
func (s *State) Apply(t Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = t
	s.refreshed = true
}

// seed stores display defaults without marking the state as refreshed.
func (s *State) seed(t Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = t
}

// Last returns the most recent tick and whether one has been applied.
func (s *State) Last() (Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick, s.refreshed
}
