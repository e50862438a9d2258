// Package monitor drives the refresh ticks of the NPU tabs, keeps their
// chart history and fans presentation updates out to subscribers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/skobkin/nputop-web/internal/series"
	"github.com/skobkin/nputop-web/internal/tab"
)

// Source yields the latest telemetry snapshot per device key.
type Source interface {
	Latest(deviceKey string) (tab.Snapshot, bool)
}

// Forgetter is implemented by sources that can drop the data of a device
// that disappeared from enumeration.
type Forgetter interface {
	Forget(deviceKey string)
}

// Options configure a Manager.
type Options struct {
	Interval time.Duration
	// ChartPoints sizes the per-tab series. Zero disables charts.
	ChartPoints int
	// RescanInterval enables periodic re-enumeration through Rescan when positive.
	RescanInterval time.Duration
	Rescan         func() ([]tab.Device, error)
	Localizer      tab.Localizer
	Units          tab.UnitFormatter
	Logger         *slog.Logger
}

// Series is the chart history of one tab.
type Series struct {
	Usage  series.Snapshot `json:"usage"`
	Memory series.Snapshot `json:"memory"`
}

type page struct {
	npu         *tab.NPU
	usage       *series.Buffer
	memory      *series.Buffer
	subscribers map[*subscriber]struct{}
	refreshed   bool
}

// Manager owns the NPU tabs, refreshes them on a single ticker goroutine and
// caches their latest views.
type Manager struct {
	interval       time.Duration
	chartPoints    int
	rescanInterval time.Duration
	rescan         func() ([]tab.Device, error)
	source         Source
	loc            tab.Localizer
	units          tab.UnitFormatter
	logger         *slog.Logger
	now            func() time.Time

	mu        sync.RWMutex
	pages     map[string]*page
	byKey     map[string]string
	nextOrd   uint32
	closed    bool
	closeOnce sync.Once
}

// NewManager builds a Manager reading snapshots from source.
func NewManager(source Source, opts Options) (*Manager, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if source == nil {
		return nil, errors.New("snapshot source is required")
	}
	if opts.Localizer == nil || opts.Units == nil {
		return nil, errors.New("localizer and unit formatter are required")
	}
	if opts.ChartPoints < 0 {
		return nil, fmt.Errorf("chart points must be >= 0")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		interval:       opts.Interval,
		chartPoints:    opts.ChartPoints,
		rescanInterval: opts.RescanInterval,
		rescan:         opts.Rescan,
		source:         source,
		loc:            opts.Localizer,
		units:          opts.Units,
		logger:         logger.With("component", "monitor"),
		now:            time.Now,
		pages:          make(map[string]*page),
		byKey:          make(map[string]string),
	}, nil
}

// Add sets up a tab for dev. Secondary ordinals follow the order devices
// are added in and are never reused.
func (m *Manager) Add(dev tab.Device) (tab.View, error) {
	key := dev.DeviceKey()
	if key == "" {
		return tab.View{}, errors.New("device has neither key nor bus slot")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return tab.View{}, errors.New("monitor is closed")
	}
	if _, ok := m.byKey[key]; ok {
		return tab.View{}, fmt.Errorf("device %q already managed", key)
	}

	npu := tab.NewNPU(dev, m.nextOrd, m.loc, m.units)
	tabID := npu.Identity().TabID
	if _, ok := m.pages[tabID]; ok {
		return tab.View{}, fmt.Errorf("tab %q already exists", tabID)
	}
	m.nextOrd++

	p := &page{
		npu:         npu,
		subscribers: make(map[*subscriber]struct{}),
	}
	if m.chartPoints > 0 {
		p.usage = series.New(m.chartPoints)
		p.memory = series.New(m.chartPoints)
	}
	m.pages[tabID] = p
	m.byKey[key] = tabID

	m.logger.Info("tab added", "tab_id", tabID, "device_key", key, "secondary_ord", npu.Order().Secondary)
	return npu.View(), nil
}

// Remove tears down a tab and closes its subscriptions.
func (m *Manager) Remove(tabID string) bool {
	m.mu.Lock()
	p, ok := m.pages[tabID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.pages, tabID)
	delete(m.byKey, p.npu.DeviceKey())
	subs := make([]*subscriber, 0, len(p.subscribers))
	for sub := range p.subscribers {
		subs = append(subs, sub)
	}
	p.subscribers = make(map[*subscriber]struct{})
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	m.logger.Info("tab removed", "tab_id", tabID)
	return true
}

// Rescan reconciles the tab set with a fresh enumeration and returns the
// tab ids that were added and removed.
func (m *Manager) Rescan(devs []tab.Device) (added, removed []string) {
	present := make(map[string]struct{}, len(devs))
	for _, dev := range devs {
		if key := dev.DeviceKey(); key != "" {
			present[key] = struct{}{}
		}
	}

	m.mu.RLock()
	gone := make(map[string]string)
	for key, tabID := range m.byKey {
		if _, ok := present[key]; !ok {
			gone[key] = tabID
		}
	}
	m.mu.RUnlock()

	forgetter, _ := m.source.(Forgetter)
	for key, tabID := range gone {
		if !m.Remove(tabID) {
			continue
		}
		removed = append(removed, tabID)
		if forgetter != nil {
			forgetter.Forget(key)
		}
	}
	slices.Sort(removed)

	for _, dev := range devs {
		m.mu.RLock()
		_, known := m.byKey[dev.DeviceKey()]
		m.mu.RUnlock()
		if known {
			continue
		}
		view, err := m.Add(dev)
		if err != nil {
			m.logger.Warn("failed to add tab", "device_key", dev.DeviceKey(), "err", err)
			continue
		}
		added = append(added, view.TabID)
	}
	return added, removed
}

// Run refreshes every tab once per interval until ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("monitor started", "tabs", len(m.TabIDs()), "interval", m.interval)

	// Initial refresh to prime the cache.
	m.tick()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var rescanC <-chan time.Time
	if m.rescanInterval > 0 && m.rescan != nil {
		rescanTicker := time.NewTicker(m.rescanInterval)
		defer rescanTicker.Stop()
		rescanC = rescanTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping", "reason", ctx.Err())
			return m.Close()
		case <-ticker.C:
			m.tick()
		case <-rescanC:
			m.runRescan()
		}
	}
}

func (m *Manager) runRescan() {
	devs, err := m.rescan()
	if err != nil {
		m.logger.Warn("device rescan failed", "err", err)
		return
	}
	added, removed := m.Rescan(devs)
	if len(added) > 0 || len(removed) > 0 {
		m.logger.Info("device set changed", "added", added, "removed", removed)
	}
}

func (m *Manager) tick() {
	at := m.now().UTC()

	m.mu.RLock()
	pages := make([]*page, 0, len(m.pages))
	for _, p := range m.pages {
		pages = append(pages, p)
	}
	m.mu.RUnlock()

	for _, p := range pages {
		key := p.npu.DeviceKey()
		snapshot, ok := m.source.Latest(key)
		if !ok {
			snapshot = tab.Snapshot{DeviceKey: key}
		}

		derived := p.npu.Refresh(snapshot, at)
		if p.usage != nil {
			p.usage.Push(at, derived.Usage, derived.UsageVisible)
			fraction, visible := derived.MemoryFractionValue()
			p.memory.Push(at, fraction, visible)
		}
		m.publish(p, p.npu.View())
	}
}

func (m *Manager) publish(p *page, view tab.View) {
	m.mu.Lock()
	p.refreshed = true
	targetSubs := make([]*subscriber, 0, len(p.subscribers))
	for sub := range p.subscribers {
		targetSubs = append(targetSubs, sub)
	}
	m.mu.Unlock()

	for _, sub := range targetSubs {
		sub.send(view)
	}
}

// Latest returns the current view of a tab.
func (m *Manager) Latest(tabID string) (tab.View, bool) {
	m.mu.RLock()
	p, ok := m.pages[tabID]
	m.mu.RUnlock()
	if !ok {
		return tab.View{}, false
	}
	return p.npu.View(), true
}

// Views returns the views of all tabs sorted by ordering.
func (m *Manager) Views() []tab.View {
	m.mu.RLock()
	pages := make([]*page, 0, len(m.pages))
	for _, p := range m.pages {
		pages = append(pages, p)
	}
	m.mu.RUnlock()

	views := make([]tab.View, 0, len(pages))
	for _, p := range pages {
		views = append(views, p.npu.View())
	}
	tab.Sort(views)
	return views
}

// TabIDs returns tab ids sorted by ordering.
func (m *Manager) TabIDs() []string {
	views := m.Views()
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.TabID)
	}
	return ids
}

// ChartsEnabled reports whether series are recorded.
func (m *Manager) ChartsEnabled() bool {
	return m.chartPoints > 0
}

// Series returns the chart history of a tab. It reports false for unknown
// tabs and when charts are disabled.
func (m *Manager) Series(tabID string) (Series, bool) {
	m.mu.RLock()
	p, ok := m.pages[tabID]
	m.mu.RUnlock()
	if !ok || p.usage == nil {
		return Series{}, false
	}
	return Series{Usage: p.usage.Snapshot(), Memory: p.memory.Snapshot()}, true
}

// Subscribe registers a listener for view updates of a tab. The current view
// is delivered immediately.
func (m *Manager) Subscribe(tabID string) (<-chan tab.View, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pages[tabID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown tab %q", tabID)
	}

	sub := newSubscriber()
	p.subscribers[sub] = struct{}{}
	sub.send(p.npu.View())

	unsubscribe := func() {
		m.removeSubscriber(p, sub)
	}
	return sub.channel(), unsubscribe, nil
}

// Ready reports whether every tab has been refreshed at least once.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.pages {
		if !p.refreshed {
			return false
		}
	}
	return true
}

func (m *Manager) removeSubscriber(p *page, sub *subscriber) {
	m.mu.Lock()
	delete(p.subscribers, sub)
	m.mu.Unlock()
	sub.close()
}

// Close ends every subscription. Safe for repeated use.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		var subs []*subscriber
		for _, p := range m.pages {
			for sub := range p.subscribers {
				subs = append(subs, sub)
			}
			p.subscribers = make(map[*subscriber]struct{})
		}
		m.mu.Unlock()

		for _, sub := range subs {
			sub.close()
		}
	})
	return nil
}
