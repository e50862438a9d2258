package ingest

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skobkin/nputop-web/internal/tab"
)

// ErrMissingDeviceKey is returned for payloads without a device key.
var ErrMissingDeviceKey = errors.New("ingest: missing device_key")

// Store caches the newest payload per device. It is safe for concurrent use.
type Store struct {
	staleAfter time.Duration
	now        func() time.Time

	mu     sync.RWMutex
	latest map[string]Payload
	// pinned marks seeded payloads that never go stale until replaced.
	pinned map[string]struct{}

	accepted atomic.Uint64
	rejected atomic.Uint64
}

// NewStore returns an empty Store. Snapshots older than staleAfter are
// reported as absent; zero disables expiry.
func NewStore(staleAfter time.Duration) *Store {
	return &Store{
		staleAfter: staleAfter,
		now:        time.Now,
		latest:     make(map[string]Payload),
		pinned:     make(map[string]struct{}),
	}
}

// Put normalizes and stores p unless a newer payload for the device exists.
func (s *Store) Put(p Payload) error {
	return s.put(p, false)
}

// Seed stores recorded payloads, such as a replay file, that stay visible
// regardless of their age until a live Put for the same device replaces them.
func (s *Store) Seed(b Batch) (int, error) {
	return s.putBatch(b, true)
}

func (s *Store) put(p Payload, pin bool) error {
	p = Normalize(p)
	if p.DeviceKey == "" {
		s.rejected.Add(1)
		return ErrMissingDeviceKey
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.latest[p.DeviceKey]; ok && current.Timestamp.After(p.Timestamp) {
		s.rejected.Add(1)
		return fmt.Errorf("ingest: out-of-order snapshot for %s", p.DeviceKey)
	}
	s.latest[p.DeviceKey] = p
	if pin {
		s.pinned[p.DeviceKey] = struct{}{}
	} else {
		delete(s.pinned, p.DeviceKey)
	}
	s.accepted.Add(1)
	return nil
}

// PutBatch stores every payload of b and reports how many were accepted.
func (s *Store) PutBatch(b Batch) (int, error) {
	return s.putBatch(b, false)
}

func (s *Store) putBatch(b Batch, pin bool) (int, error) {
	var (
		accepted int
		errs     []error
	)
	for i, p := range b.Snapshots {
		if err := s.put(p, pin); err != nil {
			errs = append(errs, fmt.Errorf("snapshot %d: %w", i, err))
			continue
		}
		accepted++
	}
	return accepted, errors.Join(errs...)
}

// Latest returns the freshest snapshot for deviceKey.
func (s *Store) Latest(deviceKey string) (tab.Snapshot, bool) {
	s.mu.RLock()
	p, ok := s.latest[deviceKey]
	_, pinned := s.pinned[deviceKey]
	s.mu.RUnlock()
	if !ok {
		return tab.Snapshot{}, false
	}
	if !pinned && s.staleAfter > 0 && s.now().Sub(p.Timestamp) > s.staleAfter {
		return tab.Snapshot{}, false
	}
	return p.Snapshot, true
}

// Forget drops the payload for deviceKey.
func (s *Store) Forget(deviceKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, deviceKey)
	delete(s.pinned, deviceKey)
}

// Accepted returns the number of payloads stored since start.
func (s *Store) Accepted() uint64 {
	return s.accepted.Load()
}

// Rejected returns the number of payloads refused since start.
func (s *Store) Rejected() uint64 {
	return s.rejected.Load()
}
