// Package series keeps a bounded history of per-tick values for charting.
package series

import (
	"sync"
	"time"
)

// Point is one value pushed on a refresh tick.
type Point struct {
	Timestamp time.Time `json:"ts"`
	Value     float64   `json:"value"`
}

// Snapshot is a copy of a buffer suitable for transport.
type Snapshot struct {
	Visible bool    `json:"visible"`
	Points  []Point `json:"points"`
}

// Buffer is a fixed-capacity ring that overwrites its oldest point when full.
type Buffer struct {
	mu      sync.RWMutex
	points  []Point
	start   int
	size    int
	visible bool
}

// New returns a Buffer holding at most capacity points.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{points: make([]Point, capacity)}
}

// Push appends a point and records whether the series is currently shown.
func (b *Buffer) Push(ts time.Time, value float64, visible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.points)
	if b.size < capacity {
		b.points[(b.start+b.size)%capacity] = Point{Timestamp: ts, Value: value}
		b.size++
	} else {
		b.points[b.start] = Point{Timestamp: ts, Value: value}
		b.start = (b.start + 1) % capacity
	}
	b.visible = visible
}

// Len returns the number of stored points.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the maximum number of stored points.
func (b *Buffer) Cap() int {
	return len(b.points)
}

// Snapshot copies the stored points, oldest first.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Point, b.size)
	capacity := len(b.points)
	for i := 0; i < b.size; i++ {
		out[i] = b.points[(b.start+i)%capacity]
	}
	return Snapshot{Visible: b.visible, Points: out}
}
