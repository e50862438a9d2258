package series

import (
	"testing"
	"time"
)

func TestBufferKeepsNewestPoints(t *testing.T) {
	t.Parallel()

	buf := New(3)
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		buf.Push(base.Add(time.Duration(i)*time.Second), float64(i)/10, i%2 == 0)
	}

	if buf.Len() != 3 || buf.Cap() != 3 {
		t.Fatalf("unexpected len/cap %d/%d", buf.Len(), buf.Cap())
	}

	snap := buf.Snapshot()
	want := []float64{0.2, 0.3, 0.4}
	for i, value := range want {
		if snap.Points[i].Value != value {
			t.Fatalf("point %d: expected %v, got %v", i, value, snap.Points[i].Value)
		}
	}
	if !snap.Points[0].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("unexpected oldest timestamp %v", snap.Points[0].Timestamp)
	}
	if !snap.Visible {
		t.Fatalf("expected visibility of last push")
	}
}

func TestBufferPartial(t *testing.T) {
	t.Parallel()

	buf := New(0)
	if buf.Cap() != 1 {
		t.Fatalf("expected minimum capacity 1, got %d", buf.Cap())
	}
	if snap := buf.Snapshot(); len(snap.Points) != 0 || snap.Visible {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}

	buf.Push(time.Now(), 0.5, false)
	snap := buf.Snapshot()
	if len(snap.Points) != 1 || snap.Points[0].Value != 0.5 || snap.Visible {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
