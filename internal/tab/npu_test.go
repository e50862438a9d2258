package tab

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewIdentity(t *testing.T) {
	t.Parallel()

	id := NewIdentity("0000:c4:00.1", "Phoenix NPU")
	if id.TabID != "npu-0000:c4:00.1" {
		t.Fatalf("unexpected tab id %q", id.TabID)
	}
	if id.TabDetail != "Phoenix NPU" {
		t.Fatalf("unexpected tab detail %q", id.TabDetail)
	}

	anonymous := NewIdentity("0000:00:0b.0", "")
	if anonymous.TabDetail != "" {
		t.Fatalf("expected empty detail for missing model, got %q", anonymous.TabDetail)
	}
}

func TestTabIDInjective(t *testing.T) {
	t.Parallel()

	seen := make(map[string]string)
	for bus := 0; bus < 16; bus++ {
		for fn := 0; fn < 8; fn++ {
			slot := fmt.Sprintf("0000:%02x:00.%d", bus, fn)
			id := NewIdentity(slot, "same model").TabID
			if prev, ok := seen[id]; ok {
				t.Fatalf("tab id %q shared by %q and %q", id, prev, slot)
			}
			seen[id] = slot
		}
	}
}

func TestSortOrdering(t *testing.T) {
	t.Parallel()

	views := []View{
		{TabID: "npu-b", Ordering: Ordering{Primary: NPUPrimaryOrd, Secondary: 2}},
		{TabID: "gpu-a", Ordering: Ordering{Primary: NPUPrimaryOrd - 1, Secondary: 7}},
		{TabID: "npu-a", Ordering: Ordering{Primary: NPUPrimaryOrd, Secondary: 0}},
		{TabID: "cpu", Ordering: Ordering{Primary: 2}},
	}

	Sort(views)

	want := []string{"cpu", "gpu-a", "npu-a", "npu-b"}
	for i, id := range want {
		if views[i].TabID != id {
			t.Fatalf("position %d: expected %q, got %q", i, id, views[i].TabID)
		}
	}
}

func TestNewNPUSetup(t *testing.T) {
	t.Parallel()

	page := NewNPU(Device{BusSlot: "0000:c4:00.1", ModelName: "Phoenix NPU", Driver: "amdxdna"}, 3, testLocalizer{}, testUnits{})

	view := page.View()
	if view.TabID != "npu-0000:c4:00.1" || view.TabDetail != "Phoenix NPU" {
		t.Fatalf("unexpected identity %+v", view)
	}
	if view.TabName != "NPU" {
		t.Fatalf("unexpected tab name %q", view.TabName)
	}
	if view.Ordering != (Ordering{Primary: NPUPrimaryOrd, Secondary: 3}) {
		t.Fatalf("unexpected ordering %+v", view.Ordering)
	}
	if view.DeviceKey != "0000:c4:00.1" {
		t.Fatalf("device key should default to bus slot, got %q", view.DeviceKey)
	}
	if view.Subtitles.Manufacturer != "N/A" {
		t.Fatalf("missing vendor should render N/A, got %q", view.Subtitles.Manufacturer)
	}
	if view.Subtitles.Driver != "amdxdna" || view.Subtitles.BusSlot != "0000:c4:00.1" {
		t.Fatalf("unexpected static labels %+v", view.Subtitles)
	}
	if view.UpdatedAt != nil {
		t.Fatalf("expected no update timestamp before the first refresh")
	}
	if view.UsageSummary != "N/A" || view.Usage != 0 {
		t.Fatalf("unexpected defaults %+v", view)
	}
	if _, ok := page.State().Last(); ok {
		t.Fatalf("state should not report a tick before refresh")
	}
}

func TestNPUWithoutBusSlotUsesKey(t *testing.T) {
	t.Parallel()

	page := NewNPU(Device{Key: "accel0"}, 0, testLocalizer{}, testUnits{})
	view := page.View()
	if view.TabID != "npu-accel0" {
		t.Fatalf("unexpected tab id %q", view.TabID)
	}
	if view.Subtitles.BusSlot != "N/A" {
		t.Fatalf("expected N/A bus slot, got %q", view.Subtitles.BusSlot)
	}
}

func TestNPURefreshOverwritesState(t *testing.T) {
	t.Parallel()

	page := NewNPU(Device{BusSlot: "0000:01:00.0"}, 0, testLocalizer{}, testUnits{})
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	page.Refresh(Snapshot{UsageFraction: f64(0.5), TempC: f64(40)}, at)
	if got := page.State().UsageSummary(); got != "50 % · 40 °C" {
		t.Fatalf("unexpected summary %q", got)
	}

	page.Refresh(Snapshot{}, at.Add(time.Second))
	state := page.State()
	if state.Usage() != 0 || state.UsageSummary() != "N/A" {
		t.Fatalf("previous tick leaked into state: %v %q", state.Usage(), state.UsageSummary())
	}

	view := page.View()
	if view.UpdatedAt == nil || !view.UpdatedAt.Equal(at.Add(time.Second)) {
		t.Fatalf("unexpected update time %v", view.UpdatedAt)
	}
	if view.MemoryFraction != nil {
		t.Fatalf("expected nil memory fraction")
	}
}

func TestNPUIdentityStableAcrossRefresh(t *testing.T) {
	t.Parallel()

	page := NewNPU(Device{BusSlot: "0000:01:00.0", ModelName: "First"}, 1, testLocalizer{}, testUnits{})
	before := page.Identity()
	page.Refresh(Snapshot{UsageFraction: f64(1)}, time.Now())
	if page.Identity() != before || page.View().TabDetail != "First" {
		t.Fatalf("identity changed after refresh")
	}
}

func TestStateApplyIsAtomic(t *testing.T) {
	t.Parallel()

	page := NewNPU(Device{BusSlot: "0000:01:00.0"}, 0, testLocalizer{}, testUnits{})
	full := Snapshot{UsageFraction: f64(1)}
	empty := Snapshot{}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				page.Refresh(full, time.Now())
			} else {
				page.Refresh(empty, time.Now())
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		view := page.View()
		switch view.UsageSummary {
		case "100 %":
			if view.Usage != 1 {
				t.Fatalf("mixed tick observed: %+v", view)
			}
		case "N/A":
			if view.Usage != 0 {
				t.Fatalf("mixed tick observed: %+v", view)
			}
		default:
			t.Fatalf("unexpected summary %q", view.UsageSummary)
		}
	}
	close(stop)
	wg.Wait()
}
