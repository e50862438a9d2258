package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/skobkin/nputop-web/internal/i18n"
	"github.com/skobkin/nputop-web/internal/ingest"
	"github.com/skobkin/nputop-web/internal/npu"
	"github.com/skobkin/nputop-web/internal/tab"
	"github.com/skobkin/nputop-web/internal/units"
)

func f64(v float64) *float64 { return &v }

func TestReplayViewsAppliesLatestSnapshot(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := ingest.File{
		Devices: []tab.Device{
			{BusSlot: "0000:c4:00.1", ModelName: "Phoenix"},
			{Key: "accel1"},
		},
		Snapshots: []ingest.Payload{
			{Timestamp: base, Snapshot: tab.Snapshot{DeviceKey: "0000:c4:00.1", UsageFraction: f64(0.1)}},
			{Timestamp: base.Add(time.Second), Snapshot: tab.Snapshot{DeviceKey: "0000:c4:00.1", UsageFraction: f64(0.43)}},
			{Timestamp: base, Snapshot: tab.Snapshot{DeviceKey: "unknown", UsageFraction: f64(0.9)}},
		},
	}

	views := replayViews(doc, i18n.English(), units.Formatter{TempUnit: units.Celsius})
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].TabID != "npu-0000:c4:00.1" || views[1].TabID != "npu-accel1" {
		t.Fatalf("views not ordered by setup order: %s, %s", views[0].TabID, views[1].TabID)
	}
	if views[0].Usage != 0.43 || views[0].Subtitles.Usage != "43 %" {
		t.Fatalf("expected last snapshot applied, got %+v", views[0])
	}
	if views[1].UsageVisible || views[1].UpdatedAt != nil {
		t.Fatalf("device without snapshots should keep defaults, got %+v", views[1])
	}
}

func TestRenderCard(t *testing.T) {
	t.Parallel()

	doc := ingest.File{
		Devices:   []tab.Device{{BusSlot: "0000:c4:00.1", ModelName: "Phoenix", Driver: "amdxdna"}},
		Snapshots: []ingest.Payload{{Snapshot: tab.Snapshot{DeviceKey: "0000:c4:00.1", UsageFraction: f64(0.5)}}},
	}
	views := replayViews(doc, i18n.English(), units.Formatter{TempUnit: units.Celsius})

	var buf bytes.Buffer
	if err := writeCards(&buf, views, 0); err != nil {
		t.Fatalf("writeCards returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"NPU Phoenix", "50 %", "amdxdna", "0000:c4:00.1", "N/A"} {
		if !strings.Contains(out, want) {
			t.Errorf("card output missing %q:\n%s", want, out)
		}
	}
}

func TestBarClamps(t *testing.T) {
	t.Parallel()

	if got := strings.Count(bar(1.7, true), "█"); got != barWidth {
		t.Fatalf("expected full bar, got %d cells", got)
	}
	if got := strings.Count(bar(0.5, false), "█"); got != 0 {
		t.Fatalf("hidden bar should be empty, got %d cells", got)
	}
}

func TestWriteDiscoveryJSON(t *testing.T) {
	t.Parallel()

	infos := []npu.Info{{ID: "accel0", BusSlot: "0000:c4:00.1", Driver: "amdxdna"}, {ID: "accel1"}}

	var buf bytes.Buffer
	if err := writeDiscovery(&buf, infos, true); err != nil {
		t.Fatalf("writeDiscovery returned error: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0]["tab_id"] != "npu-0000:c4:00.1" || entries[1]["tab_id"] != "npu-accel1" {
		t.Fatalf("unexpected entries %v", entries)
	}
}

func TestWriteDiscoveryEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := writeDiscovery(&buf, nil, false); err != nil {
		t.Fatalf("writeDiscovery returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "No NPUs detected") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestWriteCardsLayout(t *testing.T) {
	t.Parallel()

	doc := ingest.File{Devices: []tab.Device{{Key: "accel0"}, {Key: "accel1"}}}
	views := replayViews(doc, i18n.English(), units.Formatter{TempUnit: units.Celsius})
	cardHeight := strings.Count(renderCard(views[0]), "\n") + 1

	var stacked, wide bytes.Buffer
	if err := writeCards(&stacked, views, 0); err != nil {
		t.Fatalf("writeCards returned error: %v", err)
	}
	if err := writeCards(&wide, views, 1000); err != nil {
		t.Fatalf("writeCards returned error: %v", err)
	}
	if got := strings.Count(stacked.String(), "\n"); got != 2*cardHeight {
		t.Fatalf("expected stacked cards to span %d lines, got %d", 2*cardHeight, got)
	}
	if got := strings.Count(wide.String(), "\n"); got != cardHeight {
		t.Fatalf("expected side-by-side cards to span %d lines, got %d", cardHeight, got)
	}
}

func TestColorProfile(t *testing.T) {
	t.Parallel()

	if _, ok := colorProfile("never"); !ok {
		t.Fatalf("never should be accepted")
	}
	if _, ok := colorProfile("sometimes"); ok {
		t.Fatalf("unknown mode should be rejected")
	}
}
