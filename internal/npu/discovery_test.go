package npu

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaypipes/pcidb"
)

func TestDiscover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pciDevice := createSymlinkedAccel(t, root, "accel10", "0000:c4:00.1")
	writeFile(t, filepath.Join(pciDevice, "uevent"), "DRIVER=amdxdna\nPCI_SLOT_NAME=0000:c4:00.1\nPCI_ID=1022:1502\nPCI_SUBSYS_ID=1022:1502\n")

	plainDevice := filepath.Join(root, "class", "accel", "accel2", "device")
	writeFile(t, filepath.Join(plainDevice, "vendor"), "0x8086\n")
	writeFile(t, filepath.Join(plainDevice, "device"), "0x7d1d\n")
	writeFile(t, filepath.Join(root, "bus", "pci", "drivers", "intel_vpu", ".keep"), "")
	if err := os.Symlink(filepath.Join("..", "..", "..", "..", "bus", "pci", "drivers", "intel_vpu"), filepath.Join(plainDevice, "driver")); err != nil {
		t.Fatalf("symlink driver: %v", err)
	}

	// Not accelerators.
	writeFile(t, filepath.Join(root, "class", "accel", "accel_ctl", "device", "uevent"), "DRIVER=x\n")
	writeFile(t, filepath.Join(root, "class", "accel", "version"), "1\n")

	infos, err := Discover(root, logger)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 accelerators, got %d: %+v", len(infos), infos)
	}

	first := infos[0]
	if first.ID != "accel2" {
		t.Fatalf("expected accel2 first, got %q", first.ID)
	}
	if first.BusSlot != "" || first.Key() != "accel2" {
		t.Errorf("expected accel id as key for device without slot, got %q", first.Key())
	}
	if first.PCIID != "8086:7d1d" {
		t.Errorf("expected PCI ID fallback to vendor/device, got %q", first.PCIID)
	}
	if first.Driver != "intel_vpu" {
		t.Errorf("expected driver from symlink, got %q", first.Driver)
	}
	if first.Node != "/dev/accel/accel2" {
		t.Errorf("unexpected node %q", first.Node)
	}
	if first.Vendor == "" {
		t.Errorf("expected vendor name for 8086")
	}

	second := infos[1]
	if second.ID != "accel10" || second.BusSlot != "0000:c4:00.1" {
		t.Fatalf("unexpected second accelerator %+v", second)
	}
	if second.PCIID != "1022:1502" || second.Driver != "amdxdna" {
		t.Errorf("unexpected uevent fields %+v", second)
	}

	dev := second.Device()
	if dev.Key != "0000:c4:00.1" || dev.BusSlot != "0000:c4:00.1" || dev.Driver != "amdxdna" {
		t.Errorf("unexpected tab device %+v", dev)
	}
	if devs := Devices(infos); len(devs) != 2 || devs[0].Key != "accel2" {
		t.Errorf("unexpected devices %+v", devs)
	}
}

func TestDiscoverMissingAccelClass(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	infos, err := Discover(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected 0 accelerators, got %d", len(infos))
	}
}

func TestDiscoverUsesPCIDatabase(t *testing.T) {
	t.Parallel()

	db, err := pcidb.New()
	if err != nil {
		t.Skipf("pcidb unavailable: %v", err)
	}

	const (
		vendorID = "1022"
		deviceID = "1502"
	)
	product, ok := db.Products[vendorID+deviceID]
	if !ok || product == nil || product.Name == "" {
		t.Skipf("pcidb missing product for %s:%s", vendorID, deviceID)
	}

	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deviceDir := createSymlinkedAccel(t, root, "accel0", "0000:c4:00.1")
	writeFile(t, filepath.Join(deviceDir, "uevent"), "PCI_SLOT_NAME=0000:c4:00.1\nPCI_ID=1022:1502\n")

	infos, err := Discover(root, logger)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 accelerator, got %d", len(infos))
	}
	if infos[0].Model != product.Name {
		t.Fatalf("expected model %q, got %q", product.Name, infos[0].Model)
	}
}

func TestNormalizePCIID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":         "",
		"0x1022":   "1022",
		"0XAB":     "00ab",
		" 1502 ":   "1502",
		"0x7D1D\n": "7d1d",
	}
	for in, want := range cases {
		if got := normalizePCIID(in); got != want {
			t.Errorf("normalizePCIID(%q) = %q, want %q", in, got, want)
		}
	}
}

// createSymlinkedAccel lays out class/accel/<id> as a symlink into the
// devices tree the way the kernel does and returns the device directory.
func createSymlinkedAccel(t *testing.T, root, accelID, slot string) string {
	t.Helper()

	classPath := filepath.Join(root, "class", "accel")
	if err := os.MkdirAll(classPath, 0o750); err != nil {
		t.Fatalf("mkdir class: %v", err)
	}

	pciDir := filepath.Join(root, "devices", "pci0000:00", slot)
	target := filepath.Join(pciDir, "accel", accelID)
	if err := os.MkdirAll(target, 0o750); err != nil {
		t.Fatalf("mkdir accel: %v", err)
	}
	if err := os.Symlink(filepath.Join("..", ".."), filepath.Join(target, "device")); err != nil {
		t.Fatalf("symlink device: %v", err)
	}

	relTarget, err := filepath.Rel(classPath, target)
	if err != nil {
		t.Fatalf("filepath.Rel: %v", err)
	}
	if err := os.Symlink(relTarget, filepath.Join(classPath, accelID)); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	return pciDir
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
