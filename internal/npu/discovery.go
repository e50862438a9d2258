// Package npu enumerates compute accelerators exposed through the Linux
// accel subsystem.
package npu

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/skobkin/nputop-web/internal/tab"
)

const (
	accelClassPath = "class/accel"
	accelDevDir    = "/dev/accel"
)

// Info describes a single accelerator discovered via sysfs.
type Info struct {
	ID      string `json:"id"`
	BusSlot string `json:"bus_slot"`
	PCIID   string `json:"pci_id"`
	Model   string `json:"model"`
	Vendor  string `json:"vendor"`
	Driver  string `json:"driver"`
	Node    string `json:"node"`
}

// Key is the device key snapshots for this accelerator are filed under.
// Devices without a PCI slot fall back to their accel id.
func (i Info) Key() string {
	if i.BusSlot != "" {
		return i.BusSlot
	}
	return i.ID
}

// Device converts i into the setup input of a tab.
func (i Info) Device() tab.Device {
	return tab.Device{
		Key:       i.Key(),
		BusSlot:   i.BusSlot,
		ModelName: i.Model,
		Vendor:    i.Vendor,
		Driver:    i.Driver,
	}
}

// Devices converts a discovery result into tab setup inputs, keeping order.
func Devices(infos []Info) []tab.Device {
	devs := make([]tab.Device, 0, len(infos))
	for _, info := range infos {
		devs = append(devs, info.Device())
	}
	return devs
}

// Discover enumerates accel devices exposed via sysfs under the provided root.
// The result is ordered by accel index.
func Discover(root string, logger *slog.Logger) ([]Info, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sysRoot, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("open sysfs root: %w", err)
	}
	defer sysRoot.Close()

	entries, err := fs.ReadDir(sysRoot.FS(), accelClassPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("accel class path missing", "path", filepath.Join(root, accelClassPath))
			return nil, nil
		}
		return nil, fmt.Errorf("read accel class dir: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		name := entry.Name()
		if !isAccelDevice(name) {
			continue
		}
		if !entry.IsDir() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		info, err := loadAccelInfo(sysRoot, name)
		if err != nil {
			logger.Warn("failed to load accel info", "accel", name, "err", err)
			continue
		}
		infos = append(infos, info)
	}

	sortByIndex(infos)
	return infos, nil
}

func loadAccelInfo(sysRoot *os.Root, accelID string) (Info, error) {
	deviceRoot, err := sysRoot.OpenRoot(path.Join(accelClassPath, accelID, "device"))
	if err != nil {
		return Info{}, fmt.Errorf("open device root: %w", err)
	}
	defer deviceRoot.Close()

	var (
		pciSlot   string
		pciID     string
		driver    string
		subVendor string
		subDevice string
	)

	if data, err := deviceRoot.ReadFile("uevent"); err == nil {
		text := string(data)
		pciSlot = parseKeyValue(text, "PCI_SLOT_NAME")
		pciID = parseKeyValue(text, "PCI_ID")
		driver = parseKeyValue(text, "DRIVER")
		if subsys := parseKeyValue(text, "PCI_SUBSYS_ID"); subsys != "" {
			subVendor, subDevice, _ = strings.Cut(subsys, ":")
		}
	}

	if pciID == "" {
		if vendor, err := readTrim(deviceRoot, "vendor"); err == nil {
			if device, err := readTrim(deviceRoot, "device"); err == nil {
				pciID = formatHexPair(vendor, device)
			}
		}
	}
	if subVendor == "" {
		subVendor, _ = readTrim(deviceRoot, "subsystem_vendor")
	}
	if subDevice == "" {
		subDevice, _ = readTrim(deviceRoot, "subsystem_device")
	}
	if driver == "" {
		if link, err := deviceRoot.Readlink("driver"); err == nil {
			driver = path.Base(filepath.ToSlash(link))
		}
	}

	vendorID, deviceID := splitPCIIdentifier(pciID)

	return Info{
		ID:      accelID,
		BusSlot: pciSlot,
		PCIID:   strings.ToLower(pciID),
		Model:   lookupModelName(vendorID, deviceID, subVendor, subDevice),
		Vendor:  lookupVendorName(vendorID),
		Driver:  driver,
		Node:    path.Join(accelDevDir, accelID),
	}, nil
}

func isAccelDevice(name string) bool {
	return strings.HasPrefix(name, "accel") && allDigits(name[len("accel"):])
}

func sortByIndex(infos []Info) {
	index := func(id string) int {
		n, _ := strconv.Atoi(strings.TrimPrefix(id, "accel"))
		return n
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return cmp.Compare(index(a.ID), index(b.ID))
	})
}

func parseKeyValue(data, key string) string {
	prefix := key + "="
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}

func readTrim(root *os.Root, name string) (string, error) {
	data, err := root.ReadFile(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func formatHexPair(vendor, device string) string {
	return strings.TrimPrefix(vendor, "0x") + ":" + strings.TrimPrefix(device, "0x")
}

func allDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
