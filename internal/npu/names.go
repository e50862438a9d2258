package npu

import (
	"strings"
	"sync"

	"github.com/jaypipes/pcidb"
)

var (
	pciOnce sync.Once
	pciDB   *pcidb.PCIDB
	pciErr  error
)

// Vendors commonly shipping NPUs, used when the PCI database is unavailable.
var knownVendors = map[string]string{
	"1002": "Advanced Micro Devices, Inc. [AMD/ATI]",
	"1022": "Advanced Micro Devices, Inc. [AMD]",
	"8086": "Intel Corporation",
	"10de": "NVIDIA Corporation",
	"1e60": "Hailo Technologies Ltd.",
}

func lookupModelName(vendorID, deviceID, subVendorID, subDeviceID string) string {
	vendorID = normalizePCIID(vendorID)
	deviceID = normalizePCIID(deviceID)
	if vendorID == "" || deviceID == "" {
		return ""
	}

	db := loadPCIDatabase()
	if db == nil {
		return ""
	}

	product, ok := db.Products[vendorID+deviceID]
	if !ok || product == nil {
		return ""
	}

	subVendorID = normalizePCIID(subVendorID)
	subDeviceID = normalizePCIID(subDeviceID)
	if subVendorID != "" && subDeviceID != "" {
		for _, subsystem := range product.Subsystems {
			if subsystem == nil {
				continue
			}
			if strings.EqualFold(subsystem.VendorID, subVendorID) && strings.EqualFold(subsystem.ID, subDeviceID) && subsystem.Name != "" {
				return subsystem.Name
			}
		}
	}

	return product.Name
}

func lookupVendorName(vendorID string) string {
	vendorID = normalizePCIID(vendorID)
	if vendorID == "" {
		return ""
	}
	if db := loadPCIDatabase(); db != nil {
		if vendor, ok := db.Vendors[vendorID]; ok && vendor != nil && vendor.Name != "" {
			return vendor.Name
		}
	}
	return knownVendors[vendorID]
}

func loadPCIDatabase() *pcidb.PCIDB {
	pciOnce.Do(func() {
		pciDB, pciErr = pcidb.New()
	})
	if pciErr != nil || pciDB == nil {
		return nil
	}
	return pciDB
}

func normalizePCIID(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "0x")
	value = strings.TrimPrefix(value, "0X")
	if value == "" {
		return ""
	}
	value = strings.ToLower(value)
	if len(value) < 4 {
		value = strings.Repeat("0", 4-len(value)) + value
	}
	return value
}

func splitPCIIdentifier(pciID string) (vendorID string, deviceID string) {
	vendorID, deviceID, ok := strings.Cut(pciID, ":")
	if !ok {
		return "", ""
	}
	return vendorID, deviceID
}
