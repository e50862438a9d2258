package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skobkin/nputop-web/internal/tab"
)

// File is a replay document: a device inventory plus recorded snapshots.
// JSON documents are accepted as well since JSON is a YAML subset.
type File struct {
	Devices   []tab.Device `yaml:"devices"`
	Snapshots []Payload    `yaml:"snapshots"`
}

// LoadFile reads and validates a replay document.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read replay file: %w", err)
	}

	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return File{}, fmt.Errorf("decode replay file: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Devices))
	for i, dev := range doc.Devices {
		key := dev.DeviceKey()
		if key == "" {
			return File{}, fmt.Errorf("device %d: bus_slot or key required", i)
		}
		if _, dup := seen[key]; dup {
			return File{}, fmt.Errorf("device %d: duplicate key %q", i, key)
		}
		seen[key] = struct{}{}
	}
	for i := range doc.Snapshots {
		doc.Snapshots[i] = Normalize(doc.Snapshots[i])
	}
	return doc, nil
}
