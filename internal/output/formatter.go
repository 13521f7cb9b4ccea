// internal/output/formatter.go - Placeholder and metadata file formatting
package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
)

// PlaceholderContent renders the manifest row stored in a placeholder file
func PlaceholderContent(entry manifest.Entry) []byte {
	return []byte(entry.Row() + "\n")
}

// ParsePlaceholder recovers the manifest entry from a placeholder file
func ParsePlaceholder(data []byte) (manifest.Entry, error) {
	return manifest.ParseRow(string(data))
}

// FormatMetadata renders tileset metadata as YAML with keys in sorted order
func FormatMetadata(metadata map[string]string) ([]byte, error) {
	data, err := yaml.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}

// ParseMetadata reads a metadata.yaml file
func ParseMetadata(data []byte) (map[string]string, error) {
	metadata := make(map[string]string)
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return metadata, nil
}
