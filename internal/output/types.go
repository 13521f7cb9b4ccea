// internal/output/types.go - Output handling types
package output

import (
	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// Placeholder is the kind of marker file left for a tile without imagery
type Placeholder string

const (
	// PlaceholderTimeout marks a tile whose fetch failed and should be retried
	PlaceholderTimeout Placeholder = "timeout"
	// PlaceholderNoTile marks a tile the provider answered with an empty or tiny body
	PlaceholderNoTile Placeholder = "notile"
)

// Extension returns the file extension of the placeholder, without the dot
func (p Placeholder) Extension() string {
	return string(p)
}

// MetadataFile is the name of the tileset metadata file in an extracted tree
const MetadataFile = "metadata.yaml"

// TileWriter stores fetch results for individual tiles
type TileWriter interface {
	WriteImage(addr tilemath.TileAddress, ext string, data []byte) (int, error)
	WritePlaceholder(entry manifest.Entry, kind Placeholder) error
}

// TreeStats counts the files in a tile tree by kind
type TreeStats struct {
	Images   int
	Timeouts int
	NoTiles  int
}
