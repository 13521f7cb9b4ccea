// internal/aoi/perimeters.go - Tile outline side file
package aoi

import (
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
)

// Perimeters builds a feature collection with one outline per manifest entry
func Perimeters(entries []manifest.Entry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range entries {
		f := geojson.NewFeature(e.Tile.Polygon())
		f.Properties["TileX"] = e.Tile.X
		f.Properties["TileY"] = e.Tile.Y
		f.Properties["TileZ"] = e.Tile.Z
		f.Properties["URL"] = e.URL
		fc.Append(f)
	}
	return fc
}

// WritePerimeters writes the outlines as GeoJSON, replacing any existing file
func WritePerimeters(path string, entries []manifest.Entry) error {
	data, err := Perimeters(entries).MarshalJSON()
	if err != nil {
		return internal.NewError(internal.ErrorCodeValidation, "failed to encode tile perimeters", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot write tile perimeters %s", path), err)
	}
	return nil
}
