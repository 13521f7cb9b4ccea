// internal/aoi/aoi_test.go - Unit tests for AOI loading and intersection
package aoi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/valpere/aoi_to_mbtiles/internal"
)

const squareFeatureCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "aoi"},
     "geometry": {"type": "Polygon", "coordinates": [[[39.2,-6.9],[39.3,-6.9],[39.3,-6.8],[39.2,-6.8],[39.2,-6.9]]]}},
    {"type": "Feature", "properties": {"name": "marker"},
     "geometry": {"type": "Point", "coordinates": [39.25,-6.85]}}
  ]
}`

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		ext      string
		polygons int
		wantErr  string
	}{
		{"feature collection", squareFeatureCollection, ".geojson", 1, ""},
		{"single feature", `{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,2]]]]}}`, ".json", 2, ""},
		{"bare geometry", `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`, ".GeoJSON", 1, ""},
		{"wkt polygon", "POLYGON((0 0,1 0,1 1,0 0))\n", ".wkt", 1, ""},
		{"no polygon", `{"type":"Point","coordinates":[1,2]}`, ".geojson", 0, internal.ErrorCodeDomain},
		{"malformed json", `{"type":`, ".geojson", 0, internal.ErrorCodeValidation},
		{"unsupported format", "", ".shp", 0, internal.ErrorCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			area, err := Parse([]byte(tt.data), tt.ext)
			if tt.wantErr != "" {
				if !internal.IsCode(err, tt.wantErr) {
					t.Errorf("Expected %s, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(area.Geometry) != tt.polygons {
				t.Errorf("Expected %d polygons, got %d", tt.polygons, len(area.Geometry))
			}
		})
	}
}

func TestLoadExtent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aoi.geojson")
	if err := os.WriteFile(path, []byte(squareFeatureCollection), 0o644); err != nil {
		t.Fatalf("write aoi: %v", err)
	}

	area, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := orb.Bound{Min: orb.Point{39.2, -6.9}, Max: orb.Point{39.3, -6.8}}
	if area.Extent != want {
		t.Errorf("Expected extent %v, got %v", want, area.Extent)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.geojson")); !internal.IsCode(err, internal.ErrorCodeFileSystem) {
		t.Errorf("Expected FILESYSTEM_ERROR for missing file, got %v", err)
	}
}

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

func TestIntersects(t *testing.T) {
	tile := square(0, 0, 10, 10)

	withHole := orb.Polygon{
		orb.Ring{{-20, -20}, {30, -20}, {30, 30}, {-20, 30}, {-20, -20}},
		orb.Ring{{-5, -5}, {-5, 15}, {15, 15}, {15, -5}, {-5, -5}},
	}

	tests := []struct {
		name string
		area orb.MultiPolygon
		want bool
	}{
		{"area contains tile", orb.MultiPolygon{square(-5, -5, 15, 15)}, true},
		{"tile contains area", orb.MultiPolygon{square(2, 2, 3, 3)}, true},
		{"partial overlap", orb.MultiPolygon{square(5, 5, 15, 15)}, true},
		{"crossing without contained vertices", orb.MultiPolygon{square(-5, 4, 15, 6)}, true},
		{"disjoint", orb.MultiPolygon{square(20, 20, 30, 30)}, false},
		{"bounds overlap but shapes do not", orb.MultiPolygon{{orb.Ring{{9, 12}, {12, 9}, {12, 12}, {9, 12}}}}, false},
		{"shared edge", orb.MultiPolygon{square(10, 0, 20, 10)}, true},
		{"shared corner", orb.MultiPolygon{square(10, 10, 20, 20)}, true},
		{"tile inside hole", orb.MultiPolygon{withHole}, false},
		{"second polygon hits", orb.MultiPolygon{square(20, 20, 30, 30), square(9, 9, 12, 12)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intersects(tt.area, tile); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
