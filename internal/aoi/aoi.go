// internal/aoi/aoi.go - Area of interest loading
package aoi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/valpere/aoi_to_mbtiles/internal"
)

// AOI is the read-only area of interest consumed by the filter
type AOI struct {
	Geometry orb.MultiPolygon
	Extent   orb.Bound
}

// New collects every polygon found in g into an AOI
func New(g orb.Geometry) (*AOI, error) {
	var mp orb.MultiPolygon
	collectPolygons(g, &mp)
	if len(mp) == 0 {
		return nil, internal.NewError(internal.ErrorCodeDomain, "area of interest contains no polygon", nil)
	}

	return &AOI{Geometry: mp, Extent: mp.Bound()}, nil
}

// Load reads an AOI from a GeoJSON (.geojson, .json) or WKT (.wkt) file
func Load(path string) (*AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot read AOI file %s", path), err)
	}

	return Parse(data, filepath.Ext(path))
}

// Parse decodes AOI data according to the file extension
func Parse(data []byte, ext string) (*AOI, error) {
	var (
		g   orb.Geometry
		err error
	)

	switch strings.ToLower(ext) {
	case ".geojson", ".json":
		g, err = decodeGeoJSON(data)
	case ".wkt":
		g, err = wkt.Unmarshal(strings.TrimSpace(string(data)))
	default:
		return nil, internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("unsupported AOI format %q (use .geojson, .json or .wkt)", ext), nil)
	}
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeValidation, "failed to decode AOI geometry", err)
	}

	return New(g)
}

func decodeGeoJSON(data []byte) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		collection := make(orb.Collection, 0, len(fc.Features))
		for _, f := range fc.Features {
			if f.Geometry != nil {
				collection = append(collection, f.Geometry)
			}
		}
		return collection, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		return f.Geometry, nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		return g.Geometry(), nil
	}
}

func collectPolygons(g orb.Geometry, out *orb.MultiPolygon) {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) > 0 && len(v[0]) > 2 {
			*out = append(*out, v)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			collectPolygons(p, out)
		}
	case orb.Collection:
		for _, c := range v {
			collectPolygons(c, out)
		}
	}
}
