// internal/aoi/filter.go - Tile manifest generation from an area of interest
package aoi

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rs/zerolog"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
	"github.com/valpere/aoi_to_mbtiles/internal/urltemplate"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// Filter turns an AOI into the ordered list of tiles to fetch
type Filter struct {
	template *urltemplate.Template
	log      zerolog.Logger
}

// NewFilter creates a filter resolving URLs with the given template
func NewFilter(template *urltemplate.Template, log zerolog.Logger) *Filter {
	return &Filter{template: template, log: log}
}

// Manifest returns every tile in [minZoom, maxZoom] whose outline intersects the AOI,
// ordered by zoom, then row, then column.
func (f *Filter) Manifest(ctx context.Context, area *AOI, minZoom, maxZoom int) ([]manifest.Entry, error) {
	if minZoom < 0 || maxZoom > tilemath.MaxZoom || minZoom > maxZoom {
		return nil, internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("invalid zoom range %d-%d", minZoom, maxZoom), nil)
	}

	var entries []manifest.Entry
	for zoom := minZoom; zoom <= maxZoom; zoom++ {
		ul, lr, err := TileWindow(area.Extent, zoom)
		if err != nil {
			return nil, err
		}

		before := len(entries)
		for y := ul.Y; y <= lr.Y; y++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for x := ul.X; x <= lr.X; x++ {
				addr := tilemath.TileAddress{Z: zoom, X: x, Y: y}
				outline := addr.Polygon()
				if !Intersects(area.Geometry, outline) {
					continue
				}

				url, err := f.template.Resolve(addr)
				if err != nil {
					return nil, err
				}
				entries = append(entries, manifest.Entry{
					Tile: addr,
					WKT:  wkt.MarshalString(outline),
					URL:  url,
				})
			}
		}

		f.log.Debug().
			Int("zoom", zoom).
			Int("window_tiles", (lr.X-ul.X+1)*(lr.Y-ul.Y+1)).
			Int("tiles", len(entries)-before).
			Msg("zoom level filtered")
	}

	return entries, nil
}

// TileWindow returns the upper-left and lower-right tiles enclosing an extent
func TileWindow(extent orb.Bound, zoom int) (ul, lr tilemath.TileAddress, err error) {
	ulPixel, err := tilemath.LatLonZoomToPixel(extent.Max[1], extent.Min[0], zoom)
	if err != nil {
		return ul, lr, internal.NewError(internal.ErrorCodeDomain, "AOI extent cannot be tiled", err)
	}
	lrPixel, err := tilemath.LatLonZoomToPixel(extent.Min[1], extent.Max[0], zoom)
	if err != nil {
		return ul, lr, internal.NewError(internal.ErrorCodeDomain, "AOI extent cannot be tiled", err)
	}

	last := (1 << zoom) - 1
	ul.Z, lr.Z = zoom, zoom
	ul.X, ul.Y = tilemath.PixelToTileAddress(ulPixel.X, ulPixel.Y)
	lr.X, lr.Y = tilemath.PixelToTileAddress(lrPixel.X, lrPixel.Y)
	lr.X, lr.Y = min(lr.X, last), min(lr.Y, last)

	return ul, lr, nil
}
