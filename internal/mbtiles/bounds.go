// internal/mbtiles/bounds.go - Running extent of assembled tiles
package mbtiles

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// Extent folds the geographic bounds and zoom range of the tiles added to it.
// It starts inverted so the first tile always narrows it.
type Extent struct {
	Left    float64
	Bottom  float64
	Right   float64
	Top     float64
	MinZoom int
	MaxZoom int
	Tiles   int
	zooms   map[int]bool
}

// NewExtent returns an empty extent
func NewExtent() *Extent {
	return &Extent{
		Left:    180,
		Bottom:  tilemath.MaxLatitude,
		Right:   -180,
		Top:     -tilemath.MaxLatitude,
		MinZoom: tilemath.MaxZoom + 1,
		MaxZoom: -1,
		zooms:   make(map[int]bool),
	}
}

// Add widens the extent by one tile
func (e *Extent) Add(addr tilemath.TileAddress) {
	ul := addr.UpperLeft()
	lr := addr.LowerRight()

	e.Left = min(e.Left, ul.Lon)
	e.Right = max(e.Right, lr.Lon)
	e.Top = max(e.Top, ul.Lat)
	e.Bottom = min(e.Bottom, lr.Lat)

	e.MinZoom = min(e.MinZoom, addr.Z)
	e.MaxZoom = max(e.MaxZoom, addr.Z)
	e.zooms[addr.Z] = true
	e.Tiles++
}

// Empty reports whether no tile has been added
func (e *Extent) Empty() bool {
	return e.Tiles == 0
}

// ZoomLevels returns the number of distinct zoom levels seen
func (e *Extent) ZoomLevels() int {
	return len(e.zooms)
}

// String renders the MBTiles bounds value "left,bottom,right,top"
func (e *Extent) String() string {
	parts := []string{
		cast.ToString(e.Left),
		cast.ToString(e.Bottom),
		cast.ToString(e.Right),
		cast.ToString(e.Top),
	}
	return strings.Join(parts, ",")
}
