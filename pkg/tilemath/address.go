// pkg/tilemath/address.go - Tile address type and geometry helpers
package tilemath

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileAddress identifies one 256x256 tile of the slippy-map pyramid
type TileAddress struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the z/x/y form of the address
func (t TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Validate checks that the address lies inside the pyramid
func (t TileAddress) Validate() error {
	if t.Z < 0 || t.Z > MaxZoom {
		return fmt.Errorf("invalid zoom level: %d (must be 0-%d)", t.Z, MaxZoom)
	}
	maxCoord := 1 << t.Z
	if t.X < 0 || t.X >= maxCoord {
		return fmt.Errorf("invalid x coordinate: %d (must be 0-%d for zoom %d)", t.X, maxCoord-1, t.Z)
	}
	if t.Y < 0 || t.Y >= maxCoord {
		return fmt.Errorf("invalid y coordinate: %d (must be 0-%d for zoom %d)", t.Y, maxCoord-1, t.Z)
	}
	return nil
}

// QuadKey returns the quadkey encoding of the address
func (t TileAddress) QuadKey() string {
	return TileToQuadKey(t.X, t.Y, t.Z)
}

// TMSRow returns the MBTiles tile_row for the address
func (t TileAddress) TMSRow() int {
	return FlipY(t.Y, t.Z)
}

// UpperLeft returns the north-west corner
func (t TileAddress) UpperLeft() GeoPoint {
	return TileUpperLeft(t.X, t.Y, t.Z)
}

// LowerRight returns the south-east corner
func (t TileAddress) LowerRight() GeoPoint {
	return TileLowerRight(t.X, t.Y, t.Z)
}

// Bound returns the lon/lat rectangle covered by the tile
func (t TileAddress) Bound() orb.Bound {
	ul, lr := t.UpperLeft(), t.LowerRight()
	return orb.Bound{
		Min: orb.Point{ul.Lon, lr.Lat},
		Max: orb.Point{lr.Lon, ul.Lat},
	}
}

// Polygon returns the closed outline UL, UR, LR, LL, UL in lon/lat
func (t TileAddress) Polygon() orb.Polygon {
	ul, lr := t.UpperLeft(), t.LowerRight()
	return orb.Polygon{orb.Ring{
		{ul.Lon, ul.Lat},
		{lr.Lon, ul.Lat},
		{lr.Lon, lr.Lat},
		{ul.Lon, lr.Lat},
		{ul.Lon, ul.Lat},
	}}
}

// MapTile converts the address into an orb maptile.Tile
func (t TileAddress) MapTile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Z))
}

// FromMapTile converts an orb maptile.Tile into an address
func FromMapTile(mt maptile.Tile) TileAddress {
	return TileAddress{Z: int(mt.Z), X: int(mt.X), Y: int(mt.Y)}
}
