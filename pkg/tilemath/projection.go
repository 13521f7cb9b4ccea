// pkg/tilemath/projection.go - Spherical Mercator projection and tile addressing
package tilemath

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// TileSize is the edge length of a slippy-map tile in pixels
	TileSize = 256

	// MaxLatitude is the northern and southern limit of the Web Mercator square
	MaxLatitude = 85.0511

	// MaxZoom is the deepest supported zoom level
	MaxZoom = 23
)

// ErrOutOfDomain is returned for coordinates that cannot be projected
var ErrOutOfDomain = errors.New("coordinate outside web mercator domain")

// GeoPoint is a WGS84 position in degrees
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PixelCoord is a position in the global pixel raster of one zoom level
type PixelCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// LatLonZoomToPixel projects a WGS84 position onto the 256 * 2^zoom pixel raster.
func LatLonZoomToPixel(lat, lon float64, zoom int) (PixelCoord, error) {
	if math.IsNaN(lat) || math.Abs(lat) > MaxLatitude {
		return PixelCoord{}, fmt.Errorf("%w: latitude %v not in [-%v, %v]", ErrOutOfDomain, lat, MaxLatitude, MaxLatitude)
	}
	if math.IsNaN(lon) || math.Abs(lon) > 180 {
		return PixelCoord{}, fmt.Errorf("%w: longitude %v not in [-180, 180]", ErrOutOfDomain, lon)
	}
	if zoom < 0 || zoom > MaxZoom {
		return PixelCoord{}, fmt.Errorf("%w: zoom %d not in [0, %d]", ErrOutOfDomain, zoom, MaxZoom)
	}

	sinLat := math.Sin(lat * math.Pi / 180)
	mapSize := mapSize(zoom)

	x := (lon + 180) / 360 * mapSize
	y := (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * mapSize

	return PixelCoord{X: int(math.Floor(x)), Y: int(math.Floor(y))}, nil
}

// PixelToTileAddress returns the column and row of the tile holding a pixel.
// Division floors toward negative infinity.
func PixelToTileAddress(px, py int) (x, y int) {
	return floorDiv(px, TileSize), floorDiv(py, TileSize)
}

// TileUpperLeft returns the north-west corner of a tile
func TileUpperLeft(x, y, zoom int) GeoPoint {
	size := mapSize(zoom)
	mx := float64(x*TileSize)/size - 0.5
	my := 0.5 - float64(y*TileSize)/size

	return GeoPoint{
		Lat: 90 - 360*math.Atan(math.Exp(-my*2*math.Pi))/math.Pi,
		Lon: 360 * mx,
	}
}

// TileLowerRight returns the south-east corner of a tile
func TileLowerRight(x, y, zoom int) GeoPoint {
	return TileUpperLeft(x+1, y+1, zoom)
}

// TileToQuadKey encodes a tile as a quadkey of exactly zoom digits
func TileToQuadKey(x, y, zoom int) string {
	var sb strings.Builder
	sb.Grow(zoom)
	for i := zoom; i > 0; i-- {
		digit := byte('0')
		mask := 1 << (i - 1)
		if x&mask != 0 {
			digit++
		}
		if y&mask != 0 {
			digit += 2
		}
		sb.WriteByte(digit)
	}
	return sb.String()
}

// QuadKeyToTile decodes a quadkey produced by TileToQuadKey
func QuadKeyToTile(quadKey string) (TileAddress, error) {
	zoom := len(quadKey)
	if zoom > MaxZoom {
		return TileAddress{}, fmt.Errorf("%w: quadkey %q deeper than zoom %d", ErrOutOfDomain, quadKey, MaxZoom)
	}

	var x, y int
	for i := zoom; i > 0; i-- {
		mask := 1 << (i - 1)
		switch quadKey[zoom-i] {
		case '0':
		case '1':
			x |= mask
		case '2':
			y |= mask
		case '3':
			x |= mask
			y |= mask
		default:
			return TileAddress{}, fmt.Errorf("invalid quadkey digit %q in %q", quadKey[zoom-i], quadKey)
		}
	}
	return TileAddress{Z: zoom, X: x, Y: y}, nil
}

// FlipY converts between slippy-map rows and TMS rows. It is its own inverse.
func FlipY(y, zoom int) int {
	return (1 << zoom) - y - 1
}

func mapSize(zoom int) float64 {
	return float64(TileSize) * math.Exp2(float64(zoom))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
