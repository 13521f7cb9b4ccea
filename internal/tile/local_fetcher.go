// internal/tile/local_fetcher.go - Local tile tree reader
package tile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// imageExtensions lists the file extensions treated as tile images
var imageExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"webp": true,
}

// TileFile is one image found in a {z}/{x}/{y}.{ext} tree
type TileFile struct {
	Address tilemath.TileAddress
	Path    string
	Ext     string
}

// LocalSource reads tile images from a directory tree
type LocalSource struct {
	fs       afero.Fs
	basePath string
}

// NewLocalSource creates a reader for the tree rooted at basePath
func NewLocalSource(fsys afero.Fs, basePath string) *LocalSource {
	return &LocalSource{fs: fsys, basePath: basePath}
}

// ListImages returns every image in the tree ordered by zoom, column, row.
// Placeholders and files outside the {z}/{x}/{y}.{ext} layout are skipped.
func (s *LocalSource) ListImages() ([]TileFile, error) {
	info, err := s.fs.Stat(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("tile directory not found: %s", s.basePath), err)
		}
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot access tile directory: %s", s.basePath), err)
	}
	if !info.IsDir() {
		return nil, internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("path is not a directory: %s", s.basePath), nil)
	}

	var tiles []TileFile
	err = afero.Walk(s.fs, s.basePath, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		tile, ok := s.parseCoordinatesFromPath(path)
		if !ok {
			return nil
		}
		tiles = append(tiles, tile)
		return nil
	})
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, "failed to scan tile directory", err)
	}

	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.Address != b.Address {
			if a.Address.Z != b.Address.Z {
				return a.Address.Z < b.Address.Z
			}
			if a.Address.X != b.Address.X {
				return a.Address.X < b.Address.X
			}
			return a.Address.Y < b.Address.Y
		}
		return a.Ext < b.Ext
	})

	return tiles, nil
}

// ReadImage returns the bytes of one image
func (s *LocalSource) ReadImage(tile TileFile) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, tile.Path)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, fmt.Sprintf("unreadable tile image %s", tile.Path), err)
	}
	return data, nil
}

// parseCoordinatesFromPath extracts the tile address from an image path
func (s *LocalSource) parseCoordinatesFromPath(filePath string) (TileFile, bool) {
	relPath, err := filepath.Rel(s.basePath, filePath)
	if err != nil {
		return TileFile{}, false
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) != 3 {
		return TileFile{}, false
	}

	ext := strings.TrimPrefix(filepath.Ext(parts[2]), ".")
	if !imageExtensions[strings.ToLower(ext)] {
		return TileFile{}, false
	}

	z, errZ := strconv.Atoi(parts[0])
	x, errX := strconv.Atoi(parts[1])
	y, errY := strconv.Atoi(strings.TrimSuffix(parts[2], "."+ext))
	if errZ != nil || errX != nil || errY != nil {
		return TileFile{}, false
	}

	addr := tilemath.TileAddress{Z: z, X: x, Y: y}
	if addr.Validate() != nil {
		return TileFile{}, false
	}

	return TileFile{Address: addr, Path: filePath, Ext: strings.ToLower(ext)}, true
}
