// internal/output/writer.go - On-disk tile tree writer
package output

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// imageExtensions are checked, in order, when looking for an existing image
var imageExtensions = []string{"png", "jpg", "jpeg", "webp"}

// Tree writes each tile to {root}/{z}/{x}/{y}.{ext}
type Tree struct {
	fs   afero.Fs
	root string
}

// NewTree creates a tree writer rooted at root
func NewTree(fsys afero.Fs, root string) *Tree {
	return &Tree{fs: fsys, root: root}
}

// Root returns the tree's root directory
func (t *Tree) Root() string {
	return t.root
}

// Fs returns the filesystem the tree lives on
func (t *Tree) Fs() afero.Fs {
	return t.fs
}

// Path returns the file path for a tile with the given extension
func (t *Tree) Path(addr tilemath.TileAddress, ext string) string {
	return filepath.Join(t.dir(addr), strconv.Itoa(addr.Y)+"."+ext)
}

func (t *Tree) dir(addr tilemath.TileAddress) string {
	return filepath.Join(t.root, strconv.Itoa(addr.Z), strconv.Itoa(addr.X))
}

// Prepare creates the {z}/{x} directory of every tile. It runs before any worker starts.
func (t *Tree) Prepare(addrs []tilemath.TileAddress) error {
	if err := t.fs.MkdirAll(t.root, 0o755); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to create tile directory %s", t.root), err)
	}

	seen := make(map[[2]int]bool)
	for _, addr := range addrs {
		key := [2]int{addr.Z, addr.X}
		if seen[key] {
			continue
		}
		seen[key] = true

		if err := t.fs.MkdirAll(t.dir(addr), 0o755); err != nil {
			return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to create directory for %s", addr), err)
		}
	}
	return nil
}

// WriteImage stores tile bytes through a temporary file and removes stale placeholders
func (t *Tree) WriteImage(addr tilemath.TileAddress, ext string, data []byte) (int, error) {
	final := t.Path(addr, ext)
	tmp := final + ".tmp"

	if err := afero.WriteFile(t.fs, tmp, data, 0o644); err != nil {
		_ = t.fs.Remove(tmp)
		return 0, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to write tile %s", addr), err)
	}
	if err := t.fs.Rename(tmp, final); err != nil {
		_ = t.fs.Remove(tmp)
		return 0, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to move tile %s into place", addr), err)
	}

	if err := t.removeImages(addr, ext); err != nil {
		return len(data), err
	}
	if err := t.removePlaceholder(addr, PlaceholderTimeout); err != nil {
		return len(data), err
	}
	if err := t.removePlaceholder(addr, PlaceholderNoTile); err != nil {
		return len(data), err
	}
	return len(data), nil
}

// WritePlaceholder writes a marker holding the entry's manifest row and drops any
// image an earlier run left for the tile.
// A .notile marker replaces an earlier .timeout marker for the same tile.
func (t *Tree) WritePlaceholder(entry manifest.Entry, kind Placeholder) error {
	path := t.Path(entry.Tile, kind.Extension())
	if err := afero.WriteFile(t.fs, path, PlaceholderContent(entry), 0o644); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to write %s placeholder for %s", kind, entry.Tile), err)
	}
	if err := t.removeImages(entry.Tile, ""); err != nil {
		return err
	}

	if kind == PlaceholderNoTile {
		return t.removePlaceholder(entry.Tile, PlaceholderTimeout)
	}
	return nil
}

// removeImages deletes the tile's images under every extension except keep
func (t *Tree) removeImages(addr tilemath.TileAddress, keep string) error {
	for _, ext := range imageExtensions {
		if ext == keep {
			continue
		}
		err := t.fs.Remove(t.Path(addr, ext))
		if err != nil && !os.IsNotExist(err) {
			return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to remove stale %s image for %s", ext, addr), err)
		}
	}
	return nil
}

func (t *Tree) removePlaceholder(addr tilemath.TileAddress, kind Placeholder) error {
	err := t.fs.Remove(t.Path(addr, kind.Extension()))
	if err != nil && !os.IsNotExist(err) {
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to remove %s placeholder for %s", kind, addr), err)
	}
	return nil
}

// HasResult reports whether a tile already has an image or a .notile marker
func (t *Tree) HasResult(addr tilemath.TileAddress) bool {
	for _, ext := range imageExtensions {
		if ok, _ := afero.Exists(t.fs, t.Path(addr, ext)); ok {
			return true
		}
	}
	return t.HasPlaceholder(addr, PlaceholderNoTile)
}

// HasPlaceholder reports whether a tile carries the given marker
func (t *Tree) HasPlaceholder(addr tilemath.TileAddress, kind Placeholder) bool {
	ok, _ := afero.Exists(t.fs, t.Path(addr, kind.Extension()))
	return ok
}

// WriteFile writes a file directly under the tree root
func (t *Tree) WriteFile(name string, data []byte) error {
	if err := t.fs.MkdirAll(t.root, 0o755); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to create tile directory %s", t.root), err)
	}
	if err := afero.WriteFile(t.fs, filepath.Join(t.root, name), data, 0o644); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to write %s", name), err)
	}
	return nil
}

// Stats walks the tree and counts images and placeholders
func (t *Tree) Stats() (TreeStats, error) {
	var stats TreeStats
	err := afero.Walk(t.fs, t.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
		case PlaceholderTimeout.Extension():
			stats.Timeouts++
		case PlaceholderNoTile.Extension():
			stats.NoTiles++
		default:
			for _, img := range imageExtensions {
				if ext == img {
					stats.Images++
				}
			}
		}
		return nil
	})
	if err != nil {
		return stats, internal.NewError(internal.ErrorCodeFileSystem, "failed to scan tile directory", err)
	}
	return stats, nil
}

// RemoveAll deletes the tree
func (t *Tree) RemoveAll() error {
	if err := t.fs.RemoveAll(t.root); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to remove %s", t.root), err)
	}
	return nil
}
