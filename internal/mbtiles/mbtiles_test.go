// internal/mbtiles/mbtiles_test.go - Unit tests for MBTiles assembly and reading
package mbtiles

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cast"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/config"
	"github.com/valpere/aoi_to_mbtiles/internal/output"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

func testTileset() config.TilesetConfig {
	return config.TilesetConfig{
		Name:        "test",
		Type:        "overlay",
		Description: "An MBTiles tileset",
		Version:     "1.0",
	}
}

func pngTile(seed byte) []byte {
	return append(append([]byte{}, pngMagic...), bytes.Repeat([]byte{seed}, 64)...)
}

// buildTree writes one png per address into an in-memory tree
func buildTree(t *testing.T, addrs []tilemath.TileAddress) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	tree := output.NewTree(fsys, "/tiles")
	if err := tree.Prepare(addrs); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	for i, addr := range addrs {
		if _, err := tree.WriteImage(addr, "png", pngTile(byte(i))); err != nil {
			t.Fatalf("WriteImage: %v", err)
		}
	}
	return fsys
}

func assemble(t *testing.T, fsys afero.Fs, outPath string) *Result {
	t.Helper()
	assembler := NewAssembler(tile.NewLocalSource(fsys, "/tiles"), testTileset(), nil, zerolog.Nop())
	result, err := assembler.Assemble(context.Background(), outPath)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return result
}

func openReader(t *testing.T, path string) *Reader {
	t.Helper()
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestAssembleInvertsRows(t *testing.T) {
	fsys := buildTree(t, []tilemath.TileAddress{{Z: 10, X: 5, Y: 3}})
	out := filepath.Join(t.TempDir(), "rows.mbtiles")
	assemble(t, fsys, out)

	db, err := sql.Open("sqlite3", "file:"+out+"?mode=ro")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var z, col, row int
	if err := db.QueryRow("SELECT zoom_level, tile_column, tile_row FROM tiles").Scan(&z, &col, &row); err != nil {
		t.Fatalf("query: %v", err)
	}
	if z != 10 || col != 5 || row != 1020 {
		t.Errorf("Expected (10, 5, 1020), got (%d, %d, %d)", z, col, row)
	}
}

func TestAssembleBoundsAndZoom(t *testing.T) {
	addrs := []tilemath.TileAddress{
		{Z: 5, X: 10, Y: 12},
		{Z: 5, X: 11, Y: 12},
		{Z: 5, X: 10, Y: 13},
		{Z: 5, X: 14, Y: 11},
	}
	fsys := buildTree(t, addrs)
	out := filepath.Join(t.TempDir(), "bounds.mbtiles")
	result := assemble(t, fsys, out)

	left, top := 180.0, -90.0
	right, bottom := -180.0, 90.0
	for _, a := range addrs {
		ul := tilemath.TileUpperLeft(a.X, a.Y, a.Z)
		lr := tilemath.TileLowerRight(a.X, a.Y, a.Z)
		left, top = min(left, ul.Lon), max(top, ul.Lat)
		right, bottom = max(right, lr.Lon), min(bottom, lr.Lat)
	}
	want := strings.Join([]string{cast.ToString(left), cast.ToString(bottom), cast.ToString(right), cast.ToString(top)}, ",")

	metadata, err := openReader(t, out).Metadata(context.Background())
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}

	if metadata["bounds"] != want {
		t.Errorf("Expected bounds %s, got %s", want, metadata["bounds"])
	}
	if result.Bounds != want {
		t.Errorf("Expected result bounds %s, got %s", want, result.Bounds)
	}
	if metadata["minzoom"] != "5" || metadata["maxzoom"] != "5" {
		t.Errorf("Expected zoom 5..5, got %s..%s", metadata["minzoom"], metadata["maxzoom"])
	}
	if metadata["format"] != "png" {
		t.Errorf("Expected observed format png, got %s", metadata["format"])
	}

	for _, key := range []string{"name", "type", "description", "version", "attribution"} {
		if _, ok := metadata[key]; !ok {
			t.Errorf("Expected metadata key %s", key)
		}
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	addrs := []tilemath.TileAddress{
		{Z: 3, X: 1, Y: 2},
		{Z: 3, X: 2, Y: 2},
		{Z: 4, X: 4, Y: 5},
		{Z: 4, X: 5, Y: 5},
	}
	fsys := buildTree(t, addrs)
	dir := t.TempDir()
	first := filepath.Join(dir, "first.mbtiles")
	second := filepath.Join(dir, "second.mbtiles")
	assemble(t, fsys, first)
	assemble(t, fsys, second)

	ctx := context.Background()
	r1, r2 := openReader(t, first), openReader(t, second)

	d1, err := r1.Digest(ctx)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, _ := r2.Digest(ctx)
	if d1 != d2 {
		t.Errorf("Expected equal digests, got %x and %x", d1, d2)
	}

	m1, _ := r1.Metadata(ctx)
	m2, _ := r2.Metadata(ctx)
	for k, v := range m1 {
		if k == "name" {
			continue
		}
		if m2[k] != v {
			t.Errorf("Metadata %s differs: %q vs %q", k, v, m2[k])
		}
	}

	if n, _ := r1.Count(ctx); n != len(addrs) {
		t.Errorf("Expected %d tiles, got %d", len(addrs), n)
	}
}

func TestAssembleDuplicateTile(t *testing.T) {
	addr := tilemath.TileAddress{Z: 3, X: 1, Y: 2}
	fsys := buildTree(t, []tilemath.TileAddress{addr})
	tree := output.NewTree(fsys, "/tiles")
	if err := afero.WriteFile(fsys, tree.Path(addr, "jpg"), []byte{0xff, 0xd8, 0xff, 0x00}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "dup.mbtiles")
	assembler := NewAssembler(tile.NewLocalSource(fsys, "/tiles"), testTileset(), nil, zerolog.Nop())

	_, err := assembler.Assemble(context.Background(), out)
	if !internal.IsCode(err, internal.ErrorCodeStorage) {
		t.Fatalf("Expected STORAGE_ERROR, got %v", err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*"))
	if len(leftovers) != 0 {
		t.Errorf("Expected no files after failure, got %v", leftovers)
	}
}

func TestAssembleEmptyTree(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_ = afero.WriteFile(fsys, "/tiles/3/1/2.timeout", []byte("row"), 0o644)
	_ = afero.WriteFile(fsys, "/tiles/3/1/3.notile", []byte("row"), 0o644)

	dir := t.TempDir()
	assembler := NewAssembler(tile.NewLocalSource(fsys, "/tiles"), testTileset(), nil, zerolog.Nop())
	_, err := assembler.Assemble(context.Background(), filepath.Join(dir, "empty.mbtiles"))
	if !internal.IsCode(err, internal.ErrorCodeNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*"))
	if len(leftovers) != 0 {
		t.Errorf("Expected no container for an empty tree, got %v", leftovers)
	}
}

func TestAssembleConfiguredFormat(t *testing.T) {
	fsys := buildTree(t, []tilemath.TileAddress{{Z: 2, X: 1, Y: 1}})
	tileset := testTileset()
	tileset.Format = "jpg"
	tileset.Name = ""

	out := filepath.Join(t.TempDir(), "area_osm.mbtiles")
	assembler := NewAssembler(tile.NewLocalSource(fsys, "/tiles"), tileset, nil, zerolog.Nop())
	if _, err := assembler.Assemble(context.Background(), out); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	metadata, _ := openReader(t, out).Metadata(context.Background())
	if metadata["format"] != "jpg" {
		t.Errorf("Expected configured format jpg, got %s", metadata["format"])
	}
	if metadata["name"] != "area_osm" {
		t.Errorf("Expected name from file, got %s", metadata["name"])
	}
}

func TestExtractRestoresTree(t *testing.T) {
	addrs := []tilemath.TileAddress{
		{Z: 10, X: 5, Y: 3},
		{Z: 10, X: 5, Y: 4},
		{Z: 11, X: 10, Y: 7},
	}
	fsys := buildTree(t, addrs)
	out := filepath.Join(t.TempDir(), "extract.mbtiles")
	assemble(t, fsys, out)

	dest := output.NewTree(afero.NewMemMapFs(), "/extracted")
	n, err := openReader(t, out).Extract(context.Background(), dest, 2)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if n != len(addrs) {
		t.Errorf("Expected %d tiles extracted, got %d", len(addrs), n)
	}

	for i, addr := range addrs {
		data, err := afero.ReadFile(dest.Fs(), dest.Path(addr, "png"))
		if err != nil {
			t.Errorf("Expected tile %s in extracted tree: %v", addr, err)
			continue
		}
		if !bytes.Equal(data, pngTile(byte(i))) {
			t.Errorf("Tile %s content differs", addr)
		}
	}

	raw, err := afero.ReadFile(dest.Fs(), filepath.Join("/extracted", output.MetadataFile))
	if err != nil {
		t.Fatalf("Expected metadata file: %v", err)
	}
	metadata, err := output.ParseMetadata(raw)
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if metadata["minzoom"] != "10" || metadata["maxzoom"] != "11" {
		t.Errorf("Expected zoom 10..11, got %s..%s", metadata["minzoom"], metadata["maxzoom"])
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mbtiles"))
	if !internal.IsCode(err, internal.ErrorCodeNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}

func TestExtent(t *testing.T) {
	e := NewExtent()
	if !e.Empty() {
		t.Error("Expected new extent to be empty")
	}

	e.Add(tilemath.TileAddress{Z: 0, X: 0, Y: 0})
	if e.Left != -180 || e.Right != 180 {
		t.Errorf("Expected full longitude span, got %v..%v", e.Left, e.Right)
	}
	if e.Top < 85.05 || e.Bottom > -85.05 {
		t.Errorf("Expected full latitude span, got %v..%v", e.Bottom, e.Top)
	}

	e.Add(tilemath.TileAddress{Z: 3, X: 0, Y: 0})
	if e.MinZoom != 0 || e.MaxZoom != 3 || e.ZoomLevels() != 2 {
		t.Errorf("Expected zoom 0..3 over 2 levels, got %d..%d over %d", e.MinZoom, e.MaxZoom, e.ZoomLevels())
	}
}

func TestSniffFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		fallback string
		want     string
	}{
		{"png", pngTile(1), "jpg", "png"},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, "png", "jpg"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "", "webp"},
		{"fallback", []byte("????"), "jpeg", "jpg"},
		{"default", []byte("????"), "", "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffFormat(tt.data, tt.fallback); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
