// internal/mbtiles/writer.go - MBTiles container assembly
package mbtiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/config"
	"github.com/valpere/aoi_to_mbtiles/internal/metrics"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

const schema = `
CREATE TABLE metadata (name TEXT, value TEXT);
CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB);
CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row);
CREATE UNIQUE INDEX metadata_index ON metadata (name);
`

// Result describes a finished container
type Result struct {
	Path     string
	Tiles    int
	MinZoom  int
	MaxZoom  int
	Bounds   string
	Format   string
	Duration time.Duration
}

// Assembler packs a {z}/{x}/{y}.{ext} tree into a single MBTiles file.
// It owns its SQLite connection and writes from one goroutine.
type Assembler struct {
	source  *tile.LocalSource
	tileset config.TilesetConfig
	metrics *metrics.AssemblyMetrics
	log     zerolog.Logger
}

// NewAssembler creates an assembler reading images from source
func NewAssembler(source *tile.LocalSource, tileset config.TilesetConfig, m *metrics.AssemblyMetrics, log zerolog.Logger) *Assembler {
	return &Assembler{
		source:  source,
		tileset: tileset,
		metrics: m,
		log:     log,
	}
}

// Assemble writes the container to outPath. The file only appears once it is complete;
// on any failure the partial file is removed and outPath is left untouched.
func (a *Assembler) Assemble(ctx context.Context, outPath string) (*Result, error) {
	start := time.Now()

	files, err := a.source.ListImages()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, internal.NewError(internal.ErrorCodeNotFound, "no tile images found to assemble", nil)
	}

	tmpPath := fmt.Sprintf("%s.partial-%s", outPath, uuid.NewString())
	result, err := a.write(ctx, tmpPath, outPath, files)
	if err != nil {
		removePartial(tmpPath)
		return nil, err
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		removePartial(tmpPath)
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot move container into place at %s", outPath), err)
	}

	result.Path = outPath
	result.Duration = time.Since(start)

	a.log.Info().
		Str("path", outPath).
		Int("tiles", result.Tiles).
		Int("min_zoom", result.MinZoom).
		Int("max_zoom", result.MaxZoom).
		Str("bounds", result.Bounds).
		Dur("duration", result.Duration).
		Msg("mbtiles assembled")

	return result, nil
}

func (a *Assembler) write(ctx context.Context, tmpPath, outPath string, files []tile.TileFile) (result *Result, err error) {
	db, err := sql.Open("sqlite3", "file:"+tmpPath+"?_busy_timeout=2000&mode=rwc")
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, "cannot create container", err)
	}
	db.SetMaxOpenConns(1)
	defer func() {
		if cerr := db.Close(); cerr != nil {
			err = multierr.Append(err, internal.NewError(internal.ErrorCodeStorage, "cannot close container", cerr))
		}
	}()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, "cannot create container schema", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, "cannot begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	extent, formats, err := a.insertTiles(ctx, tx, files)
	if err != nil {
		return nil, err
	}

	format := a.tileset.Format
	if format == "" {
		format = dominantFormat(formats)
	}

	metadata := a.metadata(outPath, extent, format)
	if err := insertMetadata(ctx, tx, metadata); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, "cannot commit container", err)
	}

	a.metrics.SetZoomLevels(extent.ZoomLevels())

	return &Result{
		Tiles:   extent.Tiles,
		MinZoom: extent.MinZoom,
		MaxZoom: extent.MaxZoom,
		Bounds:  extent.String(),
		Format:  format,
	}, nil
}

func (a *Assembler) insertTiles(ctx context.Context, tx *sql.Tx, files []tile.TileFile) (*Extent, map[string]int, error) {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, nil, internal.NewError(internal.ErrorCodeStorage, "cannot prepare tile insert", err)
	}
	defer stmt.Close()

	extent := NewExtent()
	formats := make(map[string]int)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		data, err := a.source.ReadImage(f)
		if err != nil {
			return nil, nil, err
		}

		addr := f.Address
		if _, err := stmt.ExecContext(ctx, addr.Z, addr.X, tilemath.FlipY(addr.Y, addr.Z), data); err != nil {
			if isUniqueViolation(err) {
				return nil, nil, internal.NewError(internal.ErrorCodeStorage, fmt.Sprintf("duplicate tile %s (%s)", addr, f.Path), err)
			}
			return nil, nil, internal.NewError(internal.ErrorCodeStorage, fmt.Sprintf("cannot insert tile %s", addr), err)
		}

		extent.Add(addr)
		formats[tile.FormatForExtension(f.Ext)]++
		a.metrics.TileWritten()
	}

	return extent, formats, nil
}

// metadata builds the metadata rows from configuration and the observed extent
func (a *Assembler) metadata(outPath string, extent *Extent, format string) map[string]string {
	name := a.tileset.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath))
	}

	return map[string]string{
		"name":        name,
		"type":        a.tileset.Type,
		"description": a.tileset.Description,
		"attribution": a.tileset.Attribution,
		"version":     a.tileset.Version,
		"format":      format,
		"bounds":      extent.String(),
		"minzoom":     cast.ToString(extent.MinZoom),
		"maxzoom":     cast.ToString(extent.MaxZoom),
	}
}

func insertMetadata(ctx context.Context, tx *sql.Tx, metadata map[string]string) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return internal.NewError(internal.ErrorCodeStorage, "cannot prepare metadata insert", err)
	}
	defer stmt.Close()

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, k, metadata[k]); err != nil {
			return internal.NewError(internal.ErrorCodeStorage, fmt.Sprintf("cannot write metadata %s", k), err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// dominantFormat picks the most common tile format, preferring png on a tie
func dominantFormat(formats map[string]int) string {
	best, bestCount := "png", formats["png"]
	keys := make([]string, 0, len(formats))
	for k := range formats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if formats[k] > bestCount {
			best, bestCount = k, formats[k]
		}
	}
	return best
}

func removePartial(path string) {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
}
