// internal/mbtiles/reader.go - MBTiles reading, digest and extraction
package mbtiles

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/atomic"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/output"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// Reader gives read-only access to an MBTiles file
type Reader struct {
	db   *sql.DB
	path string
}

// Open opens an existing container read-only
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("mbtiles file not found: %s", path), err)
		}
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot access %s", path), err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, fmt.Sprintf("cannot open %s", path), err)
	}
	return &Reader{db: db, path: path}, nil
}

// Close releases the database handle
func (r *Reader) Close() error {
	return r.db.Close()
}

// Metadata returns every metadata row
func (r *Reader) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, "cannot read metadata", err)
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, internal.NewError(internal.ErrorCodeStorage, "cannot read metadata", err)
		}
		metadata[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, "cannot read metadata", err)
	}
	return metadata, nil
}

// Count returns the number of stored tiles
func (r *Reader) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tiles").Scan(&n); err != nil {
		return 0, internal.NewError(internal.ErrorCodeStorage, "cannot count tiles", err)
	}
	return n, nil
}

// Digest hashes the tiles table in (zoom, column, row) order. Two containers with the
// same tiles have the same digest regardless of insertion order.
func (r *Reader) Digest(ctx context.Context) (uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles ORDER BY zoom_level, tile_column, tile_row")
	if err != nil {
		return 0, internal.NewError(internal.ErrorCodeStorage, "cannot read tiles", err)
	}
	defer rows.Close()

	h := xxhash.New()
	header := make([]byte, 16)
	for rows.Next() {
		var z, x, row uint32
		var data []byte
		if err := rows.Scan(&z, &x, &row, &data); err != nil {
			return 0, internal.NewError(internal.ErrorCodeStorage, "cannot read tile", err)
		}
		binary.BigEndian.PutUint32(header[0:4], z)
		binary.BigEndian.PutUint32(header[4:8], x)
		binary.BigEndian.PutUint32(header[8:12], row)
		binary.BigEndian.PutUint32(header[12:16], uint32(len(data)))
		_, _ = h.Write(header)
		_, _ = h.Write(data)
	}
	if err := rows.Err(); err != nil {
		return 0, internal.NewError(internal.ErrorCodeStorage, "cannot read tiles", err)
	}
	return h.Sum64(), nil
}

// Extract writes every tile into tree as {z}/{x}/{y}.{ext} with slippy-map rows,
// followed by the metadata as metadata.yaml. It returns the number of tiles written.
func (r *Reader) Extract(ctx context.Context, tree *output.Tree, workers int) (int, error) {
	metadata, err := r.Metadata(ctx)
	if err != nil {
		return 0, err
	}

	if err := r.prepareTree(ctx, tree); err != nil {
		return 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles ORDER BY zoom_level, tile_column, tile_row")
	if err != nil {
		return 0, internal.NewError(internal.ErrorCodeStorage, "cannot read tiles", err)
	}
	defer rows.Close()

	var written atomic.Int64
	p := pool.New().
		WithMaxGoroutines(max(1, workers)).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for rows.Next() {
		var z, x, row int
		var data []byte
		if err := rows.Scan(&z, &x, &row, &data); err != nil {
			_ = p.Wait()
			return int(written.Load()), internal.NewError(internal.ErrorCodeStorage, "cannot read tile", err)
		}

		addr := tilemath.TileAddress{Z: z, X: x, Y: tilemath.FlipY(row, z)}
		ext := sniffFormat(data, metadata["format"])

		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := tree.WriteImage(addr, ext, data); err != nil {
				return err
			}
			written.Inc()
			return nil
		})
	}
	rowsErr := rows.Err()

	if err := p.Wait(); err != nil {
		return int(written.Load()), err
	}
	if rowsErr != nil {
		return int(written.Load()), internal.NewError(internal.ErrorCodeStorage, "cannot read tiles", rowsErr)
	}

	content, err := output.FormatMetadata(metadata)
	if err != nil {
		return int(written.Load()), internal.NewError(internal.ErrorCodeFileSystem, "cannot encode metadata", err)
	}
	if err := tree.WriteFile(output.MetadataFile, content); err != nil {
		return int(written.Load()), err
	}

	return int(written.Load()), nil
}

// prepareTree creates every {z}/{x} directory before any write starts
func (r *Reader) prepareTree(ctx context.Context, tree *output.Tree) error {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT zoom_level, tile_column FROM tiles")
	if err != nil {
		return internal.NewError(internal.ErrorCodeStorage, "cannot read tile columns", err)
	}
	defer rows.Close()

	var addrs []tilemath.TileAddress
	for rows.Next() {
		var addr tilemath.TileAddress
		if err := rows.Scan(&addr.Z, &addr.X); err != nil {
			return internal.NewError(internal.ErrorCodeStorage, "cannot read tile columns", err)
		}
		addrs = append(addrs, addr)
	}
	if err := rows.Err(); err != nil {
		return internal.NewError(internal.ErrorCodeStorage, "cannot read tile columns", err)
	}

	return tree.Prepare(addrs)
}

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// sniffFormat picks a file extension from the tile bytes, falling back to the metadata format
func sniffFormat(data []byte, fallback string) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "png"
	case bytes.HasPrefix(data, jpegMagic):
		return "jpg"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "webp"
	}
	if format := tile.FormatForExtension(fallback); format != "" {
		return format
	}
	return "png"
}
