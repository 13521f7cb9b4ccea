// cmd/assemble.go - MBTiles assembly command
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/mbtiles"
	"github.com/valpere/aoi_to_mbtiles/internal/metrics"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
)

// assembleCmd represents the assemble command
var assembleCmd = &cobra.Command{
	Use:   "assemble <tile-dir>",
	Short: "Pack a tile directory into an MBTiles file",
	Long: `Pack a {z}/{x}/{y}.{ext} tile directory into a single MBTiles container.

Rows are stored in TMS order (tile_row = 2^z - y - 1). The bounds, minzoom and
maxzoom metadata describe the tiles actually present, not the requested range.
Placeholders (.timeout, .notile) are ignored. Two images for the same tile, or a
directory without any image, abort the assembly and leave no output file.

Examples:
  # Writes area_osm.mbtiles next to the directory
  aoi-to-mbtiles assemble area_osm --name "Area" --attribution "(c) OpenStreetMap contributors"

  # Explicit output path and format
  aoi-to-mbtiles assemble tiles/ --output imagery.mbtiles --format jpg --type baselayer`,
	Args: cobra.ExactArgs(1),
	RunE: runAssemble,
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().StringP("output", "o", "", "output file (default is {tile-dir}.mbtiles)")
}

func runAssemble(cmd *cobra.Command, args []string) error {
	a, err := newApp("assemble")
	if err != nil {
		return stageError(internal.StageAssemble, err)
	}
	defer a.finish()

	dir := strings.TrimRight(args[0], string(filepath.Separator))
	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		outPath = a.outputBase(dir) + ".mbtiles"
	}

	result, err := a.assembleTiles(cmd.Context(), dir, outPath)
	if err != nil {
		return stageError(internal.StageAssemble, err)
	}

	printAssembleResult(result)
	return nil
}

// assembleTiles packs the tree at dir into outPath
func (a *app) assembleTiles(ctx context.Context, dir, outPath string) (*mbtiles.Result, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, "cannot create output directory", err)
	}

	assembler := mbtiles.NewAssembler(
		tile.NewLocalSource(afero.NewOsFs(), dir),
		a.cfg.Tileset,
		metrics.NewAssemblyMetrics(a.metrics),
		a.log,
	)
	return assembler.Assemble(ctx, outPath)
}

func printAssembleResult(result *mbtiles.Result) {
	fmt.Fprintf(os.Stdout, "Wrote %d tiles (zoom %d-%d, %s) to %s\n",
		result.Tiles, result.MinZoom, result.MaxZoom, result.Format, result.Path)
	fmt.Fprintf(os.Stdout, "Bounds: %s\n", result.Bounds)
}
