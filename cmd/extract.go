// cmd/extract.go - MBTiles extraction command
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/mbtiles"
	"github.com/valpere/aoi_to_mbtiles/internal/output"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file.mbtiles>",
	Short: "Unpack an MBTiles file into a tile directory",
	Long: `Write every tile of an MBTiles container to a {z}/{x}/{y}.{ext} directory tree,
converting TMS rows back to slippy-map rows, and the metadata table to metadata.yaml.

Examples:
  # Writes area_osm/ next to the file
  aoi-to-mbtiles extract area_osm.mbtiles

  # Explicit directory and writer count
  aoi-to-mbtiles extract area_osm.mbtiles --output /srv/tiles --workers 16`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "output directory (default is the file name without extension)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	a, err := newApp("extract")
	if err != nil {
		return stageError(internal.StageExtract, err)
	}
	defer a.finish()

	dir, _ := cmd.Flags().GetString("output")
	if dir == "" {
		dir = a.outputBase(args[0])
	}
	dir = strings.TrimRight(dir, string(filepath.Separator))

	stats := &internal.RunStats{StartTime: time.Now()}

	reader, err := mbtiles.Open(args[0])
	if err != nil {
		return stageError(internal.StageExtract, err)
	}
	defer reader.Close()

	tree := output.NewTree(afero.NewOsFs(), dir)
	n, err := reader.Extract(cmd.Context(), tree, a.cfg.Fetch.Workers)
	stats.ProcessedTiles = int64(n)
	stats.Finish()
	if err != nil {
		return stageError(internal.StageExtract, err)
	}

	a.log.Info().
		Str("directory", dir).
		Int64("tiles", stats.ProcessedTiles).
		Float64("tiles_per_second", stats.Throughput).
		Msg("mbtiles extracted")

	fmt.Fprintf(os.Stdout, "Extracted %d tiles to %s\n", n, dir)
	return nil
}
