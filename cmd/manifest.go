// cmd/manifest.go - Manifest generation command
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/aoi"
	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
)

// manifestCmd represents the manifest command
var manifestCmd = &cobra.Command{
	Use:   "manifest <aoi-file>",
	Short: "List the tiles covering an area of interest",
	Long: `Build the tile manifest for an area of interest.

The AOI is a GeoJSON (.geojson, .json) or WKT (.wkt) polygon or multipolygon.
Every tile between --min-zoom and --max-zoom that intersects the AOI, including
tiles that only touch its boundary, is written as one row of a ';'-delimited CSV:

  wkt;TileX;TileY;TileZ;URL

The file is named {aoi}_{tileserver}.csv.

Examples:
  # Zoom 15 to 18 from the OpenStreetMap tile server
  aoi-to-mbtiles manifest area.geojson --min-zoom 15 --max-zoom 18

  # Rotating Bing subdomains, with tile outlines for inspection
  aoi-to-mbtiles manifest area.wkt --tileserver bing --perimeters`,
	Args: cobra.ExactArgs(1),
	RunE: runManifest,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	a, err := newApp("manifest")
	if err != nil {
		return stageError(internal.StageManifest, err)
	}
	defer a.finish()

	path, entries, err := a.buildManifest(cmd.Context(), args[0])
	if err != nil {
		return stageError(internal.StageManifest, err)
	}

	fmt.Fprintf(os.Stdout, "Wrote %d tiles to %s\n", len(entries), path)
	return nil
}

// buildManifest loads the AOI, filters the tile grid and writes the manifest CSV
func (a *app) buildManifest(ctx context.Context, aoiPath string) (string, []manifest.Entry, error) {
	template, err := a.cfg.Template()
	if err != nil {
		return "", nil, err
	}

	area, err := aoi.Load(aoiPath)
	if err != nil {
		return "", nil, err
	}

	filter := aoi.NewFilter(template, a.log)
	entries, err := filter.Manifest(ctx, area, a.cfg.Grid.MinZoom, a.cfg.Grid.MaxZoom)
	if err != nil {
		return "", nil, err
	}
	if len(entries) == 0 {
		return "", nil, internal.NewError(internal.ErrorCodeDomain, fmt.Sprintf("no tiles intersect %s", aoiPath), nil)
	}

	base := a.outputBase(aoiPath)
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return "", nil, internal.NewError(internal.ErrorCodeFileSystem, "cannot create output directory", err)
	}

	path := a.cfg.ManifestName(base)
	if err := manifest.WriteFile(path, entries); err != nil {
		return "", nil, err
	}

	if a.cfg.Grid.Perimeters {
		perimeters := base + "_tile_perimeters.geojson"
		if err := aoi.WritePerimeters(perimeters, entries); err != nil {
			return "", nil, err
		}
		a.log.Info().Str("path", perimeters).Msg("tile perimeters written")
	}

	a.log.Info().
		Str("path", path).
		Int("tiles", len(entries)).
		Int("min_zoom", a.cfg.Grid.MinZoom).
		Int("max_zoom", a.cfg.Grid.MaxZoom).
		Str("template", template.String()).
		Msg("manifest written")

	return path, entries, nil
}
