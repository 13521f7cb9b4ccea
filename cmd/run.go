// cmd/run.go - End-to-end pipeline command
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/storage"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <aoi-file>",
	Short: "Build the manifest, fetch the tiles and assemble the MBTiles file",
	Long: `Run the whole pipeline for one area of interest:

  manifest -> {aoi}_{tileserver}.csv
  fetch    -> {aoi}_{tileserver}/ tile tree (+ _timeouts.csv for unresolved tiles)
  assemble -> {aoi}_{tileserver}.mbtiles

With --upload the container is then copied to the configured S3-compatible bucket.
With --clean the manifest, tile tree and retry ledger are removed once the
container has been written.

Examples:
  aoi-to-mbtiles run area.geojson --min-zoom 14 --max-zoom 18 --output-dir ./out

  # Imagery in JPEG from a custom server, uploaded and cleaned up
  aoi-to-mbtiles run area.wkt --url-template "https://img.example.com/{z}/{x}/{y}.jpg" --upload --clean`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	a, err := newApp("run")
	if err != nil {
		return stageError(internal.StageManifest, err)
	}
	defer a.finish()

	ctx := cmd.Context()
	start := time.Now()

	manifestPath, entries, err := a.buildManifest(ctx, args[0])
	if err != nil {
		return stageError(internal.StageManifest, err)
	}

	summary, treeDir, err := a.fetchTiles(ctx, manifestPath, entries)
	if err != nil {
		return stageError(internal.StageFetch, err)
	}
	printFetchSummary(summary, treeDir)
	if summary.Residual > 0 {
		a.log.Warn().
			Int("residual", summary.Residual).
			Str("report", summary.ResidualPath).
			Msg("assembling without unresolved tiles")
	}

	result, err := a.assembleTiles(ctx, treeDir, treeDir+".mbtiles")
	if err != nil {
		return stageError(internal.StageAssemble, err)
	}
	printAssembleResult(result)

	if a.cfg.Storage.Enabled {
		client, err := storage.NewClient(a.cfg.Storage, version)
		if err != nil {
			return stageError(internal.StageUpload, err)
		}
		uploader := storage.NewUploader(client, a.cfg.Storage.Bucket, a.cfg.Storage.Prefix, a.log)
		object, err := uploader.Upload(ctx, result.Path)
		if err != nil {
			return stageError(internal.StageUpload, err)
		}
		fmt.Fprintf(os.Stdout, "Uploaded to %s/%s\n", a.cfg.Storage.Bucket, object)
	}

	if a.cfg.Output.Clean {
		_, ledgerPath, _ := a.fetchPaths(manifestPath)
		if err := cleanIntermediates(manifestPath, treeDir, ledgerPath); err != nil {
			a.log.Warn().Err(err).Msg("cleanup incomplete")
		}
	}

	a.log.Info().
		Str("output", result.Path).
		Dur("duration", time.Since(start)).
		Msg("pipeline complete")

	return nil
}

// cleanIntermediates removes the manifest, tile tree and ledger of a finished run
func cleanIntermediates(manifestPath, treeDir, ledgerPath string) error {
	var err error
	for _, p := range []string{manifestPath, ledgerPath} {
		if rerr := os.Remove(p); rerr != nil && !os.IsNotExist(rerr) {
			err = multierr.Append(err, rerr)
		}
	}
	if rerr := os.RemoveAll(treeDir); rerr != nil {
		err = multierr.Append(err, rerr)
	}
	return err
}
