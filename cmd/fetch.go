// cmd/fetch.go - Two-pass tile download command
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/batch"
	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
	"github.com/valpere/aoi_to_mbtiles/internal/metrics"
	"github.com/valpere/aoi_to_mbtiles/internal/output"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch <manifest.csv>",
	Short: "Download every tile of a manifest",
	Long: `Download the tiles listed in a manifest into a {z}/{x}/{y}.{ext} directory tree.

The first pass uses --workers and --timeout. Tiles that time out or fail are
recorded in a pending ledger ({manifest}.ledger.db) and left as .timeout
placeholders; a second pass retries only those with --retry-workers and
--retry-timeout. Responses of --min-tile-size bytes or less are recorded as
.notile placeholders and not retried.

Tiles still failing after the retry pass are written to {manifest}_timeouts.csv.

Examples:
  # Default settings: 50 workers at 10s, then 25 workers at 100s
  aoi-to-mbtiles fetch area_osm.csv

  # Continue an interrupted download
  aoi-to-mbtiles fetch area_osm.csv --resume`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := newApp("fetch")
	if err != nil {
		return stageError(internal.StageFetch, err)
	}
	defer a.finish()

	entries, err := manifest.ReadFile(args[0])
	if err != nil {
		return stageError(internal.StageFetch, err)
	}

	summary, treeDir, err := a.fetchTiles(cmd.Context(), args[0], entries)
	if err != nil {
		return stageError(internal.StageFetch, err)
	}

	printFetchSummary(summary, treeDir)
	return nil
}

// fetchTiles runs both fetch passes for entries and returns the summary and tile directory
func (a *app) fetchTiles(ctx context.Context, manifestPath string, entries []manifest.Entry) (summary *batch.Summary, treeDir string, err error) {
	treeDir, ledgerPath, residualPath := a.fetchPaths(manifestPath)

	ledger, err := batch.OpenLedger(ledgerPath)
	if err != nil {
		return nil, treeDir, err
	}
	defer func() {
		if cerr := ledger.Close(); cerr != nil {
			err = multierr.Append(err, internal.NewError(internal.ErrorCodeStorage, "cannot close ledger", cerr))
		}
	}()

	tree := output.NewTree(afero.NewOsFs(), treeDir)
	coordinator := batch.NewCoordinator(
		tile.NewFetcherFactory(a.cfg),
		tree,
		ledger,
		metrics.NewFetchMetrics(a.metrics),
		a.newReporter(),
		a.log,
	)

	job := batch.NewJob(a.runID, entries, &batch.JobConfig{
		Resume:       a.cfg.Fetch.Resume,
		ResidualPath: residualPath,
		Headers:      a.cfg.Fetch.Headers,
	})

	a.log.Info().
		Str("job_id", job.ID).
		Int("tiles", len(entries)).
		Str("directory", treeDir).
		Bool("resume", job.Config.Resume).
		Msg("starting fetch")

	summary, err = coordinator.Run(ctx, job)
	if err != nil {
		return summary, treeDir, err
	}

	a.log.Info().
		Int("fetched", summary.Fetched).
		Int("empty", summary.Empty).
		Int("skipped", summary.Skipped).
		Int("residual", summary.Residual).
		Float64("tiles_per_second", job.Progress.Throughput()).
		Dur("duration", summary.Duration).
		Msg("fetch complete")

	return summary, treeDir, nil
}

func printFetchSummary(summary *batch.Summary, treeDir string) {
	fmt.Fprintf(os.Stdout, "Tiles: %d total, %d fetched, %d empty, %d skipped\n",
		summary.Total, summary.Fetched, summary.Empty, summary.Skipped)
	for _, pass := range summary.Passes {
		fmt.Fprintf(os.Stdout, "  %s pass: %d tiles, %d workers, %v timeout, %d failed in %v\n",
			pass.Settings.Pass, pass.Total, pass.Settings.Workers, pass.Settings.Timeout, pass.FailureCount, pass.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(os.Stdout, "Tile directory: %s\n", treeDir)
	if summary.Residual > 0 {
		fmt.Fprintf(os.Stdout, "Unresolved tiles: %d (see %s)\n", summary.Residual, summary.ResidualPath)
	}
}
