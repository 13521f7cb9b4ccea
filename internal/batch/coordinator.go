// internal/batch/coordinator.go - Two-pass fetch coordination
package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
	"github.com/valpere/aoi_to_mbtiles/internal/metrics"
	"github.com/valpere/aoi_to_mbtiles/internal/output"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// Coordinator drives a job through the first pass, the retry pass and the residual report
type Coordinator struct {
	fetchers  FetcherSource
	tree      *output.Tree
	ledger    PendingStore
	processor *PassProcessor
	metrics   *metrics.FetchMetrics
	log       zerolog.Logger
}

// NewCoordinator creates a coordinator writing into tree and recording retries in ledger
func NewCoordinator(fetchers FetcherSource, tree *output.Tree, ledger PendingStore, m *metrics.FetchMetrics, reporter ProgressReporter, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		fetchers:  fetchers,
		tree:      tree,
		ledger:    ledger,
		processor: NewPassProcessor(tree, ledger, m, reporter, log),
		metrics:   m,
		log:       log,
	}
}

// Run executes the job and returns its summary
func (c *Coordinator) Run(ctx context.Context, job *Job) (*Summary, error) {
	if job.Progress == nil {
		job.Progress = NewJobProgress()
	}

	now := time.Now()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	job.Progress.StartTime = now

	summary, err := c.run(ctx, job)

	completed := time.Now()
	job.CompletedAt = &completed
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err
		return summary, err
	}
	job.Status = JobStatusCompleted
	return summary, nil
}

func (c *Coordinator) run(ctx context.Context, job *Job) (*Summary, error) {
	start := time.Now()
	summary := &Summary{JobID: job.ID, Total: len(job.Entries)}

	if err := c.validateJob(job); err != nil {
		return summary, err
	}

	addrs := make([]tilemath.TileAddress, len(job.Entries))
	for i, entry := range job.Entries {
		addrs[i] = entry.Tile
	}
	if err := c.tree.Prepare(addrs); err != nil {
		return summary, err
	}
	c.log.Debug().Str("tree", c.tree.Root()).Int("tiles", len(addrs)).Msg("tile directories prepared")

	todo, err := c.selectWork(job, summary)
	if err != nil {
		return summary, err
	}
	job.Progress.TotalTiles.Store(int64(len(todo)))

	// First pass
	settings := c.fetchers.Settings(tile.PassFirst, len(todo))
	first, err := c.processor.RunPass(ctx, job, c.fetchers.ForPass(settings), settings, todo)
	summary.Passes = append(summary.Passes, first)
	if err != nil {
		return summary, err
	}

	// Retry pass over whatever the ledger still holds for this manifest
	pending, err := c.pending(job)
	if err != nil {
		return summary, err
	}
	c.metrics.SetPending(len(pending))
	if len(pending) > 0 {
		retry := Entries(pending)
		job.Progress.TotalTiles.Add(int64(len(retry)))

		settings = c.fetchers.Settings(tile.PassRetry, len(retry))
		second, err := c.processor.RunPass(ctx, job, c.fetchers.ForPass(settings), settings, retry)
		summary.Passes = append(summary.Passes, second)
		if err != nil {
			return summary, err
		}
	}

	residual, err := c.pending(job)
	if err != nil {
		return summary, err
	}
	c.metrics.SetPending(len(residual))
	if err := c.writeResidual(job, summary, residual); err != nil {
		return summary, err
	}

	for _, pass := range summary.Passes {
		summary.Fetched += pass.SuccessCount
		summary.Empty += pass.EmptyCount
	}
	summary.Duration = time.Since(start)

	return summary, nil
}

// selectWork returns the entries to fetch in the first pass.
// Without resume the ledger starts empty and every entry is fetched.
func (c *Coordinator) selectWork(job *Job, summary *Summary) ([]manifest.Entry, error) {
	if !job.Config.Resume {
		if err := c.ledger.Reset(); err != nil {
			return nil, err
		}
		return job.Entries, nil
	}

	todo := make([]manifest.Entry, 0, len(job.Entries))
	for _, entry := range job.Entries {
		if c.tree.HasResult(entry.Tile) {
			summary.Skipped++
			continue
		}
		todo = append(todo, entry)
	}

	c.log.Info().
		Int("skipped", summary.Skipped).
		Int("remaining", len(todo)).
		Msg("resuming fetch")

	return todo, nil
}

// pending returns the ledger records that belong to the job's manifest.
// Rows carried over from a resumed run against another manifest are ignored.
func (c *Coordinator) pending(job *Job) ([]PendingRecord, error) {
	records, err := c.ledger.Pending()
	if err != nil {
		return nil, err
	}

	wanted := make(map[tilemath.TileAddress]bool, len(job.Entries))
	for _, entry := range job.Entries {
		wanted[entry.Tile] = true
	}

	kept := records[:0]
	for _, rec := range records {
		if wanted[rec.Entry.Tile] {
			kept = append(kept, rec)
		}
	}
	if dropped := len(records) - len(kept); dropped > 0 {
		c.log.Debug().Int("dropped", dropped).Msg("ignoring pending tiles outside the manifest")
	}
	return kept, nil
}

// writeResidual writes the tiles that failed both passes, or removes a stale report
func (c *Coordinator) writeResidual(job *Job, summary *Summary, residual []PendingRecord) error {
	summary.Residual = len(residual)
	path := job.Config.ResidualPath

	if len(residual) == 0 {
		if path != "" {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot remove stale residual report %s", path), err)
			}
		}
		return nil
	}

	for _, rec := range residual {
		c.log.Warn().
			Str("tile", rec.Entry.Tile.String()).
			Str("outcome", rec.Outcome.String()).
			Int("attempts", rec.Attempts).
			Str("error", rec.Err).
			Msg("tile unresolved after retry")
	}

	if path == "" {
		return nil
	}
	if err := manifest.WriteFile(path, Entries(residual)); err != nil {
		return err
	}
	summary.ResidualPath = path
	return nil
}

// validateJob validates job configuration and requirements
func (c *Coordinator) validateJob(job *Job) error {
	if job.Config == nil {
		return internal.NewError(internal.ErrorCodeValidation, "job configuration is required", nil)
	}
	if len(job.Entries) == 0 {
		return internal.NewError(internal.ErrorCodeValidation, "manifest has no entries", nil)
	}
	return nil
}
