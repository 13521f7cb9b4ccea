// internal/batch/processor.go - Fetch pass worker pool
package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
	"github.com/valpere/aoi_to_mbtiles/internal/metrics"
	"github.com/valpere/aoi_to_mbtiles/internal/output"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
)

// PassProcessor runs a fixed-size pool of workers draining one shared queue
type PassProcessor struct {
	writer   output.TileWriter
	ledger   PendingStore
	metrics  *metrics.FetchMetrics
	reporter ProgressReporter
	log      zerolog.Logger
}

// NewPassProcessor creates a pass processor; metrics and reporter may be nil
func NewPassProcessor(writer output.TileWriter, ledger PendingStore, m *metrics.FetchMetrics, reporter ProgressReporter, log zerolog.Logger) *PassProcessor {
	return &PassProcessor{
		writer:   writer,
		ledger:   ledger,
		metrics:  m,
		reporter: reporter,
		log:      log,
	}
}

// RunPass fetches every entry once with the given fetcher and settings.
// Per-tile failures are recorded in the ledger; only storage failures abort the pass.
func (p *PassProcessor) RunPass(ctx context.Context, job *Job, fetcher tile.Fetcher, settings tile.PassSettings, entries []manifest.Entry) (*PassResult, error) {
	start := time.Now()
	result := &PassResult{Settings: settings, Total: len(entries)}
	if len(entries) == 0 {
		return result, nil
	}

	if p.reporter != nil {
		p.reporter.StartPass(settings, len(entries))
	}

	workChan := make(chan *WorkItem, len(entries))
	for i, entry := range entries {
		workChan <- NewWorkItem(tile.NewTileRequest(entry, job.Config.Headers), i, settings.Pass)
	}
	close(workChan)

	var success, empty, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	workers := min(max(1, settings.Workers), len(entries))
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for item := range workChan {
				if err := gctx.Err(); err != nil {
					return err
				}

				workResult, err := p.processWorkItem(gctx, fetcher, item)
				if err != nil {
					return err
				}

				switch workResult.Result.Outcome {
				case tile.Success:
					success.Inc()
					job.Progress.SuccessTiles.Inc()
					job.Progress.BytesWritten.Add(int64(workResult.Written))
				case tile.TooSmall:
					empty.Inc()
					job.Progress.EmptyTiles.Inc()
				default:
					failed.Inc()
					job.Progress.FailedTiles.Inc()
				}
				job.Progress.ProcessedTiles.Inc()

				if p.reporter != nil {
					p.reporter.Advance(workResult)
				}
			}
			return nil
		})
	}

	err := g.Wait()

	result.SuccessCount = int(success.Load())
	result.EmptyCount = int(empty.Load())
	result.FailureCount = int(failed.Load())
	result.Duration = time.Since(start)

	if p.reporter != nil {
		p.reporter.FinishPass(result)
	}
	if err != nil {
		return result, err
	}

	p.log.Info().
		Str("pass", settings.Pass.String()).
		Int("workers", workers).
		Dur("timeout", settings.Timeout).
		Int("tiles", result.Total).
		Int("success", result.SuccessCount).
		Int("empty", result.EmptyCount).
		Int("failed", result.FailureCount).
		Dur("duration", result.Duration).
		Msg("fetch pass complete")

	return result, nil
}

// processWorkItem fetches one tile and records the outcome on disk and in the ledger
func (p *PassProcessor) processWorkItem(ctx context.Context, fetcher tile.Fetcher, item *WorkItem) (*WorkResult, error) {
	start := time.Now()
	entry := item.Request.Entry

	res := fetcher.Fetch(ctx, item.Request)
	workResult := &WorkResult{Item: item, Result: res}

	switch res.Outcome {
	case tile.Success:
		n, err := p.writer.WriteImage(entry.Tile, tile.ExtensionForURL(entry.URL), res.Data)
		if err != nil {
			return nil, err
		}
		workResult.Written = n
		if err := p.ledger.Resolve(entry.Tile); err != nil {
			return nil, err
		}

	case tile.TooSmall:
		if err := p.writer.WritePlaceholder(entry, output.PlaceholderNoTile); err != nil {
			return nil, err
		}
		if err := p.ledger.Resolve(entry.Tile); err != nil {
			return nil, err
		}

	default:
		if err := p.writer.WritePlaceholder(entry, output.PlaceholderTimeout); err != nil {
			return nil, err
		}
		if err := p.ledger.MarkPending(entry, res.Outcome, res.Err); err != nil {
			return nil, err
		}
		p.log.Debug().
			Str("tile", entry.Tile.String()).
			Str("pass", item.Pass.String()).
			Str("outcome", res.Outcome.String()).
			Int("status", res.StatusCode).
			Err(res.Err).
			Msg("tile fetch failed")
	}

	// Payload is on disk; release it before the next item
	res.Data = nil

	workResult.Duration = time.Since(start)
	p.metrics.Observe(item.Pass.String(), res.Outcome.String(), res.FetchTime, workResult.Written)

	return workResult, nil
}
