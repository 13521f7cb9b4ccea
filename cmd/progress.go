// cmd/progress.go - Console progress reporting for fetch passes
package cmd

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/valpere/aoi_to_mbtiles/internal/batch"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
)

// ConsoleProgressReporter draws one progress bar per fetch pass
type ConsoleProgressReporter struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewConsoleProgressReporter creates a new console progress reporter
func NewConsoleProgressReporter() *ConsoleProgressReporter {
	return &ConsoleProgressReporter{}
}

// StartPass opens a bar sized to the pass
func (r *ConsoleProgressReporter) StartPass(settings tile.PassSettings, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc := fmt.Sprintf("%s pass (%d workers)", settings.Pass, settings.Workers)
	r.bar = progressbar.Default(int64(total), desc)
}

// Advance moves the bar by one tile
func (r *ConsoleProgressReporter) Advance(*batch.WorkResult) {
	r.mu.Lock()
	bar := r.bar
	r.mu.Unlock()

	if bar != nil {
		_ = bar.Add(1)
	}
}

// FinishPass completes the bar
func (r *ConsoleProgressReporter) FinishPass(*batch.PassResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}

// newReporter returns a console reporter, or nil when progress output is off
func (a *app) newReporter() batch.ProgressReporter {
	if !a.cfg.Logging.Progress {
		return nil
	}
	return NewConsoleProgressReporter()
}
