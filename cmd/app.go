// cmd/app.go - Per-invocation wiring shared by all commands
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/valpere/aoi_to_mbtiles/internal/config"
	"github.com/valpere/aoi_to_mbtiles/internal/logger"
	"github.com/valpere/aoi_to_mbtiles/internal/metrics"
)

// app holds what one command invocation needs: validated configuration,
// a tagged logger and the metrics registry.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	runID   string
	metrics *metrics.Provider
}

// newApp loads configuration once and builds the logger for a command
func newApp(component string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if cfg.Logging.Verbose && logger.ParseLevel(level) > zerolog.DebugLevel {
		level = "debug"
	}

	runID := logger.NewRunID()
	log := logger.Build(logger.Config{
		Level:     level,
		Console:   cfg.Logging.Format == "console",
		Component: component,
		RunID:     runID,
	}, os.Stderr)

	return &app{
		cfg:     cfg,
		log:     log,
		runID:   runID,
		metrics: metrics.Init(metrics.BuildInfo{Version: version, Revision: revision}),
	}, nil
}

// finish exports metrics when a textfile is configured
func (a *app) finish() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.Warn().Err(err).Msg("metrics export failed")
	}
}

// stageError prefixes err with the failing stage
func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// stem returns path without directory and extension
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outputBase returns the path prefix for files derived from input:
// {output.directory or input dir}/{input stem}
func (a *app) outputBase(input string) string {
	dir := a.cfg.Output.Directory
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, stem(input))
}

// fetchPaths derives the tile tree, ledger and residual report paths from a manifest path
func (a *app) fetchPaths(manifestPath string) (tree, ledger, residual string) {
	base := a.outputBase(manifestPath)
	return base, base + ".ledger.db", base + "_timeouts.csv"
}
