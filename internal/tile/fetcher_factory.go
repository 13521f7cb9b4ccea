// internal/tile/fetcher_factory.go - Per-pass fetcher factory
package tile

import (
	"time"

	"github.com/valpere/aoi_to_mbtiles/internal/config"
)

// smallManifest is the entry count under which worker counts scale with the manifest
const smallManifest = 100

// PassSettings holds the concurrency and timeout of one fetch pass
type PassSettings struct {
	Pass    Pass
	Workers int
	Timeout time.Duration
}

// FetcherFactory creates fetchers tuned for each pass
type FetcherFactory struct {
	config *config.Config
}

// NewFetcherFactory creates a new fetcher factory
func NewFetcherFactory(cfg *config.Config) *FetcherFactory {
	return &FetcherFactory{
		config: cfg,
	}
}

// Settings returns worker count and timeout for a pass over n entries.
// Small passes use a fraction of n workers instead of the configured count.
func (f *FetcherFactory) Settings(pass Pass, n int) PassSettings {
	settings := PassSettings{Pass: pass}

	switch pass {
	case PassRetry:
		settings.Workers = f.config.Fetch.RetryWorkers
		settings.Timeout = f.config.Fetch.RetryTimeout
		if n < smallManifest {
			settings.Workers = max(1, n/4)
		}
	default:
		settings.Workers = f.config.Fetch.Workers
		settings.Timeout = f.config.Fetch.Timeout
		if n < smallManifest {
			settings.Workers = max(1, n/2)
		}
	}

	return settings
}

// ForPass creates an HTTP fetcher for the given pass settings
func (f *FetcherFactory) ForPass(settings PassSettings) Fetcher {
	return NewHTTPFetcher(f.config, settings.Timeout, settings.Workers)
}
