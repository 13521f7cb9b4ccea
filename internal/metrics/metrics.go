// Package metrics exposes Prometheus metrics for the tile pipeline.
// Batch runs export the registry to a node-exporter textfile on exit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/valpere/aoi_to_mbtiles/internal"
)

const namespace = "aoi_to_mbtiles"

// BuildInfo labels the build_info gauge
type BuildInfo struct {
	Version  string
	Revision string
}

// Provider owns the private registry every collector of a run is registered with
type Provider struct {
	reg       *prometheus.Registry
	buildInfo *prometheus.GaugeVec
}

// Init creates a registry holding the Go runtime collector and the build_info gauge
func Init(build BuildInfo) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	info := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision"},
	)
	reg.MustRegister(info)
	if build.Version == "" {
		build.Version = "dev"
	}
	info.WithLabelValues(build.Version, build.Revision).Set(1)

	return &Provider{reg: reg, buildInfo: info}
}

// Register adds collectors to the registry and panics on a duplicate
func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

// Registerer returns the registry for code that registers its own collectors
func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

// Gatherer returns the registry for export
func (p *Provider) Gatherer() prometheus.Gatherer { return p.reg }

// WriteTextfile writes the registry in the textfile collector format
func (p *Provider) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.reg); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem, "cannot write metrics textfile "+path, err)
	}
	return nil
}

// FetchMetrics tracks tile downloads. A nil *FetchMetrics is a no-op.
type FetchMetrics struct {
	Fetched  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Bytes    prometheus.Counter
	Pending  prometheus.Gauge
}

// NewFetchMetrics creates fetch collectors and registers them with p when p is not nil
func NewFetchMetrics(p *Provider) *FetchMetrics {
	m := &FetchMetrics{
		Fetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiles_fetched_total",
			Help:      "Tile fetch attempts by pass and outcome.",
		}, []string{"pass", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_fetch_duration_seconds",
			Help:      "Tile fetch latency by pass.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"pass"}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_bytes_total",
			Help:      "Bytes of tile imagery written to disk.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tiles_pending",
			Help:      "Tiles recorded in the pending-retry ledger.",
		}),
	}
	if p != nil {
		p.Register(m.Fetched, m.Duration, m.Bytes, m.Pending)
	}
	return m
}

// Observe records one fetch attempt
func (m *FetchMetrics) Observe(pass, outcome string, elapsed time.Duration, written int) {
	if m == nil {
		return
	}
	m.Fetched.WithLabelValues(pass, outcome).Inc()
	m.Duration.WithLabelValues(pass).Observe(elapsed.Seconds())
	if written > 0 {
		m.Bytes.Add(float64(written))
	}
}

// SetPending records the current size of the pending-retry ledger
func (m *FetchMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(n))
}

// AssemblyMetrics tracks MBTiles writes. A nil *AssemblyMetrics is a no-op.
type AssemblyMetrics struct {
	Written    prometheus.Counter
	ZoomLevels prometheus.Gauge
}

// NewAssemblyMetrics creates assembly collectors and registers them with p when p is not nil
func NewAssemblyMetrics(p *Provider) *AssemblyMetrics {
	m := &AssemblyMetrics{
		Written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mbtiles_tiles_written_total",
			Help:      "Tile rows inserted into MBTiles containers.",
		}),
		ZoomLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mbtiles_zoom_levels",
			Help:      "Distinct zoom levels in the last assembled container.",
		}),
	}
	if p != nil {
		p.Register(m.Written, m.ZoomLevels)
	}
	return m
}

// TileWritten counts one inserted tile row
func (m *AssemblyMetrics) TileWritten() {
	if m == nil {
		return
	}
	m.Written.Inc()
}

// SetZoomLevels records how many zoom levels the last container holds
func (m *AssemblyMetrics) SetZoomLevels(n int) {
	if m == nil {
		return
	}
	m.ZoomLevels.Set(float64(n))
}
