package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestProvider_RegistersGoCollector_AndBuildInfo(t *testing.T) {
	p := Init(BuildInfo{Version: "test", Revision: "r"})

	families, err := p.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["go_goroutines"] {
		t.Fatal("expected go_goroutines to be registered")
	}
	if !names["aoi_to_mbtiles_build_info"] {
		t.Fatal("expected aoi_to_mbtiles_build_info to be registered")
	}
}

func TestFetchMetrics_Observe(t *testing.T) {
	p := Init(BuildInfo{})
	m := NewFetchMetrics(p)

	m.Observe("first", "success", 20*time.Millisecond, 2048)
	m.Observe("first", "timeout", time.Second, 0)
	m.Observe("retry", "success", time.Second, 1024)
	m.SetPending(1)

	if got := testutil.ToFloat64(m.Fetched.WithLabelValues("first", "success")); got != 1 {
		t.Errorf("Expected 1 first-pass success, got %v", got)
	}
	if got := testutil.ToFloat64(m.Bytes); got != 3072 {
		t.Errorf("Expected 3072 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.Pending); got != 1 {
		t.Errorf("Expected 1 pending, got %v", got)
	}
	if n := testutil.CollectAndCount(m.Duration); n != 2 {
		t.Errorf("Expected 2 duration series, got %d", n)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var f *FetchMetrics
	f.Observe("first", "success", time.Millisecond, 10)
	f.SetPending(3)

	var a *AssemblyMetrics
	a.TileWritten()
	a.SetZoomLevels(2)
}

func TestWriteTextfile(t *testing.T) {
	p := Init(BuildInfo{Version: "test"})
	m := NewAssemblyMetrics(p)
	m.TileWritten()
	m.TileWritten()
	m.SetZoomLevels(3)

	path := filepath.Join(t.TempDir(), "aoi.prom")
	if err := p.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, "aoi_to_mbtiles_mbtiles_tiles_written_total 2") {
		t.Fatalf("expected written counter in textfile; got:\n%s", body)
	}
	if !strings.Contains(body, "aoi_to_mbtiles_mbtiles_zoom_levels 3") {
		t.Fatalf("expected zoom gauge in textfile; got:\n%s", body)
	}
}
