// cmd/root.go - Root command implementation
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// Set at build time with -ldflags
	version  = "1.0.0"
	revision = ""
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aoi-to-mbtiles",
	Short: "Download raster tiles covering an area of interest into an MBTiles file",
	Long: `aoi-to-mbtiles turns an area-of-interest polygon into a single MBTiles container.

Pipeline:
- manifest: list every tile intersecting the AOI across a zoom range, with its URL
- fetch:    download the manifest with a bounded worker pool, then retry failures
            once with fewer workers and a longer timeout
- assemble: pack the downloaded {z}/{x}/{y} tree into an MBTiles SQLite file

Examples:
  # Full pipeline for a GeoJSON polygon
  aoi-to-mbtiles run area.geojson --tileserver osm --min-zoom 14 --max-zoom 17

  # Build the manifest only, with a custom template
  aoi-to-mbtiles manifest area.wkt --url-template "https://tiles.example.com/{z}/{x}/{y}.png"

  # Fetch an existing manifest, skipping tiles already on disk
  aoi-to-mbtiles fetch area_osm.csv --resume

  # Pack a tile directory
  aoi-to-mbtiles assemble area_osm --name "Area" --attribution "OpenStreetMap contributors"

  # Unpack a container back into a directory tree
  aoi-to-mbtiles extract area_osm.mbtiles`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aoi-to-mbtiles.yaml)")

	// Source flags
	flags.String("tileserver", "osm", "named tile server from the catalog")
	flags.String("url-template", "", "explicit tile URL template, overrides --tileserver")
	flags.String("url-formats", "", "file of 'name template' lines extending the tile server catalog")

	// Grid flags
	flags.Int("min-zoom", 16, "minimum zoom level")
	flags.Int("max-zoom", 20, "maximum zoom level")
	flags.Bool("perimeters", false, "also write tile outlines as GeoJSON")

	// Fetch flags
	flags.Int("workers", 50, "first pass worker count")
	flags.Duration("timeout", 10*time.Second, "first pass per-tile timeout")
	flags.Int("retry-workers", 25, "retry pass worker count")
	flags.Duration("retry-timeout", 100*time.Second, "retry pass per-tile timeout")
	flags.Int("min-tile-size", 1040, "responses at or below this size are recorded as empty tiles")
	flags.Bool("resume", false, "skip tiles already present on disk")
	flags.String("proxy", "", "HTTP proxy URL")

	// Tileset flags
	flags.String("name", "", "tileset name (default is the output file name)")
	flags.String("description", "An MBTiles tileset", "tileset description")
	flags.String("attribution", "", "tileset attribution")
	flags.String("type", "overlay", "tileset type (overlay, baselayer)")
	flags.String("format", "", "tile format (png, jpg); detected from the tiles when empty")

	// Output flags
	flags.String("output-dir", "", "directory for intermediate and final files (default is next to the input)")
	flags.Bool("clean", false, "remove intermediate files after a successful run")
	flags.Bool("upload", false, "upload the finished container to object storage")

	// Observability flags
	flags.Bool("verbose", false, "verbose output")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.Bool("progress", true, "show progress bars")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file on exit")

	// Bind flags to viper
	bindings := map[string]string{
		"source.tileserver":   "tileserver",
		"source.url_template": "url-template",
		"source.url_formats":  "url-formats",
		"grid.min_zoom":       "min-zoom",
		"grid.max_zoom":       "max-zoom",
		"grid.perimeters":     "perimeters",
		"fetch.workers":       "workers",
		"fetch.timeout":       "timeout",
		"fetch.retry_workers": "retry-workers",
		"fetch.retry_timeout": "retry-timeout",
		"fetch.min_tile_size": "min-tile-size",
		"fetch.resume":        "resume",
		"network.proxy_url":   "proxy",
		"tileset.name":        "name",
		"tileset.description": "description",
		"tileset.attribution": "attribution",
		"tileset.type":        "type",
		"tileset.format":      "format",
		"output.directory":    "output-dir",
		"output.clean":        "clean",
		"storage.enabled":     "upload",
		"logging.verbose":     "verbose",
		"logging.level":       "log-level",
		"logging.format":      "log-format",
		"logging.progress":    "progress",
		"metrics.textfile":    "metrics-textfile",
	}
	for key, flag := range bindings {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(flag)))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".aoi-to-mbtiles" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".aoi-to-mbtiles")
	}

	// Environment variables
	viper.SetEnvPrefix("AOI_TO_MBTILES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("logging.verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
