// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/urltemplate"
)

// Config represents the complete application configuration
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Grid    GridConfig    `mapstructure:"grid"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Network NetworkConfig `mapstructure:"network"`
	Tileset TilesetConfig `mapstructure:"tileset"`
	Output  OutputConfig  `mapstructure:"output"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SourceConfig selects the tile server and its URL template
type SourceConfig struct {
	Tileserver  string            `mapstructure:"tileserver"`
	URLTemplate string            `mapstructure:"url_template"`
	URLFormats  string            `mapstructure:"url_formats"`
	Tileservers map[string]string `mapstructure:"tileservers"`
}

// GridConfig contains the requested zoom range
type GridConfig struct {
	MinZoom    int  `mapstructure:"min_zoom"`
	MaxZoom    int  `mapstructure:"max_zoom"`
	Perimeters bool `mapstructure:"perimeters"`
}

// FetchConfig contains the two-pass download settings
type FetchConfig struct {
	Workers      int               `mapstructure:"workers"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	RetryWorkers int               `mapstructure:"retry_workers"`
	RetryTimeout time.Duration     `mapstructure:"retry_timeout"`
	MinTileSize  int               `mapstructure:"min_tile_size"`
	Resume       bool              `mapstructure:"resume"`
	Headers      map[string]string `mapstructure:"headers"`
}

// NetworkConfig contains network-related configuration
type NetworkConfig struct {
	ProxyURL         string        `mapstructure:"proxy_url"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout  time.Duration `mapstructure:"idle_conn_timeout"`
	DisableKeepAlive bool          `mapstructure:"disable_keep_alive"`
}

// TilesetConfig holds the MBTiles metadata supplied by the operator
type TilesetConfig struct {
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	Description string `mapstructure:"description"`
	Attribution string `mapstructure:"attribution"`
	Version     string `mapstructure:"version"`
	Format      string `mapstructure:"format"`
}

// OutputConfig contains output location configuration
type OutputConfig struct {
	Directory string `mapstructure:"directory"`
	Clean     bool   `mapstructure:"clean"`
}

// StorageConfig contains S3-compatible upload settings
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Secure    bool   `mapstructure:"secure"`
}

// MetricsConfig controls the end-of-run metrics export
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Verbose  bool   `mapstructure:"verbose"`
	Progress bool   `mapstructure:"progress"`
}

// DefaultTileservers is the built-in tile server catalog
var DefaultTileservers = map[string]string{
	"osm":  "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
	"bing": "http://ecn.t{switch:0,1,2,3}.tiles.virtualearth.net/tiles/a{quadkey}.jpeg?g=587",
	"esri": "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}.jpg",
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from the given viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig, "failed to unmarshal configuration", err)
	}

	if err := Validate(&config); err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig, "configuration validation failed", err)
	}

	return &config, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.tileserver", "osm")
	v.SetDefault("source.tileservers", DefaultTileservers)

	// Grid defaults
	v.SetDefault("grid.min_zoom", 16)
	v.SetDefault("grid.max_zoom", 20)
	v.SetDefault("grid.perimeters", false)

	// Fetch defaults
	v.SetDefault("fetch.workers", 50)
	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.retry_workers", 25)
	v.SetDefault("fetch.retry_timeout", 100*time.Second)
	v.SetDefault("fetch.min_tile_size", 1040)
	v.SetDefault("fetch.resume", false)

	// Network defaults
	v.SetDefault("network.user_agent", "aoi-to-mbtiles/1.0")
	v.SetDefault("network.max_idle_conns", 100)
	v.SetDefault("network.idle_conn_timeout", 90*time.Second)
	v.SetDefault("network.disable_keep_alive", false)

	// Tileset defaults
	v.SetDefault("tileset.type", "overlay")
	v.SetDefault("tileset.description", "An MBTiles tileset")
	v.SetDefault("tileset.version", "1.0")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.secure", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.verbose", false)
	v.SetDefault("logging.progress", true)
}

// Template resolves the URL template for the configured tile server
func (c *Config) Template() (*urltemplate.Template, error) {
	catalog := urltemplate.NewCatalog(c.Source.Tileservers)
	if c.Source.URLFormats != "" {
		fromFile, err := urltemplate.LoadCatalogFile(c.Source.URLFormats)
		if err != nil {
			return nil, err
		}
		catalog = catalog.Merge(fromFile)
	}
	return catalog.Select(c.Source.Tileserver, c.Source.URLTemplate)
}

// ManifestName returns the manifest file name for an AOI base name
func (c *Config) ManifestName(base string) string {
	server := strings.ToLower(c.Source.Tileserver)
	if c.Source.URLTemplate != "" && server == "" {
		server = "custom"
	}
	return fmt.Sprintf("%s_%s.csv", base, server)
}
