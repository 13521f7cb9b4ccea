// internal/config/validation.go - Configuration validation
package config

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/multierr"

	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// Validate validates the configuration structure and values.
// Every violation is reported, not only the first one.
func Validate(config *Config) error {
	var err error

	err = multierr.Append(err, section("source", validateSource(&config.Source)))
	err = multierr.Append(err, section("grid", validateGrid(&config.Grid)))
	err = multierr.Append(err, section("fetch", validateFetch(&config.Fetch)))
	err = multierr.Append(err, section("network", validateNetwork(&config.Network)))
	err = multierr.Append(err, section("tileset", validateTileset(&config.Tileset)))
	err = multierr.Append(err, section("storage", validateStorage(&config.Storage)))
	err = multierr.Append(err, section("logging", validateLogging(&config.Logging)))

	return err
}

func section(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s configuration invalid: %w", name, err)
}

// validateSource validates tile server selection
func validateSource(config *SourceConfig) error {
	if config.Tileserver == "" && config.URLTemplate == "" {
		return fmt.Errorf("tileserver or url_template is required")
	}
	return nil
}

// validateGrid validates the zoom range
func validateGrid(config *GridConfig) error {
	var err error
	if config.MinZoom < 0 || config.MinZoom > tilemath.MaxZoom {
		err = multierr.Append(err, fmt.Errorf("min_zoom must be between 0 and %d", tilemath.MaxZoom))
	}
	if config.MaxZoom < 0 || config.MaxZoom > tilemath.MaxZoom {
		err = multierr.Append(err, fmt.Errorf("max_zoom must be between 0 and %d", tilemath.MaxZoom))
	}
	if config.MinZoom > config.MaxZoom {
		err = multierr.Append(err, fmt.Errorf("min_zoom %d exceeds max_zoom %d", config.MinZoom, config.MaxZoom))
	}
	return err
}

// validateFetch validates the two-pass fetch parameters
func validateFetch(config *FetchConfig) error {
	var err error

	if config.Workers <= 0 {
		err = multierr.Append(err, fmt.Errorf("workers must be positive"))
	}
	if config.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("timeout must be positive"))
	}
	if config.RetryWorkers <= 0 {
		err = multierr.Append(err, fmt.Errorf("retry_workers must be positive"))
	}
	if config.RetryWorkers >= config.Workers {
		err = multierr.Append(err, fmt.Errorf("retry_workers must be less than workers"))
	}
	if config.RetryTimeout <= config.Timeout {
		err = multierr.Append(err, fmt.Errorf("retry_timeout must exceed timeout"))
	}
	if config.MinTileSize < 0 {
		err = multierr.Append(err, fmt.Errorf("min_tile_size must be non-negative"))
	}

	return err
}

// validateNetwork validates network configuration parameters
func validateNetwork(config *NetworkConfig) error {
	var err error

	if config.ProxyURL != "" {
		if _, perr := url.Parse(config.ProxyURL); perr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid proxy_url: %w", perr))
		}
	}
	if config.MaxIdleConns < 0 {
		err = multierr.Append(err, fmt.Errorf("max_idle_conns must be non-negative"))
	}
	if config.UserAgent == "" {
		err = multierr.Append(err, fmt.Errorf("user_agent cannot be empty"))
	}
	if config.IdleConnTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("idle_conn_timeout must be non-negative"))
	}

	return err
}

// validateTileset validates MBTiles metadata values
func validateTileset(config *TilesetConfig) error {
	var err error

	validTypes := []string{"overlay", "baselayer"}
	if !contains(validTypes, config.Type) {
		err = multierr.Append(err, fmt.Errorf("invalid type: %s, must be one of %v", config.Type, validTypes))
	}

	validFormats := []string{"", "png", "jpg"}
	if !contains(validFormats, config.Format) {
		err = multierr.Append(err, fmt.Errorf("invalid format: %s, must be one of png, jpg or empty", config.Format))
	}

	return err
}

// validateStorage validates upload settings when upload is enabled
func validateStorage(config *StorageConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error
	if config.Endpoint == "" {
		err = multierr.Append(err, fmt.Errorf("endpoint is required"))
	}
	if config.Bucket == "" {
		err = multierr.Append(err, fmt.Errorf("bucket is required"))
	}
	if config.AccessKey == "" || config.SecretKey == "" {
		err = multierr.Append(err, fmt.Errorf("access_key and secret_key are required"))
	}
	return err
}

// validateLogging validates logging configuration parameters
func validateLogging(config *LoggingConfig) error {
	var err error

	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLevels, config.Level) {
		err = multierr.Append(err, fmt.Errorf("invalid log level: %s, must be one of %v", config.Level, validLevels))
	}

	validFormats := []string{"console", "json"}
	if !contains(validFormats, config.Format) {
		err = multierr.Append(err, fmt.Errorf("invalid log format: %s, must be one of %v", config.Format, validFormats))
	}

	return err
}

// contains checks if a string slice contains a specific string (case-insensitive)
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
