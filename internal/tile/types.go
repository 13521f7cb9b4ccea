// internal/tile/types.go - Tile fetching types
package tile

import (
	"context"
	"time"

	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// Outcome classifies a single fetch attempt
type Outcome int

const (
	Success Outcome = iota
	TooSmall
	Timeout
	TransportError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TooSmall:
		return "too_small"
	case Timeout:
		return "timeout"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of Outcome.String
func ParseOutcome(s string) (Outcome, bool) {
	for _, o := range []Outcome{Success, TooSmall, Timeout, TransportError} {
		if o.String() == s {
			return o, true
		}
	}
	return 0, false
}

// Retryable reports whether the outcome leaves a .timeout placeholder for the retry pass
func (o Outcome) Retryable() bool {
	return o == Timeout || o == TransportError
}

// Pass identifies one sweep over the manifest
type Pass int

const (
	PassFirst Pass = iota + 1
	PassRetry
)

func (p Pass) String() string {
	if p == PassRetry {
		return "retry"
	}
	return "first"
}

// TileRequest represents a request for a specific manifest entry
type TileRequest struct {
	Entry   manifest.Entry    `json:"entry"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Address returns the tile the request is for
func (r *TileRequest) Address() tilemath.TileAddress {
	return r.Entry.Tile
}

// FetchResult is the typed outcome of one fetch attempt
type FetchResult struct {
	Request    *TileRequest  `json:"request"`
	Outcome    Outcome       `json:"outcome"`
	Data       []byte        `json:"-"`
	StatusCode int           `json:"status_code"`
	Size       int           `json:"size"`
	FetchTime  time.Duration `json:"fetch_time"`
	Err        error         `json:"-"`
}

// Fetcher downloads one tile. Failures are reported in the result, never as a panic or error return.
type Fetcher interface {
	Fetch(ctx context.Context, request *TileRequest) *FetchResult
}

// NewTileRequest creates a request for a manifest entry
func NewTileRequest(entry manifest.Entry, headers map[string]string) *TileRequest {
	return &TileRequest{
		Entry:   entry,
		Headers: headers,
	}
}
