// internal/tile/fetcher.go - Tile fetching implementation
package tile

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/config"
)

// HTTPFetcher implements the Fetcher interface using HTTP requests
type HTTPFetcher struct {
	client     *http.Client
	classifier *Classifier
	userAgent  string
	headers    map[string]string
}

// NewHTTPFetcher creates a fetcher with the given per-attempt timeout and connection cap
func NewHTTPFetcher(cfg *config.Config, timeout time.Duration, maxConns int) *HTTPFetcher {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Network.MaxIdleConns,
		MaxIdleConnsPerHost: maxConns,
		IdleConnTimeout:     cfg.Network.IdleConnTimeout,
		DisableKeepAlives:   cfg.Network.DisableKeepAlive,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxConnsPerHost:     maxConns,
	}

	// Configure proxy if specified
	if cfg.Network.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.Network.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	return &HTTPFetcher{
		client:     client,
		classifier: NewClassifier(cfg.Fetch.MinTileSize),
		userAgent:  cfg.Network.UserAgent,
		headers:    cfg.Fetch.Headers,
	}
}

// Fetch retrieves a single tile and classifies the response
func (f *HTTPFetcher) Fetch(ctx context.Context, request *TileRequest) *FetchResult {
	start := time.Now()
	result := &FetchResult{Request: request}

	req, err := f.buildHTTPRequest(ctx, request)
	if err != nil {
		result.Outcome = TransportError
		result.Err = internal.NewError(internal.ErrorCodeTransport, "failed to build HTTP request", err)
		return result
	}

	resp, err := f.client.Do(req)
	if err != nil {
		result.FetchTime = time.Since(start)
		result.Outcome, result.Err = classifyTransportError(err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		result.FetchTime = time.Since(start)
		result.Outcome = TransportError
		result.Err = internal.NewError(internal.ErrorCodeTransport, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), nil)
		return result
	}

	// Handle compressed responses
	var reader io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			result.FetchTime = time.Since(start)
			result.Outcome = TransportError
			result.Err = internal.NewError(internal.ErrorCodeTransport, "failed to create gzip reader", err)
			return result
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	// A timeout mid-body drops the partial data
	data, err := io.ReadAll(reader)
	result.FetchTime = time.Since(start)
	if err != nil {
		result.Outcome, result.Err = classifyTransportError(err)
		return result
	}

	result.Size = len(data)
	result.Outcome = f.classifier.Classify(len(data))
	if result.Outcome == Success {
		result.Data = data
	}
	return result
}

// buildHTTPRequest constructs an HTTP request from a tile request
func (f *HTTPFetcher) buildHTTPRequest(ctx context.Context, tileReq *TileRequest) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileReq.Entry.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	// Set default headers
	req.Header.Set("Accept", "image/png,image/jpeg,image/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", f.userAgent)

	// Add configured headers
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	// Add request-specific headers
	for key, value := range tileReq.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// classifyTransportError separates timeouts from other transport failures
func classifyTransportError(err error) (Outcome, error) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Timeout, internal.NewError(internal.ErrorCodeTimeout, "tile request timed out", err)
	}
	return TransportError, internal.NewError(internal.ErrorCodeTransport, "HTTP request failed", err)
}
