// internal/tile/processor.go - Response classification and file naming
package tile

import (
	"strings"
)

// DefaultMinTileSize is the body length at or below which a response is treated as "no tile here"
const DefaultMinTileSize = 1040

// jpegOnlyProviders are URL markers of providers that serve JPEG without saying so in the path
var jpegOnlyProviders = []string{"google"}

// Classifier maps a successful response body to an outcome
type Classifier struct {
	minSize int
}

// NewClassifier creates a classifier with the given size threshold
func NewClassifier(minSize int) *Classifier {
	if minSize < 0 {
		minSize = 0
	}
	return &Classifier{minSize: minSize}
}

// Classify returns TooSmall for bodies of at most minSize bytes, Success otherwise
func (c *Classifier) Classify(size int) Outcome {
	if size <= c.minSize {
		return TooSmall
	}
	return Success
}

// ExtensionForURL infers the image file extension for a tile URL
func ExtensionForURL(url string) string {
	lower := strings.ToLower(url)
	if strings.Contains(lower, ".jpg") || strings.Contains(lower, ".jpeg") {
		return "jpg"
	}
	for _, marker := range jpegOnlyProviders {
		if strings.Contains(lower, marker) {
			return "jpg"
		}
	}
	return "png"
}

// FormatForExtension normalizes an image file extension to an MBTiles format name
func FormatForExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "jpg"
	case "png":
		return "png"
	case "webp":
		return "webp"
	default:
		return ""
	}
}
