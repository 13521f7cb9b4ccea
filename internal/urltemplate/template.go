// internal/urltemplate/template.go - Tile URL template parsing and resolution
package urltemplate

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

var (
	switchPattern      = regexp.MustCompile(`\{switch:([^{}]*)\}`)
	placeholderPattern = regexp.MustCompile(`\{[^{}]*\}`)
)

// Template is a parsed tile URL template
type Template struct {
	raw     string
	choices []string
}

// Parse validates a raw template and prepares it for resolution.
// Unknown placeholders are rejected here, before any tile is requested.
func Parse(raw string) (*Template, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, internal.NewError(internal.ErrorCodeTemplate, "empty URL template", nil)
	}

	tmpl := &Template{raw: raw}

	markers := switchPattern.FindAllStringSubmatch(raw, -1)
	switch len(markers) {
	case 0:
	case 1:
		for _, choice := range strings.Split(markers[0][1], ",") {
			choice = strings.TrimSpace(choice)
			if choice == "" {
				return nil, internal.NewError(internal.ErrorCodeTemplate, fmt.Sprintf("empty choice in switch marker of %q", raw), nil)
			}
			tmpl.choices = append(tmpl.choices, choice)
		}
	default:
		return nil, internal.NewError(internal.ErrorCodeTemplate, fmt.Sprintf("more than one switch marker in %q", raw), nil)
	}

	if _, err := tmpl.Resolve(tilemath.TileAddress{}); err != nil {
		return nil, err
	}

	return tmpl, nil
}

// MustParse is like Parse but panics on error
func MustParse(raw string) *Template {
	tmpl, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return tmpl
}

// String returns the raw template
func (t *Template) String() string {
	return t.raw
}

// Choices returns the values of the switch marker, if any
func (t *Template) Choices() []string {
	return t.choices
}

// Resolve expands the template into a request URL for one tile.
// The switch marker is the only non-deterministic part.
func (t *Template) Resolve(addr tilemath.TileAddress) (string, error) {
	url := t.raw

	if len(t.choices) > 0 {
		choice := t.choices[rand.IntN(len(t.choices))]
		url = switchPattern.ReplaceAllLiteralString(url, choice)
	}

	url = strings.NewReplacer(
		"{x}", strconv.Itoa(addr.X),
		"{y}", strconv.Itoa(addr.Y),
		"{z}", strconv.Itoa(addr.Z),
		"{zoom}", strconv.Itoa(addr.Z),
		"{quadkey}", addr.QuadKey(),
	).Replace(url)

	url = stripPrefix(url)

	if unknown := placeholderPattern.FindString(url); unknown != "" {
		return "", internal.NewError(internal.ErrorCodeTemplate, fmt.Sprintf("unknown placeholder %s in %q", unknown, t.raw), nil)
	}

	return url, nil
}

// stripPrefix drops anything in front of the last http:// or https://
func stripPrefix(url string) string {
	idx := max(strings.LastIndex(url, "https://"), strings.LastIndex(url, "http://"))
	if idx > 0 {
		return url[idx:]
	}
	return url
}
