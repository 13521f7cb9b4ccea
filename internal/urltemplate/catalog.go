// internal/urltemplate/catalog.go - Named tile server lookup
package urltemplate

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/valpere/aoi_to_mbtiles/internal"
)

// Catalog maps tile server names to URL templates
type Catalog map[string]string

// NewCatalog builds a catalog from configured entries
func NewCatalog(entries map[string]string) Catalog {
	c := make(Catalog, len(entries))
	for name, tmpl := range entries {
		c[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(tmpl)
	}
	return c
}

// LoadCatalogFile reads a formats file with one "name template" pair per line.
// Blank lines and lines starting with # are ignored.
func LoadCatalogFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot open URL formats file %s", path), err)
	}
	defer f.Close()

	return ReadCatalog(f)
}

// ReadCatalog parses the formats file syntax from r
func ReadCatalog(r io.Reader) (Catalog, error) {
	c := make(Catalog)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, internal.NewError(internal.ErrorCodeConfig, fmt.Sprintf("line %d: expected 'name template', got %q", lineNo, line), nil)
		}
		c[strings.ToLower(fields[0])] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, "failed to read URL formats", err)
	}
	return c, nil
}

// Merge copies entries from other, overriding existing names
func (c Catalog) Merge(other Catalog) Catalog {
	for name, tmpl := range other {
		c[name] = tmpl
	}
	return c
}

// Names returns the sorted tile server names
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select picks the template to use: an explicit template wins over the named server
func (c Catalog) Select(name, explicit string) (*Template, error) {
	if strings.TrimSpace(explicit) != "" {
		return Parse(explicit)
	}

	raw, ok := c[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, internal.NewError(internal.ErrorCodeNotFound,
			fmt.Sprintf("unknown tile server %q (known: %s)", name, strings.Join(c.Names(), ", ")), nil)
	}
	return Parse(raw)
}
