// internal/urltemplate/catalog_test.go - Unit tests for the tile server catalog
package urltemplate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

const formats = `# name template
osm https://{switch:a,b,c}.tile.example.org/{z}/{x}/{y}.png

Aerial https://aerial.example.com/tiles/{quadkey}.jpeg
`

func TestReadCatalog(t *testing.T) {
	c, err := ReadCatalog(strings.NewReader(formats))
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}

	names := c.Names()
	if len(names) != 2 || names[0] != "aerial" || names[1] != "osm" {
		t.Errorf("Expected names [aerial osm], got %v", names)
	}
}

func TestReadCatalogMalformedLine(t *testing.T) {
	_, err := ReadCatalog(strings.NewReader("only-a-name\n"))
	if !internal.IsCode(err, internal.ErrorCodeConfig) {
		t.Errorf("Expected CONFIG_ERROR, got %v", err)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "URL_formats.txt")
	if err := os.WriteFile(path, []byte(formats), 0o644); err != nil {
		t.Fatalf("write formats: %v", err)
	}

	c, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	if _, ok := c["osm"]; !ok {
		t.Error("Expected osm entry")
	}

	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "missing.txt")); !internal.IsCode(err, internal.ErrorCodeFileSystem) {
		t.Errorf("Expected FILESYSTEM_ERROR for missing file, got %v", err)
	}
}

func TestCatalogSelect(t *testing.T) {
	c := NewCatalog(map[string]string{"Aerial": "https://aerial.example.com/{z}/{x}/{y}.jpg"})
	c.Merge(Catalog{"streets": "https://streets.example.com/{z}/{x}/{y}.png"})

	tests := []struct {
		name     string
		server   string
		explicit string
		want     string
		wantErr  bool
	}{
		{"named server", "aerial", "", "https://aerial.example.com/2/1/0.jpg", false},
		{"name is case insensitive", "AERIAL", "", "https://aerial.example.com/2/1/0.jpg", false},
		{"merged server", "streets", "", "https://streets.example.com/2/1/0.png", false},
		{"explicit template wins", "aerial", "https://other.example.com/{z}/{x}/{y}", "https://other.example.com/2/1/0", false},
		{"unknown server", "nope", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := c.Select(tt.server, tt.explicit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Select() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !internal.IsCode(err, internal.ErrorCodeNotFound) {
					t.Errorf("Expected NOT_FOUND, got %v", err)
				}
				return
			}
			got, err := tmpl.Resolve(tilemath.TileAddress{Z: 2, X: 1, Y: 0})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
