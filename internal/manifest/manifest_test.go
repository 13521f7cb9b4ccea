// internal/manifest/manifest_test.go - Unit tests for manifest encoding
package manifest

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

func sampleEntries() []Entry {
	return []Entry{
		{
			Tile: tilemath.TileAddress{Z: 16, X: 39707, Y: 33791},
			WKT:  "POLYGON((38.1 -6.7,38.2 -6.7,38.2 -6.8,38.1 -6.8,38.1 -6.7))",
			URL:  "https://tiles.example.com/16/39707/33791.jpg",
		},
		{
			Tile: tilemath.TileAddress{Z: 16, X: 39708, Y: 33791},
			WKT:  "POLYGON((38.2 -6.7,38.3 -6.7,38.3 -6.8,38.2 -6.8,38.2 -6.7))",
			URL:  "https://tiles.example.com/16/39708/33791.jpg?a=1;b=2",
		},
	}
}

func TestEntryRow(t *testing.T) {
	e := sampleEntries()[0]
	expected := `"POLYGON((38.1 -6.7,38.2 -6.7,38.2 -6.8,38.1 -6.8,38.1 -6.7))";39707;33791;16;https://tiles.example.com/16/39707/33791.jpg`
	if e.Row() != expected {
		t.Errorf("Expected %s, got %s", expected, e.Row())
	}

	parsed, err := ParseRow(e.Row())
	if err != nil {
		t.Fatalf("ParseRow: %v", err)
	}
	if parsed != e {
		t.Errorf("Expected %+v, got %+v", e, parsed)
	}
}

func TestWriteHeaderAndQuoting(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleEntries()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "wkt;TileX;TileY;TileZ;URL" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], `"POLYGON`) {
		t.Errorf("Expected WKT column to be quoted, got %q", lines[1])
	}
}

func TestReadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aoi_tiles.csv")
	entries := sampleEntries()
	if err := WriteFile(path, entries); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Errorf("Entry %d: expected %+v, got %+v", i, entries[i], got[i])
		}
	}
}

func TestReadRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong header", "a;b;c;d;e\n"},
		{"non numeric x", "wkt;TileX;TileY;TileZ;URL\n\"P\";x;1;1;http://e/1\n"},
		{"tile out of range", "wkt;TileX;TileY;TileZ;URL\n\"P\";4;1;1;http://e/1\n"},
		{"missing url", "wkt;TileX;TileY;TileZ;URL\n\"P\";0;1;1;\n"},
		{"short row", "wkt;TileX;TileY;TileZ;URL\n\"P\";0;1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			if !internal.IsCode(err, internal.ErrorCodeValidation) {
				t.Errorf("Expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestReadToleratesCRLF(t *testing.T) {
	input := "wkt;TileX;TileY;TileZ;URL\r\n\"P\";1;0;1;http://e/1/1/0\r\n"
	entries, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != "http://e/1/1/0" {
		t.Errorf("Unexpected entries %+v", entries)
	}
}

func TestLessOrdersByZoomRowColumn(t *testing.T) {
	entries := []Entry{
		{Tile: tilemath.TileAddress{Z: 2, X: 0, Y: 0}},
		{Tile: tilemath.TileAddress{Z: 1, X: 1, Y: 1}},
		{Tile: tilemath.TileAddress{Z: 1, X: 0, Y: 1}},
		{Tile: tilemath.TileAddress{Z: 1, X: 1, Y: 0}},
	}
	sort.Slice(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })

	want := []string{"1/1/0", "1/0/1", "1/1/1", "2/0/0"}
	for i, e := range entries {
		if e.Tile.String() != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], e.Tile)
		}
	}
}
