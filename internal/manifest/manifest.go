// internal/manifest/manifest.go - Tile manifest entries and CSV encoding
package manifest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// Header is the first line of every manifest file
var Header = []string{"wkt", "TileX", "TileY", "TileZ", "URL"}

// Delimiter separates manifest columns
const Delimiter = ';'

// Entry is one tile of the work list
type Entry struct {
	Tile tilemath.TileAddress `json:"tile"`
	WKT  string               `json:"wkt"`
	URL  string               `json:"url"`
}

// Row renders the entry as a single manifest line without a trailing newline
func (e Entry) Row() string {
	var sb strings.Builder
	sb.WriteString(quote(e.WKT))
	for _, field := range []string{strconv.Itoa(e.Tile.X), strconv.Itoa(e.Tile.Y), strconv.Itoa(e.Tile.Z)} {
		sb.WriteByte(Delimiter)
		sb.WriteString(field)
	}
	sb.WriteByte(Delimiter)
	if strings.ContainsAny(e.URL, `;"`) {
		sb.WriteString(quote(e.URL))
	} else {
		sb.WriteString(e.URL)
	}
	return sb.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Less orders entries by zoom, then row, then column
func Less(a, b Entry) bool {
	if a.Tile.Z != b.Tile.Z {
		return a.Tile.Z < b.Tile.Z
	}
	if a.Tile.Y != b.Tile.Y {
		return a.Tile.Y < b.Tile.Y
	}
	return a.Tile.X < b.Tile.X
}

// Write writes the header followed by one line per entry
func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, string(Delimiter)) + "\n"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := bw.WriteString(e.Row() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes a manifest file, replacing any existing one
func WriteFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot create manifest %s", path), err)
	}

	if err := Write(f, entries); err != nil {
		f.Close()
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to write manifest %s", path), err)
	}
	return f.Close()
}

// Read parses a manifest written by Write
func Read(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, internal.NewError(internal.ErrorCodeValidation, "manifest is empty", nil)
	}
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeValidation, "failed to read manifest header", err)
	}
	for i, name := range Header {
		if strings.TrimSpace(header[i]) != name {
			return nil, internal.NewError(internal.ErrorCodeValidation,
				fmt.Sprintf("unexpected manifest header %q, want %q", strings.Join(header, ";"), strings.Join(Header, ";")), nil)
		}
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, internal.NewError(internal.ErrorCodeValidation, "malformed manifest row", err)
		}

		entry, err := parseRecord(record)
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("manifest line %d", line), err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ReadFile opens and parses a manifest file
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot open manifest %s", path), err)
	}
	defer f.Close()

	return Read(f)
}

// ParseRow parses a single line produced by Entry.Row
func ParseRow(row string) (Entry, error) {
	reader := csv.NewReader(strings.NewReader(row))
	reader.Comma = Delimiter
	reader.FieldsPerRecord = len(Header)

	record, err := reader.Read()
	if err != nil {
		return Entry{}, fmt.Errorf("malformed manifest row: %w", err)
	}
	return parseRecord(record)
}

func parseRecord(record []string) (Entry, error) {
	coords := make([]int, 3)
	for i, field := range record[1:4] {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return Entry{}, fmt.Errorf("invalid %s value %q", Header[i+1], field)
		}
		coords[i] = v
	}

	entry := Entry{
		Tile: tilemath.TileAddress{X: coords[0], Y: coords[1], Z: coords[2]},
		WKT:  record[0],
		URL:  strings.TrimSpace(record[4]),
	}
	if err := entry.Tile.Validate(); err != nil {
		return Entry{}, err
	}
	if entry.URL == "" {
		return Entry{}, fmt.Errorf("empty URL for tile %s", entry.Tile)
	}
	return entry, nil
}
