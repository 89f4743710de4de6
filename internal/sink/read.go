package sink

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/registry"
)

// PlaceIDsFromFile collects place ids from a previous export. CSV and XLSX
// files are read through their place_id column; anything else is treated as
// one id per line.
func PlaceIDsFromFile(path string) (registry.Set, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		header, rows, err := ReadCSV(path)
		if err != nil {
			return nil, err
		}
		return idsFromTable(path, header, rows)
	case ".xlsx":
		rows, err := ReadXLSX(path, "")
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return registry.NewSet(), nil
		}
		return idsFromTable(path, rows[0], rows[1:])
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "sink: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return registry.ParseIDs(f)
	}
}

func idsFromTable(path string, header []string, rows [][]string) (registry.Set, error) {
	set := registry.NewSet()
	if header == nil {
		return set, nil
	}
	col := slices.Index(header, "place_id")
	if col < 0 {
		return nil, eris.Errorf("sink: %s has no place_id column", path)
	}
	for _, row := range rows {
		if col < len(row) {
			set.Add(strings.TrimSpace(row[col]))
		}
	}
	return set, nil
}
