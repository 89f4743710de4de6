package sink

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// DefaultSheet is the worksheet XLSXSink writes to when none is configured.
const DefaultSheet = "Leads"

// XLSXSink appends leads to a worksheet, creating the workbook and the
// header row on first use.
type XLSXSink struct {
	path  string
	sheet string
	mu    sync.Mutex
}

// NewXLSX returns an XLSXSink writing to sheet in the workbook at path.
func NewXLSX(path, sheet string) *XLSXSink {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &XLSXSink{path: path, sheet: sheet}
}

// Name implements Sink.
func (s *XLSXSink) Name() string { return "xlsx" }

// Write implements Sink.
func (s *XLSXSink) Write(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "xlsx: write")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	sheet, ok := f.Sheet[s.sheet]
	if !ok {
		sheet, err = f.AddSheet(s.sheet)
		if err != nil {
			return eris.Wrapf(err, "xlsx: add sheet %s", s.sheet)
		}
	}
	if len(sheet.Rows) == 0 {
		addRow(sheet, model.LeadColumns)
	}
	for i := range leads {
		addRow(sheet, leads[i].Row())
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return eris.Wrapf(err, "xlsx: create dir for %s", s.path)
	}
	return eris.Wrapf(f.Save(s.path), "xlsx: save %s", s.path)
}

func (s *XLSXSink) open() (*xlsx.File, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return xlsx.NewFile(), nil
	}
	f, err := xlsx.OpenFile(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", s.path)
	}
	return f, nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

// ReadXLSX returns every row of the named sheet as strings. An empty sheet
// name reads the first sheet.
func ReadXLSX(path, sheet string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	var sh *xlsx.Sheet
	switch {
	case sheet != "":
		var ok bool
		if sh, ok = f.Sheet[sheet]; !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", sheet)
		}
	case len(f.Sheets) > 0:
		sh = f.Sheets[0]
	default:
		return nil, nil
	}

	rows := make([][]string, 0, len(sh.Rows))
	for _, row := range sh.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
