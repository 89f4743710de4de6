package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// CSVSink appends leads to a CSV file in model.LeadColumns order. The header
// is written only when the file is created.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSV returns a CSVSink writing to path.
func NewCSV(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Name implements Sink.
func (s *CSVSink) Name() string { return "csv" }

// Path returns the output file.
func (s *CSVSink) Path() string { return s.path }

// Write implements Sink.
func (s *CSVSink) Write(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "csv: write")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.path)
	isNew := errors.Is(statErr, fs.ErrNotExist)
	if statErr != nil && !isNew {
		return eris.Wrapf(statErr, "csv: stat %s", s.path)
	}
	if isNew {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return eris.Wrapf(err, "csv: create dir for %s", s.path)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "csv: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(model.LeadColumns); err != nil {
			return eris.Wrap(err, "csv: write header")
		}
	}
	for i := range leads {
		if err := w.Write(leads[i].Row()); err != nil {
			return eris.Wrapf(err, "csv: write row %s", leads[i].PlaceID)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "csv: flush")
	}
	return eris.Wrap(f.Sync(), "csv: sync")
}

// ReadCSV returns the header and data rows of a CSV file.
func ReadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csv: read %s", path)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}
