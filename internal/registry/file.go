package registry

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileRegistry stores one place ID per line in a plain text file.
type FileRegistry struct {
	path string
	mu   sync.Mutex
}

// NewFileRegistry returns a registry backed by the file at path. The file
// and its parent directory are created on first Save.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// Path returns the backing file path.
func (r *FileRegistry) Path() string { return r.path }

// Load reads every non-blank line as an ID. A missing file is an empty set.
func (r *FileRegistry) Load(_ context.Context) (Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileRegistry) load() (Set, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSet(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(ErrStorageRead, "registry: open %s: %v", r.path, err)
	}
	defer f.Close() //nolint:errcheck

	ids, err := ParseIDs(f)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageRead, "registry: scan %s: %v", r.path, err)
	}
	return ids, nil
}

// ParseIDs reads one ID per line, trimming whitespace and skipping blanks.
func ParseIDs(rd io.Reader) (Set, error) {
	ids := NewSet()
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		ids.Add(strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Save appends the IDs not already present in the file.
func (r *FileRegistry) Save(_ context.Context, ids Set) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load()
	if err != nil {
		return err
	}
	fresh := ids.Difference(existing)
	if fresh.Len() == 0 {
		return nil
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(ErrStorageWrite, "registry: create dir %s: %v", dir, err)
		}
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return eris.Wrapf(ErrStorageWrite, "registry: open %s: %v", r.path, err)
	}

	w := bufio.NewWriter(f)
	unterminated, err := endsMidLine(f)
	if err != nil {
		_ = f.Close()
		return eris.Wrapf(ErrStorageWrite, "registry: inspect %s: %v", r.path, err)
	}
	if unterminated {
		_ = w.WriteByte('\n')
	}
	for _, id := range fresh.Sorted() {
		if _, err := w.WriteString(id + "\n"); err != nil {
			_ = f.Close()
			return eris.Wrapf(ErrStorageWrite, "registry: write %s: %v", r.path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return eris.Wrapf(ErrStorageWrite, "registry: flush %s: %v", r.path, err)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(ErrStorageWrite, "registry: close %s: %v", r.path, err)
	}

	zap.L().Debug("registry: appended ids",
		zap.String("path", r.path),
		zap.Int("count", fresh.Len()),
	)
	return nil
}

// endsMidLine reports whether f is non-empty and its last byte is not a
// newline, as left by a hand edit or an interrupted write.
func endsMidLine(f *os.File) (bool, error) {
	st, err := f.Stat()
	if err != nil {
		return false, err
	}
	if st.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, st.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}
