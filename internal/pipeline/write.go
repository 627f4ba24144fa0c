package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/sanitize"
)

// ErrUnsafeCell is returned by WriteTable when a cell still holds a character
// that would need quoting. Tables built by this package never trigger it.
var ErrUnsafeCell = errors.New("cell contains a delimiter-hostile character")

var bom = []byte{0xEF, 0xBB, 0xBF}

// WriteTable serializes t as BOM-prefixed UTF-8: the canonical header, then
// one comma-joined line per row. Nothing is ever quoted.
func WriteTable(w io.Writer, t feedback.Table) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(bom); err != nil {
		return err
	}
	if err := writeLine(bw, feedback.Columns[:]); err != nil {
		return err
	}
	for i, rec := range t.Rows {
		for c, v := range rec {
			if !sanitize.IsSafe(v) {
				return fmt.Errorf("row %d column %s: %w", i+1, feedback.Columns[c], ErrUnsafeCell)
			}
		}
		if err := writeLine(bw, rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeLine(w *bufio.Writer, cells []string) error {
	if _, err := w.WriteString(strings.Join(cells, ",")); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// WriteFile writes t to path through a temporary file in the same directory,
// so readers never observe a half-written table. Parent dirs are created.
func WriteFile(path string, t feedback.Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := WriteTable(tmp, t); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CleanedPath returns <outDir>/<stem>_limpio.csv for an input path.
func CleanedPath(input, outDir string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, stem+CleanedSuffix+".csv")
}
