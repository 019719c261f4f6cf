// Package dataset holds the in-memory tabular representation shared by
// ingestion, preprocessing, and training. Raw cells stay strings until the
// preprocessing transform encodes them; transformations produce new tables
// rather than mutating rows in place.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stayml/bookingcast/internal/platform/apperr"
)

type Table struct {
	Columns []string
	Rows    [][]string
}

func New(columns []string) *Table {
	return &Table{Columns: append([]string{}, columns...)}
}

func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, apperr.Data("column lookup", fmt.Errorf("column %q not present", name))
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// AppendColumn adds a column with the given cells. Cell count must match the
// current row count.
func (t *Table) AppendColumn(name string, cells []string) error {
	if t.HasColumn(name) {
		return apperr.Data("append column", fmt.Errorf("column %q already present", name))
	}
	if len(cells) != len(t.Rows) {
		return apperr.Data("append column", fmt.Errorf("column %q has %d cells for %d rows", name, len(cells), len(t.Rows)))
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], cells[i])
	}
	return nil
}

// DropColumn removes the named column if present.
func (t *Table) DropColumn(name string) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return
	}
	t.Columns = append(t.Columns[:idx], t.Columns[idx+1:]...)
	for i, row := range t.Rows {
		t.Rows[i] = append(row[:idx], row[idx+1:]...)
	}
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := New(t.Columns)
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string{}, row...)
	}
	return out
}

// Select returns a new table containing only the rows at the given indices,
// in order.
func (t *Table) Select(indices []int) *Table {
	out := New(t.Columns)
	out.Rows = make([][]string, 0, len(indices))
	for _, i := range indices {
		out.Rows = append(out.Rows, append([]string{}, t.Rows[i]...))
	}
	return out
}

// IsMissing reports whether a cell counts as a missing value.
func IsMissing(cell string) bool {
	s := strings.TrimSpace(cell)
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "na", "n/a", "nan", "null", "none":
		return true
	}
	return false
}

// ParseFloat parses a numeric cell. Missing cells are not numbers.
func ParseFloat(cell string) (float64, bool) {
	if IsMissing(cell) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatFloat renders a numeric value back into a cell, keeping integers
// free of a trailing ".0" so re-reading produces identical cells.
func FormatFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadCSV parses a header-led CSV stream into a table. Ragged rows are a
// data error.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, apperr.Data("read csv", fmt.Errorf("empty input"))
	}
	if err != nil {
		return nil, apperr.Data("read csv header", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := New(header)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Data("read csv row", err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadCSVFile reads a table from a local CSV file.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.IO("open csv file", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV writes the table with its header.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return apperr.IO("write csv header", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return apperr.IO("write csv row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperr.IO("flush csv", err)
	}
	return nil
}

// WriteCSVFile writes the table to a local file, creating parent
// directories as needed.
func (t *Table) WriteCSVFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.IO("create output dir", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return apperr.IO("create csv file", err)
	}
	defer f.Close()
	return t.WriteCSV(f)
}
