package dataset

import (
	"fmt"

	"github.com/stayml/bookingcast/internal/platform/apperr"
)

// Matrix is a fully numeric feature table with an optional target vector.
// It is what preprocessing emits and what training consumes.
type Matrix struct {
	FeatureNames []string
	TargetName   string
	X            [][]float64
	Y            []float64
}

func (m *Matrix) NumRows() int     { return len(m.X) }
func (m *Matrix) NumFeatures() int { return len(m.FeatureNames) }

// ToTable renders the matrix back into a string table, with the target
// column last when present.
func (m *Matrix) ToTable() *Table {
	cols := append([]string{}, m.FeatureNames...)
	hasTarget := m.TargetName != "" && len(m.Y) == len(m.X)
	if hasTarget {
		cols = append(cols, m.TargetName)
	}
	t := New(cols)
	t.Rows = make([][]string, 0, len(m.X))
	for i, row := range m.X {
		cells := make([]string, 0, len(cols))
		for _, v := range row {
			cells = append(cells, FormatFloat(v))
		}
		if hasTarget {
			cells = append(cells, FormatFloat(m.Y[i]))
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// MatrixFromTable parses a fully numeric table into a matrix. targetName
// may be empty for feature-only tables. Any unparseable cell is a data
// error; processed data must not contain missing values.
func MatrixFromTable(t *Table, targetName string) (*Matrix, error) {
	targetIdx := -1
	if targetName != "" {
		targetIdx = t.ColumnIndex(targetName)
		if targetIdx < 0 {
			return nil, apperr.Data("matrix from table", fmt.Errorf("target column %q not present", targetName))
		}
	}

	m := &Matrix{TargetName: targetName}
	for i, c := range t.Columns {
		if i == targetIdx {
			continue
		}
		m.FeatureNames = append(m.FeatureNames, c)
	}

	m.X = make([][]float64, 0, len(t.Rows))
	if targetIdx >= 0 {
		m.Y = make([]float64, 0, len(t.Rows))
	}
	for ri, row := range t.Rows {
		vec := make([]float64, 0, len(m.FeatureNames))
		for ci, cell := range row {
			v, ok := ParseFloat(cell)
			if !ok {
				return nil, apperr.Data("matrix from table", fmt.Errorf("row %d column %q: non-numeric cell %q", ri, t.Columns[ci], cell))
			}
			if ci == targetIdx {
				m.Y = append(m.Y, v)
				continue
			}
			vec = append(vec, v)
		}
		m.X = append(m.X, vec)
	}
	return m, nil
}
