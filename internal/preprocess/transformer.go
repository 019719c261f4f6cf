// Package preprocess implements the single fitted transform shared by the
// training pipeline and the serving path. Serving correctness depends on
// both sides applying the identical transform, so the fitted state is
// serialized into the model artifact and never reimplemented elsewhere.
package preprocess

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stayml/bookingcast/internal/dataset"
	"github.com/stayml/bookingcast/internal/platform/apperr"
)

type Bounds struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

type CategoryEncoder struct {
	// Values is the sorted fitted vocabulary; ordinal code = index.
	Values []string `json:"values"`
	OneHot bool     `json:"one_hot"`
}

func (e CategoryEncoder) code(v string) (int, bool) {
	for i, val := range e.Values {
		if val == v {
			return i, true
		}
	}
	return -1, false
}

// Transformer derives features, imputes missing values, clips outliers by
// interquartile range, and encodes categoricals. Fit on the training
// partition only; Transform applies the fitted state identically to any
// partition or single record.
type Transformer struct {
	Numerical   []string `json:"numerical"`
	Categorical []string `json:"categorical"`
	Target      string   `json:"target"`
	OneHotMax   int      `json:"one_hot_max"`

	Fitted        bool                       `json:"fitted"`
	Derivations   []derivation               `json:"derivations"`
	NumImpute     map[string]float64         `json:"num_impute"`
	CatImpute     map[string]string          `json:"cat_impute"`
	Bounds        map[string]Bounds          `json:"bounds"`
	Encoders      map[string]CategoryEncoder `json:"encoders"`
	TargetClasses []string                   `json:"target_classes"`
}

func NewTransformer(numerical, categorical []string, target string, oneHotMax int) *Transformer {
	return &Transformer{
		Numerical:   append([]string{}, numerical...),
		Categorical: append([]string{}, categorical...),
		Target:      target,
		OneHotMax:   oneHotMax,
	}
}

// InputColumns are the raw columns a record must provide.
func (tr *Transformer) InputColumns() []string {
	out := append([]string{}, tr.Numerical...)
	return append(out, tr.Categorical...)
}

// FeatureNames is the fitted output feature order: configured numericals,
// active derived features, then encoded categoricals (one-hot columns
// expand to "col=value").
func (tr *Transformer) FeatureNames() []string {
	var out []string
	out = append(out, tr.Numerical...)
	for _, d := range tr.Derivations {
		out = append(out, d.Name)
	}
	for _, c := range tr.Categorical {
		enc := tr.Encoders[c]
		if enc.OneHot {
			for _, v := range enc.Values {
				out = append(out, c+"="+v)
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// PositiveLabel is the raw target value encoded as class 1.
func (tr *Transformer) PositiveLabel() string {
	if len(tr.TargetClasses) == 2 {
		return tr.TargetClasses[1]
	}
	return ""
}

// Fit computes imputation values, outlier bounds, category vocabularies,
// and the target encoding from the training partition. Any configured
// column absent from the input is a hard data error.
func (tr *Transformer) Fit(t *dataset.Table) error {
	if err := tr.checkColumns(t, true); err != nil {
		return err
	}

	tr.Derivations = nil
	configured := map[string]bool{}
	for _, c := range tr.InputColumns() {
		configured[c] = true
	}
	for _, d := range allDerivations {
		if configured[d.Name] {
			continue
		}
		ok := true
		for _, b := range d.Bases {
			if !configured[b] {
				ok = false
				break
			}
		}
		if ok {
			tr.Derivations = append(tr.Derivations, d)
		}
	}

	tr.NumImpute = map[string]float64{}
	tr.CatImpute = map[string]string{}
	tr.Bounds = map[string]Bounds{}
	tr.Encoders = map[string]CategoryEncoder{}

	for _, col := range tr.Numerical {
		cells, err := t.Column(col)
		if err != nil {
			return err
		}
		var present []float64
		for _, cell := range cells {
			if v, ok := dataset.ParseFloat(cell); ok {
				present = append(present, v)
			}
		}
		if len(present) == 0 {
			return apperr.Data("fit", fmt.Errorf("numerical column %q has no parseable values", col))
		}
		tr.NumImpute[col] = median(present)
	}

	for _, col := range tr.Categorical {
		cells, err := t.Column(col)
		if err != nil {
			return err
		}
		var present []string
		for _, cell := range cells {
			if !dataset.IsMissing(cell) {
				present = append(present, strings.TrimSpace(cell))
			}
		}
		if len(present) == 0 {
			return apperr.Data("fit", fmt.Errorf("categorical column %q has no values", col))
		}
		tr.CatImpute[col] = mode(present)
	}

	// Bounds fit on imputed values so sparse columns do not skew quartiles.
	numRows := tr.numericRows(t)
	for _, col := range tr.Numerical {
		tr.Bounds[col] = fitBounds(columnOf(numRows, col))
	}
	for _, d := range tr.Derivations {
		vals := make([]float64, len(numRows))
		for i, row := range numRows {
			vals[i] = d.compute(row)
		}
		tr.Bounds[d.Name] = fitBounds(vals)
	}

	for _, col := range tr.Categorical {
		cells, _ := t.Column(col)
		uniq := map[string]bool{}
		for _, cell := range cells {
			v := strings.TrimSpace(cell)
			if dataset.IsMissing(cell) {
				v = tr.CatImpute[col]
			}
			uniq[v] = true
		}
		values := make([]string, 0, len(uniq))
		for v := range uniq {
			values = append(values, v)
		}
		sort.Strings(values)
		tr.Encoders[col] = CategoryEncoder{
			Values: values,
			OneHot: tr.OneHotMax > 0 && len(values) <= tr.OneHotMax,
		}
	}

	targetCells, err := t.Column(tr.Target)
	if err != nil {
		return err
	}
	tuniq := map[string]bool{}
	for _, cell := range targetCells {
		if dataset.IsMissing(cell) {
			return apperr.Data("fit", fmt.Errorf("target column %q contains missing values", tr.Target))
		}
		tuniq[strings.TrimSpace(cell)] = true
	}
	tr.TargetClasses = make([]string, 0, len(tuniq))
	for v := range tuniq {
		tr.TargetClasses = append(tr.TargetClasses, v)
	}
	sort.Strings(tr.TargetClasses)
	if len(tr.TargetClasses) != 2 {
		return apperr.Data("fit", fmt.Errorf("target column %q has %d classes, want 2", tr.Target, len(tr.TargetClasses)))
	}

	tr.Fitted = true
	return nil
}

// Transform applies the fitted state to a table. Already-processed tables
// (whose columns are exactly the fitted output schema) pass through, which
// makes the transform idempotent. The output never contains missing values.
func (tr *Transformer) Transform(t *dataset.Table, withTarget bool) (*dataset.Matrix, error) {
	if !tr.Fitted {
		return nil, apperr.Model("transform", fmt.Errorf("transformer is not fitted"))
	}
	if tr.isProcessed(t, withTarget) {
		target := ""
		if withTarget {
			target = tr.Target
		}
		m, err := dataset.MatrixFromTable(t, target)
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	if err := tr.checkColumns(t, withTarget); err != nil {
		return nil, err
	}

	m := &dataset.Matrix{FeatureNames: tr.FeatureNames()}
	if withTarget {
		m.TargetName = tr.Target
		m.Y = make([]float64, 0, len(t.Rows))
	}

	targetIdx := -1
	if withTarget {
		targetIdx = t.ColumnIndex(tr.Target)
	}

	colIdx := map[string]int{}
	for _, c := range tr.InputColumns() {
		colIdx[c] = t.ColumnIndex(c)
	}

	m.X = make([][]float64, 0, len(t.Rows))
	for ri, row := range t.Rows {
		vec, err := tr.transformCells(func(col string) string { return row[colIdx[col]] }, false)
		if err != nil {
			return nil, err
		}
		m.X = append(m.X, vec)

		if withTarget {
			y, ok := tr.encodeTarget(row[targetIdx])
			if !ok {
				return nil, apperr.Data("transform", fmt.Errorf("row %d: unknown target value %q", ri, row[targetIdx]))
			}
			m.Y = append(m.Y, y)
		}
	}
	return m, nil
}

// ApplyRecord transforms a single incoming record on the serving path.
// Validation is strict: every fitted input column must be present,
// numerics must parse, and categorical values must belong to the fitted
// vocabulary. Failures are model errors surfaced as 400-class responses.
func (tr *Transformer) ApplyRecord(rec map[string]string) ([]float64, error) {
	if !tr.Fitted {
		return nil, apperr.Model("apply record", fmt.Errorf("transformer is not fitted"))
	}
	for _, col := range tr.InputColumns() {
		if cell, ok := rec[col]; !ok || dataset.IsMissing(cell) {
			return nil, apperr.Model("apply record", fmt.Errorf("missing required field %q", col))
		}
	}
	return tr.transformCells(func(col string) string { return rec[col] }, true)
}

// transformCells produces one output vector. In strict mode malformed
// numerics and unseen categories are errors; otherwise they impute or
// encode to the unknown code.
func (tr *Transformer) transformCells(cell func(string) string, strict bool) ([]float64, error) {
	numRow := map[string]float64{}
	for _, col := range tr.Numerical {
		raw := cell(col)
		v, ok := dataset.ParseFloat(raw)
		if !ok {
			if strict {
				return nil, apperr.Model("transform", fmt.Errorf("field %q: invalid numeric value %q", col, raw))
			}
			v = tr.NumImpute[col]
		}
		numRow[col] = v
	}

	vec := make([]float64, 0, len(tr.FeatureNames()))
	for _, col := range tr.Numerical {
		vec = append(vec, clip(numRow[col], tr.Bounds[col]))
	}
	for _, d := range tr.Derivations {
		vec = append(vec, clip(d.compute(numRow), tr.Bounds[d.Name]))
	}

	for _, col := range tr.Categorical {
		raw := strings.TrimSpace(cell(col))
		enc := tr.Encoders[col]

		code := -1
		switch {
		case dataset.IsMissing(raw):
			if strict {
				return nil, apperr.Model("transform", fmt.Errorf("missing required field %q", col))
			}
			code, _ = enc.code(tr.CatImpute[col])
		default:
			if c, ok := enc.code(raw); ok {
				code = c
			} else if c, numeric := alreadyEncoded(raw, len(enc.Values)); numeric {
				code = c
			} else if strict {
				return nil, apperr.Model("transform", fmt.Errorf("field %q: value %q is not an accepted category", col, raw))
			}
		}

		if enc.OneHot {
			for i := range enc.Values {
				if i == code {
					vec = append(vec, 1)
				} else {
					vec = append(vec, 0)
				}
			}
			continue
		}
		vec = append(vec, float64(code))
	}
	return vec, nil
}

func (tr *Transformer) encodeTarget(cell string) (float64, bool) {
	v := strings.TrimSpace(cell)
	for i, c := range tr.TargetClasses {
		if c == v {
			return float64(i), true
		}
	}
	// Re-encoded targets pass through.
	if c, ok := alreadyEncoded(v, len(tr.TargetClasses)); ok {
		return float64(c), true
	}
	return 0, false
}

func (tr *Transformer) checkColumns(t *dataset.Table, withTarget bool) error {
	var missing []string
	for _, col := range tr.InputColumns() {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if withTarget && !t.HasColumn(tr.Target) {
		missing = append(missing, tr.Target)
	}
	if len(missing) > 0 {
		return apperr.Data("validate columns", fmt.Errorf("configured columns missing from input: %v", missing))
	}
	return nil
}

func (tr *Transformer) isProcessed(t *dataset.Table, withTarget bool) bool {
	want := tr.FeatureNames()
	if withTarget {
		want = append(want, tr.Target)
	}
	if len(t.Columns) != len(want) {
		return false
	}
	for i, c := range t.Columns {
		if c != want[i] {
			return false
		}
	}
	return true
}

// numericRows materializes imputed numeric base columns for fitting.
func (tr *Transformer) numericRows(t *dataset.Table) []map[string]float64 {
	out := make([]map[string]float64, len(t.Rows))
	idx := map[string]int{}
	for _, col := range tr.Numerical {
		idx[col] = t.ColumnIndex(col)
	}
	for i, row := range t.Rows {
		numRow := map[string]float64{}
		for _, col := range tr.Numerical {
			v, ok := dataset.ParseFloat(row[idx[col]])
			if !ok {
				v = tr.NumImpute[col]
			}
			numRow[col] = v
		}
		out[i] = numRow
	}
	return out
}

func columnOf(rows []map[string]float64, col string) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r[col]
	}
	return out
}

// fitBounds computes Tukey fences at 1.5 IQR.
func fitBounds(values []float64) Bounds {
	q1 := quantile(values, 0.25)
	q3 := quantile(values, 0.75)
	iqr := q3 - q1
	return Bounds{Lo: q1 - 1.5*iqr, Hi: q3 + 1.5*iqr}
}

func clip(v float64, b Bounds) float64 {
	if b.Lo == 0 && b.Hi == 0 {
		return v
	}
	if v < b.Lo {
		return b.Lo
	}
	if v > b.Hi {
		return b.Hi
	}
	return v
}

// alreadyEncoded recognizes cells that are valid ordinal codes, so
// transforming already-encoded data is a no-op rather than an error.
func alreadyEncoded(cell string, cardinality int) (int, bool) {
	v, ok := dataset.ParseFloat(cell)
	if !ok {
		return -1, false
	}
	c := int(v)
	if float64(c) != v || c < -1 || c >= cardinality {
		return -1, false
	}
	return c, true
}
