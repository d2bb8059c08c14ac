package insight

import (
	"math"
	"sort"
	"strings"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/duck"
)

// tableView is a column-oriented view over a query result with the
// numeric coercion and missing-value handling the detection rules need.
// Column lookups are case-insensitive; nil and NaN values are excluded
// from all statistics rather than failing a rule.
type tableView struct {
	result      duck.Result
	colsByLower map[string]string // lowercase name -> actual name
}

func newTableView(res duck.Result) *tableView {
	v := &tableView{
		result:      res,
		colsByLower: make(map[string]string, len(res.Columns)),
	}
	for _, c := range res.Columns {
		v.colsByLower[strings.ToLower(c)] = c
	}
	return v
}

// hasColumn reports whether a column exists, matched case-insensitively.
func (v *tableView) hasColumn(lower string) bool {
	_, ok := v.colsByLower[lower]
	return ok
}

// columns returns the actual column names.
func (v *tableView) columns() []string {
	return v.result.Columns
}

// numbers returns the non-missing numeric values of a column. Columns
// holding non-numeric values yield nil.
func (v *tableView) numbers(col string) []float64 {
	var out []float64
	for _, row := range v.result.Rows {
		f, ok := asFloat(row[col])
		if !ok || math.IsNaN(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// stringVals returns the non-missing string values of a column.
func (v *tableView) stringVals(lower string) []string {
	col, ok := v.colsByLower[lower]
	if !ok {
		return nil
	}
	var out []string
	for _, row := range v.result.Rows {
		if s, ok := row[col].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// numbersWhere returns the numeric values of col for rows where the
// predicate column (matched case-insensitively) equals want.
func (v *tableView) numbersWhere(col, predLower string, want float64) []float64 {
	pred, ok := v.colsByLower[predLower]
	if !ok {
		return nil
	}
	var out []float64
	for _, row := range v.result.Rows {
		p, ok := asFloat(row[pred])
		if !ok || p != want {
			continue
		}
		f, ok := asFloat(row[col])
		if !ok || math.IsNaN(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func asFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func maxOf(vals []float64) float64 {
	m := math.Inf(-1)
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stdOf is the sample standard deviation, matching the convention of the
// statistics the thresholds were tuned against.
func stdOf(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	mean := meanOf(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)-1))
}

func medianOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
