package duck

// Result holds the outcome of a SELECT against the embedded database:
// ordered column names and ordered rows. A Result is never mutated after
// it is built; callers that need to hold on to one take a Copy.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Count returns the number of rows.
func (r Result) Count() int {
	return len(r.Rows)
}

// Empty reports whether the result has no rows.
func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

// Copy returns a deep copy of the result so the caller cannot mutate
// the original rows.
func (r Result) Copy() Result {
	out := Result{
		Columns: make([]string, len(r.Columns)),
		Rows:    make([]map[string]any, len(r.Rows)),
	}
	copy(out.Columns, r.Columns)
	for i, row := range r.Rows {
		dup := make(map[string]any, len(row))
		for k, v := range row {
			dup[k] = v
		}
		out.Rows[i] = dup
	}
	return out
}
