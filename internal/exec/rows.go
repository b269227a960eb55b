package exec

import (
	"iter"
	"log/slog"
	"slices"
)

// Row is one result row keyed by the projection's output names.
type Row struct {
	names  []string
	values []any
}

// NewRow builds a row. names and values must have the same length.
func NewRow(names []string, values []any) Row {
	return Row{names: names, values: values}
}

// Names returns the output names in projection order.
func (r Row) Names() []string { return slices.Clone(r.names) }

// Values returns the column values in projection order.
func (r Row) Values() []any { return slices.Clone(r.values) }

// Len returns the number of columns.
func (r Row) Len() int { return len(r.values) }

// Index returns the i-th value. It panics if i is out of range.
func (r Row) Index(i int) any { return r.values[i] }

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	i := slices.Index(r.names, name)
	if i < 0 {
		return nil, false
	}
	return r.values[i], true
}

// Map returns the row as a name to value map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.names))
	for i, n := range r.names {
		m[n] = r.values[i]
	}
	return m
}

// Rows is a lazy, single-pass sequence of result rows.
// Rows are read from the cursor on demand. To read them again, run the
// query again.
type Rows struct {
	cursor Cursor
	names  []string
	row    Row
	err    error
	done   bool
	count  int

	execID string
	logger *slog.Logger
}

func newRows(cursor Cursor, names []string, execID string, logger *slog.Logger) *Rows {
	return &Rows{cursor: cursor, names: names, execID: execID, logger: logger}
}

// Columns returns the output names of the query.
func (r *Rows) Columns() []string { return slices.Clone(r.names) }

// ExecID returns the execution id the rows were logged under.
func (r *Rows) ExecID() string { return r.execID }

// Next advances to the next row. The cursor is closed as soon as the rows
// are exhausted or an error occurs.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	if !r.cursor.Next() {
		r.err = r.cursor.Err()
		r.finish()
		return false
	}
	vals, err := r.cursor.Values()
	if err != nil {
		r.err = err
		r.finish()
		return false
	}
	if len(vals) != len(r.names) {
		r.err = &ColumnCountError{Want: len(r.names), Got: len(vals)}
		r.finish()
		return false
	}
	r.row = Row{names: r.names, values: vals}
	r.count++
	return true
}

// Row returns the current row.
func (r *Rows) Row() Row { return r.row }

// Err returns the error that stopped iteration, if any.
func (r *Rows) Err() error { return r.err }

// Close releases the cursor. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.done {
		return nil
	}
	return r.finish()
}

func (r *Rows) finish() error {
	r.done = true
	err := r.cursor.Close()
	if err != nil && r.err == nil {
		r.err = err
	}
	r.logger.Debug("query finished",
		"exec_id", r.execID,
		"rows", r.count,
		"error", r.err,
	)
	return err
}

// Seq returns an iterator over the remaining rows. The cursor is closed when
// the loop ends, including on break. An iteration error is yielded once as
// the final pair.
func (r *Rows) Seq() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		defer r.Close()
		for r.Next() {
			if !yield(r.row, nil) {
				return
			}
		}
		if r.err != nil {
			yield(Row{}, r.err)
		}
	}
}

// Collect reads all remaining rows and closes the cursor.
func (r *Rows) Collect() ([]Row, error) {
	var out []Row
	for row, err := range r.Seq() {
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}
