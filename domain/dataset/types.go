package dataset

import (
	"fmt"
	"sort"

	"lraide/domain/core"
)

// Row maps a column name to its cell value. A Row is never modified after it
// has been placed in a Dataset; edits build a new Row.
type Row map[string]Value

// Get returns the cell for column, Missing when absent.
func (r Row) Get(column string) Value {
	if r == nil {
		return Missing()
	}
	return r[column]
}

// with returns a copy of r with column set to v.
func (r Row) with(column string, v Value) Row {
	out := make(Row, len(r)+1)
	for k, val := range r {
		out[k] = val
	}
	out[column] = v
	return out
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Dataset is an ordered table of rows plus the ordered column list.
//
// A Dataset is a persistent value: every edit returns a new Dataset and leaves
// the receiver untouched. Unchanged rows are shared between versions, which is
// safe because rows are never mutated.
type Dataset struct {
	columns []string
	rows    []Row
}

// New builds a Dataset from parsed input. Inputs are copied.
func New(columns []string, rows []Row) (*Dataset, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c == "" {
			return nil, core.NewColumnError(c, "is empty")
		}
		if seen[c] {
			return nil, core.NewColumnError(c, "is duplicated")
		}
		seen[c] = true
	}

	d := &Dataset{
		columns: append([]string(nil), columns...),
		rows:    make([]Row, len(rows)),
	}
	for i, r := range rows {
		d.rows[i] = r.clone()
	}
	return d, nil
}

// Empty returns a dataset with the given columns and no rows.
func Empty(columns ...string) *Dataset {
	d, err := New(columns, nil)
	if err != nil {
		return &Dataset{}
	}
	return d
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// Columns returns a copy of the column names in display order.
func (d *Dataset) Columns() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.columns...)
}

// HasColumn reports whether name is a column.
func (d *Dataset) HasColumn(name string) bool {
	return d.columnIndex(name) >= 0
}

func (d *Dataset) columnIndex(name string) int {
	if d == nil {
		return -1
	}
	for i, c := range d.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Row returns row i. Callers must not modify the returned map.
func (d *Dataset) Row(i int) Row {
	return d.rows[i]
}

// Rows returns the row slice header copy; the rows themselves are shared.
func (d *Dataset) Rows() []Row {
	if d == nil {
		return nil
	}
	return append([]Row(nil), d.rows...)
}

// Select returns the rows at the given indices, in the order given.
func (d *Dataset) Select(indices []int) []Row {
	out := make([]Row, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(d.rows) {
			out = append(out, d.rows[i])
		}
	}
	return out
}

// Clone returns a structurally independent copy, including fresh row maps.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{
		columns: append([]string(nil), d.columns...),
		rows:    make([]Row, len(d.rows)),
	}
	for i, r := range d.rows {
		out.rows[i] = r.clone()
	}
	return out
}

func (d *Dataset) checkRow(i int) error {
	if i < 0 || i >= len(d.rows) {
		return core.NewRowRangeError(i, len(d.rows))
	}
	return nil
}

// WithCell returns a dataset where row i has column set to v.
func (d *Dataset) WithCell(i int, column string, v Value) (*Dataset, error) {
	if err := d.checkRow(i); err != nil {
		return nil, err
	}
	if !d.HasColumn(column) {
		return nil, fmt.Errorf("%w: %q", core.ErrColumnNotFound, column)
	}
	rows := append([]Row(nil), d.rows...)
	rows[i] = rows[i].with(column, v)
	return &Dataset{columns: d.columns, rows: rows}, nil
}

// WithRow appends r. Columns missing from r are filled with zero.
func (d *Dataset) WithRow(r Row) *Dataset {
	row := make(Row, len(d.columns))
	for _, c := range d.columns {
		if v, ok := r[c]; ok {
			row[c] = v
		} else {
			row[c] = Number(0)
		}
	}
	rows := make([]Row, len(d.rows), len(d.rows)+1)
	copy(rows, d.rows)
	return &Dataset{columns: d.columns, rows: append(rows, row)}
}

// WithoutRows removes the given rows. Indices must be unique and in range.
func (d *Dataset) WithoutRows(indices []int) (*Dataset, error) {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		if err := d.checkRow(i); err != nil {
			return nil, err
		}
		if drop[i] {
			return nil, fmt.Errorf("%w: index %d listed twice", core.ErrRowOutOfRange, i)
		}
		drop[i] = true
	}
	rows := make([]Row, 0, len(d.rows)-len(drop))
	for i, r := range d.rows {
		if !drop[i] {
			rows = append(rows, r)
		}
	}
	return &Dataset{columns: d.columns, rows: rows}, nil
}

// WithColumn appends a column filled with fill.
func (d *Dataset) WithColumn(name string, fill Value) (*Dataset, error) {
	if name == "" {
		return nil, core.NewColumnError(name, "is empty")
	}
	if d.HasColumn(name) {
		return nil, core.NewColumnError(name, "already exists")
	}
	rows := make([]Row, len(d.rows))
	for i, r := range d.rows {
		rows[i] = r.with(name, fill)
	}
	cols := append(append([]string(nil), d.columns...), name)
	return &Dataset{columns: cols, rows: rows}, nil
}

// WithoutColumn drops column name from every row.
func (d *Dataset) WithoutColumn(name string) (*Dataset, error) {
	idx := d.columnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", core.ErrColumnNotFound, name)
	}
	cols := make([]string, 0, len(d.columns)-1)
	cols = append(cols, d.columns[:idx]...)
	cols = append(cols, d.columns[idx+1:]...)

	rows := make([]Row, len(d.rows))
	for i, r := range d.rows {
		nr := r.clone()
		delete(nr, name)
		rows[i] = nr
	}
	return &Dataset{columns: cols, rows: rows}, nil
}

// WithRenamedColumn renames oldName to newName, keeping its display position.
func (d *Dataset) WithRenamedColumn(oldName, newName string) (*Dataset, error) {
	idx := d.columnIndex(oldName)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", core.ErrColumnNotFound, oldName)
	}
	if newName == "" {
		return nil, core.NewColumnError(newName, "is empty")
	}
	if oldName == newName {
		return nil, core.NewColumnError(newName, "is unchanged")
	}
	if d.HasColumn(newName) {
		return nil, core.NewColumnError(newName, "already exists")
	}
	cols := append([]string(nil), d.columns...)
	cols[idx] = newName

	rows := make([]Row, len(d.rows))
	for i, r := range d.rows {
		nr := make(Row, len(r))
		for k, v := range r {
			if k == oldName {
				nr[newName] = v
			} else {
				nr[k] = v
			}
		}
		rows[i] = nr
	}
	return &Dataset{columns: cols, rows: rows}, nil
}

// NumericColumns lists columns that hold at least one finite value, in
// display order.
func (d *Dataset) NumericColumns() []string {
	var out []string
	for _, c := range d.columns {
		for _, r := range d.rows {
			if r.Get(c).IsFinite() {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Table is the portable form of a Dataset used by snapshots and the API.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Table exports d. Rows are copied.
func (d *Dataset) Table() Table {
	t := Table{Columns: d.Columns(), Rows: make([]Row, d.Len())}
	for i, r := range d.rows {
		t.Rows[i] = r.clone()
	}
	return t
}

// FromTable rebuilds a Dataset. Row keys that are not columns are dropped and
// absent cells become Missing.
func FromTable(t Table) (*Dataset, error) {
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(t.Columns))
		for _, c := range t.Columns {
			nr[c] = r.Get(c)
		}
		rows[i] = nr
	}
	return New(t.Columns, rows)
}

// SortedUnique returns indices sorted ascending with duplicates removed.
func SortedUnique(indices []int) []int {
	out := append([]int(nil), indices...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
