package tabular

import "slices"

// PreviewRows is the number of rows shown before a table is published.
const PreviewRows = 10

// Row holds one value per table column, aligned with Table.Columns.
type Row []string

// Table is the normalized form of an uploaded document.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// RowMaps returns every row as a column -> value mapping. Each mapping
// contains every column of the table, with "" for absent values.
func (t *Table) RowMaps() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string, len(t.Columns))
		for j, col := range t.Columns {
			m[col] = row[j]
		}
		out[i] = m
	}
	return out
}

// Preview returns a table holding the first n rows of t in their original
// order. A non-positive n selects PreviewRows. t is left unchanged.
func Preview(t *Table, n int) *Table {
	if n <= 0 {
		n = PreviewRows
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}

	rows := make([]Row, n)
	for i := range rows {
		rows[i] = slices.Clone(t.Rows[i])
	}
	return &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    rows,
	}
}

// tableBuilder aligns flattened records into rows. Rows are sized to the
// columns known when they are added and padded once the set is complete.
type tableBuilder struct {
	columns []string
	index   map[string]int
	rows    []Row
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{columns: []string{}, index: make(map[string]int)}
}

// add appends rec as a row. rec may be reused by the caller afterwards.
func (b *tableBuilder) add(rec *record) error {
	for _, k := range rec.keys {
		if _, ok := b.index[k]; !ok {
			if len(b.columns) >= MaxColumns {
				return &LimitError{Limit: "column count", Max: MaxColumns}
			}
			b.index[k] = len(b.columns)
			b.columns = append(b.columns, k)
		}
	}
	if (len(b.rows)+1)*len(b.columns) > MaxCells {
		return &LimitError{Limit: "cell count", Max: MaxCells}
	}

	row := make(Row, len(b.columns))
	for k, v := range rec.values {
		row[b.index[k]] = v
	}
	b.rows = append(b.rows, row)
	return nil
}

func (b *tableBuilder) build() *Table {
	n := len(b.columns)
	for i, row := range b.rows {
		if len(row) < n {
			b.rows[i] = append(row, make(Row, n-len(row))...)
		}
	}
	if b.rows == nil {
		b.rows = []Row{}
	}
	return &Table{Columns: b.columns, Rows: b.rows}
}
