package ogr

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// TableSource is an in-memory RowSource loaded from CSV text: the
// "OGR CSV driver" analogue, since GDAL's own CSV driver treats a header
// row plus a WKT geometry column exactly this way. It is the adapter
// usable in tests without a real GDAL/OGR dependency; wiring a genuine
// database/sql-backed driver in production means implementing RowSource,
// not replacing this file.
type TableSource struct {
	columns []string
	rows    [][]string
}

// NewTableSource reads a CSV document (header row plus data rows) into an
// in-memory table. Every column comes back from Scan as a string; toValue
// recovers numeric/boolean types by parsing.
func NewTableSource(r io.Reader) (*TableSource, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ogr: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("ogr: csv source has no header row")
	}
	return &TableSource{columns: records[0], rows: records[1:]}, nil
}

// QueryContext ignores query's text and returns every row in the table: the
// adapter represents exactly one OGR layer, so there is nothing to select
// between. PrepareQueries still resolves a query string per (layer, zoom)
// the same as a real driver would, to keep the contract identical.
func (t *TableSource) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	return &tableRows{columns: t.columns, rows: t.rows, cursor: -1}, nil
}

type tableRows struct {
	columns []string
	rows    [][]string
	cursor  int
}

func (r *tableRows) Columns() ([]string, error) { return r.columns, nil }

func (r *tableRows) Next() bool {
	r.cursor++
	return r.cursor < len(r.rows)
}

func (r *tableRows) Scan(dest ...interface{}) error {
	row := r.rows[r.cursor]
	if len(dest) != len(row) {
		return fmt.Errorf("ogr: scan: row has %d columns, got %d destinations", len(row), len(dest))
	}
	for i, d := range dest {
		ptr, ok := d.(*interface{})
		if !ok {
			return fmt.Errorf("ogr: scan: unsupported destination type %T", d)
		}
		*ptr = row[i]
	}
	return nil
}

func (r *tableRows) Close() error { return nil }
func (r *tableRows) Err() error   { return nil }
