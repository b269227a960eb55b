package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// cursor adapts *sql.Rows to exec.Cursor.
type cursor struct {
	rows   *sql.Rows
	binary []bool // columns whose []byte values stay []byte
	closed bool
}

func newCursor(rows *sql.Rows) (*cursor, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("column types: %w", err)
	}
	binary := make([]bool, len(types))
	for i, ct := range types {
		switch strings.ToUpper(ct.DatabaseTypeName()) {
		case "BLOB", "BYTEA", "BINARY", "VARBINARY":
			binary[i] = true
		}
	}
	return &cursor{rows: rows, binary: binary}, nil
}

func (c *cursor) Next() bool { return c.rows.Next() }

// Values scans the current row. Text returned as []byte by the driver is
// converted to string.
func (c *cursor) Values() ([]any, error) {
	vals := make([]any, len(c.binary))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok && !c.binary[i] {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (c *cursor) Err() error { return c.rows.Err() }

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}
