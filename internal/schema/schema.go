package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTable is returned by providers asked for a table they don't hold.
var ErrUnknownTable = errors.New("unknown table")

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name" yaml:"name"`         // ORM-level name
	DBName   string `json:"db_name" yaml:"db"`        // column name in the database
	Nullable bool   `json:"nullable" yaml:"nullable"`
	Type     string `json:"type" yaml:"type"`         // e.g. "int", "text"
}

// ForeignKey is a (column, referenced table, referenced column) hint.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Provider supplies ordered column definitions and key hints for a table.
// Table identifiers are the ORM-level table names.
type Provider interface {
	Columns(table string) ([]Column, error)
	PrimaryKey(table string) ([]string, error)
	ForeignKeys(table string) ([]ForeignKey, error)
}

// Namer is implemented by providers whose database table name differs from
// the identifier passed to Columns.
type Namer interface {
	DBTableName(table string) (string, error)
}

// Table is a resolved table definition ready to be wrapped by a relation.
type Table struct {
	Name    string
	DBName  string
	Columns []Column
}

// Resolve fetches a table definition from a provider.
// Columns is called exactly once; DBTableName is consulted if p implements Namer.
func Resolve(p Provider, name string) (Table, error) {
	if p == nil {
		return Table{}, fmt.Errorf("resolve table %q: nil provider", name)
	}
	cols, err := p.Columns(name)
	if err != nil {
		return Table{}, fmt.Errorf("resolve table %q: %w", name, err)
	}
	if len(cols) == 0 {
		return Table{}, fmt.Errorf("resolve table %q: no columns", name)
	}

	dbName := name
	if n, ok := p.(Namer); ok {
		dbName, err = n.DBTableName(name)
		if err != nil {
			return Table{}, fmt.Errorf("resolve table %q: %w", name, err)
		}
	}

	t := Table{Name: name, DBName: dbName, Columns: make([]Column, len(cols))}
	copy(t.Columns, cols)
	for i := range t.Columns {
		if t.Columns[i].DBName == "" {
			t.Columns[i].DBName = t.Columns[i].Name
		}
	}
	return t, nil
}

// Lookup finds a column by ORM name or database name.
// ORM names win when a column's ORM name equals another column's db name.
func (t Table) Lookup(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	for _, c := range t.Columns {
		if c.DBName == name {
			return c, true
		}
	}
	return Column{}, false
}

// ParseReference splits a "Table.column" foreign key reference.
func ParseReference(ref string) (table, column string, err error) {
	table, column, ok := strings.Cut(ref, ".")
	if !ok || table == "" || column == "" {
		return "", "", fmt.Errorf("invalid reference %q: want Table.column", ref)
	}
	return table, column, nil
}
