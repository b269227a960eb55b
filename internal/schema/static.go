package schema

import (
	"fmt"
	"slices"
	"sort"
)

// TableDef is a complete in-memory table definition.
type TableDef struct {
	Name        string
	DBName      string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Static is a Provider backed by in-memory definitions.
// It is safe for concurrent reads once built.
type Static struct {
	tables map[string]TableDef
}

// NewStatic creates a provider holding the given tables.
// Later definitions with the same name replace earlier ones.
func NewStatic(defs ...TableDef) *Static {
	s := &Static{tables: make(map[string]TableDef, len(defs))}
	for _, d := range defs {
		if d.DBName == "" {
			d.DBName = d.Name
		}
		s.tables[d.Name] = d
	}
	return s
}

func (s *Static) def(table string) (TableDef, error) {
	d, ok := s.tables[table]
	if !ok {
		return TableDef{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return d, nil
}

// Columns implements Provider.
func (s *Static) Columns(table string) ([]Column, error) {
	d, err := s.def(table)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.Columns), nil
}

// PrimaryKey implements Provider.
func (s *Static) PrimaryKey(table string) ([]string, error) {
	d, err := s.def(table)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.PrimaryKey), nil
}

// ForeignKeys implements Provider.
func (s *Static) ForeignKeys(table string) ([]ForeignKey, error) {
	d, err := s.def(table)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.ForeignKeys), nil
}

// DBTableName implements Namer.
func (s *Static) DBTableName(table string) (string, error) {
	d, err := s.def(table)
	if err != nil {
		return "", err
	}
	return d.DBName, nil
}

// Tables returns all table names in sorted order.
func (s *Static) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Def returns the full definition of a table.
func (s *Static) Def(table string) (TableDef, bool) {
	d, ok := s.tables[table]
	return d, ok
}
