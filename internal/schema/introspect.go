package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Introspect builds a provider from the tables of a SQLite database.
// ORM names equal database names for introspected tables.
func Introspect(ctx context.Context, db *sql.DB) (*Static, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list tables: %w", err)
	}
	rows.Close()

	defs := make([]TableDef, 0, len(names))
	for _, name := range names {
		def, err := introspectTable(ctx, db, name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	// A foreign key declared without a column list targets the referenced
	// table's primary key.
	pkByTable := make(map[string][]string, len(defs))
	for _, d := range defs {
		pkByTable[d.Name] = d.PrimaryKey
	}
	for i := range defs {
		for j, fk := range defs[i].ForeignKeys {
			if fk.RefColumn == "" && len(pkByTable[fk.RefTable]) > 0 {
				defs[i].ForeignKeys[j].RefColumn = pkByTable[fk.RefTable][0]
			}
		}
	}
	return NewStatic(defs...), nil
}

func introspectTable(ctx context.Context, db *sql.DB, name string) (TableDef, error) {
	def := TableDef{Name: name, DBName: name}
	quoted := `"` + strings.ReplaceAll(name, `"`, `""`) + `"`

	cols, err := db.QueryContext(ctx, "PRAGMA table_info("+quoted+")")
	if err != nil {
		return def, fmt.Errorf("table_info %s: %w", name, err)
	}
	type pkCol struct {
		pos  int
		name string
	}
	var pks []pkCol
	for cols.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := cols.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			cols.Close()
			return def, fmt.Errorf("scan table_info %s: %w", name, err)
		}
		def.Columns = append(def.Columns, Column{
			Name:     colName,
			DBName:   colName,
			Nullable: notNull == 0 && pk == 0,
			Type:     strings.ToLower(colType),
		})
		if pk > 0 {
			pks = append(pks, pkCol{pos: pk, name: colName})
		}
	}
	if err := cols.Err(); err != nil {
		cols.Close()
		return def, fmt.Errorf("table_info %s: %w", name, err)
	}
	cols.Close()

	sort.Slice(pks, func(i, j int) bool { return pks[i].pos < pks[j].pos })
	for _, pk := range pks {
		def.PrimaryKey = append(def.PrimaryKey, pk.name)
	}

	fks, err := db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoted+")")
	if err != nil {
		return def, fmt.Errorf("foreign_key_list %s: %w", name, err)
	}
	defer fks.Close()
	for fks.Next() {
		var (
			id, seq                     int
			refTable, from              string
			to                          sql.NullString
			onUpdate, onDelete, matchOn string
		)
		if err := fks.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matchOn); err != nil {
			return def, fmt.Errorf("scan foreign_key_list %s: %w", name, err)
		}
		fk := ForeignKey{Column: from, RefTable: refTable, RefColumn: to.String}
		def.ForeignKeys = append(def.ForeignKeys, fk)
	}
	if err := fks.Err(); err != nil {
		return def, fmt.Errorf("foreign_key_list %s: %w", name, err)
	}
	return def, nil
}
