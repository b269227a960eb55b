package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadError represents a schema definition error with source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadCUE loads every CUE file in dir as one instance and compiles the
// table declarations it contains.
func LoadCUE(dir string) (*Static, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	v := ctx.BuildInstance(inst)
	return CompileCUEValue(v)
}

// CompileCUE compiles table declarations from CUE source text.
// filename is used for error positions only.
func CompileCUE(filename, src string) (*Static, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return CompileCUEValue(v)
}

// CompileCUEValue compiles the "table" struct of a CUE value.
func CompileCUEValue(v cue.Value) (*Static, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &LoadError{Field: "table", Message: "no table declarations found", Pos: v.Pos()}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []TableDef
	for iter.Next() {
		def, err := compileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return NewStatic(defs...), nil
}

func compileTable(name string, v cue.Value) (TableDef, error) {
	def := TableDef{Name: name, DBName: name}

	if dbVal := v.LookupPath(cue.ParsePath("db_table")); dbVal.Exists() {
		s, err := dbVal.String()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.DBName = s
	}

	if pkVal := v.LookupPath(cue.ParsePath("primary_key")); pkVal.Exists() {
		if err := pkVal.Decode(&def.PrimaryKey); err != nil {
			return def, formatCUEError(err)
		}
	}

	colsVal := v.LookupPath(cue.ParsePath("column"))
	if !colsVal.Exists() {
		return def, &LoadError{
			Field:   "table." + name + ".column",
			Message: "at least one column is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := colsVal.Fields()
	if err != nil {
		return def, formatCUEError(err)
	}
	for iter.Next() {
		col, ref, err := compileColumn(iter.Label(), iter.Value())
		if err != nil {
			return def, err
		}
		def.Columns = append(def.Columns, col)
		if ref != "" {
			refTable, refCol, err := ParseReference(ref)
			if err != nil {
				return def, &LoadError{
					Field:   "table." + name + ".column." + col.Name + ".references",
					Message: err.Error(),
					Pos:     iter.Value().Pos(),
				}
			}
			def.ForeignKeys = append(def.ForeignKeys, ForeignKey{
				Column:    col.Name,
				RefTable:  refTable,
				RefColumn: refCol,
			})
		}
	}
	if len(def.Columns) == 0 {
		return def, &LoadError{
			Field:   "table." + name + ".column",
			Message: "at least one column is required",
			Pos:     colsVal.Pos(),
		}
	}

	for _, pk := range def.PrimaryKey {
		if !hasColumn(def.Columns, pk) {
			return def, &LoadError{
				Field:   "table." + name + ".primary_key",
				Message: fmt.Sprintf("unknown column %q", pk),
				Pos:     v.Pos(),
			}
		}
	}

	return def, nil
}

// cueColumn mirrors the column struct in CUE.
type cueColumn struct {
	Type       string `json:"type"`
	DB         string `json:"db"`
	Nullable   bool   `json:"nullable"`
	References string `json:"references"`
}

func compileColumn(name string, v cue.Value) (Column, string, error) {
	var raw cueColumn
	if err := v.Decode(&raw); err != nil {
		return Column{}, "", formatCUEError(err)
	}
	if raw.Type == "" {
		return Column{}, "", &LoadError{Field: "column." + name + ".type", Message: "type is required", Pos: v.Pos()}
	}
	col := Column{Name: name, DBName: raw.DB, Nullable: raw.Nullable, Type: raw.Type}
	if col.DBName == "" {
		col.DBName = name
	}
	return col, raw.References, nil
}

func hasColumn(cols []Column, name string) bool {
	for _, c := range cols {
		if c.Name == name {
			return true
		}
	}
	return false
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
