package schema

import (
	"bytes"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// yamlDocument is the YAML schema file layout.
//
//	tables:
//	  - name: BlogPost
//	    db_table: blog_post
//	    primary_key: [id]
//	    columns:
//	      - {name: id, type: int}
//	      - {name: user, db: user_id, type: int, references: BlogUser.id}
type yamlDocument struct {
	Tables []yamlTable `yaml:"tables"`
}

type yamlTable struct {
	Name       string       `yaml:"name"`
	DBTable    string       `yaml:"db_table,omitempty"`
	PrimaryKey []string     `yaml:"primary_key,omitempty"`
	Columns    []yamlColumn `yaml:"columns"`
}

type yamlColumn struct {
	Column     `yaml:",inline"`
	References string `yaml:"references,omitempty"`
}

// LoadYAML reads a YAML schema file from fs.
func LoadYAML(fs afero.Fs, path string) (*Static, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseYAML parses a YAML schema document.
// Unknown fields are rejected to catch typos.
func ParseYAML(data []byte) (*Static, error) {
	var doc yamlDocument
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("tables list is required and must be non-empty")
	}

	defs := make([]TableDef, 0, len(doc.Tables))
	for i, t := range doc.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("tables[%d]: name is required", i)
		}
		if len(t.Columns) == 0 {
			return nil, fmt.Errorf("tables[%d] (%s): columns list is required", i, t.Name)
		}
		def := TableDef{Name: t.Name, DBName: t.DBTable, PrimaryKey: t.PrimaryKey}
		for j, c := range t.Columns {
			if c.Name == "" {
				return nil, fmt.Errorf("tables[%d].columns[%d]: name is required", i, j)
			}
			col := c.Column
			if col.DBName == "" {
				col.DBName = col.Name
			}
			def.Columns = append(def.Columns, col)
			if c.References != "" {
				refTable, refCol, err := ParseReference(c.References)
				if err != nil {
					return nil, fmt.Errorf("tables[%d].columns[%d]: %w", i, j, err)
				}
				def.ForeignKeys = append(def.ForeignKeys, ForeignKey{Column: col.Name, RefTable: refTable, RefColumn: refCol})
			}
		}
		for _, pk := range def.PrimaryKey {
			if !hasColumn(def.Columns, pk) {
				return nil, fmt.Errorf("tables[%d] (%s): primary key column %q not declared", i, t.Name, pk)
			}
		}
		defs = append(defs, def)
	}
	return NewStatic(defs...), nil
}
