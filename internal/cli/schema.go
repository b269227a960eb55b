package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/drel/internal/schema"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Source SourceOptions
}

// SchemaTable is one table in schema command output.
type SchemaTable struct {
	Name        string              `json:"name"`
	DBName      string              `json:"db_name"`
	PrimaryKey  []string            `json:"primary_key"`
	Columns     []schema.Column     `json:"columns"`
	ForeignKeys []schema.ForeignKey `json:"foreign_keys"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the tables a schema provides",
		Long: `Load a schema and list its tables, columns, and keys.

The schema comes from --schema (YAML file, CUE file, or CUE directory),
or is introspected from --db.

Examples:
  drel schema --schema schema/blog.cue
  drel schema --db blog.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}

	opts.Source.addFlags(cmd)

	return cmd
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	src := opts.Source.resolved(opts.config())

	db, err := openDB(opts.RootOptions, src)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "opening database", err)
	}
	if db != nil {
		defer db.Close()
	}

	provider, err := loadProvider(cmd.Context(), opts.RootOptions, src, db)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeSchema, "loading schema", err)
	}

	tables := make([]SchemaTable, 0)
	for _, name := range provider.Tables() {
		def, _ := provider.Def(name)
		t := SchemaTable{
			Name:        def.Name,
			DBName:      def.DBName,
			PrimaryKey:  def.PrimaryKey,
			Columns:     def.Columns,
			ForeignKeys: def.ForeignKeys,
		}
		if t.PrimaryKey == nil {
			t.PrimaryKey = []string{}
		}
		if t.ForeignKeys == nil {
			t.ForeignKeys = []schema.ForeignKey{}
		}
		tables = append(tables, t)
	}

	if formatter.JSON() {
		return formatter.Success(map[string]any{"tables": tables})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s %d table(s)\n", formatter.Mark(true), len(tables))
	for _, t := range tables {
		fmt.Fprintln(w)
		if t.DBName != t.Name {
			fmt.Fprintf(w, "%s (%s)\n", t.Name, t.DBName)
		} else {
			fmt.Fprintln(w, t.Name)
		}
		for _, c := range t.Columns {
			fmt.Fprintf(w, "  %s\n", describeColumn(t, c))
		}
	}
	return nil
}

// describeColumn renders a column line such as
// "user user_id int -> BlogUser.id".
func describeColumn(t SchemaTable, c schema.Column) string {
	parts := []string{c.Name}
	if c.DBName != "" && c.DBName != c.Name {
		parts = append(parts, c.DBName)
	}
	if c.Type != "" {
		parts = append(parts, c.Type)
	}
	if c.Nullable {
		parts = append(parts, "null")
	}
	for _, pk := range t.PrimaryKey {
		if pk == c.Name {
			parts = append(parts, "pk")
		}
	}
	for _, fk := range t.ForeignKeys {
		if fk.Column == c.Name {
			parts = append(parts, "-> "+fk.RefTable+"."+fk.RefColumn)
		}
	}
	return strings.Join(parts, " ")
}
