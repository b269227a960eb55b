package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/drel/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Source  SourceOptions
	Dialect string
	Output  string // output file path for the SQL text
}

// CompilationResult is the compiled form of one query document.
type CompilationResult struct {
	Name        string   `json:"name,omitempty"`
	Dialect     string   `json:"dialect"`
	SQL         string   `json:"sql"`
	Params      []any    `json:"params"`
	Columns     []string `json:"columns"`
	Fingerprint string   `json:"fingerprint"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query.yaml>",
		Short: "Compile a query document to SQL",
		Long: `Compile a YAML query document to parameterized SQL.

The schema comes from --schema, or is introspected from --db. Without a
database the SQL is written for --dialect (default sqlite). Nothing is
executed.

Examples:
  drel compile posts.yaml --schema schema/blog.cue
  drel compile posts.yaml --schema schema/blog.yaml --dialect postgres
  drel compile posts.yaml --db blog.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.Source.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect when no database is given (sqlite|postgres|mysql)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the SQL text to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.config()
	src := opts.Source.resolved(cfg)

	doc, code, err := loadDocument(opts.fs(), path)
	if err != nil {
		return formatter.fail(ExitCommandError, code, "loading query", err)
	}
	formatter.VerboseLog("Loaded query %s from %s", doc.Name, path)

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

	dialectName := opts.Dialect
	if dialectName == "" {
		dialectName = cfg.Dialect
	}
	dialect, err := dialectFor(db, dialectName)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCompile, "selecting dialect", err)
	}

	rel, err := doc.Build(provider)
	if err != nil {
		_ = formatter.Error(ErrCodeBuild, err.Error(), buildDetails(err))
		return WrapExitError(ExitCommandError, ErrCodeBuild+": building query", err)
	}

	stmt, err := querysql.NewCompiler(dialect).Compile(rel)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCompile, "compiling query", err)
	}
	fingerprint, err := stmt.Fingerprint()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCompile, "fingerprinting statement", err)
	}

	result := &CompilationResult{
		Name:        doc.Name,
		Dialect:     dialect.Name(),
		SQL:         stmt.SQL,
		Params:      stmt.Params,
		Columns:     stmt.Columns,
		Fingerprint: fingerprint,
	}
	if result.Params == nil {
		result.Params = []any{}
	}

	if opts.Output != "" {
		if err := afero.WriteFile(opts.fs(), opts.Output, []byte(stmt.SQL+"\n"), 0644); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	name := result.Name
	if name == "" {
		name = "query"
	}
	fmt.Fprintf(w, "%s Compiled %s (%s)\n\n", formatter.Mark(true), name, result.Dialect)
	fmt.Fprintln(w, result.SQL)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Params:      %s\n", formatParams(result.Params))
	fmt.Fprintf(w, "Columns:     %s\n", strings.Join(result.Columns, ", "))
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)

	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote SQL to %s\n", outputFile)
	}
	return nil
}

func formatParams(params []any) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue renders a parameter or cell for text output.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprint(x)
	}
}
