package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/roach88/drel/internal/exec"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Source SourceOptions
	One    bool

	// IDGenerator allows overriding the execution id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator exec.IDGenerator
}

// RunResult holds the rows of one executed query.
type RunResult struct {
	Name    string   `json:"name,omitempty"`
	ExecID  string   `json:"exec_id,omitempty"`
	SQL     string   `json:"sql"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <query.yaml>",
		Short: "Execute a query document against a database",
		Long: `Compile a YAML query document and execute it against a database.

The schema comes from --schema, or is introspected from the database.
With --one the query must return exactly one row; zero or several rows
exit with code 1.

Example:
  drel run posts.yaml --db ./blog.db
  drel run user.yaml --db ./blog.db --schema schema/blog.cue --one
  drel run posts.yaml --driver pgx --db postgres://localhost/blog`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.Source.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.One, "one", false, "require exactly one row")

	return cmd
}

func runQuery(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()
	src := opts.Source.resolved(opts.config())

	if src.DSN == "" {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "no database: set --db or database.dsn", nil)
	}

	doc, code, err := loadDocument(opts.fs(), path)
	if err != nil {
		return formatter.fail(ExitCommandError, code, "loading query", err)
	}

	logger.Info("opening database", "driver", src.Driver, "dsn", redactDSN(src.Driver, src.DSN))
	db, err := openDB(opts.RootOptions, src)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, "opening database", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Cancel the query on interrupt.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := loadProvider(ctx, opts.RootOptions, src, db)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeSchema, "loading schema", err)
	}

	rel, err := doc.Build(provider)
	if err != nil {
		_ = formatter.Error(ErrCodeBuild, err.Error(), buildDetails(err))
		return WrapExitError(ExitCommandError, ErrCodeBuild+": building query", err)
	}

	ids := opts.IDGenerator
	if ids == nil {
		ids = exec.UUIDv7Generator{}
	}
	ex := exec.New(db,
		exec.WithDialect(db.Dialect()),
		exec.WithIDGenerator(ids),
		exec.WithLogger(logger),
	)

	stmt, err := ex.Compiler().Compile(rel)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCompile, "compiling query", err)
	}
	formatter.VerboseLog("SQL: %s", stmt.SQL)

	result := &RunResult{
		Name:    doc.Name,
		SQL:     stmt.SQL,
		Columns: stmt.Columns,
	}

	if opts.One {
		row, err := ex.One(ctx, rel)
		switch {
		case exec.IsNoResult(err), exec.IsMultipleResults(err):
			_ = formatter.Error(ErrCodeCardinality, err.Error(), nil)
			return WrapExitError(ExitFailure, ErrCodeCardinality+": --one", err)
		case err != nil:
			return formatter.fail(ExitCommandError, ErrCodeExecute, "executing query", err)
		}
		result.Rows = [][]any{row.Values()}
	} else {
		rows, err := ex.Run(ctx, stmt)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeExecute, "executing query", err)
		}
		result.ExecID = rows.ExecID()
		collected, err := rows.Collect()
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeExecute, "reading rows", err)
		}
		result.Rows = make([][]any, len(collected))
		for i, r := range collected {
			result.Rows[i] = r.Values()
		}
	}

	logger.Info("query finished", "exec_id", result.ExecID, "rows", len(result.Rows))
	return outputRunResult(formatter, result)
}

func outputRunResult(formatter *OutputFormatter, result *RunResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, renderTable(result.Columns, result.Rows))
	fmt.Fprintf(formatter.Writer, "(%d row(s))\n", len(result.Rows))
	return nil
}

// renderTable draws rows under a header of column names.
func renderTable(columns []string, rows [][]any) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(columns...)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if s, ok := v.(string); ok {
				cells[i] = s
				continue
			}
			cells[i] = formatValue(v)
		}
		t.Row(cells...)
	}
	return t.String()
}
