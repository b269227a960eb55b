package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/roach88/drel/internal/exec"
	"github.com/roach88/drel/internal/queryir"
	"github.com/roach88/drel/internal/queryparse"
	"github.com/roach88/drel/internal/schema"
	"github.com/roach88/drel/internal/store"
	"github.com/roach88/drel/internal/testutil"
)

// Cardinality outcomes accepted in expect.error.
const (
	CodeNoResult        = "NO_RESULT"
	CodeMultipleResults = "MULTIPLE_RESULTS"
)

// Codes for document errors that are not query errors.
const (
	CodeParseError   = "PARSE_ERROR"
	CodeUnboundName  = "UNBOUND_NAME"
	CodeUnknownTable = "UNKNOWN_TABLE"
)

// Harness holds the dependencies shared by scenario runs.
type Harness struct {
	fs     afero.Fs
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithFs sets the filesystem schema files are read from. Default: the OS.
// CUE directories are always loaded from the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(h *Harness) {
		h.fs = fs
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		fs:     afero.NewOsFs(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with default options.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New().Run(ctx, scenario)
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// The returned error reports a broken scenario (bad setup SQL, unreadable
// schema); a query that misbehaves is reported through Result.Errors.
//
// Execution flow:
// 1. Create fresh in-memory database and run setup
// 2. Load the schema, or introspect it
// 3. Build the query document and compile it
// 4. Execute with All or One and compare against the expectation
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	db, err := store.Open("sqlite3", ":memory:", store.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer db.Close()

	if err := db.ExecScript(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	provider, err := h.provider(ctx, scenario, db)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	execID := scenario.ExecID
	if execID == "" {
		execID = testutil.DefaultExecID
	}
	ex := exec.New(db,
		exec.WithDialect(db.Dialect()),
		exec.WithIDGenerator(testutil.NewStaticIDGenerator(execID)),
		exec.WithLogger(h.logger),
	)

	result := NewResult(scenario.Name)
	h.logger.Info("running scenario", "scenario", scenario.Name)

	rel, err := scenario.Query.Build(provider)
	if err != nil {
		result.Outcome = errorCode(err)
		checkExpectation(result, scenario.Expect)
		return result, nil
	}

	stmt, err := ex.Compiler().Compile(rel)
	if err != nil {
		return nil, fmt.Errorf("failed to compile query: %w", err)
	}
	result.SQL = stmt.SQL
	result.Params = stmt.Params
	result.Columns = stmt.Columns

	if scenario.Expect.One {
		row, err := ex.One(ctx, rel)
		switch {
		case err == nil:
			result.Rows = [][]any{row.Values()}
		case exec.IsNoResult(err):
			result.Outcome = CodeNoResult
		case exec.IsMultipleResults(err):
			result.Outcome = CodeMultipleResults
		default:
			return nil, fmt.Errorf("failed to execute query: %w", err)
		}
	} else {
		rows, err := ex.Run(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("failed to execute query: %w", err)
		}
		collected, err := rows.Collect()
		if err != nil {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
		result.Rows = make([][]any, len(collected))
		for i, r := range collected {
			result.Rows[i] = r.Values()
		}
	}

	checkExpectation(result, scenario.Expect)
	h.logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "rows", len(result.Rows))
	return result, nil
}

// provider loads the scenario schema. An empty path introspects db.
func (h *Harness) provider(ctx context.Context, scenario *Scenario, db *store.DB) (schema.Provider, error) {
	path := scenario.Schema
	if path == "" {
		return schema.Introspect(ctx, db.SQL())
	}
	return schema.Load(h.fs, path)
}

// errorCode names a query construction error for comparison with
// expect.error.
func errorCode(err error) string {
	if code, ok := queryir.CodeOf(err); ok {
		return string(code)
	}
	var perr *queryparse.ParseError
	if errors.As(err, &perr) {
		return CodeParseError
	}
	var uerr *queryparse.UnboundNameError
	if errors.As(err, &uerr) {
		return CodeUnboundName
	}
	if errors.Is(err, schema.ErrUnknownTable) {
		return CodeUnknownTable
	}
	return "ERROR: " + err.Error()
}
