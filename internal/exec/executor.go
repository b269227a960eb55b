package exec

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/drel/internal/queryir"
	"github.com/roach88/drel/internal/querysql"
)

// Executor compiles queries and runs them on a Connection.
//
// An Executor holds no per-query state; concurrency is bounded by the
// Connection's own contract.
type Executor struct {
	conn     Connection
	compiler *querysql.Compiler
	ids      IDGenerator
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithDialect sets the SQL dialect. Default: querysql.SQLite.
func WithDialect(d querysql.Dialect) Option {
	return func(e *Executor) {
		e.compiler = querysql.NewCompiler(d)
	}
}

// WithIDGenerator sets the execution id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Executor) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// New creates an Executor on conn.
func New(conn Connection, opts ...Option) *Executor {
	e := &Executor{
		conn:     conn,
		compiler: querysql.NewCompiler(querysql.SQLite),
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compiler returns the executor's compiler.
func (e *Executor) Compiler() *querysql.Compiler { return e.compiler }

// All compiles q, executes it, and returns its rows lazily.
// The caller must consume or Close the returned Rows.
func (e *Executor) All(ctx context.Context, q *queryir.Relation) (*Rows, error) {
	st, err := e.compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, st)
}

// Run executes an already compiled statement.
func (e *Executor) Run(ctx context.Context, st querysql.Statement) (*Rows, error) {
	id := e.ids.Generate()
	e.logger.Debug("executing query",
		"exec_id", id,
		"sql", st.SQL,
		"params", len(st.Params),
	)

	cursor, err := e.conn.Execute(ctx, st.SQL, st.Params)
	if err != nil {
		e.logger.Error("query failed", "exec_id", id, "error", err)
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return newRows(cursor, st.Columns, id, e.logger), nil
}

// One runs q and returns its single row.
// Zero rows yield ErrNoResult and more than one yield ErrMultipleResults,
// both wrapped in a *CardinalityError.
func (e *Executor) One(ctx context.Context, q *queryir.Relation) (Row, error) {
	st, err := e.compiler.Compile(q)
	if err != nil {
		return Row{}, err
	}
	rows, err := e.Run(ctx, st)
	if err != nil {
		return Row{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Row{}, err
		}
		return Row{}, &CardinalityError{Err: ErrNoResult, SQL: st.SQL}
	}
	row := rows.Row()
	if rows.Next() {
		return Row{}, &CardinalityError{Err: ErrMultipleResults, SQL: st.SQL}
	}
	if err := rows.Err(); err != nil {
		return Row{}, err
	}
	return row, nil
}
