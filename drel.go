// Package drel is a relational-algebra query builder.
//
// Queries are immutable trees built from table relations and expressions,
// compiled to parameterized SQL, and run against a Connection:
//
//	user := drel.MustTable(provider, "BlogUser")
//	post := drel.MustTable(provider, "BlogPost")
//
//	q := drel.Must(user.LeftJoin(post, post.C("user").Eq(user.C("id"))))
//	q = drel.Must(q.Group(user.C("username")))
//	q = drel.Must(q.Project(user.C("username"), drel.Count(post.C("id")).Label("posts")))
//	q = drel.Must(q.Order(drel.Label("posts").Desc()))
//
//	rows, err := drel.All(ctx, db, q)
//
// Go has no operator overloading, so expressions are combined with named
// methods (Eq, Ne, Lt, Le, Gt, Ge, And, Or, Add, Sub, Mul, Div, Mod). See
// package internal/queryir for the full mapping.
package drel

import (
	"context"
	"fmt"

	"github.com/roach88/drel/internal/exec"
	"github.com/roach88/drel/internal/queryir"
	"github.com/roach88/drel/internal/querysql"
	"github.com/roach88/drel/internal/schema"
	"github.com/roach88/drel/internal/store"
)

type (
	// Expr is an immutable scalar expression.
	Expr = queryir.Expr
	// Relation is an immutable relation; a projected Relation is a query.
	Relation = queryir.Relation
	// Ordering is an ORDER BY term built with Expr.Asc or Expr.Desc.
	Ordering = queryir.Ordering
	// QueryError is the error returned by failed combinators.
	QueryError = queryir.QueryError

	// Provider supplies table definitions.
	Provider = schema.Provider
	// Column is a column definition.
	Column = schema.Column
	// ForeignKey is a foreign key hint.
	ForeignKey = schema.ForeignKey
	// TableDef is an in-memory table definition for NewStaticProvider.
	TableDef = schema.TableDef

	// Statement is a compiled query.
	Statement = querysql.Statement
	// Dialect selects identifier quoting and placeholders.
	Dialect = querysql.Dialect

	// Connection executes SQL with bound parameters.
	Connection = exec.Connection
	// Cursor iterates over raw result rows.
	Cursor = exec.Cursor
	// Row is a result row keyed by output name.
	Row = exec.Row
	// Rows is a lazy sequence of result rows.
	Rows = exec.Rows
	// Option configures query execution.
	Option = exec.Option

	// DB is a database/sql backed Connection.
	DB = store.DB
)

// Construction errors. Match with errors.Is.
var (
	ErrUnnamedProjection   = queryir.ErrUnnamedProjection
	ErrDuplicateLabel      = queryir.ErrDuplicateLabel
	ErrNonAggregatedColumn = queryir.ErrNonAggregatedColumn
	ErrUnboundTable        = queryir.ErrUnboundTable
	ErrUnresolvedLabel     = queryir.ErrUnresolvedLabel
	ErrUnknownColumn       = queryir.ErrUnknownColumn
	ErrUnsupportedLiteral  = queryir.ErrUnsupportedLiteral
	ErrDuplicateTable      = queryir.ErrDuplicateTable
	ErrInvalidJoinTarget   = queryir.ErrInvalidJoinTarget
	ErrClauseConflict      = queryir.ErrClauseConflict
	ErrMisplacedAggregate  = queryir.ErrMisplacedAggregate
	ErrScalarSubquery      = queryir.ErrScalarSubquery
	ErrNotQuery            = queryir.ErrNotQuery
)

// Execution errors returned by One.
var (
	ErrNoResult        = exec.ErrNoResult
	ErrMultipleResults = exec.ErrMultipleResults
)

// Dialects.
var (
	SQLite   = querysql.SQLite
	Postgres = querysql.Postgres
	MySQL    = querysql.MySQL
)

// Execution options.
var (
	WithDialect     = exec.WithDialect
	WithLogger      = exec.WithLogger
	WithIDGenerator = exec.WithIDGenerator
)

// NewStaticProvider returns a Provider backed by in-memory definitions.
func NewStaticProvider(defs ...TableDef) Provider { return schema.NewStatic(defs...) }

// Table creates a new instance of the named table.
// Each call yields a distinct instance, so a table can be joined with itself.
func Table(p Provider, name string) (*Relation, error) {
	t, err := schema.Resolve(p, name)
	if err != nil {
		return nil, err
	}
	return queryir.NewTable(t), nil
}

// MustTable is like Table but panics on error.
// Use it for package-level table definitions.
func MustTable(p Provider, name string) *Relation {
	r, err := Table(p, name)
	if err != nil {
		panic(err)
	}
	return r
}

// Must panics if err is non-nil and returns r otherwise.
func Must(r *Relation, err error) *Relation { return queryir.Must(r, err) }

// Const wraps a Go value as a literal. See queryir.Const for supported types.
func Const(v any) Expr { return queryir.Const(v) }

// Label refers to a projection label by name, for use in Order.
func Label(name string) Expr { return queryir.LabelRefTo(name) }

// Count builds COUNT(*) with no argument, COUNT(e) with one.
func Count(e ...Expr) Expr { return queryir.Count(e...) }

// Sum builds SUM(e).
func Sum(e Expr) Expr { return queryir.Sum(e) }

// Avg builds AVG(e).
func Avg(e Expr) Expr { return queryir.Avg(e) }

// Max builds MAX(e).
func Max(e Expr) Expr { return queryir.Max(e) }

// Min builds MIN(e).
func Min(e Expr) Expr { return queryir.Min(e) }

// Fn applies a plain SQL function.
func Fn(name string, args ...any) Expr { return queryir.Fn(name, args...) }

// Raw passes sql through verbatim.
func Raw(sql string) Expr { return queryir.RawSQL(sql) }

// And combines predicates with AND.
func And(first Expr, rest ...Expr) Expr { return queryir.And(first, rest...) }

// Or combines predicates with OR.
func Or(first Expr, rest ...Expr) Expr { return queryir.Or(first, rest...) }

// Not negates a predicate.
func Not(e Expr) Expr { return queryir.Not(e) }

// Related builds the equi-join condition between two table instances from
// the provider's foreign keys. Keys from a to b are tried before keys from
// b to a. It fails if neither table references the other.
func Related(p Provider, a, b *Relation) (Expr, error) {
	ta, err := tableName(a)
	if err != nil {
		return Expr{}, err
	}
	tb, err := tableName(b)
	if err != nil {
		return Expr{}, err
	}

	if e, ok, err := fkCondition(p, a, ta, b, tb); err != nil || ok {
		return e, err
	}
	if e, ok, err := fkCondition(p, b, tb, a, ta); err != nil || ok {
		return e, err
	}
	return Expr{}, fmt.Errorf("related: no foreign key between %s and %s", ta, tb)
}

// fkCondition looks for a foreign key on fromName referencing toName.
func fkCondition(p Provider, from *Relation, fromName string, to *Relation, toName string) (Expr, bool, error) {
	fks, err := p.ForeignKeys(fromName)
	if err != nil {
		return Expr{}, false, fmt.Errorf("related: %w", err)
	}
	for _, fk := range fks {
		if fk.RefTable == toName {
			return from.C(fk.Column).Eq(to.C(fk.RefColumn)), true, nil
		}
	}
	return Expr{}, false, nil
}

func tableName(r *Relation) (string, error) {
	if r == nil {
		return "", fmt.Errorf("related: nil relation")
	}
	bt, ok := r.Node().(*queryir.BaseTable)
	if !ok {
		return "", fmt.Errorf("related: %s is not a table", r)
	}
	return bt.Table.Name, nil
}

// Compile compiles q for SQLite.
func Compile(q *Relation) (Statement, error) {
	return querysql.NewCompiler(querysql.SQLite).Compile(q)
}

// CompileFor compiles q for the given dialect.
func CompileFor(d Dialect, q *Relation) (Statement, error) {
	return querysql.NewCompiler(d).Compile(q)
}

// All runs q on conn and returns its rows lazily.
// If conn is a *DB, its dialect is used unless an option overrides it.
func All(ctx context.Context, conn Connection, q *Relation, opts ...Option) (*Rows, error) {
	return executor(conn, opts).All(ctx, q)
}

// One runs q on conn and returns its single row.
func One(ctx context.Context, conn Connection, q *Relation, opts ...Option) (Row, error) {
	return executor(conn, opts).One(ctx, q)
}

func executor(conn Connection, opts []Option) *exec.Executor {
	if db, ok := conn.(*store.DB); ok {
		opts = append([]Option{exec.WithDialect(db.Dialect())}, opts...)
	}
	return exec.New(conn, opts...)
}

// Open opens a database. driver is one of sqlite3, pgx, postgres, or mysql.
func Open(driver, dsn string) (*DB, error) { return store.Open(driver, dsn) }
