package querysql

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect controls identifier quoting and parameter placeholders.
type Dialect interface {
	// Name is the dialect's configuration name, e.g. "sqlite".
	Name() string

	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string

	// Placeholder returns the placeholder for the n-th parameter (1-based).
	Placeholder(n int) string
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                  { return "sqlite" }
func (sqliteDialect) QuoteIdent(name string) string { return quoteWith(name, `"`) }
func (sqliteDialect) Placeholder(int) string        { return "?" }

type postgresDialect struct{}

func (postgresDialect) Name() string                  { return "postgres" }
func (postgresDialect) QuoteIdent(name string) string { return quoteWith(name, `"`) }
func (postgresDialect) Placeholder(n int) string      { return "$" + strconv.Itoa(n) }

type mysqlDialect struct{}

func (mysqlDialect) Name() string                  { return "mysql" }
func (mysqlDialect) QuoteIdent(name string) string { return quoteWith(name, "`") }
func (mysqlDialect) Placeholder(int) string        { return "?" }

// Built-in dialects.
var (
	SQLite   Dialect = sqliteDialect{}
	Postgres Dialect = postgresDialect{}
	MySQL    Dialect = mysqlDialect{}
)

// quoteWith wraps name in q, doubling any q inside it.
func quoteWith(name, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// DialectByName returns a built-in dialect.
// Accepts "sqlite", "sqlite3", "postgres", "postgresql", "pgx", and "mysql".
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return nil, fmt.Errorf("unknown SQL dialect %q", name)
	}
}
