package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/drel/internal/exec"
	"github.com/roach88/drel/internal/querysql"
)

// DB is a database/sql connection implementing exec.Connection.
type DB struct {
	db      *sql.DB
	driver  string
	dialect querysql.Dialect
	logger  *slog.Logger

	cacheSize int

	// mu is held shared while a cached statement starts a query and
	// exclusively while the cache adds (and so evicts) statements.
	mu    sync.RWMutex
	stmts *lru.Cache[string, *sql.Stmt]
}

// DefaultStatementCacheSize is the number of prepared statements a DB keeps
// open unless WithStatementCacheSize says otherwise.
const DefaultStatementCacheSize = 256

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *DB) {
		d.logger = l
	}
}

// WithStatementCacheSize bounds the prepared statement cache. The least
// recently used statement is closed when the cache is full.
func WithStatementCacheSize(n int) Option {
	return func(d *DB) {
		d.cacheSize = n
	}
}

// normalizeDriver maps user-facing driver names to registered driver names.
func normalizeDriver(name string) (driver string, dialect querysql.Dialect, err error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return "sqlite3", querysql.SQLite, nil
	case "pgx", "postgresql":
		return "pgx", querysql.Postgres, nil
	case "postgres", "pq":
		return "postgres", querysql.Postgres, nil
	case "mysql":
		return "mysql", querysql.MySQL, nil
	default:
		return "", nil, fmt.Errorf("unsupported driver %q", name)
	}
}

// Open opens a database and verifies the connection.
//
// For sqlite3 the database file is created if it doesn't exist and the
// required pragmas are applied.
func Open(driver, dsn string, opts ...Option) (*DB, error) {
	name, dialect, err := normalizeDriver(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if name == "sqlite3" {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	d := &DB{
		db:        db,
		driver:    name,
		dialect:   dialect,
		logger:    slog.Default(),
		cacheSize: DefaultStatementCacheSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.stmts, err = lru.NewWithEvict(d.cacheSize, func(_ string, st *sql.Stmt) {
		st.Close()
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statement cache: %w", err)
	}
	return d, nil
}

// Close closes cached statements and the database.
// Should be called when the DB is no longer needed.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	d.mu.Lock()
	d.stmts.Purge()
	d.mu.Unlock()
	return d.db.Close()
}

// SQL returns the underlying sql.DB.
func (d *DB) SQL() *sql.DB { return d.db }

// Driver returns the registered driver name.
func (d *DB) Driver() string { return d.driver }

// Dialect returns the SQL dialect matching the driver.
func (d *DB) Dialect() querysql.Dialect { return d.dialect }

// ExecScript runs setup statements such as CREATE TABLE and INSERT.
// Statements are separated by semicolons at the end of a line.
func (d *DB) ExecScript(ctx context.Context, script string) error {
	for i, stmt := range splitScript(script) {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("script statement %d: %w", i+1, err)
		}
	}
	return nil
}

func splitScript(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

// query runs a cached statement, preparing it on first use.
// An evicted statement is closed only once no query holds mu, and rows
// already open keep working after their statement is closed.
func (d *DB) query(ctx context.Context, query string, params []any) (*sql.Rows, error) {
	d.mu.RLock()
	if st, ok := d.stmts.Get(query); ok {
		defer d.mu.RUnlock()
		return run(ctx, st, params)
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.stmts.Get(query)
	if !ok {
		var err error
		st, err = d.db.PrepareContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
		if evicted := d.stmts.Add(query, st); evicted {
			d.logger.Debug("statement evicted", "driver", d.driver, "cache_size", d.cacheSize)
		}
		d.logger.Debug("statement prepared", "driver", d.driver, "cached", d.stmts.Len())
	}
	return run(ctx, st, params)
}

func run(ctx context.Context, st *sql.Stmt, params []any) (*sql.Rows, error) {
	rows, err := st.QueryContext(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// Execute implements exec.Connection.
// Database errors are returned wrapped, never suppressed.
func (d *DB) Execute(ctx context.Context, query string, params []any) (exec.Cursor, error) {
	rows, err := d.query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return newCursor(rows)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// pragma returns the current value of a SQLite pragma.
func (d *DB) pragma(name string) (string, error) {
	var value string
	if err := d.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
