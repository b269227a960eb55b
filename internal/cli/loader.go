package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/drel/internal/querydoc"
	"github.com/roach88/drel/internal/queryir"
	"github.com/roach88/drel/internal/queryparse"
	"github.com/roach88/drel/internal/querysql"
	"github.com/roach88/drel/internal/schema"
	"github.com/roach88/drel/internal/store"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E201" // Path not found
	ErrCodeQueryDoc    = "E202" // Query document unreadable or structurally invalid
	ErrCodeSchema      = "E203" // Schema could not be loaded
	ErrCodeDatabase    = "E204" // Database could not be opened
	ErrCodeBuild       = "E205" // Query construction failed (names, labels, grouping)
	ErrCodeCompile     = "E206" // SQL compilation failed
	ErrCodeExecute     = "E207" // Query execution failed
	ErrCodeCardinality = "E208" // --one matched zero or several rows
	ErrCodeWriteFailed = "E209" // File write error
	ErrCodeTestFailed  = "E210" // One or more scenarios failed
)

// SourceOptions selects the schema and database a command works against.
// Empty flags fall back to the config file.
type SourceOptions struct {
	Schema string
	DSN    string
	Driver string
}

func (s *SourceOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.Schema, "schema", "", "schema file (.yaml, .cue) or CUE directory")
	cmd.Flags().StringVar(&s.DSN, "db", "", "database DSN (sqlite path or connection URL)")
	cmd.Flags().StringVar(&s.Driver, "driver", "", "database driver (sqlite3|postgres|pgx|mysql)")
}

// resolved returns s with empty fields filled from cfg.
func (s SourceOptions) resolved(cfg *Config) SourceOptions {
	if s.Schema == "" {
		s.Schema = cfg.Schema
	}
	if s.DSN == "" {
		s.DSN = cfg.Database.DSN
	}
	if s.Driver == "" {
		s.Driver = cfg.Database.Driver
	}
	return s
}

// loadDocument reads a query document, distinguishing a missing file from
// an invalid one.
func loadDocument(fs afero.Fs, path string) (*querydoc.Document, string, error) {
	if _, err := fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCodeNotFound, fmt.Errorf("query file not found: %s", path)
		}
		return nil, ErrCodeNotFound, err
	}
	doc, err := querydoc.Load(fs, path)
	if err != nil {
		return nil, ErrCodeQueryDoc, err
	}
	return doc, "", nil
}

// openDB opens the configured database. It returns nil when no DSN is set.
// SQLite files must already exist; drel never creates a database.
func openDB(opts *RootOptions, src SourceOptions) (*store.DB, error) {
	if src.DSN == "" {
		return nil, nil
	}
	if isSQLite(src.Driver) && src.DSN != ":memory:" {
		if _, err := os.Stat(src.DSN); err != nil {
			return nil, fmt.Errorf("database not found: %s", src.DSN)
		}
	}
	return store.Open(src.Driver, src.DSN, store.WithLogger(opts.logger()))
}

func isSQLite(driver string) bool {
	switch driver {
	case "", "sqlite", "sqlite3":
		return true
	}
	return false
}

// loadProvider loads the schema from src.Schema, or introspects db when no
// schema file is given.
func loadProvider(ctx context.Context, opts *RootOptions, src SourceOptions, db *store.DB) (*schema.Static, error) {
	if src.Schema != "" {
		opts.logger().Debug("loading schema", "path", src.Schema)
		return schema.Load(opts.fs(), src.Schema)
	}
	if db == nil {
		return nil, errors.New("no schema: set --schema or --db")
	}
	opts.logger().Debug("introspecting schema", "driver", db.Driver())
	return schema.Introspect(ctx, db.SQL())
}

// dialectFor picks the compile dialect: the database's when one is open,
// otherwise the named one.
func dialectFor(db *store.DB, name string) (querysql.Dialect, error) {
	if db != nil {
		return db.Dialect(), nil
	}
	if name == "" {
		return querysql.SQLite, nil
	}
	return querysql.DialectByName(name)
}

// buildDetails describes a query construction error for JSON output.
func buildDetails(err error) any {
	if code, ok := queryir.CodeOf(err); ok {
		return map[string]string{"kind": string(code)}
	}
	var parseErr *queryparse.ParseError
	if errors.As(err, &parseErr) {
		return map[string]any{"kind": "PARSE_ERROR", "input": parseErr.Input, "offset": parseErr.Offset}
	}
	var unbound *queryparse.UnboundNameError
	if errors.As(err, &unbound) {
		return map[string]any{"kind": "UNBOUND_NAME", "name": unbound.Name, "bound": unbound.Bound}
	}
	if errors.Is(err, schema.ErrUnknownTable) {
		return map[string]string{"kind": "UNKNOWN_TABLE"}
	}
	return nil
}

var passwordParam = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// redactDSN masks the password of a DSN so it can be logged.
// URL DSNs, MySQL DSNs, and key=value Postgres DSNs are recognized.
func redactDSN(driver, dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	if strings.EqualFold(driver, "mysql") {
		if cfg, err := mysql.ParseDSN(dsn); err == nil {
			if cfg.Passwd != "" {
				cfg.Passwd = "xxxxx"
			}
			return cfg.FormatDSN()
		}
	}
	return passwordParam.ReplaceAllString(dsn, "${1}xxxxx")
}
