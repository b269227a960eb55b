// Package store implements exec.Connection on database/sql.
//
// Supported drivers:
//   - sqlite3: github.com/mattn/go-sqlite3 (default)
//   - pgx: github.com/jackc/pgx/v5/stdlib (postgres URLs)
//   - postgres: github.com/lib/pq
//   - mysql: github.com/go-sql-driver/mysql
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection, so ":memory:" databases persist across calls
//
// Statements are prepared once per SQL text and kept in an LRU cache of
// DefaultStatementCacheSize entries (see WithStatementCacheSize). Evicted
// statements are closed.
package store
