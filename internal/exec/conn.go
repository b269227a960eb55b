package exec

import "context"

// Connection executes SQL text with bound parameters.
// Implemented by store.DB (production) and testutil.FakeConnection (tests).
type Connection interface {
	Execute(ctx context.Context, sql string, params []any) (Cursor, error)
}

// Cursor is a forward-only iterator over raw result rows.
type Cursor interface {
	// Next advances to the next row. It returns false when the rows are
	// exhausted or an error occurred; Err distinguishes the two.
	Next() bool

	// Values returns the current row's column values in SELECT order.
	Values() ([]any, error)

	// Err returns the error, if any, that stopped iteration.
	Err() error

	// Close releases the cursor. It is safe to call more than once.
	Close() error
}
