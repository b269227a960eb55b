package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/drel/internal/exec"
)

// Call records one Execute invocation on a FakeConnection.
type Call struct {
	SQL    string
	Params []any
}

// FakeConnection is an exec.Connection that returns canned rows.
//
// Every Execute returns a cursor over the same rows, in the order given.
// Calls are recorded for assertions on the compiled SQL and parameters.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeConnection struct {
	mu    sync.Mutex
	rows  [][]any
	calls []Call
	open  int

	// ExecErr, if set, is returned by Execute.
	ExecErr error

	// CursorErr, if set, is reported by the cursor after its last row.
	CursorErr error
}

// NewFakeConnection creates a connection returning rows on every Execute.
func NewFakeConnection(rows ...[]any) *FakeConnection {
	return &FakeConnection{rows: rows}
}

// Execute implements exec.Connection.
func (c *FakeConnection) Execute(ctx context.Context, sql string, params []any) (exec.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{SQL: sql, Params: slices.Clone(params)})
	if c.ExecErr != nil {
		return nil, c.ExecErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.open++
	return &fakeCursor{conn: c, rows: c.rows, pos: -1, err: c.CursorErr}, nil
}

// Calls returns the recorded Execute calls in order.
func (c *FakeConnection) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// LastCall returns the most recent Execute call.
// Panics if Execute was never called.
func (c *FakeConnection) LastCall() Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		panic("FakeConnection: no calls recorded")
	}
	return c.calls[len(c.calls)-1]
}

// OpenCursors returns the number of cursors not yet closed.
func (c *FakeConnection) OpenCursors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

type fakeCursor struct {
	conn   *FakeConnection
	rows   [][]any
	pos    int
	err    error
	closed bool
}

func (f *fakeCursor) Next() bool {
	if f.closed {
		return false
	}
	f.pos++
	return f.pos < len(f.rows)
}

func (f *fakeCursor) Values() ([]any, error) {
	return slices.Clone(f.rows[f.pos]), nil
}

func (f *fakeCursor) Err() error {
	if f.pos >= len(f.rows) {
		return f.err
	}
	return nil
}

func (f *fakeCursor) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.conn.mu.Lock()
	f.conn.open--
	f.conn.mu.Unlock()
	return nil
}
