package exec

import (
	"errors"
	"fmt"
)

// Sentinel errors for One. Match with errors.Is.
var (
	ErrNoResult        = errors.New("query returned no rows")
	ErrMultipleResults = errors.New("query returned more than one row")
)

// CardinalityError is returned by One when the result does not hold exactly
// one row. It wraps ErrNoResult or ErrMultipleResults.
type CardinalityError struct {
	Err error
	SQL string
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("one: %v (sql=%s)", e.Err, e.SQL)
}

func (e *CardinalityError) Unwrap() error { return e.Err }

// ColumnCountError reports a row whose width differs from the projection.
type ColumnCountError struct {
	Want int
	Got  int
}

func (e *ColumnCountError) Error() string {
	return fmt.Sprintf("row has %d columns, projection declares %d", e.Got, e.Want)
}

// IsNoResult reports whether err is (or wraps) ErrNoResult.
func IsNoResult(err error) bool { return errors.Is(err, ErrNoResult) }

// IsMultipleResults reports whether err is (or wraps) ErrMultipleResults.
func IsMultipleResults(err error) bool { return errors.Is(err, ErrMultipleResults) }
