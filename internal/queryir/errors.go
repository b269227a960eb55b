package queryir

import (
	"errors"
	"fmt"
)

// QueryError represents an error detected while building a query tree.
//
// Every combinator reports failures as a *QueryError before any relation is
// returned, so a partially invalid query is never executable.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Message is a human-readable description.
	Message string

	// Name is the offending label, column, or output name, if any.
	Name string

	// Table is the table involved, if any.
	Table string
}

// QueryErrorCode categorizes query construction errors.
type QueryErrorCode string

const (
	// CodeUnnamedProjection: a projected expression has no output name.
	CodeUnnamedProjection QueryErrorCode = "UNNAMED_PROJECTION"
	// CodeDuplicateLabel: two projected items share an output name.
	CodeDuplicateLabel QueryErrorCode = "DUPLICATE_LABEL"
	// CodeNonAggregatedColumn: a grouped block uses a column that is neither grouped nor aggregated.
	CodeNonAggregatedColumn QueryErrorCode = "NON_AGGREGATED_COLUMN"
	// CodeUnboundTable: an expression references a table instance not in scope.
	CodeUnboundTable QueryErrorCode = "UNBOUND_TABLE"
	// CodeUnresolvedLabel: a label reference names no visible label.
	CodeUnresolvedLabel QueryErrorCode = "UNRESOLVED_LABEL"
	// CodeUnknownColumn: field access named a column the table doesn't have.
	CodeUnknownColumn QueryErrorCode = "UNKNOWN_COLUMN"
	// CodeUnsupportedLiteral: Const was given a host value with no literal form.
	CodeUnsupportedLiteral QueryErrorCode = "UNSUPPORTED_LITERAL"
	// CodeDuplicateTable: a join brings a table instance already in scope.
	CodeDuplicateTable QueryErrorCode = "DUPLICATE_TABLE"
	// CodeInvalidJoinTarget: the right side of a join is not a table, subquery, or join chain.
	CodeInvalidJoinTarget QueryErrorCode = "INVALID_JOIN_TARGET"
	// CodeClauseConflict: a clause that may appear once per block was applied twice.
	CodeClauseConflict QueryErrorCode = "CLAUSE_CONFLICT"
	// CodeMisplacedAggregate: an aggregate appears in WHERE, GROUP BY, or a join condition.
	CodeMisplacedAggregate QueryErrorCode = "MISPLACED_AGGREGATE"
	// CodeScalarSubquery: a scalar subquery does not project exactly one column.
	CodeScalarSubquery QueryErrorCode = "SCALAR_SUBQUERY"
	// CodeNotQuery: the relation has no projection and cannot be compiled or wrapped.
	CodeNotQuery QueryErrorCode = "NOT_QUERY"
	// CodeInvalidExpression: an expression is empty or malformed.
	CodeInvalidExpression QueryErrorCode = "INVALID_EXPRESSION"
)

// Sentinels for errors.Is matching. A *QueryError matches the sentinel
// carrying the same Code.
var (
	ErrUnnamedProjection   = &QueryError{Code: CodeUnnamedProjection}
	ErrDuplicateLabel      = &QueryError{Code: CodeDuplicateLabel}
	ErrNonAggregatedColumn = &QueryError{Code: CodeNonAggregatedColumn}
	ErrUnboundTable        = &QueryError{Code: CodeUnboundTable}
	ErrUnresolvedLabel     = &QueryError{Code: CodeUnresolvedLabel}
	ErrUnknownColumn       = &QueryError{Code: CodeUnknownColumn}
	ErrUnsupportedLiteral  = &QueryError{Code: CodeUnsupportedLiteral}
	ErrDuplicateTable      = &QueryError{Code: CodeDuplicateTable}
	ErrInvalidJoinTarget   = &QueryError{Code: CodeInvalidJoinTarget}
	ErrClauseConflict      = &QueryError{Code: CodeClauseConflict}
	ErrMisplacedAggregate  = &QueryError{Code: CodeMisplacedAggregate}
	ErrScalarSubquery      = &QueryError{Code: CodeScalarSubquery}
	ErrNotQuery            = &QueryError{Code: CodeNotQuery}
	ErrInvalidExpression   = &QueryError{Code: CodeInvalidExpression}
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.Table != "" {
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is a *QueryError with the same code.
func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *QueryError in err's chain.
func CodeOf(err error) (QueryErrorCode, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code, true
	}
	return "", false
}

// IsResolutionError reports whether err is a scope resolution failure
// (unbound table or unresolved label).
// Uses errors.As to handle wrapped errors.
func IsResolutionError(err error) bool {
	code, ok := CodeOf(err)
	return ok && (code == CodeUnboundTable || code == CodeUnresolvedLabel)
}

// IsProjectionError reports whether err rejects a projection list.
// Uses errors.As to handle wrapped errors.
func IsProjectionError(err error) bool {
	code, ok := CodeOf(err)
	return ok && (code == CodeUnnamedProjection || code == CodeDuplicateLabel || code == CodeNonAggregatedColumn)
}

func newError(code QueryErrorCode, name, format string, args ...any) *QueryError {
	return &QueryError{Code: code, Name: name, Message: fmt.Sprintf(format, args...)}
}

// NewUnboundTableError creates a QueryError for a column whose table is not in scope.
func NewUnboundTableError(table, column string) *QueryError {
	return &QueryError{
		Code:    CodeUnboundTable,
		Message: fmt.Sprintf("column %q references a table that is not joined here", column),
		Name:    column,
		Table:   table,
	}
}

// NewUnresolvedLabelError creates a QueryError for a label reference with no visible label.
func NewUnresolvedLabelError(label string) *QueryError {
	return newError(CodeUnresolvedLabel, label, "label %q is not defined by the projection in scope", label)
}

// NewUnknownColumnError creates a QueryError for field access on a missing column.
func NewUnknownColumnError(table, column string) *QueryError {
	return &QueryError{
		Code:    CodeUnknownColumn,
		Message: fmt.Sprintf("no column %q", column),
		Name:    column,
		Table:   table,
	}
}
