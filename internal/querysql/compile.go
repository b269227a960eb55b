// Package querysql compiles relation trees to parameterized SQL.
package querysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/drel/internal/queryir"
	"github.com/roach88/drel/internal/value"
)

// ErrInvariant marks a tree the relation algebra should never have built.
// It indicates a defect in this module, not in the caller's query.
var ErrInvariant = errors.New("querysql: internal invariant violated")

// Statement is a compiled query.
type Statement struct {
	// SQL is the statement text with one placeholder per parameter.
	SQL string

	// Params holds the literal values in placeholder order.
	Params []any

	// Columns are the output names of the root projection, in order.
	Columns []string
}

// Fingerprint returns a stable hash of the statement text and columns.
// Parameters are excluded, so one fingerprint covers every binding.
func (s Statement) Fingerprint() (string, error) {
	return value.Fingerprint(value.DomainStatement, map[string]any{
		"sql":     s.SQL,
		"columns": s.Columns,
	})
}

// Compiler compiles relation trees to parameterized SQL.
//
// CRITICAL: All values are parameterized (never interpolated), one
// placeholder per literal occurrence, even in GROUP BY.
// The same tree always compiles to byte-identical SQL and parameters.
// A Compiler holds no per-call state and is safe for concurrent use.
type Compiler struct {
	dialect Dialect
}

// NewCompiler creates a compiler for the given dialect (SQLite if nil).
func NewCompiler(d Dialect) *Compiler {
	if d == nil {
		d = SQLite
	}
	return &Compiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect { return c.dialect }

// Compile converts a projected relation to a Statement.
func (c *Compiler) Compile(rel *queryir.Relation) (Statement, error) {
	if rel == nil {
		return Statement{}, fmt.Errorf("cannot compile nil relation")
	}
	if !rel.IsQuery() {
		return Statement{}, &queryir.QueryError{
			Code:    queryir.CodeNotQuery,
			Message: "relation has no projection",
		}
	}

	st := &state{dialect: c.dialect}
	sql, err := st.selectBlock(rel)
	if err != nil {
		return Statement{}, fmt.Errorf("compile: %w", err)
	}
	return Statement{SQL: sql, Params: st.params, Columns: rel.Columns()}, nil
}

// state accumulates parameters and hands out table aliases for one Compile.
type state struct {
	dialect Dialect
	params  []any
	nalias  int
}

func (st *state) placeholder(v any) string {
	st.params = append(st.params, v)
	return st.dialect.Placeholder(len(st.params))
}

func (st *state) nextAlias() string {
	a := fmt.Sprintf("t%d", st.nalias)
	st.nalias++
	return a
}

// block is one SELECT level, merged from a chain of relation nodes.
type block struct {
	from    *queryir.Relation
	where   []queryir.Expr
	project *queryir.Project
	groups  []queryir.Expr
	having  []queryir.Expr
	order   []queryir.Ordering
}

// collect walks the chain below r in call order. Later Orders replace
// earlier ones; Where and Having predicates accumulate.
func (b *block) collect(r *queryir.Relation) error {
	switch n := r.Node().(type) {
	case *queryir.BaseTable, *queryir.SubqueryRel:
		return nil
	case *queryir.Join:
		// The right side is join-only and carries no clauses.
		return b.collect(n.Left)
	case *queryir.Filter:
		if err := b.collect(n.Source); err != nil {
			return err
		}
		b.where = append(b.where, n.Predicate)
	case *queryir.Project:
		if err := b.collect(n.Source); err != nil {
			return err
		}
		if b.project != nil {
			return fmt.Errorf("%w: two projections in one block", ErrInvariant)
		}
		b.project = n
	case *queryir.Group:
		if err := b.collect(n.Source); err != nil {
			return err
		}
		if b.groups != nil {
			return fmt.Errorf("%w: two groupings in one block", ErrInvariant)
		}
		b.groups = n.Exprs
	case *queryir.Having:
		if err := b.collect(n.Source); err != nil {
			return err
		}
		b.having = append(b.having, n.Predicate)
	case *queryir.Order:
		if err := b.collect(n.Source); err != nil {
			return err
		}
		b.order = n.Terms
	default:
		return fmt.Errorf("%w: unsupported relation node %T", ErrInvariant, n)
	}
	return nil
}

// fromSource skips clause nodes down to the block's FROM item.
func fromSource(r *queryir.Relation) *queryir.Relation {
	for {
		switch n := r.Node().(type) {
		case *queryir.Filter:
			r = n.Source
		case *queryir.Project:
			r = n.Source
		case *queryir.Group:
			r = n.Source
		case *queryir.Having:
			r = n.Source
		case *queryir.Order:
			r = n.Source
		default:
			return r
		}
	}
}

// blockWriter renders one block. Aliases are private to the block: a
// subquery that reuses an outer table instance gets its own alias for it.
type blockWriter struct {
	st      *state
	aliases map[queryir.InstanceID]string
}

func (st *state) selectBlock(rel *queryir.Relation) (string, error) {
	b := &block{from: fromSource(rel)}
	if err := b.collect(rel); err != nil {
		return "", err
	}
	if b.project == nil {
		return "", fmt.Errorf("%w: block has no projection", ErrInvariant)
	}

	w := &blockWriter{st: st, aliases: make(map[queryir.InstanceID]string)}
	if err := w.assignAliases(b.from); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, it := range b.project.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		s, err := w.expr(queryir.Unlabel(it.Expr))
		if err != nil {
			return "", fmt.Errorf("projection %q: %w", it.Name, err)
		}
		sb.WriteString(s)
		sb.WriteString(" AS ")
		sb.WriteString(st.dialect.QuoteIdent(it.Name))
	}

	from, err := w.from(b.from)
	if err != nil {
		return "", err
	}
	sb.WriteString(" FROM ")
	sb.WriteString(from)

	if len(b.where) > 0 {
		s, err := w.expr(queryir.And(b.where[0], b.where[1:]...))
		if err != nil {
			return "", fmt.Errorf("where: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(s)
	}

	// Literals in a grouped expression get fresh placeholders here, apart
	// from the same expression in the projection. Postgres then rejects the
	// query as ungrouped; group over a subquery column or use Raw literals.
	if len(b.groups) > 0 {
		parts := make([]string, len(b.groups))
		for i, g := range b.groups {
			s, err := w.expr(g)
			if err != nil {
				return "", fmt.Errorf("group by: %w", err)
			}
			parts[i] = s
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if len(b.having) > 0 {
		s, err := w.expr(queryir.And(b.having[0], b.having[1:]...))
		if err != nil {
			return "", fmt.Errorf("having: %w", err)
		}
		sb.WriteString(" HAVING ")
		sb.WriteString(s)
	}

	if len(b.order) > 0 {
		parts := make([]string, len(b.order))
		for i, o := range b.order {
			s, err := w.expr(o.Expr)
			if err != nil {
				return "", fmt.Errorf("order by: %w", err)
			}
			switch o.Direction {
			case queryir.Asc:
				s += " ASC"
			case queryir.Desc:
				s += " DESC"
			}
			parts[i] = s
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	return sb.String(), nil
}

// assignAliases numbers the block's table instances in FROM order.
func (w *blockWriter) assignAliases(r *queryir.Relation) error {
	switch n := r.Node().(type) {
	case *queryir.BaseTable:
		w.aliases[n.Instance] = w.st.nextAlias()
	case *queryir.SubqueryRel:
		w.aliases[n.Instance] = w.st.nextAlias()
	case *queryir.Join:
		if err := w.assignAliases(fromSource(n.Left)); err != nil {
			return err
		}
		return w.assignAliases(n.Right)
	default:
		return fmt.Errorf("%w: unexpected FROM item %T", ErrInvariant, n)
	}
	return nil
}

func (w *blockWriter) from(r *queryir.Relation) (string, error) {
	q := w.st.dialect.QuoteIdent
	switch n := r.Node().(type) {
	case *queryir.BaseTable:
		return q(n.Table.DBName) + " AS " + w.aliases[n.Instance], nil
	case *queryir.SubqueryRel:
		inner, err := w.st.selectBlock(n.Query)
		if err != nil {
			return "", fmt.Errorf("subquery: %w", err)
		}
		return "(" + inner + ") AS " + w.aliases[n.Instance], nil
	case *queryir.Join:
		left, err := w.from(fromSource(n.Left))
		if err != nil {
			return "", err
		}
		right, err := w.from(n.Right)
		if err != nil {
			return "", err
		}
		if _, nested := n.Right.Node().(*queryir.Join); nested {
			right = "(" + right + ")"
		}
		if n.Kind == queryir.CrossJoin {
			return left + " CROSS JOIN " + right, nil
		}
		on, err := w.expr(n.On)
		if err != nil {
			return "", fmt.Errorf("join condition: %w", err)
		}
		return left + " " + string(n.Kind) + " JOIN " + right + " ON " + on, nil
	default:
		return "", fmt.Errorf("%w: unexpected FROM item %T", ErrInvariant, n)
	}
}

func (w *blockWriter) exprList(exprs []queryir.Expr) (string, error) {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := w.expr(e)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ", "), nil
}

// expr renders an expression. Every unary and binary node is parenthesized.
func (w *blockWriter) expr(e queryir.Expr) (string, error) {
	if err := e.Err(); err != nil {
		return "", err
	}
	q := w.st.dialect.QuoteIdent

	switch x := e.Node().(type) {
	case *queryir.ColumnRef:
		alias, ok := w.aliases[x.Instance]
		if !ok {
			return "", fmt.Errorf("%w: column %s.%s is not in this block", ErrInvariant, x.Table, x.Name)
		}
		return alias + "." + q(x.Column), nil

	case *queryir.Literal:
		p, err := value.Param(x.Value)
		if err != nil {
			return "", fmt.Errorf("literal: %w", err)
		}
		return w.st.placeholder(p), nil

	case *queryir.Unary:
		operand, err := w.expr(x.Operand)
		if err != nil {
			return "", err
		}
		switch x.Op {
		case queryir.OpNot:
			return "(NOT " + operand + ")", nil
		case queryir.OpNeg:
			return "(-" + operand + ")", nil
		default:
			return "(" + operand + " " + string(x.Op) + ")", nil
		}

	case *queryir.Binary:
		left, err := w.expr(x.Left)
		if err != nil {
			return "", err
		}
		right, err := w.expr(x.Right)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + string(x.Op) + " " + right + ")", nil

	case *queryir.In:
		operand, err := w.expr(x.Operand)
		if err != nil {
			return "", err
		}
		list, err := w.exprList(x.List)
		if err != nil {
			return "", err
		}
		return "(" + operand + " IN (" + list + "))", nil

	case *queryir.Call:
		args, err := w.exprList(x.Args)
		if err != nil {
			return "", err
		}
		return x.Name + "(" + args + ")", nil

	case *queryir.Label:
		// Nested labels compile as the wrapped expression.
		return w.expr(x.Expr)

	case *queryir.LabelRef:
		return q(x.Name), nil

	case *queryir.Subquery:
		inner, err := w.st.selectBlock(x.Query)
		if err != nil {
			return "", fmt.Errorf("scalar subquery: %w", err)
		}
		return "(" + inner + ")", nil

	case *queryir.Star:
		return "*", nil

	case *queryir.Raw:
		return x.SQL, nil

	default:
		return "", fmt.Errorf("%w: unsupported expression node %T", ErrInvariant, x)
	}
}
