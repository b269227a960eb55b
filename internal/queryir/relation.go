package queryir

import (
	"fmt"

	"github.com/roach88/drel/internal/schema"
)

// RelNode is a node of a relation tree.
//
// This is a sealed interface - only types in this package implement it.
type RelNode interface {
	relNode() // Marker method - seals interface to this package
}

// JoinKind is the kind of a Join node.
type JoinKind string

const (
	InnerJoin JoinKind = "INNER"
	LeftJoin  JoinKind = "LEFT"
	CrossJoin JoinKind = "CROSS"
)

// BaseTable is one instance of a schema table.
type BaseTable struct {
	Instance InstanceID
	Table    schema.Table
}

// Join combines two relations. On is the zero Expr for cross joins.
type Join struct {
	Kind        JoinKind
	Left, Right *Relation
	On          Expr
}

// Filter restricts rows with a predicate (WHERE).
type Filter struct {
	Source    *Relation
	Predicate Expr
}

// ProjectItem is one output column of a projection.
type ProjectItem struct {
	Expr Expr
	Name string
}

// Project selects the output columns of a block.
type Project struct {
	Source *Relation
	Items  []ProjectItem
}

// Group groups rows (GROUP BY).
type Group struct {
	Source *Relation
	Exprs  []Expr
}

// Having filters groups.
type Having struct {
	Source    *Relation
	Predicate Expr
}

// Order sorts the output (ORDER BY).
type Order struct {
	Source *Relation
	Terms  []Ordering
}

// SubqueryRel wraps a query so it can be used as a table.
// Columns are the wrapped query's output names.
type SubqueryRel struct {
	Instance InstanceID
	Query    *Relation
	Columns  []string
}

func (*BaseTable) relNode()   {}
func (*Join) relNode()        {}
func (*Filter) relNode()      {}
func (*Project) relNode()     {}
func (*Group) relNode()       {}
func (*Having) relNode()      {}
func (*Order) relNode()       {}
func (*SubqueryRel) relNode() {}

// Relation is an immutable relation: a node plus its cached scope.
//
// Combinators return a new Relation wrapping the receiver and never modify
// it. A failed combinator returns a nil Relation and a *QueryError.
type Relation struct {
	node  RelNode
	scope *Scope
}

// Node returns the root node of the relation.
func (r *Relation) Node() RelNode { return r.node }

// Scope returns the relation's cached scope.
func (r *Relation) Scope() *Scope { return r.scope }

// IsQuery reports whether the relation's block has a projection and can be
// compiled, executed, or wrapped as a subquery.
func (r *Relation) IsQuery() bool { return r != nil && r.scope.Projected() }

// Columns returns the output names of the block's projection, in order.
func (r *Relation) Columns() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.scope.items))
	for i, it := range r.scope.items {
		names[i] = it.Name
	}
	return names
}

// Must panics if err is non-nil and returns r otherwise.
// Use it for package-level query definitions known to be valid.
func Must(r *Relation, err error) *Relation {
	if err != nil {
		panic(err)
	}
	return r
}

// NewTable creates a BaseTable relation with a fresh instance id.
func NewTable(t schema.Table) *Relation {
	id := nextInstance()
	return &Relation{
		node:  &BaseTable{Instance: id, Table: t},
		scope: sourceScope(id, t.Name),
	}
}

// Instance returns the instance id of a BaseTable or SubqueryRel relation.
func (r *Relation) Instance() (InstanceID, bool) {
	switch n := r.node.(type) {
	case *BaseTable:
		return n.Instance, true
	case *SubqueryRel:
		return n.Instance, true
	default:
		return 0, false
	}
}

// C returns a reference to a column of a table or subquery relation.
// Both ORM names and database column names are accepted. A missing column
// yields an Expr carrying ErrUnknownColumn.
func (r *Relation) C(name string) Expr {
	e, err := r.Col(name)
	if err != nil {
		return errExpr(err)
	}
	return e
}

// Col is like C but returns the lookup error directly.
func (r *Relation) Col(name string) (Expr, error) {
	if r == nil {
		return Expr{}, newError(CodeInvalidExpression, name, "column access on nil relation")
	}
	switch n := r.node.(type) {
	case *BaseTable:
		col, ok := n.Table.Lookup(name)
		if !ok {
			return Expr{}, NewUnknownColumnError(n.Table.Name, name)
		}
		return Expr{node: &ColumnRef{
			Instance: n.Instance,
			Table:    n.Table.Name,
			Column:   col.DBName,
			Name:     name,
		}}, nil
	case *SubqueryRel:
		for _, c := range n.Columns {
			if c == name {
				return Expr{node: &ColumnRef{
					Instance: n.Instance,
					Table:    "subquery",
					Column:   c,
					Name:     c,
				}}, nil
			}
		}
		return Expr{}, NewUnknownColumnError("subquery", name)
	default:
		return Expr{}, newError(CodeInvalidExpression, name,
			"column %q: field access needs a table or subquery relation", name)
	}
}

func (r *Relation) check() error {
	if r == nil || r.node == nil {
		return newError(CodeInvalidExpression, "", "nil relation")
	}
	return nil
}

// Project sets the output columns of the block.
//
// Each item must be a column reference, a reference to a visible label, or
// carry its own Label. Output names must be unique. If the block is grouped,
// every item must be grouped or aggregated.
func (r *Relation) Project(items ...Expr) (*Relation, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if r.scope.Projected() {
		return nil, newError(CodeClauseConflict, "",
			"block is already projected; wrap it with Subquery to project again")
	}
	if len(items) == 0 {
		return nil, newError(CodeUnnamedProjection, "", "projection needs at least one item")
	}

	out := make([]ProjectItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := item.Err(); err != nil {
			return nil, err
		}
		name, err := outputName(item)
		if err != nil {
			return nil, err
		}
		e, err := r.scope.bind(item, modeProject)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, newError(CodeDuplicateLabel, name, "output name %q appears twice in one projection", name)
		}
		seen[name] = struct{}{}
		if r.scope.grouped {
			if err := checkGrouped(e, r.scope.groups); err != nil {
				return nil, err
			}
		}
		out = append(out, ProjectItem{Expr: e, Name: name})
	}

	s := r.scope.derive()
	s.items = out
	s.labels = seen
	s.joinOnly = false
	return &Relation{node: &Project{Source: r, Items: out}, scope: s}, nil
}

func outputName(e Expr) (string, error) {
	switch x := e.node.(type) {
	case *ColumnRef:
		return x.Name, nil
	case *Label:
		return x.Name, nil
	case *LabelRef:
		return x.Name, nil
	default:
		return "", newError(CodeUnnamedProjection, "",
			"expression %s needs a label to be projected", e)
	}
}

func (r *Relation) join(kind JoinKind, right *Relation, on Expr) (*Relation, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := right.check(); err != nil {
		return nil, err
	}
	if !right.scope.joinOnly {
		return nil, newError(CodeInvalidJoinTarget, "",
			"join target must be a table, a subquery, or a chain of joins; wrap it with Subquery")
	}
	for _, id := range right.scope.order {
		if r.scope.HasInstance(id) {
			return nil, &QueryError{
				Code:    CodeDuplicateTable,
				Message: "table instance is already part of this query; create another instance for a self-join",
				Table:   right.scope.instances[id],
			}
		}
	}

	s := r.scope.derive()
	s.instances = make(map[InstanceID]string, len(r.scope.instances)+len(right.scope.instances))
	for id, t := range r.scope.instances {
		s.instances[id] = t
	}
	for id, t := range right.scope.instances {
		s.instances[id] = t
	}
	s.order = append(append(make([]InstanceID, 0, len(s.instances)), r.scope.order...), right.scope.order...)

	s.columns = mergeColumns(r.scope.columns, right.scope.columns)

	if kind != CrossJoin {
		var err error
		if on, err = s.bind(on, modeJoinOn); err != nil {
			return nil, err
		}
	}
	return &Relation{node: &Join{Kind: kind, Left: r, Right: right, On: on}, scope: s}, nil
}

// Join adds right with an INNER JOIN on the given condition.
// The condition may only reference the receiver's tables and right's tables.
func (r *Relation) Join(right *Relation, on Expr) (*Relation, error) {
	return r.join(InnerJoin, right, on)
}

// LeftJoin adds right with a LEFT JOIN on the given condition.
func (r *Relation) LeftJoin(right *Relation, on Expr) (*Relation, error) {
	return r.join(LeftJoin, right, on)
}

// CrossJoin adds right with a CROSS JOIN.
func (r *Relation) CrossJoin(right *Relation) (*Relation, error) {
	return r.join(CrossJoin, right, Expr{})
}

// Where filters rows. Several calls are combined with AND in call order.
// The predicate sees the block's tables and the columns of its subquery
// sources, but never the labels of the block's own projection.
func (r *Relation) Where(pred Expr) (*Relation, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	pred, err := r.scope.bind(pred, modeWhere)
	if err != nil {
		return nil, err
	}
	s := r.scope.derive()
	s.joinOnly = false
	return &Relation{node: &Filter{Source: r, Predicate: pred}, scope: s}, nil
}

// Group groups the block by the given expressions, in order.
// An existing projection is checked against the new grouping.
func (r *Relation) Group(exprs ...Expr) (*Relation, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if r.scope.grouped {
		return nil, newError(CodeClauseConflict, "", "block is already grouped")
	}
	if len(exprs) == 0 {
		return nil, newError(CodeInvalidExpression, "", "Group needs at least one expression")
	}
	groups := make([]Expr, len(exprs))
	for i, e := range exprs {
		g, err := r.scope.bind(e, modeGroupBy)
		if err != nil {
			return nil, err
		}
		groups[i] = g
	}
	for _, it := range r.scope.items {
		if err := checkGrouped(it.Expr, groups); err != nil {
			return nil, err
		}
	}
	for _, h := range r.scope.having {
		if err := checkGrouped(h, groups); err != nil {
			return nil, err
		}
	}

	s := r.scope.derive()
	s.grouped = true
	s.groups = groups
	s.joinOnly = false
	return &Relation{node: &Group{Source: r, Exprs: groups}, scope: s}, nil
}

// Having filters groups. Several calls are combined with AND in call order.
func (r *Relation) Having(pred Expr) (*Relation, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	pred, err := r.scope.bind(pred, modeHaving)
	if err != nil {
		return nil, err
	}
	if r.scope.grouped {
		if err := checkGrouped(pred, r.scope.groups); err != nil {
			return nil, err
		}
	}
	s := r.scope.derive()
	s.having = append(append([]Expr(nil), r.scope.having...), pred)
	s.joinOnly = false
	return &Relation{node: &Having{Source: r, Predicate: pred}, scope: s}, nil
}

// Order sorts the output. Terms may reference the block's tables, the
// labels of its projection, and the columns of its subquery sources. A
// later Order on the same block replaces an earlier one.
func (r *Relation) Order(terms ...OrderTerm) (*Relation, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, newError(CodeInvalidExpression, "", "Order needs at least one term")
	}
	out := make([]Ordering, len(terms))
	for i, t := range terms {
		if t == nil {
			return nil, newError(CodeInvalidExpression, "", "nil order term")
		}
		o := t.ordering()
		e, err := r.scope.bind(o.Expr, modeOrder)
		if err != nil {
			return nil, err
		}
		out[i] = Ordering{Expr: e, Direction: o.Direction}
	}
	s := r.scope.derive()
	s.ordered = true
	s.joinOnly = false
	return &Relation{node: &Order{Source: r, Terms: out}, scope: s}, nil
}

// Subquery wraps the query so it can be joined as a table.
// The result has a fresh instance id; its columns are the query's output
// names and the wrapped tables are no longer visible. The output names stay
// usable as label refs in the enclosing block.
func (r *Relation) Subquery() (*Relation, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if !r.IsQuery() {
		return nil, newError(CodeNotQuery, "", "only a projected relation can be used as a subquery")
	}
	sub := &Relation{node: &SubqueryRel{Instance: nextInstance(), Query: r, Columns: r.Columns()}}
	sub.scope = subqueryScope(sub)
	return sub, nil
}

// Scalar wraps a single-column query as a scalar expression.
func (r *Relation) Scalar() (Expr, error) {
	if err := r.check(); err != nil {
		return Expr{}, err
	}
	if !r.IsQuery() {
		return Expr{}, newError(CodeNotQuery, "", "only a projected relation can be used as a subquery")
	}
	if n := len(r.scope.items); n != 1 {
		return Expr{}, newError(CodeScalarSubquery, "",
			"scalar subquery must project exactly one column, got %d", n)
	}
	return Expr{node: &Subquery{Query: r}}, nil
}

// String returns a short description of the relation's root.
func (r *Relation) String() string {
	if r == nil {
		return "<nil relation>"
	}
	switch n := r.node.(type) {
	case *BaseTable:
		return fmt.Sprintf("table %s#%d", n.Table.Name, n.Instance)
	case *SubqueryRel:
		return fmt.Sprintf("subquery#%d", n.Instance)
	default:
		return fmt.Sprintf("%T over %d table(s)", r.node, len(r.scope.order))
	}
}
