package queryir

import "sync/atomic"

// InstanceID identifies one use of a table (or subquery) in a query.
// Ids come from a process-wide counter and are never reused.
type InstanceID uint64

var lastInstance atomic.Uint64

func nextInstance() InstanceID {
	return InstanceID(lastInstance.Add(1))
}

// Scope is what expressions attached to a relation may reference.
//
// Each relation computes its scope once at construction from its children.
// A scope is never modified after the relation owning it is built; derived
// scopes copy what they change and share the rest.
type Scope struct {
	// instances maps visible table instances to their table names.
	instances map[InstanceID]string

	// order lists visible instances in FROM order.
	order []InstanceID

	// labels holds the output names of the block's projection, if any.
	labels map[string]struct{}

	// columns maps the output names of subquery sources in the block to
	// their column references. An ambiguous name maps to an error Expr.
	columns map[string]Expr

	// Clause state of the SELECT block this relation belongs to.
	items    []ProjectItem
	groups   []Expr
	grouped  bool
	having   []Expr
	ordered  bool
	joinOnly bool // only sources and joins so far
}

// Instances returns the visible table instances in FROM order.
func (s *Scope) Instances() []InstanceID {
	out := make([]InstanceID, len(s.order))
	copy(out, s.order)
	return out
}

// HasInstance reports whether id is visible.
func (s *Scope) HasInstance(id InstanceID) bool {
	_, ok := s.instances[id]
	return ok
}

// HasLabel reports whether a projection label named name is visible.
func (s *Scope) HasLabel(name string) bool {
	_, ok := s.labels[name]
	return ok
}

// Projected reports whether the block has a projection.
func (s *Scope) Projected() bool { return s.items != nil }

// Grouped reports whether the block has a GROUP BY.
func (s *Scope) Grouped() bool { return s.grouped }

func sourceScope(id InstanceID, table string) *Scope {
	return &Scope{
		instances: map[InstanceID]string{id: table},
		order:     []InstanceID{id},
		joinOnly:  true,
	}
}

func subqueryScope(sub *Relation) *Scope {
	n := sub.node.(*SubqueryRel)
	s := sourceScope(n.Instance, "subquery")
	s.columns = make(map[string]Expr, len(n.Columns))
	for _, c := range n.Columns {
		s.columns[c] = sub.C(c)
	}
	return s
}

// mergeColumns combines the subquery columns of both sides of a join.
func mergeColumns(left, right map[string]Expr) map[string]Expr {
	if len(left) == 0 {
		return right
	}
	if len(right) == 0 {
		return left
	}
	out := make(map[string]Expr, len(left)+len(right))
	for name, e := range left {
		out[name] = e
	}
	for name, e := range right {
		if _, dup := out[name]; dup {
			e = errExpr(newError(CodeUnresolvedLabel, name,
				"label %q is ambiguous: more than one subquery projects it; use C on the subquery", name))
		}
		out[name] = e
	}
	return out
}

// derive copies the clause state so a new relation can change it.
func (s *Scope) derive() *Scope {
	c := *s
	return &c
}

// resolveMode selects which names an expression may use.
type resolveMode struct {
	clause     string // for error messages
	labels     bool   // projection labels are visible
	aggregates bool   // aggregate calls are permitted
}

var (
	modeWhere   = resolveMode{clause: "WHERE"}
	modeJoinOn  = resolveMode{clause: "join condition"}
	modeGroupBy = resolveMode{clause: "GROUP BY"}
	modeHaving  = resolveMode{clause: "HAVING", aggregates: true}
	modeProject = resolveMode{clause: "projection", aggregates: true}
	modeOrder   = resolveMode{clause: "ORDER BY", labels: true, aggregates: true}
)

// bind checks every column and label reference in e against the scope.
// A label ref names the block's own projection label only where mode
// allows it; otherwise it must name a column of a subquery source, and is
// replaced by that column. The walk stops at scalar subqueries, which
// were bound when wrapped.
func (s *Scope) bind(e Expr, mode resolveMode) (Expr, error) {
	if err := e.Err(); err != nil {
		return Expr{}, err
	}
	if !mode.aggregates {
		if c := aggregateIn(e); c != nil {
			return Expr{}, newError(CodeMisplacedAggregate, c.Name,
				"aggregate %s is not allowed in %s (use Having to filter groups)", c.Name, mode.clause)
		}
	}
	return rewrite(e, func(leaf Expr) (Expr, error) {
		switch x := leaf.node.(type) {
		case *ColumnRef:
			if !s.HasInstance(x.Instance) {
				return Expr{}, NewUnboundTableError(x.Table, x.Name)
			}
		case *LabelRef:
			if mode.labels && s.HasLabel(x.Name) {
				return leaf, nil
			}
			col, ok := s.columns[x.Name]
			if !ok {
				return Expr{}, NewUnresolvedLabelError(x.Name)
			}
			if err := col.Err(); err != nil {
				return Expr{}, err
			}
			return col, nil
		}
		return leaf, nil
	})
}

// checkGrouped verifies that e only uses grouped expressions outside
// aggregate calls.
func checkGrouped(e Expr, groups []Expr) error {
	for _, g := range groups {
		if Equal(e, g) {
			return nil
		}
	}
	switch x := Unlabel(e).node.(type) {
	case *Call:
		if x.Aggregate {
			return nil
		}
	case *ColumnRef:
		return &QueryError{
			Code:    CodeNonAggregatedColumn,
			Message: "column " + x.Name + " must appear in GROUP BY or be used in an aggregate function",
			Name:    x.Name,
			Table:   x.Table,
		}
	}
	for _, c := range children(Unlabel(e).node) {
		if err := checkGrouped(c, groups); err != nil {
			return err
		}
	}
	return nil
}
