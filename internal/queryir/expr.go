package queryir

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/drel/internal/value"
)

// Node is a node of an expression tree.
//
// This is a sealed interface - only types in this package implement it.
// The compiler type-switches over the concrete node types.
type Node interface {
	exprNode() // Marker method - seals interface to this package
}

// Expr is an immutable scalar expression.
//
// Expr is a small value type wrapping a Node. Every combinator returns a new
// Expr and never modifies its operands, so expressions can be shared freely
// between queries and goroutines.
//
// An Expr may carry a deferred error (for example field access on a missing
// column). Combinators propagate the first error they see, and every
// relation combinator reports it before building anything.
type Expr struct {
	node Node
	err  error
}

// Node returns the root node of the expression.
func (e Expr) Node() Node { return e.node }

// Err returns the deferred construction error, if any.
func (e Expr) Err() error {
	if e.err != nil {
		return e.err
	}
	if e.node == nil {
		return newError(CodeInvalidExpression, "", "empty expression")
	}
	return nil
}

// IsZero reports whether e is the zero Expr.
func (e Expr) IsZero() bool { return e.node == nil && e.err == nil }

func (e Expr) String() string {
	if e.err != nil {
		return fmt.Sprintf("<error: %v>", e.err)
	}
	return describe(e.node)
}

func errExpr(err error) Expr { return Expr{err: err} }

// BinaryOp is a binary SQL operator.
type BinaryOp string

const (
	OpEq   BinaryOp = "="
	OpNe   BinaryOp = "<>"
	OpLt   BinaryOp = "<"
	OpLe   BinaryOp = "<="
	OpGt   BinaryOp = ">"
	OpGe   BinaryOp = ">="
	OpAnd  BinaryOp = "AND"
	OpOr   BinaryOp = "OR"
	OpAdd  BinaryOp = "+"
	OpSub  BinaryOp = "-"
	OpMul  BinaryOp = "*"
	OpDiv  BinaryOp = "/"
	OpMod  BinaryOp = "%"
	OpLike BinaryOp = "LIKE"
)

// UnaryOp is a unary SQL operator.
type UnaryOp string

const (
	OpNot       UnaryOp = "NOT"
	OpNeg       UnaryOp = "-"
	OpIsNull    UnaryOp = "IS NULL"
	OpIsNotNull UnaryOp = "IS NOT NULL"
)

// ColumnRef references a column of one table instance.
type ColumnRef struct {
	Instance InstanceID
	Table    string // table name as known to the schema provider
	Column   string // database column name
	Name     string // name used at field access; the default output name
}

// Literal is a constant bound as a SQL parameter.
type Literal struct {
	Value value.Value
}

// Unary applies a unary operator.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// Binary applies a binary operator.
type Binary struct {
	Op          BinaryOp
	Left, Right Expr
}

// In tests membership of Operand in List.
type In struct {
	Operand Expr
	List    []Expr
}

// Call is a SQL function application.
// Aggregate marks functions that collapse groups (COUNT, SUM, ...).
type Call struct {
	Name      string
	Args      []Expr
	Aggregate bool
}

// Label names an expression within a projection.
// Nested inside a larger expression it compiles as the wrapped expression.
type Label struct {
	Name string
	Expr Expr
}

// LabelRef refers to a projection label by name.
type LabelRef struct {
	Name string
}

// Subquery is a scalar subquery; Query projects exactly one column.
type Subquery struct {
	Query *Relation
}

// Star is the "*" argument of COUNT(*).
type Star struct{}

// Raw is SQL text passed through verbatim.
type Raw struct {
	SQL string
}

func (*ColumnRef) exprNode() {}
func (*Literal) exprNode()   {}
func (*Unary) exprNode()     {}
func (*Binary) exprNode()    {}
func (*In) exprNode()        {}
func (*Call) exprNode()      {}
func (*Label) exprNode()     {}
func (*LabelRef) exprNode()  {}
func (*Subquery) exprNode()  {}
func (*Star) exprNode()      {}
func (*Raw) exprNode()       {}

// Const wraps a host value as a Literal.
//
// Supported: nil, string, bool, integer and float kinds, time.Time, []byte,
// and value.Value. An unsupported type yields an Expr whose error surfaces
// at the next relation combinator.
func Const(v any) Expr {
	if e, ok := v.(Expr); ok {
		return e
	}
	lit, err := value.FromGo(v)
	if err != nil {
		return errExpr(&QueryError{
			Code:    CodeUnsupportedLiteral,
			Message: err.Error(),
		})
	}
	return Expr{node: &Literal{Value: lit}}
}

// toExpr lifts combinator operands: Expr passes through, anything else is
// wrapped with Const.
func toExpr(v any) Expr {
	switch x := v.(type) {
	case Expr:
		return x
	case Ordering:
		return errExpr(newError(CodeInvalidExpression, "", "an ordering term cannot be used as an operand"))
	default:
		return Const(v)
	}
}

func firstErr(exprs ...Expr) error {
	for _, e := range exprs {
		if err := e.Err(); err != nil {
			return err
		}
	}
	return nil
}

func binary(op BinaryOp, left Expr, right any) Expr {
	r := toExpr(right)
	if err := firstErr(left, r); err != nil {
		return errExpr(err)
	}
	return Expr{node: &Binary{Op: op, Left: left, Right: r}}
}

func unary(op UnaryOp, operand Expr) Expr {
	if err := operand.Err(); err != nil {
		return errExpr(err)
	}
	return Expr{node: &Unary{Op: op, Operand: operand}}
}

// Eq builds e = other.
func (e Expr) Eq(other any) Expr { return binary(OpEq, e, other) }

// Ne builds e <> other.
func (e Expr) Ne(other any) Expr { return binary(OpNe, e, other) }

// Lt builds e < other.
func (e Expr) Lt(other any) Expr { return binary(OpLt, e, other) }

// Le builds e <= other.
func (e Expr) Le(other any) Expr { return binary(OpLe, e, other) }

// Gt builds e > other.
func (e Expr) Gt(other any) Expr { return binary(OpGt, e, other) }

// Ge builds e >= other.
func (e Expr) Ge(other any) Expr { return binary(OpGe, e, other) }

// Add builds e + other.
func (e Expr) Add(other any) Expr { return binary(OpAdd, e, other) }

// Sub builds e - other.
func (e Expr) Sub(other any) Expr { return binary(OpSub, e, other) }

// Mul builds e * other.
func (e Expr) Mul(other any) Expr { return binary(OpMul, e, other) }

// Div builds e / other.
func (e Expr) Div(other any) Expr { return binary(OpDiv, e, other) }

// Mod builds e % other.
func (e Expr) Mod(other any) Expr { return binary(OpMod, e, other) }

// Like builds e LIKE pattern.
func (e Expr) Like(pattern any) Expr { return binary(OpLike, e, pattern) }

// And builds e AND other.
func (e Expr) And(other any) Expr { return binary(OpAnd, e, other) }

// Or builds e OR other.
func (e Expr) Or(other any) Expr { return binary(OpOr, e, other) }

// Not builds NOT e.
func (e Expr) Not() Expr { return unary(OpNot, e) }

// Neg builds -e.
func (e Expr) Neg() Expr { return unary(OpNeg, e) }

// IsNull builds e IS NULL.
func (e Expr) IsNull() Expr { return unary(OpIsNull, e) }

// IsNotNull builds e IS NOT NULL.
func (e Expr) IsNotNull() Expr { return unary(OpIsNotNull, e) }

// In builds e IN (values...). Each value is an Expr or a host literal.
func (e Expr) In(values ...any) Expr {
	if len(values) == 0 {
		return errExpr(newError(CodeInvalidExpression, "", "IN requires at least one value"))
	}
	list := make([]Expr, len(values))
	for i, v := range values {
		list[i] = toExpr(v)
	}
	if err := firstErr(append([]Expr{e}, list...)...); err != nil {
		return errExpr(err)
	}
	return Expr{node: &In{Operand: e, List: list}}
}

// Label names e for use in a projection.
func (e Expr) Label(name string) Expr {
	if err := e.Err(); err != nil {
		return errExpr(err)
	}
	if name == "" {
		return errExpr(newError(CodeInvalidExpression, "", "label name must be non-empty"))
	}
	return Expr{node: &Label{Name: name, Expr: e}}
}

// As is an alias of Label.
func (e Expr) As(name string) Expr { return e.Label(name) }

// And combines predicates with AND, left to right.
func And(first Expr, rest ...Expr) Expr {
	out := first
	for _, r := range rest {
		out = out.And(r)
	}
	return out
}

// Or combines predicates with OR, left to right.
func Or(first Expr, rest ...Expr) Expr {
	out := first
	for _, r := range rest {
		out = out.Or(r)
	}
	return out
}

// Not negates a predicate.
func Not(e Expr) Expr { return e.Not() }

// LabelRefTo refers to a projection label by name.
func LabelRefTo(name string) Expr {
	if name == "" {
		return errExpr(newError(CodeInvalidExpression, "", "label name must be non-empty"))
	}
	return Expr{node: &LabelRef{Name: name}}
}

// RawSQL passes sql through to the compiled statement verbatim.
func RawSQL(sql string) Expr {
	if sql == "" {
		return errExpr(newError(CodeInvalidExpression, "", "raw SQL must be non-empty"))
	}
	return Expr{node: &Raw{SQL: sql}}
}

// Fn applies a plain SQL function.
func Fn(name string, args ...any) Expr { return call(name, false, args) }

// Aggregate applies an aggregate SQL function.
func Aggregate(name string, args ...any) Expr { return call(name, true, args) }

func call(name string, aggregate bool, args []any) Expr {
	if name == "" {
		return errExpr(newError(CodeInvalidExpression, "", "function name must be non-empty"))
	}
	exprs := make([]Expr, len(args))
	for i, a := range args {
		exprs[i] = toExpr(a)
	}
	if err := firstErr(exprs...); err != nil {
		return errExpr(err)
	}
	return Expr{node: &Call{Name: name, Args: exprs, Aggregate: aggregate}}
}

// Count builds COUNT(*) with no argument, COUNT(e) with one.
func Count(e ...Expr) Expr {
	switch len(e) {
	case 0:
		return Expr{node: &Call{Name: "COUNT", Args: []Expr{{node: &Star{}}}, Aggregate: true}}
	case 1:
		return Aggregate("COUNT", e[0])
	default:
		return errExpr(newError(CodeInvalidExpression, "", "COUNT takes at most one argument"))
	}
}

// Sum builds SUM(e).
func Sum(e Expr) Expr { return Aggregate("SUM", e) }

// Avg builds AVG(e).
func Avg(e Expr) Expr { return Aggregate("AVG", e) }

// Max builds MAX(e).
func Max(e Expr) Expr { return Aggregate("MAX", e) }

// Min builds MIN(e).
func Min(e Expr) Expr { return Aggregate("MIN", e) }

// Direction is an ORDER BY direction.
type Direction int

const (
	// Unspecified leaves the direction to the database (ascending).
	Unspecified Direction = iota
	Asc
	Desc
)

// Ordering is one ORDER BY term.
type Ordering struct {
	Expr      Expr
	Direction Direction
}

// OrderTerm is accepted by Relation.Order: an Expr or an Ordering.
type OrderTerm interface {
	ordering() Ordering
}

func (e Expr) ordering() Ordering     { return Ordering{Expr: e} }
func (o Ordering) ordering() Ordering { return o }

// Asc orders by e ascending.
func (e Expr) Asc() Ordering { return Ordering{Expr: e, Direction: Asc} }

// Desc orders by e descending.
func (e Expr) Desc() Ordering { return Ordering{Expr: e, Direction: Desc} }

// Unlabel strips top-level Label wrappers.
func Unlabel(e Expr) Expr {
	for {
		l, ok := e.node.(*Label)
		if !ok {
			return e
		}
		e = l.Expr
	}
}

// children returns the direct sub-expressions of a node, in textual order.
// Scalar subqueries are leaves: their inner expressions belong to another block.
func children(n Node) []Expr {
	switch x := n.(type) {
	case *Unary:
		return []Expr{x.Operand}
	case *Binary:
		return []Expr{x.Left, x.Right}
	case *In:
		return append([]Expr{x.Operand}, x.List...)
	case *Call:
		return x.Args
	case *Label:
		return []Expr{x.Expr}
	default:
		return nil
	}
}

// Walk visits e and its sub-expressions depth first, in textual order.
// Returning false from fn skips the node's children.
func Walk(e Expr, fn func(Node) bool) {
	if e.node == nil {
		return
	}
	if !fn(e.node) {
		return
	}
	for _, c := range children(e.node) {
		Walk(c, fn)
	}
}

// rewrite applies fn to every leaf of e and rebuilds the nodes above the
// leaves it replaced. Untouched subtrees are shared with e.
func rewrite(e Expr, fn func(Expr) (Expr, error)) (Expr, error) {
	kids := children(e.node)
	if len(kids) == 0 {
		return fn(e)
	}
	out := make([]Expr, len(kids))
	changed := false
	for i, k := range kids {
		r, err := rewrite(k, fn)
		if err != nil {
			return Expr{}, err
		}
		out[i] = r
		changed = changed || r.node != k.node
	}
	if !changed {
		return e, nil
	}
	return Expr{node: withChildren(e.node, out)}, nil
}

func withChildren(n Node, kids []Expr) Node {
	switch x := n.(type) {
	case *Unary:
		return &Unary{Op: x.Op, Operand: kids[0]}
	case *Binary:
		return &Binary{Op: x.Op, Left: kids[0], Right: kids[1]}
	case *In:
		return &In{Operand: kids[0], List: kids[1:]}
	case *Call:
		return &Call{Name: x.Name, Args: kids, Aggregate: x.Aggregate}
	case *Label:
		return &Label{Name: x.Name, Expr: kids[0]}
	default:
		return n
	}
}

// aggregateIn returns the first aggregate call in e outside any scalar
// subquery, or nil.
func aggregateIn(e Expr) *Call {
	var found *Call
	Walk(e, func(n Node) bool {
		if found != nil {
			return false
		}
		if c, ok := n.(*Call); ok && c.Aggregate {
			found = c
		}
		return found == nil
	})
	return found
}

// Equal reports structural equality. Column references compare by instance
// and database column; labels are transparent.
func Equal(a, b Expr) bool {
	a, b = Unlabel(a), Unlabel(b)
	switch x := a.node.(type) {
	case *ColumnRef:
		y, ok := b.node.(*ColumnRef)
		return ok && x.Instance == y.Instance && x.Column == y.Column
	case *Literal:
		y, ok := b.node.(*Literal)
		return ok && literalEqual(x.Value, y.Value)
	case *Unary:
		y, ok := b.node.(*Unary)
		return ok && x.Op == y.Op && Equal(x.Operand, y.Operand)
	case *Binary:
		y, ok := b.node.(*Binary)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *In:
		y, ok := b.node.(*In)
		return ok && Equal(x.Operand, y.Operand) && slices.EqualFunc(x.List, y.List, Equal)
	case *Call:
		y, ok := b.node.(*Call)
		return ok && x.Name == y.Name && x.Aggregate == y.Aggregate && slices.EqualFunc(x.Args, y.Args, Equal)
	case *LabelRef:
		y, ok := b.node.(*LabelRef)
		return ok && x.Name == y.Name
	case *Subquery:
		y, ok := b.node.(*Subquery)
		return ok && x.Query == y.Query
	case *Star:
		_, ok := b.node.(*Star)
		return ok
	case *Raw:
		y, ok := b.node.(*Raw)
		return ok && x.SQL == y.SQL
	default:
		return false
	}
}

func literalEqual(a, b value.Value) bool {
	ca, errA := value.MarshalCanonical(a)
	cb, errB := value.MarshalCanonical(b)
	if err := errors.Join(errA, errB); err != nil {
		return false
	}
	return value.Kind(a) == value.Kind(b) && string(ca) == string(cb)
}

// describe renders a short debugging form of a node.
func describe(n Node) string {
	switch x := n.(type) {
	case nil:
		return "<empty>"
	case *ColumnRef:
		return fmt.Sprintf("%s#%d.%s", x.Table, x.Instance, x.Name)
	case *Literal:
		b, err := value.MarshalCanonical(x.Value)
		if err != nil {
			return "<literal>"
		}
		return string(b)
	case *Unary:
		if x.Op == OpNot || x.Op == OpNeg {
			return fmt.Sprintf("(%s %s)", x.Op, x.Operand)
		}
		return fmt.Sprintf("(%s %s)", x.Operand, x.Op)
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", x.Left, x.Op, x.Right)
	case *In:
		return fmt.Sprintf("(%s IN %v)", x.Operand, x.List)
	case *Call:
		return fmt.Sprintf("%s%v", x.Name, x.Args)
	case *Label:
		return fmt.Sprintf("%s AS %s", x.Expr, x.Name)
	case *LabelRef:
		return "@" + x.Name
	case *Subquery:
		return "(subquery)"
	case *Star:
		return "*"
	case *Raw:
		return x.SQL
	default:
		return fmt.Sprintf("%T", n)
	}
}
