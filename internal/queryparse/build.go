package queryparse

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/roach88/drel/internal/queryir"
)

// Env binds the table names used in expressions to relations.
type Env map[string]*queryir.Relation

// Names returns the bound names, sorted.
func (env Env) Names() []string {
	names := make([]string, 0, len(env))
	for n := range env {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseError reports a syntax error in an expression.
type ParseError struct {
	Input   string
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at offset %d: %s", e.Input, e.Offset, e.Message)
}

// UnboundNameError reports a table name with no binding in the Env.
type UnboundNameError struct {
	Name  string
	Bound []string
}

func (e *UnboundNameError) Error() string {
	if len(e.Bound) == 0 {
		return fmt.Sprintf("unknown table %q: no tables are bound", e.Name)
	}
	return fmt.Sprintf("unknown table %q (bound: %s)", e.Name, strings.Join(e.Bound, ", "))
}

func parseError(src string, err error) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		return &ParseError{Input: src, Offset: perr.Position().Offset, Message: perr.Message()}
	}
	return &ParseError{Input: src, Message: err.Error()}
}

// ParseExpr parses a bare expression.
func ParseExpr(src string) (*Expression, error) {
	ast, err := exprParser.ParseString("", src)
	if err != nil {
		return nil, parseError(src, err)
	}
	return ast, nil
}

// ParseItem parses a projection item.
func ParseItem(src string) (*Item, error) {
	ast, err := itemParser.ParseString("", src)
	if err != nil {
		return nil, parseError(src, err)
	}
	return ast, nil
}

// ParseOrder parses an order term.
func ParseOrder(src string) (*OrderItem, error) {
	ast, err := orderParser.ParseString("", src)
	if err != nil {
		return nil, parseError(src, err)
	}
	return ast, nil
}

// Expr parses src and builds it against env.
func Expr(src string, env Env) (queryir.Expr, error) {
	ast, err := ParseExpr(src)
	if err != nil {
		return queryir.Expr{}, err
	}
	return ast.Build(env)
}

// ProjectItem parses a projection item and builds it against env. An
// "AS name" suffix labels the expression.
func ProjectItem(src string, env Env) (queryir.Expr, error) {
	ast, err := ParseItem(src)
	if err != nil {
		return queryir.Expr{}, err
	}
	e, err := ast.Expr.Build(env)
	if err != nil {
		return queryir.Expr{}, err
	}
	if ast.Label != "" {
		e = e.Label(ast.Label)
	}
	return e, e.Err()
}

// OrderTerm parses an order term and builds it against env.
func OrderTerm(src string, env Env) (queryir.OrderTerm, error) {
	ast, err := ParseOrder(src)
	if err != nil {
		return nil, err
	}
	e, err := ast.Expr.Build(env)
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(ast.Direction) {
	case "ASC":
		return e.Asc(), nil
	case "DESC":
		return e.Desc(), nil
	default:
		return e, nil
	}
}

// Build converts the syntax tree to a queryir expression.
func (x *Expression) Build(env Env) (queryir.Expr, error) {
	terms := make([]queryir.Expr, 0, len(x.Or))
	for _, t := range x.Or {
		e, err := t.build(env)
		if err != nil {
			return queryir.Expr{}, err
		}
		terms = append(terms, e)
	}
	e := queryir.Or(terms[0], terms[1:]...)
	return e, e.Err()
}

func (t *AndTerm) build(env Env) (queryir.Expr, error) {
	terms := make([]queryir.Expr, 0, len(t.And))
	for _, n := range t.And {
		e, err := n.build(env)
		if err != nil {
			return queryir.Expr{}, err
		}
		terms = append(terms, e)
	}
	return queryir.And(terms[0], terms[1:]...), nil
}

func (n *NotTerm) build(env Env) (queryir.Expr, error) {
	e, err := n.Cmp.build(env)
	if err != nil {
		return queryir.Expr{}, err
	}
	if n.Not {
		e = e.Not()
	}
	return e, nil
}

func (c *Comparison) build(env Env) (queryir.Expr, error) {
	left, err := c.Left.build(env)
	if err != nil {
		return queryir.Expr{}, err
	}
	switch {
	case c.Op != "":
		right, err := c.Right.build(env)
		if err != nil {
			return queryir.Expr{}, err
		}
		switch strings.ToUpper(c.Op) {
		case "=":
			return left.Eq(right), nil
		case "<>", "!=":
			return left.Ne(right), nil
		case "<":
			return left.Lt(right), nil
		case "<=":
			return left.Le(right), nil
		case ">":
			return left.Gt(right), nil
		case ">=":
			return left.Ge(right), nil
		case "LIKE":
			return left.Like(right), nil
		}
		return queryir.Expr{}, fmt.Errorf("unknown operator %q", c.Op)
	case c.IsNull != nil:
		if c.IsNull.Not {
			return left.IsNotNull(), nil
		}
		return left.IsNull(), nil
	case len(c.In) > 0:
		list := make([]any, len(c.In))
		for i, item := range c.In {
			e, err := item.Build(env)
			if err != nil {
				return queryir.Expr{}, err
			}
			list[i] = e
		}
		return left.In(list...), nil
	}
	return left, nil
}

func (s *Sum) build(env Env) (queryir.Expr, error) {
	e, err := s.Head.build(env)
	if err != nil {
		return queryir.Expr{}, err
	}
	for _, op := range s.Tail {
		rhs, err := op.Operand.build(env)
		if err != nil {
			return queryir.Expr{}, err
		}
		if op.Op == "+" {
			e = e.Add(rhs)
		} else {
			e = e.Sub(rhs)
		}
	}
	return e, nil
}

func (p *Product) build(env Env) (queryir.Expr, error) {
	e, err := p.Head.build(env)
	if err != nil {
		return queryir.Expr{}, err
	}
	for _, op := range p.Tail {
		rhs, err := op.Operand.build(env)
		if err != nil {
			return queryir.Expr{}, err
		}
		switch op.Op {
		case "*":
			e = e.Mul(rhs)
		case "/":
			e = e.Div(rhs)
		default:
			e = e.Mod(rhs)
		}
	}
	return e, nil
}

func (u *Unary) build(env Env) (queryir.Expr, error) {
	if u.Neg && u.Operand.Number != nil {
		// -3 is the literal -3, not NEG(3).
		return number("-" + *u.Operand.Number)
	}
	e, err := u.Operand.build(env)
	if err != nil {
		return queryir.Expr{}, err
	}
	if u.Neg {
		e = e.Neg()
	}
	return e, nil
}

func (p *Primary) build(env Env) (queryir.Expr, error) {
	switch {
	case p.Number != nil:
		return number(*p.Number)
	case p.String != nil:
		s := *p.String
		return queryir.Const(strings.ReplaceAll(s[1:len(s)-1], "''", "'")), nil
	case p.Bool != nil:
		return queryir.Const(strings.EqualFold(*p.Bool, "TRUE")), nil
	case p.Null:
		return queryir.Const(nil), nil
	case p.Label != nil:
		return queryir.LabelRefTo(*p.Label), nil
	case p.Call != nil:
		return p.Call.build(env)
	case p.Column != nil:
		rel, ok := env[p.Column.Table]
		if !ok {
			return queryir.Expr{}, &UnboundNameError{Name: p.Column.Table, Bound: env.Names()}
		}
		return rel.Col(p.Column.Column)
	case p.Group != nil:
		return p.Group.Build(env)
	}
	return queryir.Expr{}, fmt.Errorf("empty expression at offset %d", p.Pos.Offset)
}

func number(s string) (queryir.Expr, error) {
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return queryir.Expr{}, fmt.Errorf("number %q: %w", s, err)
		}
		return queryir.Const(f), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return queryir.Expr{}, fmt.Errorf("number %q: %w", s, err)
	}
	return queryir.Const(n), nil
}

func (c *Call) build(env Env) (queryir.Expr, error) {
	name := strings.ToUpper(c.Name)
	if c.Star {
		if name != "COUNT" {
			return queryir.Expr{}, fmt.Errorf("%s(*): only count accepts *", c.Name)
		}
		return queryir.Count(), nil
	}
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		e, err := a.Build(env)
		if err != nil {
			return queryir.Expr{}, err
		}
		args[i] = e
	}
	switch name {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		if len(args) != 1 {
			return queryir.Expr{}, fmt.Errorf("%s takes exactly one argument, got %d", c.Name, len(args))
		}
		return queryir.Aggregate(name, args[0]), nil
	}
	return queryir.Fn(name, args...), nil
}
