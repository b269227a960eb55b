package querydoc

import (
	"fmt"
	"strings"

	"github.com/roach88/drel/internal/queryir"
	"github.com/roach88/drel/internal/queryparse"
	"github.com/roach88/drel/internal/schema"
)

// Build turns the document into a projected relation. Tables are resolved
// through p; every source gets a fresh instance.
func (d *Document) Build(p schema.Provider) (*queryir.Relation, error) {
	env := queryparse.Env{}

	rel, err := source(d.From, p)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	env[d.From.Name()] = rel

	for i, j := range d.Joins {
		right, err := source(j.Source, p)
		if err != nil {
			return nil, fmt.Errorf("joins[%d]: %w", i, err)
		}
		env[j.Name()] = right

		if strings.EqualFold(j.Kind, KindCross) {
			rel, err = rel.CrossJoin(right)
		} else {
			var on queryir.Expr
			on, err = queryparse.Expr(j.On, env)
			if err != nil {
				return nil, fmt.Errorf("joins[%d].on: %w", i, err)
			}
			if strings.EqualFold(j.Kind, KindLeft) {
				rel, err = rel.LeftJoin(right, on)
			} else {
				rel, err = rel.Join(right, on)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("joins[%d]: %w", i, err)
		}
	}

	for i, src := range d.Where {
		pred, err := queryparse.Expr(src, env)
		if err != nil {
			return nil, fmt.Errorf("where[%d]: %w", i, err)
		}
		if rel, err = rel.Where(pred); err != nil {
			return nil, fmt.Errorf("where[%d]: %w", i, err)
		}
	}

	if len(d.Group) > 0 {
		exprs, err := parseAll(d.Group, env, queryparse.Expr)
		if err != nil {
			return nil, fmt.Errorf("group: %w", err)
		}
		if rel, err = rel.Group(exprs...); err != nil {
			return nil, fmt.Errorf("group: %w", err)
		}
	}

	for i, src := range d.Having {
		pred, err := queryparse.Expr(src, env)
		if err != nil {
			return nil, fmt.Errorf("having[%d]: %w", i, err)
		}
		if rel, err = rel.Having(pred); err != nil {
			return nil, fmt.Errorf("having[%d]: %w", i, err)
		}
	}

	items, err := parseAll(d.Project, env, queryparse.ProjectItem)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	if rel, err = rel.Project(items...); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	if len(d.Order) > 0 {
		terms := make([]queryir.OrderTerm, len(d.Order))
		for i, src := range d.Order {
			if terms[i], err = queryparse.OrderTerm(src, env); err != nil {
				return nil, fmt.Errorf("order[%d]: %w", i, err)
			}
		}
		if rel, err = rel.Order(terms...); err != nil {
			return nil, fmt.Errorf("order: %w", err)
		}
	}
	return rel, nil
}

func source(s Source, p schema.Provider) (*queryir.Relation, error) {
	if s.Query == nil {
		t, err := schema.Resolve(p, s.Table)
		if err != nil {
			return nil, err
		}
		return queryir.NewTable(t), nil
	}
	// A derived table has its own bindings; outer names are not visible.
	inner, err := s.Query.Build(p)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return inner.Subquery()
}

func parseAll(srcs []string, env queryparse.Env, parse func(string, queryparse.Env) (queryir.Expr, error)) ([]queryir.Expr, error) {
	out := make([]queryir.Expr, len(srcs))
	for i, src := range srcs {
		e, err := parse(src, env)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}
