// Package querydoc loads query documents: YAML descriptions of a relation
// chain whose expressions use the queryparse syntax.
//
//	name: posts_per_user
//	from: {table: BlogUser, as: user}
//	joins:
//	  - {table: BlogPost, as: post, on: "post.user = user.id"}
//	group: [user.username]
//	project: ["user.username", "count(post.id) AS n"]
//	order: ["@n DESC"]
//
// A source is either a table or a nested query document. Clauses apply in
// the order from, joins, where, group, having, project, order.
package querydoc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Join kinds accepted in documents.
const (
	KindInner = "inner"
	KindLeft  = "left"
	KindCross = "cross"
)

// Document is one query.
type Document struct {
	// Name identifies the query in CLI output and harness snapshots.
	Name string `yaml:"name,omitempty"`

	Description string `yaml:"description,omitempty"`

	From  Source `yaml:"from"`
	Joins []Join `yaml:"joins,omitempty"`

	Where  []string `yaml:"where,omitempty"`
	Group  []string `yaml:"group,omitempty"`
	Having []string `yaml:"having,omitempty"`

	// Project is required; every query ends in a projection.
	Project []string `yaml:"project"`

	Order []string `yaml:"order,omitempty"`
}

// Source is a FROM or JOIN target.
type Source struct {
	// Table is a table name known to the schema provider.
	Table string `yaml:"table,omitempty"`

	// Query is a derived table.
	Query *Document `yaml:"query,omitempty"`

	// As binds the source for expressions. Defaults to Table.
	// Required for a derived table.
	As string `yaml:"as,omitempty"`
}

// Join adds a source to the query.
type Join struct {
	Source `yaml:",inline"`

	// Kind is inner (default), left, or cross.
	Kind string `yaml:"kind,omitempty"`

	// On is the join condition, absent for a cross join.
	On string `yaml:"on,omitempty"`
}

// Name returns the binding name of the source.
func (s Source) Name() string {
	if s.As != "" {
		return s.As
	}
	return s.Table
}

// Load reads and validates a query document from fs.
func Load(fs afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates a query document.
// Unknown fields are rejected to catch typos.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	return &doc, nil
}

// Validate checks the document structure. Expression syntax and names are
// checked by Build.
func (d *Document) Validate() error {
	var errs []error
	if len(d.Project) == 0 {
		errs = append(errs, errors.New("project is required and must be non-empty"))
	}
	if err := d.From.validate(); err != nil {
		errs = append(errs, fmt.Errorf("from: %w", err))
	}
	seen := map[string]bool{d.From.Name(): true}
	for i, j := range d.Joins {
		if err := j.validate(); err != nil {
			errs = append(errs, fmt.Errorf("joins[%d]: %w", i, err))
			continue
		}
		if seen[j.Name()] {
			errs = append(errs, fmt.Errorf("joins[%d]: name %q is already bound; set as", i, j.Name()))
		}
		seen[j.Name()] = true
	}
	return errors.Join(errs...)
}

func (s Source) validate() error {
	switch {
	case s.Table == "" && s.Query == nil:
		return errors.New("one of table or query is required")
	case s.Table != "" && s.Query != nil:
		return errors.New("table and query are mutually exclusive")
	case s.Query != nil && s.As == "":
		return errors.New("a derived table needs as")
	case s.Query != nil:
		if err := s.Query.Validate(); err != nil {
			return fmt.Errorf("query: %w", err)
		}
	}
	return nil
}

func (j Join) validate() error {
	if err := j.Source.validate(); err != nil {
		return err
	}
	switch strings.ToLower(j.Kind) {
	case "", KindInner, KindLeft:
		if j.On == "" {
			return errors.New("on is required")
		}
	case KindCross:
		if j.On != "" {
			return errors.New("a cross join takes no on")
		}
	default:
		return fmt.Errorf("unknown join kind %q (want inner, left, or cross)", j.Kind)
	}
	return nil
}
