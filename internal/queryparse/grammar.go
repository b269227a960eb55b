// Package queryparse parses the textual expression syntax used by query
// documents and the CLI into queryir expressions.
//
// Syntax:
//
//	post.title                 column of the table bound to "post"
//	count(*)  sum(post.id)     aggregates: count sum avg min max
//	lower(user.username)       any other function call
//	@n                         projection label reference
//	'text'  3  1.5  true  null literals ('' escapes a quote)
//	a = b  a <> b  a != b  a < b  a <= b  a > b  a >= b  a LIKE b
//	a + b  a - b  a * b  a / b  a % b  -a
//	a IS NULL  a IS NOT NULL  a IN (1, 2)
//	NOT a  a AND b  a OR b  (a)
//
// Projection items may end in "AS name" and order terms in ASC or DESC.
// Keywords are case-insensitive.
package queryparse

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// exprLexer defines the token types of the expression syntax.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(AND|OR|NOT|IS|NULL|LIKE|IN|AS|ASC|DESC|TRUE|FALSE)\b`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
	{Name: "Op", Pattern: `<>|!=|<=|>=|[=<>+\-*/%]`},
	{Name: "Punct", Pattern: `[(),.@]`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

// Expression is an OR of AND terms.
type Expression struct {
	Pos lexer.Position
	Or  []*AndTerm `@@ ( "OR" @@ )*`
}

// AndTerm is an AND of possibly negated comparisons.
type AndTerm struct {
	And []*NotTerm `@@ ( "AND" @@ )*`
}

// NotTerm is a comparison with an optional NOT.
type NotTerm struct {
	Not bool        `@"NOT"?`
	Cmp *Comparison `@@`
}

// Comparison is a sum with an optional comparison suffix.
type Comparison struct {
	Left   *Sum          `@@`
	Op     string        `( @( "=" | "<>" | "!=" | "<=" | ">=" | "<" | ">" | "LIKE" )`
	Right  *Sum          `  @@`
	IsNull *NullCheck    `| @@`
	In     []*Expression `| "IN" "(" @@ ( "," @@ )* ")" )?`
}

// NullCheck is IS NULL or IS NOT NULL.
type NullCheck struct {
	Not bool `"IS" @"NOT"? "NULL"`
}

// Sum is additive arithmetic.
type Sum struct {
	Head *Product `@@`
	Tail []*SumOp `@@*`
}

// SumOp is one "+ x" or "- x" step.
type SumOp struct {
	Op      string   `@( "+" | "-" )`
	Operand *Product `@@`
}

// Product is multiplicative arithmetic.
type Product struct {
	Head *Unary       `@@`
	Tail []*ProductOp `@@*`
}

// ProductOp is one "* x", "/ x" or "% x" step.
type ProductOp struct {
	Op      string `@( "*" | "/" | "%" )`
	Operand *Unary `@@`
}

// Unary is an optionally negated primary.
type Unary struct {
	Neg     bool     `@"-"?`
	Operand *Primary `@@`
}

// Primary is a literal, reference, call, or parenthesized expression.
type Primary struct {
	Pos    lexer.Position
	Number *string     `  @Number`
	String *string     `| @String`
	Bool   *string     `| @( "TRUE" | "FALSE" )`
	Null   bool        `| @"NULL"`
	Label  *string     `| "@" @Ident`
	Call   *Call       `| @@`
	Column *ColumnPath `| @@`
	Group  *Expression `| "(" @@ ")"`
}

// Call is a function call.
type Call struct {
	Name string        `@Ident "("`
	Star bool          `( @"*"`
	Args []*Expression `| ( @@ ( "," @@ )* )? ) ")"`
}

// ColumnPath is table.column.
type ColumnPath struct {
	Table  string `@Ident "."`
	Column string `@Ident`
}

// Item is a projection item.
type Item struct {
	Expr  *Expression `@@`
	Label string      `( "AS" @Ident )?`
}

// OrderItem is an ORDER BY term.
type OrderItem struct {
	Expr      *Expression `@@`
	Direction string      `@( "ASC" | "DESC" )?`
}

func options() []participle.Option {
	return []participle.Option{
		participle.Lexer(exprLexer),
		participle.Elide("Whitespace"),
		participle.CaseInsensitive("Keyword"),
		participle.UseLookahead(4),
	}
}

var (
	exprParser  = participle.MustBuild[Expression](options()...)
	itemParser  = participle.MustBuild[Item](options()...)
	orderParser = participle.MustBuild[OrderItem](options()...)
)
