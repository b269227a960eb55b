// Package queryir defines the immutable query algebra: scalar expressions,
// relations, and the scopes that validate them.
//
// Expressions are built with named combinators. The operator mapping is:
//
//	==  Eq      !=  Ne      <   Lt      <=  Le      >   Gt      >=  Ge
//	&   And     |   Or      +   Add     -   Sub     *   Mul     /   Div
//	%   Mod     unary - Neg    unary ! Not
//
// Relations are built by chaining combinators on a table relation:
//
//	post := queryir.NewTable(postTable)
//	user := queryir.NewTable(userTable)
//	q, err := post.Join(user, user.C("id").Eq(post.C("user_id")))
//	q, err = q.Project(post.C("title"), user.C("username"))
//	q, err = q.Order(post.C("published").Desc())
//
// Every combinator validates its arguments against the receiver's cached
// Scope and returns a *QueryError on failure. Neither expressions nor
// relations are ever modified after construction, so they can be shared
// between goroutines and between queries.
//
// A chain of combinators up to a Subquery boundary forms one SELECT block.
// A block carries at most one Project and one Group. Where and Having calls
// are ANDed; a later Order replaces an earlier one.
package queryir
