package querydoc

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/drel/internal/queryir"
	"github.com/roach88/drel/internal/queryparse"
	"github.com/roach88/drel/internal/querysql"
	"github.com/roach88/drel/internal/schema"
)

func blogProvider() *schema.Static {
	return schema.NewStatic(
		schema.TableDef{
			Name:   "BlogUser",
			DBName: "blog_user",
			Columns: []schema.Column{
				{Name: "id", Type: "int"},
				{Name: "username", Type: "text"},
			},
			PrimaryKey: []string{"id"},
		},
		schema.TableDef{
			Name:   "BlogPost",
			DBName: "blog_post",
			Columns: []schema.Column{
				{Name: "id", Type: "int"},
				{Name: "user", DBName: "user_id", Type: "int"},
				{Name: "title", Type: "text"},
				{Name: "published", Type: "timestamp", Nullable: true},
			},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []schema.ForeignKey{{Column: "user", RefTable: "BlogUser", RefColumn: "id"}},
		},
	)
}

const postsPerUser = `
name: posts_per_user
from: {table: BlogUser, as: user}
joins:
  - {table: BlogPost, as: post, on: "post.user = user.id"}
where: ["post.published IS NOT NULL"]
group: [user.username]
having: ["count(post.id) > 1"]
project: ["user.username", "count(post.id) AS n"]
order: ["@n DESC", "user.username"]
`

func compile(t *testing.T, rel *queryir.Relation) querysql.Statement {
	t.Helper()
	stmt, err := querysql.NewCompiler(querysql.SQLite).Compile(rel)
	require.NoError(t, err)
	return stmt
}

func TestParseAndBuild(t *testing.T) {
	doc, err := Parse([]byte(postsPerUser))
	require.NoError(t, err)
	assert.Equal(t, "posts_per_user", doc.Name)
	assert.Equal(t, "user", doc.From.Name())

	rel, err := doc.Build(blogProvider())
	require.NoError(t, err)
	assert.Equal(t, []string{"username", "n"}, rel.Columns())

	stmt := compile(t, rel)
	assert.Equal(t,
		`SELECT t0."username" AS "username", COUNT(t1."id") AS "n" `+
			`FROM "blog_user" AS t0 INNER JOIN "blog_post" AS t1 ON (t1."user_id" = t0."id") `+
			`WHERE (t1."published" IS NOT NULL) GROUP BY t0."username" HAVING (COUNT(t1."id") > ?) `+
			`ORDER BY "n" DESC, t0."username"`,
		stmt.SQL)
	assert.Equal(t, []any{int64(1)}, stmt.Params)
}

func TestBuildMatchesCombinators(t *testing.T) {
	doc, err := Parse([]byte(postsPerUser))
	require.NoError(t, err)
	rel, err := doc.Build(blogProvider())
	require.NoError(t, err)

	userT, err := schema.Resolve(blogProvider(), "BlogUser")
	require.NoError(t, err)
	postT, err := schema.Resolve(blogProvider(), "BlogPost")
	require.NoError(t, err)
	user, post := queryir.NewTable(userT), queryir.NewTable(postT)

	q := queryir.Must(user.Join(post, post.C("user").Eq(user.C("id"))))
	q = queryir.Must(q.Where(post.C("published").IsNotNull()))
	q = queryir.Must(q.Group(user.C("username")))
	q = queryir.Must(q.Having(queryir.Count(post.C("id")).Gt(1)))
	q = queryir.Must(q.Project(user.C("username"), queryir.Count(post.C("id")).Label("n")))
	q = queryir.Must(q.Order(queryir.LabelRefTo("n").Desc(), user.C("username")))

	assert.Equal(t, compile(t, q), compile(t, rel))
}

func TestDerivedTable(t *testing.T) {
	src := `
from:
  as: counts
  query:
    from: {table: BlogPost, as: post}
    group: [post.user]
    project: ["post.user", "count(*) AS n"]
joins:
  - {table: BlogUser, as: user, kind: left, on: "user.id = counts.user"}
project: ["user.username", "counts.n"]
`
	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	rel, err := doc.Build(blogProvider())
	require.NoError(t, err)

	stmt := compile(t, rel)
	assert.Equal(t,
		`SELECT t1."username" AS "username", t0."n" AS "n" `+
			`FROM (SELECT t2."user_id" AS "user", COUNT(*) AS "n" FROM "blog_post" AS t2 GROUP BY t2."user_id") AS t0 `+
			`LEFT JOIN "blog_user" AS t1 ON (t1."id" = t0."user")`,
		stmt.SQL)
}

func TestCrossJoin(t *testing.T) {
	src := `
from: {table: BlogUser, as: a}
joins:
  - {table: BlogUser, as: b, kind: cross}
where: ["a.id < b.id"]
project: ["a.username AS first", "b.username AS second"]
`
	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	rel, err := doc.Build(blogProvider())
	require.NoError(t, err)
	assert.Contains(t, compile(t, rel).SQL, `"blog_user" AS t0 CROSS JOIN "blog_user" AS t1`)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown field", "from: {table: BlogUser}\nproject: [x.id]\nselect: [x]\n", "field select not found"},
		{"missing project", "from: {table: BlogUser}\n", "project is required"},
		{"missing from", "project: [BlogUser.id]\n", "one of table or query is required"},
		{"table and query", "from: {table: BlogUser, as: u, query: {from: {table: BlogUser}, project: [BlogUser.id]}}\nproject: [u.id]\n", "mutually exclusive"},
		{"derived table without as", "from: {query: {from: {table: BlogUser}, project: [BlogUser.id]}}\nproject: [x.id]\n", "needs as"},
		{"join without on", "from: {table: BlogUser}\njoins: [{table: BlogPost}]\nproject: [BlogUser.id]\n", "on is required"},
		{"cross join with on", "from: {table: BlogUser}\njoins: [{table: BlogPost, kind: cross, on: x}]\nproject: [BlogUser.id]\n", "takes no on"},
		{"unknown kind", "from: {table: BlogUser}\njoins: [{table: BlogPost, kind: outer, on: x}]\nproject: [BlogUser.id]\n", "unknown join kind"},
		{"duplicate binding", "from: {table: BlogUser}\njoins: [{table: BlogUser, kind: cross}]\nproject: [BlogUser.id]\n", "already bound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown table",
			src:  "from: {table: Comment}\nproject: [Comment.id]\n",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, schema.ErrUnknownTable)
			},
		},
		{
			name: "unnamed projection",
			src:  "from: {table: BlogPost, as: post}\nproject: [\"post.id + 1\"]\n",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, queryir.ErrUnnamedProjection)
			},
		},
		{
			name: "join condition names a later table",
			src: "from: {table: BlogUser, as: user}\njoins:\n" +
				"  - {table: BlogPost, as: post, on: \"post.user = other.id\"}\n" +
				"  - {table: BlogUser, as: other, kind: cross}\nproject: [user.id]\n",
			check: func(t *testing.T, err error) {
				var uerr *queryparse.UnboundNameError
				assert.ErrorAs(t, err, &uerr)
				assert.ErrorContains(t, err, "joins[0].on")
			},
		},
		{
			name: "syntax error",
			src:  "from: {table: BlogPost, as: post}\nwhere: [\"post.id =\"]\nproject: [post.id]\n",
			check: func(t *testing.T, err error) {
				var perr *queryparse.ParseError
				assert.ErrorAs(t, err, &perr)
				assert.ErrorContains(t, err, "where[0]")
			},
		},
		{
			name: "non aggregated column",
			src:  "from: {table: BlogPost, as: post}\ngroup: [post.user]\nproject: [post.title]\n",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, queryir.ErrNonAggregatedColumn)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.src))
			require.NoError(t, err)
			_, err = doc.Build(blogProvider())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/queries/posts.yaml", []byte(postsPerUser), 0o644))

	doc, err := Load(fs, "/queries/posts.yaml")
	require.NoError(t, err)
	assert.Equal(t, "posts_per_user", doc.Name)

	_, err = Load(fs, "/queries/missing.yaml")
	assert.ErrorContains(t, err, "failed to read query file")

	require.NoError(t, afero.WriteFile(fs, "/queries/bad.yaml", []byte("from: [\n"), 0o644))
	_, err = Load(fs, "/queries/bad.yaml")
	assert.ErrorContains(t, err, "/queries/bad.yaml")
}
