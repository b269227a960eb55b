package querysql

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/drel/internal/queryir"
)

func joinedPosts() *queryir.Relation {
	post := queryir.NewTable(postTable)
	user := queryir.NewTable(userTable)
	q := must(post.Join(user, user.C("id").Eq(post.C("user"))))
	q = must(q.Project(post.C("title"), user.C("username")))
	return must(q.Order(post.C("published").Desc()))
}

func TestCompile_JoinProjectOrder(t *testing.T) {
	st, err := NewCompiler(SQLite).Compile(joinedPosts())
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT t0."title" AS "title", t1."username" AS "username" FROM "blog_post" AS t0 `+
			`INNER JOIN "blog_user" AS t1 ON (t1."id" = t0."user_id") ORDER BY t0."published" DESC`,
		st.SQL)
	assert.Empty(t, st.Params)
	assert.Equal(t, []string{"title", "username"}, st.Columns)
}

func TestCompile_Deterministic(t *testing.T) {
	c := NewCompiler(nil)

	t.Run("without literals", func(t *testing.T) {
		q := joinedPosts()
		first, err := c.Compile(q)
		require.NoError(t, err)
		second, err := c.Compile(q)
		require.NoError(t, err)

		assert.Equal(t, first.SQL, second.SQL)
		assert.Empty(t, first.Params)
		assert.Empty(t, second.Params)
	})

	t.Run("with literals", func(t *testing.T) {
		post := queryir.NewTable(postTable)
		q := must(post.Where(post.C("title").Eq("hello").Or(post.C("id").In(1, 2))))
		q = must(q.Project(post.C("id")))

		first, err := c.Compile(q)
		require.NoError(t, err)
		second, err := c.Compile(q)
		require.NoError(t, err)

		assert.Equal(t, first.SQL, second.SQL)
		assert.Equal(t, []any{"hello", int64(1), int64(2)}, first.Params)
		assert.Equal(t, first.Params, second.Params)
	})

	t.Run("fingerprint", func(t *testing.T) {
		a, err := c.Compile(joinedPosts())
		require.NoError(t, err)
		b, err := c.Compile(joinedPosts())
		require.NoError(t, err)

		fa, err := a.Fingerprint()
		require.NoError(t, err)
		fb, err := b.Fingerprint()
		require.NoError(t, err)
		assert.Equal(t, fa, fb, "aliases depend on FROM order, not on instance ids")
		assert.Len(t, fa, 64)
	})
}

func TestCompile_SelfJoin(t *testing.T) {
	a := queryir.NewTable(userTable)
	b := queryir.NewTable(userTable)
	q := must(a.Join(b, a.C("id").Lt(b.C("id"))))
	q = must(q.Project(a.C("username").Label("first"), b.C("username").Label("second")))

	st, err := NewCompiler(SQLite).Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."username" AS "first", t1."username" AS "second" FROM "blog_user" AS t0 `+
			`INNER JOIN "blog_user" AS t1 ON (t0."id" < t1."id")`,
		st.SQL)
}

func TestCompile_ParamsInTextualOrder(t *testing.T) {
	post := queryir.NewTable(postTable)
	q := must(post.Where(post.C("id").Gt(10)))
	q = must(q.Project(post.C("id").Add(1).Label("next")))

	st, err := NewCompiler(Postgres).Compile(q)
	require.NoError(t, err)

	// The projection comes before WHERE in the text.
	assert.Equal(t,
		`SELECT (t0."id" + $1) AS "next" FROM "blog_post" AS t0 WHERE (t0."id" > $2)`,
		st.SQL)
	assert.Equal(t, []any{int64(1), int64(10)}, st.Params)
}

func TestCompile_Dialects(t *testing.T) {
	post := queryir.NewTable(postTable)
	q := must(post.Where(post.C("title").Eq("x")))
	q = must(q.Where(post.C("id").In(3, 4)))
	q = must(q.Project(post.C("title")))

	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, `SELECT t0."title" AS "title" FROM "blog_post" AS t0 WHERE ((t0."title" = ?) AND (t0."id" IN (?, ?)))`},
		{Postgres, `SELECT t0."title" AS "title" FROM "blog_post" AS t0 WHERE ((t0."title" = $1) AND (t0."id" IN ($2, $3)))`},
		{MySQL, "SELECT t0.`title` AS `title` FROM `blog_post` AS t0 WHERE ((t0.`title` = ?) AND (t0.`id` IN (?, ?)))"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			st, err := NewCompiler(tt.dialect).Compile(q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.SQL)
			assert.Equal(t, []any{"x", int64(3), int64(4)}, st.Params)
		})
	}
}

func TestCompile_Operators(t *testing.T) {
	post := queryir.NewTable(postTable)

	tests := []struct {
		name string
		expr queryir.Expr
		want string
	}{
		{"not", post.C("id").Eq(1).Not(), `(NOT (t0."id" = ?))`},
		{"neg", post.C("id").Neg(), `(-t0."id")`},
		{"is null", post.C("published").IsNull(), `(t0."published" IS NULL)`},
		{"is not null", post.C("published").IsNotNull(), `(t0."published" IS NOT NULL)`},
		{"arith", post.C("id").Mul(2).Sub(1).Mod(3), `(((t0."id" * ?) - ?) % ?)`},
		{"ne", post.C("id").Ne(post.C("user")), `(t0."id" <> t0."user_id")`},
		{"function", queryir.Fn("LOWER", post.C("title")).Eq("x"), `(LOWER(t0."title") = ?)`},
		{"raw", queryir.RawSQL("1 = 1"), `1 = 1`},
		{"nested label", post.C("id").Label("inner").Ge(0), `(t0."id" >= ?)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := must(post.Where(tt.expr))
			q = must(q.Project(post.C("id")))
			st, err := NewCompiler(SQLite).Compile(q)
			require.NoError(t, err)
			assert.Equal(t, `SELECT t0."id" AS "id" FROM "blog_post" AS t0 WHERE `+tt.want, st.SQL)
		})
	}
}

func TestCompile_GroupBy(t *testing.T) {
	user := queryir.NewTable(userTable)
	post := queryir.NewTable(postTable)
	q := must(user.Join(post, post.C("user").Eq(user.C("id"))))
	q = must(q.Group(user.C("username")))
	q = must(q.Project(user.C("username"), queryir.Count(post.C("id")).Label("n")))

	st, err := NewCompiler(SQLite).Compile(q)
	require.NoError(t, err)
	assert.Contains(t, st.SQL, `GROUP BY t0."username"`)
	assert.Contains(t, st.SQL, `COUNT(t1."id") AS "n"`)
}

func TestCompile_GlobalAggregate(t *testing.T) {
	post := queryir.NewTable(postTable)
	q := must(post.Project(queryir.Count().Label("n")))

	st, err := NewCompiler(SQLite).Compile(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) AS "n" FROM "blog_post" AS t0`, st.SQL)
}

func TestCompile_LaterOrderReplacesEarlier(t *testing.T) {
	post := queryir.NewTable(postTable)
	q := must(post.Order(post.C("id")))
	q = must(q.Project(post.C("id")))
	q = must(q.Order(post.C("title").Asc()))

	st, err := NewCompiler(SQLite).Compile(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."id" AS "id" FROM "blog_post" AS t0 ORDER BY t0."title" ASC`, st.SQL)
}

func TestCompile_WhereBeforeJoin(t *testing.T) {
	post := queryir.NewTable(postTable)
	user := queryir.NewTable(userTable)
	q := must(post.Where(post.C("id").Gt(1)))
	q = must(q.CrossJoin(user))
	q = must(q.Where(user.C("id").Lt(5)))
	q = must(q.Project(post.C("id"), user.C("username")))

	st, err := NewCompiler(SQLite).Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."id" AS "id", t1."username" AS "username" FROM "blog_post" AS t0 CROSS JOIN "blog_user" AS t1 `+
			`WHERE ((t0."id" > ?) AND (t1."id" < ?))`,
		st.SQL)
	assert.Equal(t, []any{int64(1), int64(5)}, st.Params)
}

func TestCompile_NestedJoin(t *testing.T) {
	post := queryir.NewTable(postTable)
	user := queryir.NewTable(userTable)
	editor := queryir.NewTable(userTable)
	chain := must(user.LeftJoin(editor, editor.C("id").Eq(user.C("id"))))
	q := must(post.Join(chain, user.C("id").Eq(post.C("user"))))
	q = must(q.Project(post.C("title"), editor.C("username")))

	st, err := NewCompiler(SQLite).Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."title" AS "title", t2."username" AS "username" FROM "blog_post" AS t0 `+
			`INNER JOIN ("blog_user" AS t1 LEFT JOIN "blog_user" AS t2 ON (t2."id" = t1."id")) ON (t1."id" = t0."user_id")`,
		st.SQL)
}

func TestCompile_SubqueryReusesOuterInstance(t *testing.T) {
	post := queryir.NewTable(postTable)
	latest, err := must(post.Project(queryir.Max(post.C("id")).Label("m"))).Scalar()
	require.NoError(t, err)
	q := must(post.Where(post.C("id").Eq(latest)))
	q = must(q.Project(post.C("title")))

	st, err := NewCompiler(SQLite).Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."title" AS "title" FROM "blog_post" AS t0 `+
			`WHERE (t0."id" = (SELECT MAX(t1."id") AS "m" FROM "blog_post" AS t1))`,
		st.SQL)
}

func TestCompile_SubqueryLabels(t *testing.T) {
	post := queryir.NewTable(postTable)
	counts := must(post.Group(post.C("user")))
	counts = must(counts.Project(post.C("user"), queryir.Count().Label("n")))
	sub := must(counts.Subquery())

	q := must(sub.Where(queryir.LabelRefTo("n").Gt(3)))
	q = must(q.Project(queryir.LabelRefTo("user"), queryir.LabelRefTo("n")))
	q = must(q.Order(queryir.LabelRefTo("n").Desc()))

	st, err := NewCompiler(SQLite).Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."user" AS "user", t0."n" AS "n" FROM (SELECT t1."user_id" AS "user", COUNT(*) AS "n" `+
			`FROM "blog_post" AS t1 GROUP BY t1."user_id") AS t0 WHERE (t0."n" > ?) ORDER BY "n" DESC`,
		st.SQL)
	assert.Equal(t, []any{int64(3)}, st.Params)
	assert.Equal(t, []string{"user", "n"}, st.Columns)
}

func TestCompile_GroupByLiteralsGetOwnPlaceholders(t *testing.T) {
	post := queryir.NewTable(postTable)
	prefix := queryir.Fn("substr", post.C("title"), 1, 3)
	q := must(post.Group(prefix))
	q = must(q.Project(prefix.Label("prefix"), queryir.Count().Label("n")))

	st, err := NewCompiler(Postgres).Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT substr(t0."title", $1, $2) AS "prefix", COUNT(*) AS "n" FROM "blog_post" AS t0 `+
			`GROUP BY substr(t0."title", $3, $4)`,
		st.SQL)
	assert.Equal(t, []any{int64(1), int64(3), int64(1), int64(3)}, st.Params)
}

func TestCompile_ConcurrentSharedTrees(t *testing.T) {
	post := queryir.NewTable(postTable)
	published := post.C("published").IsNotNull()
	c := NewCompiler(Postgres)

	const workers = 16
	stmts := make([]Statement, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := queryir.NewTable(userTable)
			q, err := post.Join(user, user.C("id").Eq(post.C("user")))
			if err == nil {
				q, err = q.Where(published.And(post.C("id").Gt(i)))
			}
			if err == nil {
				q, err = q.Project(post.C("title"), user.C("username"))
			}
			if err == nil {
				stmts[i], err = c.Compile(q)
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, stmts[0].SQL, stmts[i].SQL)
		assert.Equal(t, []any{int64(i)}, stmts[i].Params)
	}
	assert.Equal(t,
		`SELECT t0."title" AS "title", t1."username" AS "username" FROM "blog_post" AS t0 `+
			`INNER JOIN "blog_user" AS t1 ON (t1."id" = t0."user_id") `+
			`WHERE ((t0."published" IS NOT NULL) AND (t0."id" > $1))`,
		stmts[0].SQL)
}

func TestCompile_NotQuery(t *testing.T) {
	post := queryir.NewTable(postTable)
	_, err := NewCompiler(SQLite).Compile(post)
	require.Error(t, err)
	assert.True(t, errors.Is(err, queryir.ErrNotQuery))

	_, err = NewCompiler(SQLite).Compile(nil)
	assert.Error(t, err)
}

func TestCompile_Golden(t *testing.T) {
	user := queryir.NewTable(userTable)
	post := queryir.NewTable(postTable)
	inner := queryir.NewTable(postTable)

	counts := must(must(post.Group(post.C("user"))).Project(post.C("user"), queryir.Count().Label("n")))
	countsSub := must(counts.Subquery())
	latest, err := must(inner.Project(queryir.Max(inner.C("id")).Label("m"))).Scalar()
	require.NoError(t, err)

	testCases := []struct {
		name  string
		build func() (*queryir.Relation, error)
	}{
		{
			name: "posts_by_author",
			build: func() (*queryir.Relation, error) {
				q, err := user.Join(post, post.C("user").Eq(user.C("id")))
				if err != nil {
					return nil, err
				}
				if q, err = q.Group(user.C("username")); err != nil {
					return nil, err
				}
				if q, err = q.Project(user.C("username"), queryir.Count(post.C("id")).Label("n")); err != nil {
					return nil, err
				}
				return q.Order(queryir.LabelRefTo("n").Desc())
			},
		},
		{
			name: "filtered_titles",
			build: func() (*queryir.Relation, error) {
				q, err := post.Where(post.C("title").Like("%go%"))
				if err != nil {
					return nil, err
				}
				if q, err = q.Where(post.C("id").Gt(3)); err != nil {
					return nil, err
				}
				return q.Project(post.C("id"), post.C("title").Label("headline"))
			},
		},
		{
			name: "derived_table",
			build: func() (*queryir.Relation, error) {
				q, err := user.Join(countsSub, countsSub.C("user").Eq(user.C("id")))
				if err != nil {
					return nil, err
				}
				if q, err = q.Where(countsSub.C("n").Ge(2)); err != nil {
					return nil, err
				}
				return q.Project(user.C("username"), countsSub.C("n"))
			},
		},
		{
			name: "scalar_subquery",
			build: func() (*queryir.Relation, error) {
				q, err := post.Where(post.C("id").Eq(latest))
				if err != nil {
					return nil, err
				}
				return q.Project(post.C("title"))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := tc.build()
			require.NoError(t, err)
			st, err := NewCompiler(SQLite).Compile(q)
			require.NoError(t, err)
			assertGolden(t, tc.name, st)
		})
	}
}

func TestDialectByName(t *testing.T) {
	for name, want := range map[string]Dialect{
		"sqlite":   SQLite,
		"sqlite3":  SQLite,
		"postgres": Postgres,
		"pgx":      Postgres,
		"MySQL":    MySQL,
	} {
		got, err := DialectByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := DialectByName("oracle")
	assert.Error(t, err)
}

func TestQuoteIdentEscapes(t *testing.T) {
	assert.Equal(t, `"a""b"`, SQLite.QuoteIdent(`a"b`))
	assert.Equal(t, "`a``b`", MySQL.QuoteIdent("a`b"))
}
