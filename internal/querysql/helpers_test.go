package querysql

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/drel/internal/queryir"
	"github.com/roach88/drel/internal/schema"
	"github.com/roach88/drel/internal/value"
)

var (
	userTable = schema.Table{
		Name:   "BlogUser",
		DBName: "blog_user",
		Columns: []schema.Column{
			{Name: "id", DBName: "id"},
			{Name: "username", DBName: "username"},
		},
	}
	postTable = schema.Table{
		Name:   "BlogPost",
		DBName: "blog_post",
		Columns: []schema.Column{
			{Name: "id", DBName: "id"},
			{Name: "user", DBName: "user_id"},
			{Name: "title", DBName: "title"},
			{Name: "published", DBName: "published", Nullable: true},
		},
	}
)

var must = queryir.Must

// snapshot renders a statement for golden comparison.
func snapshot(t *testing.T, st Statement) []byte {
	t.Helper()
	params, err := value.MarshalCanonical(st.Params)
	require.NoError(t, err)
	columns, err := value.MarshalCanonical(st.Columns)
	require.NoError(t, err)
	return []byte(st.SQL + "\nparams: " + string(params) + "\ncolumns: " + string(columns) + "\n")
}

func assertGolden(t *testing.T, name string, st Statement) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot(t, st))
}
