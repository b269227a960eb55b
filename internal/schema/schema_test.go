package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blogProvider() *Static {
	return NewStatic(
		TableDef{
			Name:       "BlogUser",
			DBName:     "blog_user",
			PrimaryKey: []string{"id"},
			Columns: []Column{
				{Name: "id", Type: "int"},
				{Name: "username", Type: "text"},
			},
		},
		TableDef{
			Name:       "BlogPost",
			DBName:     "blog_post",
			PrimaryKey: []string{"id"},
			Columns: []Column{
				{Name: "id", Type: "int"},
				{Name: "user", DBName: "user_id", Type: "int"},
				{Name: "title", Type: "text"},
			},
			ForeignKeys: []ForeignKey{{Column: "user", RefTable: "BlogUser", RefColumn: "id"}},
		},
	)
}

// countingProvider records how many times Columns is called.
type countingProvider struct {
	*Static
	calls int
}

func (c *countingProvider) Columns(table string) ([]Column, error) {
	c.calls++
	return c.Static.Columns(table)
}

func TestResolve(t *testing.T) {
	tbl, err := Resolve(blogProvider(), "BlogPost")
	require.NoError(t, err)

	assert.Equal(t, "BlogPost", tbl.Name)
	assert.Equal(t, "blog_post", tbl.DBName)
	require.Len(t, tbl.Columns, 3)
	assert.Equal(t, "id", tbl.Columns[0].DBName, "empty db name defaults to the ORM name")
	assert.Equal(t, "user_id", tbl.Columns[1].DBName)
}

func TestResolveCallsColumnsOnce(t *testing.T) {
	p := &countingProvider{Static: blogProvider()}
	_, err := Resolve(p, "BlogUser")
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestResolveUnknownTable(t *testing.T) {
	_, err := Resolve(blogProvider(), "Missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTable))
}

func TestResolveNilProvider(t *testing.T) {
	_, err := Resolve(nil, "BlogUser")
	assert.Error(t, err)
}

func TestTableLookup(t *testing.T) {
	tbl, err := Resolve(blogProvider(), "BlogPost")
	require.NoError(t, err)

	tests := []struct {
		name   string
		lookup string
		want   string
		found  bool
	}{
		{"orm name", "user", "user", true},
		{"db name", "user_id", "user", true},
		{"plain", "title", "title", true},
		{"missing", "body", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, ok := tbl.Lookup(tt.lookup)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, col.Name)
		})
	}
}

func TestStaticKeys(t *testing.T) {
	p := blogProvider()

	pk, err := p.PrimaryKey("BlogPost")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, pk)

	fks, err := p.ForeignKeys("BlogPost")
	require.NoError(t, err)
	assert.Equal(t, []ForeignKey{{Column: "user", RefTable: "BlogUser", RefColumn: "id"}}, fks)

	assert.Equal(t, []string{"BlogPost", "BlogUser"}, p.Tables())
}

func TestStaticReturnsCopies(t *testing.T) {
	p := blogProvider()
	cols, err := p.Columns("BlogUser")
	require.NoError(t, err)
	cols[0].Name = "mutated"

	again, err := p.Columns("BlogUser")
	require.NoError(t, err)
	assert.Equal(t, "id", again[0].Name)
}

func TestParseReference(t *testing.T) {
	table, col, err := ParseReference("BlogUser.id")
	require.NoError(t, err)
	assert.Equal(t, "BlogUser", table)
	assert.Equal(t, "id", col)

	for _, bad := range []string{"", "BlogUser", ".id", "BlogUser."} {
		_, _, err := ParseReference(bad)
		assert.Error(t, err, bad)
	}
}
