package schema

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrospect(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "introspect.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE blog_user (id INTEGER PRIMARY KEY, username TEXT NOT NULL);
		CREATE TABLE blog_post (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES blog_user,
			title TEXT
		);
	`)
	require.NoError(t, err)

	p, err := Introspect(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"blog_post", "blog_user"}, p.Tables())

	cols, err := p.Columns("blog_post")
	require.NoError(t, err)
	assert.Equal(t, []Column{
		{Name: "id", DBName: "id", Type: "integer"},
		{Name: "user_id", DBName: "user_id", Type: "integer"},
		{Name: "title", DBName: "title", Nullable: true, Type: "text"},
	}, cols)

	pk, err := p.PrimaryKey("blog_post")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, pk)

	fks, err := p.ForeignKeys("blog_post")
	require.NoError(t, err)
	assert.Equal(t, []ForeignKey{{Column: "user_id", RefTable: "blog_user", RefColumn: "id"}}, fks)
}
