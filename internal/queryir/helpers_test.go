package queryir

import "github.com/roach88/drel/internal/schema"

var (
	userTable = schema.Table{
		Name:   "BlogUser",
		DBName: "blog_user",
		Columns: []schema.Column{
			{Name: "id", DBName: "id", Type: "int"},
			{Name: "username", DBName: "username", Type: "text"},
		},
	}
	postTable = schema.Table{
		Name:   "BlogPost",
		DBName: "blog_post",
		Columns: []schema.Column{
			{Name: "id", DBName: "id", Type: "int"},
			{Name: "user", DBName: "user_id", Type: "int"},
			{Name: "title", DBName: "title", Type: "text"},
			{Name: "body", DBName: "body", Type: "text"},
			{Name: "published", DBName: "published", Type: "timestamp", Nullable: true},
		},
	}
)
