// Package schema describes the tables a query can be built over.
//
// The query core consumes schemas through the Provider interface only. This
// package also ships the providers used by the CLI and tests:
//
//   - Static: in-memory table definitions
//   - LoadCUE / CompileCUE: tables declared in CUE
//   - LoadYAML / ParseYAML: tables declared in YAML
//   - Introspect: tables read from a live SQLite database
//
// # CUE Format
//
//	table: BlogPost: {
//	    db_table:    "blog_post"
//	    primary_key: ["id"]
//	    column: {
//	        id:      {type: "int"}
//	        user:    {type: "int", db: "user_id", references: "BlogUser.id"}
//	        title:   {type: "text"}
//	        summary: {type: "text", nullable: true}
//	    }
//	}
//
// Column order follows declaration order. A column's ORM name is its field
// label; db defaults to the label, db_table defaults to the table label.
package schema
