// Package harness runs query scenarios: a schema, SQL that seeds a fresh
// SQLite database, a query document, and the rows the query must return.
//
// # Scenario Format
//
//	name: posts_per_user
//	description: "Users with more than one post"
//	schema: ../schema/blog.yaml      # .yaml, .cue, or a CUE directory; optional
//	setup: |
//	  CREATE TABLE blog_user (id INTEGER PRIMARY KEY, username TEXT);
//	  INSERT INTO blog_user VALUES (1, 'ada'), (2, 'bob');
//	query:
//	  from: {table: BlogUser, as: user}
//	  project: [user.username]
//	  order: [user.username]
//	expect:
//	  columns: [username]
//	  rows:
//	    - [ada]
//	    - [bob]
//
// Without a schema the tables are introspected from the database after
// setup. expect.one runs the query with One instead of All; expect.error
// names the error code (for example NON_AGGREGATED_COLUMN) the query must
// fail with while it is being built.
//
// # Deterministic Testing
//
// Every scenario runs in its own in-memory database with a fixed execution
// id, so the compiled SQL, parameters and rows can be compared against a
// golden snapshot.
package harness
