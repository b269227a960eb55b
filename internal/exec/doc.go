// Package exec runs compiled queries against a Connection and maps the
// returned rows onto the projection's output names.
//
// The Connection is treated as an opaque synchronous executor. A Rows value
// holds the connection's cursor open until it is exhausted or closed, so
// callers must consume or Close it before issuing another statement on a
// connection that allows only one in-flight statement.
//
// Rows.Seq wraps the cursor in an iterator that always closes it, including
// on early break:
//
//	rows, err := ex.All(ctx, q)
//	if err != nil {
//		return err
//	}
//	for row, err := range rows.Seq() {
//		if err != nil {
//			return err
//		}
//		fmt.Println(row.Get("title"))
//	}
package exec
