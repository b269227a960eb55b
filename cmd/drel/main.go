// Package main provides the drel command line.
//
// The CLI supports:
//   - compile: Compile a YAML query document to parameterized SQL
//   - run: Execute a query document against a database
//   - schema: List the tables of a YAML, CUE, or introspected schema
//   - validate: Check query documents, and their names against a schema
//   - test: Run query scenarios with golden snapshots
//
// Settings are read from drel.yaml (found upward from the working
// directory), DREL_* environment variables, and .env files.
//
// Usage:
//
//	drel [--format text|json] [--config drel.yaml] <command>
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/drel/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Commands write their results to stdout; the error summary goes to
		// stderr so JSON output stays parseable.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
