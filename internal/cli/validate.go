package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/drel/internal/querydoc"
	"github.com/roach88/drel/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Source SourceOptions
}

// ValidationError is one problem found in a query document.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Checked int               `json:"checked"`
	Built   bool              `json:"built"` // names were resolved against a schema
	Errors  []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <query.yaml|dir>",
		Short: "Validate query documents without running them",
		Long: `Validate YAML query documents.

Every .yaml or .yml file under a directory is checked. Documents are
always checked for structure. When a schema is available (--schema, --db,
or the config file) each document is also built, which resolves table
and column names, labels, and grouping.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	opts.Source.addFlags(cmd)

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	fs := opts.fs()
	src := opts.Source.resolved(opts.config())

	files, err := findQueryFiles(fs, path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "finding query files", err)
	}
	if len(files) == 0 {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no query files found in %s", path), nil)
	}
	formatter.VerboseLog("Found %d query file(s) in %s", len(files), path)

	var provider *schema.Static
	if src.Schema != "" || src.DSN != "" {
		db, err := openDB(opts.RootOptions, src)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, "opening database", err)
		}
		if db != nil {
			defer db.Close()
		}
		if provider, err = loadProvider(cmd.Context(), opts.RootOptions, src, db); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeSchema, "loading schema", err)
		}
	}

	result := ValidationResult{Checked: len(files), Built: provider != nil}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		result.Errors = append(result.Errors, validateFile(fs, file, provider)...)
	}
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func validateFile(fs afero.Fs, file string, provider *schema.Static) []ValidationError {
	doc, err := querydoc.Load(fs, file)
	if err != nil {
		return []ValidationError{{File: file, Code: ErrCodeQueryDoc, Message: err.Error()}}
	}
	if provider == nil {
		return nil
	}
	if _, err := doc.Build(provider); err != nil {
		return []ValidationError{{File: file, Code: ErrCodeBuild, Message: err.Error(), Details: buildDetails(err)}}
	}
	return nil
}

// findQueryFiles returns path itself if it is a file, or every YAML file
// below it, sorted.
func findQueryFiles(fs afero.Fs, path string) ([]string, error) {
	info, err := fs.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("path not found: %s", path)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = afero.Walk(fs, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ext := filepath.Ext(p); ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	suffix := ""
	if !result.Built {
		suffix = " (structure only; no schema given)"
	}
	fmt.Fprintf(formatter.Writer, "%s %d query document(s) valid%s\n", formatter.Mark(true), result.Checked, suffix)
	return nil
}

// outputValidationErrors outputs validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n\n", formatter.Mark(false))
	for _, err := range errs {
		fmt.Fprintln(formatter.Writer, err.File)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
