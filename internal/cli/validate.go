package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fql/internal/catalog"
)

// ValidationError is one problem found in a catalog.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid         bool              `json:"valid"`
	Subscriptions int               `json:"subscriptions"`
	Errors        []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [catalog-dir]",
		Short: "Validate the subscriptions in a catalog directory",
		Long: `Validate the YAML and CUE subscription catalog in a directory.

Every action's subscribe expression is parsed; all problems are reported
together. The directory defaults to --catalog or $FQL_CATALOG_DIR.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := argOrEmpty(args, 0)
			if dir == "" {
				dir = rootOpts.CatalogDir
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cat, loadErrors := catalog.Load(dir, catalog.LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if cat == nil && len(loadErrors) > 0 {
		return formatter.Fail(ExitCommandError, catalog.Code(loadErrors[0]), loadMessage(loadErrors[0]), nil)
	}

	formatter.VerboseLog("Found %d catalog file(s) in %s", cat.FileCount, dir)

	if len(loadErrors) > 0 {
		return outputValidationErrors(formatter, len(cat.Subscriptions), toValidationErrors(loadErrors))
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Subscriptions: len(cat.Subscriptions)})
	}
	fmt.Fprintf(formatter.Writer, "✓ All %d subscription(s) valid\n", len(cat.Subscriptions))
	return nil
}

func toValidationErrors(errs []error) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, err := range errs {
		var le *catalog.LoadError
		if errors.As(err, &le) {
			out = append(out, ValidationError{Code: le.Code, Message: le.Message, File: le.File, Line: le.Line})
			continue
		}
		out = append(out, ValidationError{Code: catalog.ErrCodeGeneric, Message: err.Error()})
	}
	return out
}

func loadMessage(err error) string {
	var le *catalog.LoadError
	if errors.As(err, &le) {
		return le.Message
	}
	return err.Error()
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, valid int, errs []ValidationError) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:         false,
				Subscriptions: valid,
				Errors:        errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.encode(response); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		switch {
		case err.File != "" && err.Line > 0:
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.File, err.Line)
		case err.File != "":
			fmt.Fprintln(formatter.Writer, err.File)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return exitErr
}
