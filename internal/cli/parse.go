package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fql/internal/fql"
)

// ParseResult is the JSON payload of the parse command.
type ParseResult struct {
	AST         json.RawMessage `json:"ast"`
	Canonical   string          `json:"canonical"`
	Fingerprint string          `json:"fingerprint"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [expression|-]",
		Short: "Parse an FQL expression and print its AST",
		Long: `Parse an FQL expression and print its AST as JSON.

The expression is read from stdin when omitted or given as "-".

Example:
  fql parse 'event = "Order Completed" and properties.total >= 100'`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, cmd, args)
		},
	}

	return cmd
}

func runParse(opts *RootOptions, cmd *cobra.Command, args []string) error {
	formatter := opts.formatter(cmd)

	input, err := readExpression(cmd, args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	root, err := fql.Parse(input)
	if err != nil {
		return parseFailure(formatter, input, err)
	}

	if formatter.Format == "json" {
		ast, err := fql.Marshal(root)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGenerate, err.Error(), nil)
		}
		fingerprint, err := fql.Fingerprint(root)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGenerate, err.Error(), nil)
		}
		return formatter.Success(ParseResult{
			AST:         ast,
			Canonical:   fql.MustGenerate(root),
			Fingerprint: fingerprint,
		})
	}

	ast, err := fql.MarshalIndent(root)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGenerate, err.Error(), nil)
	}
	fmt.Fprintln(formatter.Writer, string(ast))
	return nil
}

// parseFailure reports a parse error. Text output points at the offending
// offset under the input.
func parseFailure(formatter *OutputFormatter, input string, err error) error {
	var pe *fql.ParseError
	if !errors.As(err, &pe) {
		return formatter.Fail(ExitFailure, string(fql.ErrCodeInternal), err.Error(), nil)
	}

	details := map[string]any{"offset": pe.Offset}
	if formatter.Format == "json" {
		return formatter.Fail(ExitFailure, string(pe.Code), pe.Message, details)
	}

	fmt.Fprintf(formatter.Writer, "Error [%s]: %s\n", pe.Code, pe.Message)
	if !strings.ContainsAny(input, "\n\r") {
		fmt.Fprintf(formatter.Writer, "  %s\n  %s^\n", input, strings.Repeat(" ", caretColumn(input, pe.Offset)))
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", pe.Code, pe.Message))
}

// caretColumn converts a byte offset into a rune column.
func caretColumn(input string, offset int) int {
	if offset > len(input) {
		offset = len(input)
	}
	return len([]rune(input[:offset]))
}
