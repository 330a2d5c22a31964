package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fql/internal/fql"
)

// FmtOptions holds flags for the fmt command.
type FmtOptions struct {
	*RootOptions
	Check bool
}

// FmtResult is the JSON payload of the fmt command.
type FmtResult struct {
	Canonical string `json:"canonical"`
	Changed   bool   `json:"changed"`
}

// NewFmtCommand creates the fmt command.
func NewFmtCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FmtOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fmt [expression|-]",
		Short: "Rewrite an FQL expression in canonical form",
		Long: `Rewrite an FQL expression in canonical form.

Whitespace, redundant parentheses and number spelling are normalized.
With --check nothing is rewritten; the command fails if the input is not
already canonical.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFmt(opts, cmd, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "fail if the input is not canonical")

	return cmd
}

func runFmt(opts *FmtOptions, cmd *cobra.Command, args []string) error {
	formatter := opts.formatter(cmd)

	input, err := readExpression(cmd, args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	canonical, err := fql.Normalize(input)
	if err != nil {
		return parseFailure(formatter, input, err)
	}
	changed := canonical != input

	if opts.Check && changed {
		return formatter.Fail(ExitFailure, ErrCodeNotCanonical,
			fmt.Sprintf("expression is not canonical, want: %s", canonical),
			FmtResult{Canonical: canonical, Changed: true})
	}

	if formatter.Format == "json" {
		return formatter.Success(FmtResult{Canonical: canonical, Changed: changed})
	}
	return formatter.Success(canonical)
}
