package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/fql/internal/fql"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [ast-file|-]",
		Short: "Generate canonical FQL from an AST",
		Long: `Generate canonical FQL text from an AST in JSON form.

The AST is read from the file argument, or from stdin when omitted or "-".
A bare condition is accepted and treated as a single-condition group.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(rootOpts, cmd, argOrEmpty(args, 0))
		},
	}

	return cmd
}

func runGenerate(opts *RootOptions, cmd *cobra.Command, path string) error {
	formatter := opts.formatter(cmd)

	data, err := readSource(cmd, path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	node, err := fql.UnmarshalNode(data)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidAST, err.Error(), nil)
	}

	root, ok := node.(*fql.Group)
	if !ok {
		root = fql.NewGroup(fql.And, node)
	}

	text, err := fql.Generate(root)
	if err != nil {
		var ge *fql.GenerateError
		if errors.As(err, &ge) {
			return formatter.Fail(ExitFailure, ErrCodeGenerate, ge.Message, nil)
		}
		return formatter.Fail(ExitFailure, ErrCodeGenerate, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"fql": text})
	}
	return formatter.Success(text)
}
