package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fql/internal/engine"
	"github.com/roach88/fql/internal/event"
	"github.com/roach88/fql/internal/fql"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	Events string
}

// MatchResult reports whether one event satisfied the filter.
type MatchResult struct {
	Index   int    `json:"index"`
	Type    string `json:"type,omitempty"`
	Event   string `json:"event,omitempty"`
	Matched bool   `json:"matched"`
}

// MatchSummary is the JSON payload of the match command.
type MatchSummary struct {
	Canonical string        `json:"canonical"`
	Matched   int           `json:"matched"`
	Results   []MatchResult `json:"results"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <expression> [--events file]",
		Short: "Evaluate an FQL expression against events",
		Long: `Evaluate an FQL expression against one or more events.

Events are a JSON object or an array of objects, read from --events or from
stdin.

Example:
  echo '{"type":"track","event":"Order Completed"}' | fql match 'event = "Order Completed"'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Events, "events", "e", "", "events JSON file (default stdin)")

	return cmd
}

func runMatch(opts *MatchOptions, cmd *cobra.Command, expression string) error {
	formatter := opts.formatter(cmd)

	root, err := fql.Parse(expression)
	if err != nil {
		return parseFailure(formatter, expression, err)
	}

	data, err := readSource(cmd, opts.Events)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}
	events, err := event.ParseMany(data)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	summary := MatchSummary{
		Canonical: fql.MustGenerate(root),
		Results:   make([]MatchResult, 0, len(events)),
	}
	for i, ev := range events {
		matched := engine.Match(root, ev)
		if matched {
			summary.Matched++
		}
		summary.Results = append(summary.Results, MatchResult{
			Index:   i,
			Type:    ev.Type(),
			Event:   ev.EventName(),
			Matched: matched,
		})
	}

	formatter.VerboseLog("Evaluated %s against %d event(s)", summary.Canonical, len(events))

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	for _, r := range summary.Results {
		mark := "✗"
		if r.Matched {
			mark = "✓"
		}
		fmt.Fprintf(formatter.Writer, "%s [%d] %s\n", mark, r.Index, describeEvent(r.Type, r.Event))
	}
	fmt.Fprintf(formatter.Writer, "%d of %d event(s) matched\n", summary.Matched, len(events))
	return nil
}

func describeEvent(typ, name string) string {
	switch {
	case typ != "" && name != "":
		return fmt.Sprintf("%s %q", typ, name)
	case typ != "":
		return typ
	case name != "":
		return fmt.Sprintf("%q", name)
	}
	return "(untyped)"
}
