package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/fql/internal/catalog"
	"github.com/roach88/fql/internal/event"
	"github.com/roach88/fql/internal/fql"
	"github.com/roach88/fql/internal/querysql"
	"github.com/roach88/fql/internal/store"
)

// StoredSubscription is a subscription in store command output.
type StoredSubscription struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
	Action      string `json:"action"`
	Subscribe   string `json:"subscribe"`
	Canonical   string `json:"canonical"`
	Fingerprint string `json:"fingerprint"`
	Seq         int64  `json:"seq"`
}

// StoredEventOutput is a sample event in store command output.
type StoredEventOutput struct {
	ID      string          `json:"id"`
	Seq     int64           `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// ImportResult is the JSON payload of store import.
type ImportResult struct {
	Imported int               `json:"imported"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ExplainResult is the JSON payload of store events match --explain.
type ExplainResult struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

// NewStoreCommand creates the store command and its subcommands.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage subscriptions and sample events in the database",
		Long: `Manage subscriptions and sample events in the SQLite database
given by --db or $FQL_DB_PATH.

Saved subscriptions are normalized: the submitted text is kept alongside its
canonical form, AST and fingerprint.`,
	}

	cmd.AddCommand(newStoreSaveCommand(rootOpts))
	cmd.AddCommand(newStoreGetCommand(rootOpts))
	cmd.AddCommand(newStoreListCommand(rootOpts))
	cmd.AddCommand(newStoreDeleteCommand(rootOpts))
	cmd.AddCommand(newStoreImportCommand(rootOpts))
	cmd.AddCommand(newStoreEventsCommand(rootOpts))

	return cmd
}

func newStoreSaveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "save <destination> <action> <expression>",
		Short:         "Save or replace a subscription",
		Example:       `  fql store save webhook post_order 'event = "Order Completed"'`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, f *OutputFormatter, s *store.Store) error {
				sub, err := s.SaveSubscription(ctx, args[0], args[1], args[2])
				if fql.IsParseError(err) {
					return parseFailure(f, args[2], err)
				}
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
				}

				opts.logger().Info("subscription saved",
					zap.String("destination", sub.Destination),
					zap.String("action", sub.Action),
					zap.String("fingerprint", sub.Fingerprint),
				)

				if f.Format == "json" {
					return f.Success(toStoredSubscription(sub))
				}
				fmt.Fprintf(f.Writer, "saved %s/%s: %s\n", sub.Destination, sub.Action, sub.Canonical)
				return nil
			})
		},
	}
}

func newStoreGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <destination> <action>",
		Short:         "Show one subscription",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, f *OutputFormatter, s *store.Store) error {
				sub, err := s.GetSubscription(ctx, args[0], args[1])
				if isNotFound(err) {
					return f.Fail(ExitFailure, ErrCodeNotFound,
						fmt.Sprintf("no subscription %s/%s", args[0], args[1]), nil)
				}
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
				}

				if f.Format == "json" {
					return f.Success(toStoredSubscription(sub))
				}
				fmt.Fprintf(f.Writer, "%s/%s\n", sub.Destination, sub.Action)
				fmt.Fprintf(f.Writer, "  id:          %s\n", sub.ID)
				fmt.Fprintf(f.Writer, "  subscribe:   %s\n", sub.Subscribe)
				fmt.Fprintf(f.Writer, "  canonical:   %s\n", sub.Canonical)
				fmt.Fprintf(f.Writer, "  fingerprint: %s\n", sub.Fingerprint)
				return nil
			})
		},
	}
}

func newStoreListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List saved subscriptions in save order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, f *OutputFormatter, s *store.Store) error {
				subs, err := s.ListSubscriptions(ctx)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
				}

				if f.Format == "json" {
					out := make([]StoredSubscription, 0, len(subs))
					for _, sub := range subs {
						out = append(out, toStoredSubscription(sub))
					}
					return f.Success(out)
				}
				for _, sub := range subs {
					fmt.Fprintf(f.Writer, "%s/%s\t%s\n", sub.Destination, sub.Action, sub.Canonical)
				}
				return nil
			})
		},
	}
}

func newStoreDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <destination> <action>",
		Short:         "Delete a subscription",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, f *OutputFormatter, s *store.Store) error {
				deleted, err := s.DeleteSubscription(ctx, args[0], args[1])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
				}
				if !deleted {
					return f.Fail(ExitFailure, ErrCodeNotFound,
						fmt.Sprintf("no subscription %s/%s", args[0], args[1]), nil)
				}
				if f.Format == "json" {
					return f.Success(map[string]bool{"deleted": true})
				}
				fmt.Fprintf(f.Writer, "deleted %s/%s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newStoreImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [catalog-dir]",
		Short: "Save every valid subscription from a catalog directory",
		Long: `Save every valid subscription from a catalog directory.

Invalid entries are reported and skipped; the command then exits with
status 1.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := argOrEmpty(args, 0)
			if dir == "" {
				dir = opts.CatalogDir
			}
			return withStore(opts, cmd, func(ctx context.Context, f *OutputFormatter, s *store.Store) error {
				return runStoreImport(ctx, f, s, dir)
			})
		},
	}
}

func runStoreImport(ctx context.Context, f *OutputFormatter, s *store.Store, dir string) error {
	cat, loadErrors := catalog.Load(dir, catalog.LoadModeCollectAll)
	if cat == nil && len(loadErrors) > 0 {
		return f.Fail(ExitCommandError, catalog.Code(loadErrors[0]), loadMessage(loadErrors[0]), nil)
	}

	for _, sub := range cat.Subscriptions {
		if _, err := s.SaveSubscription(ctx, sub.Destination, sub.Action, sub.Subscribe); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		f.VerboseLog("Imported %s/%s", sub.Destination, sub.Action)
	}

	result := ImportResult{Imported: len(cat.Subscriptions)}
	if len(loadErrors) > 0 {
		result.Errors = toValidationErrors(loadErrors)
	}

	if f.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "imported %d subscription(s)\n", result.Imported)
		for _, e := range result.Errors {
			fmt.Fprintf(f.Writer, "  skipped: %s: %s\n", e.Code, e.Message)
		}
	}

	if len(loadErrors) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d catalog entr(ies) skipped", len(loadErrors)))
	}
	return nil
}

func newStoreEventsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage sample events used to preview subscriptions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "add [events-file|-]",
		Short:         "Append sample events (a JSON object or array)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readSource(cmd, argOrEmpty(args, 0))
			if err != nil {
				return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
			}
			return withStore(opts, cmd, func(ctx context.Context, f *OutputFormatter, s *store.Store) error {
				events, err := event.ParseMany(data)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
				}
				out := make([]StoredEventOutput, 0, len(events))
				for _, ev := range events {
					stored, err := s.WriteEvent(ctx, ev.Raw())
					if err != nil {
						return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
					}
					out = append(out, toStoredEventOutput(stored))
				}
				if f.Format == "json" {
					return f.Success(out)
				}
				fmt.Fprintf(f.Writer, "added %d event(s)\n", len(out))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List sample events in write order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, f *OutputFormatter, s *store.Store) error {
				events, err := s.ReadEvents(ctx)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
				}
				return outputStoredEvents(f, events)
			})
		},
	})

	cmd.AddCommand(newStoreEventsMatchCommand(opts))

	return cmd
}

func newStoreEventsMatchCommand(opts *RootOptions) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "match <expression>",
		Short: "List sample events matching an expression",
		Long: `List sample events matching an expression, evaluated in SQLite.

With --explain the compiled query and its parameters are printed instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			root, err := fql.Parse(args[0])
			if err != nil {
				return parseFailure(f, args[0], err)
			}

			if explain {
				query, params, err := querysql.NewSQLCompiler(querysql.DefaultColumn).
					CompileSelect("events", []string{"id", "seq", "payload"}, root)
				if err != nil {
					return f.Fail(ExitFailure, ErrCodeGenerate, err.Error(), nil)
				}
				if params == nil {
					params = []any{}
				}
				if f.Format == "json" {
					return f.Success(ExplainResult{Query: query, Params: params})
				}
				fmt.Fprintln(f.Writer, query)
				for i, p := range params {
					fmt.Fprintf(f.Writer, "  ?%d = %#v\n", i+1, p)
				}
				return nil
			}

			return withStore(opts, cmd, func(ctx context.Context, f *OutputFormatter, s *store.Store) error {
				events, err := s.MatchingEvents(ctx, root)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
				}
				return outputStoredEvents(f, events)
			})
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "print the compiled SQL instead of running it")

	return cmd
}

// withStore opens the database for the duration of fn.
func withStore(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, f *OutputFormatter, s *store.Store) error) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.DBPath == "" {
		return f.Fail(ExitCommandError, ErrCodeStore, "no database path: use --db or set FQL_DB_PATH", nil)
	}

	s, err := store.Open(opts.DBPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer s.Close()

	f.VerboseLog("Opened database %s", opts.DBPath)
	return fn(ctx, f, s)
}

func outputStoredEvents(f *OutputFormatter, events []store.StoredEvent) error {
	if f.Format == "json" {
		out := make([]StoredEventOutput, 0, len(events))
		for _, ev := range events {
			out = append(out, toStoredEventOutput(ev))
		}
		return f.Success(out)
	}
	for _, ev := range events {
		fmt.Fprintf(f.Writer, "#%d %s\n", ev.Seq, ev.Payload)
	}
	fmt.Fprintf(f.Writer, "%d event(s)\n", len(events))
	return nil
}

func toStoredSubscription(sub store.Subscription) StoredSubscription {
	return StoredSubscription{
		ID:          sub.ID,
		Destination: sub.Destination,
		Action:      sub.Action,
		Subscribe:   sub.Subscribe,
		Canonical:   sub.Canonical,
		Fingerprint: sub.Fingerprint,
		Seq:         sub.Seq,
	}
}

func toStoredEventOutput(ev store.StoredEvent) StoredEventOutput {
	return StoredEventOutput{ID: ev.ID, Seq: ev.Seq, Payload: ev.Payload}
}

// isNotFound reports whether err means the row does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
