package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/fql/internal/catalog"
	"github.com/roach88/fql/internal/engine"
	"github.com/roach88/fql/internal/event"
	"github.com/roach88/fql/internal/store"
)

// Subscription sources for the route command.
const (
	SourceCatalog = "catalog"
	SourceStore   = "store"
)

// RouteOptions holds flags for the route command.
type RouteOptions struct {
	*RootOptions
	Source string
}

// RoutedDelivery is one delivery in the route command's output.
type RoutedDelivery struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"seq"`
	Destination string          `json:"destination"`
	Action      string          `json:"action"`
	Event       json.RawMessage `json:"event"`
}

// RouteResult is the JSON payload of the route command.
type RouteResult struct {
	Events        int              `json:"events"`
	Subscriptions int              `json:"subscriptions"`
	Deliveries    []RoutedDelivery `json:"deliveries"`
}

// NewRouteCommand creates the route command.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RouteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "route [events-file|-]",
		Short: "Route events to the subscribed destination actions",
		Long: `Route events through every subscription and print the deliveries.

Subscriptions come from the catalog directory (--source catalog, the default)
or from the database (--source store). Events are a JSON object or array,
read from the file argument or stdin.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(opts, cmd, argOrEmpty(args, 0))
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", SourceCatalog, "subscription source (catalog|store)")

	return cmd
}

func runRoute(opts *RouteOptions, cmd *cobra.Command, path string) error {
	formatter := opts.formatter(cmd)
	if opts.Source != SourceCatalog && opts.Source != SourceStore {
		return formatter.Fail(ExitCommandError, ErrCodeInput,
			fmt.Sprintf("invalid source %q: must be %s or %s", opts.Source, SourceCatalog, SourceStore), nil)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := readSource(cmd, path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}
	events, err := event.ParseMany(data)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	var deliveries []engine.Delivery
	eng := engine.New(
		engine.WithLogger(opts.logger()),
		engine.WithMetrics(engine.NewMetrics(prometheus.NewRegistry())),
		engine.WithSink(func(_ context.Context, d engine.Delivery) error {
			deliveries = append(deliveries, d)
			return nil
		}),
	)

	if err := registerSubscriptions(ctx, opts, eng); err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), err.Error(), nil)
	}

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	for _, ev := range events {
		eng.Enqueue(ev)
	}
	eng.Stop()
	if err := <-done; err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	formatter.VerboseLog("Routed %d event(s) to %d delivery(ies)", len(events), len(deliveries))

	result := RouteResult{
		Events:        len(events),
		Subscriptions: len(eng.Subscriptions()),
		Deliveries:    make([]RoutedDelivery, 0, len(deliveries)),
	}
	for _, d := range deliveries {
		result.Deliveries = append(result.Deliveries, RoutedDelivery{
			ID:          d.ID,
			Seq:         d.Seq,
			Destination: d.Destination,
			Action:      d.Action,
			Event:       d.Event.Raw(),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, d := range deliveries {
		fmt.Fprintf(formatter.Writer, "#%d %s -> %s/%s\n", d.Seq, describeEvent(d.Event.Type(), d.Event.EventName()), d.Destination, d.Action)
	}
	fmt.Fprintf(formatter.Writer, "%d event(s), %d delivery(ies)\n", len(events), len(deliveries))
	return nil
}

// registerSubscriptions loads subscriptions from the configured source.
// Invalid catalog entries are reported and skipped; they never fire.
func registerSubscriptions(ctx context.Context, opts *RouteOptions, eng *engine.Engine) error {
	logger := opts.logger()

	switch opts.Source {
	case SourceCatalog:
		cat, errs := catalog.Load(opts.CatalogDir, catalog.LoadModeCollectAll)
		if cat == nil {
			return errs[0]
		}
		for _, err := range errs {
			logger.Warn("catalog entry skipped", zap.Error(err))
		}
		for _, sub := range cat.Subscriptions {
			if _, err := eng.Register(sub.Destination, sub.Action, sub.Subscribe); err != nil {
				return err
			}
		}
		return nil

	case SourceStore:
		s, err := store.Open(opts.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()

		subs, err := s.ListSubscriptions(ctx)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if _, err := eng.Register(sub.Destination, sub.Action, sub.Canonical); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("invalid source %q: must be %s or %s", opts.Source, SourceCatalog, SourceStore)
}

// errorCode picks the most specific code for err.
func errorCode(err error) string {
	if code := catalog.Code(err); code != catalog.ErrCodeGeneric {
		return code
	}
	var re *engine.RegistryError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ErrCodeStore
}
