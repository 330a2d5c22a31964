package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/fql/internal/event"
	"github.com/roach88/fql/internal/fql"
)

// Subscription is a registered (destination, action) pair and its filter.
//
// Group is nil exactly when the subscribe string failed to parse; such a
// subscription is disabled and never fires. Err holds the parse error.
type Subscription struct {
	Destination string
	Action      string
	Subscribe   string
	Group       *fql.Group
	Err         error
}

// Enabled reports whether the subscription can fire.
func (s Subscription) Enabled() bool {
	return s.Group != nil
}

// Delivery is one event matched to one subscription.
type Delivery struct {
	ID          string
	Seq         int64
	Destination string
	Action      string
	Event       *event.Event
}

// Sink consumes deliveries produced by Run.
type Sink func(ctx context.Context, d Delivery) error

type subscriptionKey struct {
	destination string
	action      string
}

// Engine routes events to the subscriptions whose filters they satisfy.
//
// Thread-safety model:
//   - Register, Unregister, Subscriptions, Route: safe from any goroutine
//   - Enqueue: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Subscriptions are evaluated in registration order, and Route returns
// deliveries in that order.
type Engine struct {
	mu    sync.RWMutex
	subs  []Subscription
	index map[subscriptionKey]int

	clock   *Clock
	ids     IDGenerator
	queue   *eventQueue
	sink    Sink
	metrics *Metrics
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the engine collectors. Default: unregistered collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithIDGenerator sets the delivery ID generator. Default: UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Engine) {
		e.ids = gen
	}
}

// WithClock sets the sequence clock, e.g. to resume after a restart.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSink sets the consumer of deliveries produced by Run.
func WithSink(sink Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// New creates an Engine with no subscriptions.
func New(opts ...Option) *Engine {
	e := &Engine{
		index:  make(map[subscriptionKey]int),
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
		queue:  newEventQueue(),
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}

	return e
}

// Register parses subscribe once and adds the subscription to the registry.
//
// A subscribe string that fails to parse does not fail registration: the
// subscription is stored disabled, logged and counted, and the returned
// Subscription carries the parse error. Registering the same
// (destination, action) twice returns a *RegistryError.
func (e *Engine) Register(destination, action, subscribe string) (Subscription, error) {
	if destination == "" || action == "" {
		return Subscription{}, &RegistryError{
			Code:        ErrCodeMissingKey,
			Message:     "destination and action are required",
			Destination: destination,
			Action:      action,
		}
	}

	sub := Subscription{Destination: destination, Action: action, Subscribe: subscribe}
	result := fql.ParseResultOf(subscribe)
	sub.Group, sub.Err = result.Group, result.Err

	e.mu.Lock()
	defer e.mu.Unlock()

	key := subscriptionKey{destination, action}
	if _, exists := e.index[key]; exists {
		return Subscription{}, newDuplicateError(destination, action)
	}

	e.index[key] = len(e.subs)
	e.subs = append(e.subs, sub)

	if sub.Enabled() {
		e.metrics.registered.WithLabelValues(statusEnabled).Inc()
		e.logger.Debug("subscription registered",
			zap.String("destination", destination),
			zap.String("action", action),
		)
	} else {
		e.metrics.registered.WithLabelValues(statusDisabled).Inc()
		e.logger.Warn("subscription disabled: invalid subscribe",
			zap.String("destination", destination),
			zap.String("action", action),
			zap.String("subscribe", subscribe),
			zap.Error(sub.Err),
		)
	}

	return sub, nil
}

// Unregister removes a subscription. Returns false if it was not registered.
func (e *Engine) Unregister(destination, action string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := subscriptionKey{destination, action}
	i, ok := e.index[key]
	if !ok {
		return false
	}

	e.subs = append(e.subs[:i], e.subs[i+1:]...)
	delete(e.index, key)
	for j := i; j < len(e.subs); j++ {
		e.index[subscriptionKey{e.subs[j].Destination, e.subs[j].Action}] = j
	}
	return true
}

// Subscriptions returns a snapshot of the registry in registration order.
func (e *Engine) Subscriptions() []Subscription {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Subscription, len(e.subs))
	copy(out, e.subs)
	return out
}

// Route evaluates ev against every enabled subscription and returns one
// delivery per match, in registration order.
func (e *Engine) Route(ctx context.Context, ev *event.Event) ([]Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, fmt.Errorf("route: nil event")
	}

	start := time.Now()
	seq := e.clock.Next()

	e.mu.RLock()
	var deliveries []Delivery
	for _, sub := range e.subs {
		if !sub.Enabled() || !Match(sub.Group, ev) {
			continue
		}
		deliveries = append(deliveries, Delivery{
			ID:          e.ids.Generate(),
			Seq:         seq,
			Destination: sub.Destination,
			Action:      sub.Action,
			Event:       ev,
		})
	}
	e.mu.RUnlock()

	e.metrics.routed.Inc()
	e.metrics.duration.Observe(time.Since(start).Seconds())
	for _, d := range deliveries {
		e.metrics.matches.WithLabelValues(d.Destination, d.Action).Inc()
	}

	e.logger.Debug("event routed",
		zap.Int64("seq", seq),
		zap.String("type", ev.Type()),
		zap.Int("matches", len(deliveries)),
	)

	return deliveries, nil
}

// Enqueue submits an event for asynchronous routing by Run.
// Returns false once the engine has been stopped.
func (e *Engine) Enqueue(ev *event.Event) bool {
	return e.queue.Enqueue(ev)
}

// Run routes queued events and hands each delivery to the sink.
// Blocks until ctx is cancelled or Stop is called and the queue drains.
//
// A failing sink is logged and processing continues with the next delivery.
// Once ctx is cancelled no further event is dequeued; events still queued
// are left unrouted and counted in the stop log.
func (e *Engine) Run(ctx context.Context) error {
	if e.sink == nil {
		return &RegistryError{Code: ErrCodeNoSink, Message: "no sink configured"}
	}

	e.logger.Info("engine starting")

	for {
		if err := ctx.Err(); err != nil {
			return e.cancelled(err)
		}

		ev, ok := e.queue.TryDequeue()
		if ok {
			e.dispatch(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			return e.cancelled(ctx.Err())

		case <-e.queue.Wait():
			// The signal channel is closed with the queue; an empty queue
			// at that point means Stop was called.
			if e.queue.Len() == 0 && e.queue.isClosed() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

func (e *Engine) cancelled(err error) error {
	e.queue.Close()
	e.logger.Info("engine stopping: context cancelled",
		zap.Int("pending", e.queue.Len()),
	)
	return err
}

// Stop closes the queue. Run returns after draining queued events.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) dispatch(ctx context.Context, ev *event.Event) {
	deliveries, err := e.Route(ctx, ev)
	if err != nil {
		e.logger.Error("route failed", zap.Error(err))
		return
	}

	for _, d := range deliveries {
		if err := e.sink(ctx, d); err != nil {
			e.logger.Error("sink failed",
				zap.String("delivery_id", d.ID),
				zap.Int64("seq", d.Seq),
				zap.String("destination", d.Destination),
				zap.String("action", d.Action),
				zap.Error(err),
			)
		}
	}
}
