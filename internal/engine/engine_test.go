package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/fql/internal/event"
	"github.com/roach88/fql/internal/fql"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	base := []Option{WithLogger(zaptest.NewLogger(t)), WithMetrics(m)}
	return New(append(base, opts...)...), m
}

func TestEngine_RegisterParsesOnce(t *testing.T) {
	e, m := newTestEngine(t)

	sub, err := e.Register("webhook", "post", `type = "track"`)
	require.NoError(t, err)

	assert.True(t, sub.Enabled())
	assert.NoError(t, sub.Err)
	assert.Equal(t, fql.MustParse(`type = "track"`), sub.Group)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registered.WithLabelValues(statusEnabled)))
}

func TestEngine_InvalidSubscriptionIsDisabled(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	e, m := newTestEngine(t, WithLogger(zap.New(core)))

	sub, err := e.Register("webhook", "post", `typo`)
	require.NoError(t, err, "invalid FQL must not fail registration")

	assert.False(t, sub.Enabled())
	assert.Nil(t, sub.Group)
	assert.True(t, fql.IsParseError(sub.Err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registered.WithLabelValues(statusDisabled)))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "subscription disabled: invalid subscribe", logs.All()[0].Message)

	deliveries, err := e.Route(context.Background(), event.MustParse(`{"type":"track"}`))
	require.NoError(t, err)
	assert.Empty(t, deliveries, "disabled subscriptions never fire")
}

func TestEngine_RegisterErrors(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Register("webhook", "post", `type = "track"`)
	require.NoError(t, err)

	_, err = e.Register("webhook", "post", `type = "page"`)
	assert.True(t, IsDuplicateError(err))

	_, err = e.Register("", "post", `type = "track"`)
	var re *RegistryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeMissingKey, re.Code)
}

func TestEngine_RouteInRegistrationOrder(t *testing.T) {
	e, m := newTestEngine(t, WithIDGenerator(NewFixedGenerator("d-1", "d-2", "d-3")))

	mustRegister(t, e, "slack", "notify", `event = "Order Completed"`)
	mustRegister(t, e, "webhook", "post", `type = "track"`)
	mustRegister(t, e, "amplitude", "track", `type = "identify"`)
	mustRegister(t, e, "braze", "purchase", `properties.total >= 100`)

	ev := event.MustParse(`{"type":"track","event":"Order Completed","properties":{"total":250}}`)
	deliveries, err := e.Route(context.Background(), ev)
	require.NoError(t, err)

	require.Len(t, deliveries, 3)
	assert.Equal(t, Delivery{ID: "d-1", Seq: 1, Destination: "slack", Action: "notify", Event: ev}, deliveries[0])
	assert.Equal(t, "webhook", deliveries[1].Destination)
	assert.Equal(t, "braze", deliveries[2].Destination)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.routed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matches.WithLabelValues("braze", "purchase")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.matches.WithLabelValues("amplitude", "track")))
}

func TestEngine_RouteStampsSequence(t *testing.T) {
	e, _ := newTestEngine(t, WithClock(NewClockAt(41)))
	mustRegister(t, e, "webhook", "post", `type = "track"`)

	first, err := e.Route(context.Background(), event.MustParse(`{"type":"track"}`))
	require.NoError(t, err)
	second, err := e.Route(context.Background(), event.MustParse(`{"type":"track"}`))
	require.NoError(t, err)

	assert.Equal(t, int64(42), first[0].Seq)
	assert.Equal(t, int64(43), second[0].Seq)
}

func TestEngine_RouteErrors(t *testing.T) {
	e, _ := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Route(ctx, event.MustParse(`{"type":"track"}`))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = e.Route(context.Background(), nil)
	assert.Error(t, err)
}

func TestEngine_Unregister(t *testing.T) {
	e, _ := newTestEngine(t)
	mustRegister(t, e, "a", "x", `type = "track"`)
	mustRegister(t, e, "b", "x", `type = "track"`)
	mustRegister(t, e, "c", "x", `type = "track"`)

	assert.True(t, e.Unregister("a", "x"))
	assert.False(t, e.Unregister("a", "x"))

	subs := e.Subscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, "b", subs[0].Destination)
	assert.Equal(t, "c", subs[1].Destination)

	// The index follows the shifted slice.
	assert.True(t, e.Unregister("c", "x"))
	_, err := e.Register("c", "x", `type = "page"`)
	assert.NoError(t, err)
}

func TestEngine_SubscriptionsIsSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	mustRegister(t, e, "a", "x", `type = "track"`)

	subs := e.Subscriptions()
	subs[0].Destination = "mutated"

	assert.Equal(t, "a", e.Subscriptions()[0].Destination)
}

func TestEngine_ConcurrentRegisterAndRoute(t *testing.T) {
	e, _ := newTestEngine(t)
	ev := event.MustParse(`{"type":"track"}`)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = e.Register("dest", string(rune('a'+i)), `type = "track"`)
		}(i)
		go func() {
			defer wg.Done()
			_, err := e.Route(context.Background(), ev)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	deliveries, err := e.Route(context.Background(), ev)
	require.NoError(t, err)
	assert.Len(t, deliveries, 20)
}

func TestEngine_RunDeliversToSink(t *testing.T) {
	var mu sync.Mutex
	var got []Delivery
	sink := func(_ context.Context, d Delivery) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, d)
		if d.Destination == "failing" {
			return errors.New("boom")
		}
		return nil
	}

	e, _ := newTestEngine(t, WithSink(sink))
	mustRegister(t, e, "failing", "post", `type = "track"`)
	mustRegister(t, e, "webhook", "post", `event = "A"`)

	require.True(t, e.Enqueue(event.MustParse(`{"type":"track","event":"A"}`)))
	require.True(t, e.Enqueue(event.MustParse(`{"type":"page"}`)))
	require.True(t, e.Enqueue(event.MustParse(`{"type":"track","event":"B"}`)))

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	e.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3, "a failing sink does not stop later deliveries")
	assert.Equal(t, "failing", got[0].Destination)
	assert.Equal(t, "webhook", got[1].Destination)
	assert.Equal(t, "failing", got[2].Destination)
	assert.Equal(t, int64(3), got[2].Seq)

	assert.False(t, e.Enqueue(event.MustParse(`{"type":"track"}`)), "stopped engine rejects events")
}

func TestEngine_RunStopsOnContextCancel(t *testing.T) {
	e, _ := newTestEngine(t, WithSink(func(context.Context, Delivery) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEngine_RunLeavesQueueOnCancel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	routed := 0
	e, m := newTestEngine(t,
		WithLogger(zap.New(core)),
		WithSink(func(context.Context, Delivery) error {
			routed++
			return nil
		}),
	)
	mustRegister(t, e, "webhook", "post", `type = "track"`)

	for i := 0; i < 3; i++ {
		require.True(t, e.Enqueue(event.MustParse(`{"type":"track"}`)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
	assert.Zero(t, routed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.routed), "no event is routed after cancel")
	assert.Equal(t, 3, e.queue.Len(), "queued events are not discarded")
	assert.Empty(t, logs.FilterMessage("route failed").All())

	stops := logs.FilterMessage("engine stopping: context cancelled").All()
	require.Len(t, stops, 1)
	assert.Equal(t, int64(3), stops[0].ContextMap()["pending"])
}

func TestEngine_RunRequiresSink(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.Run(context.Background())

	var re *RegistryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeNoSink, re.Code)
}

func mustRegister(t *testing.T, e *Engine, destination, action, subscribe string) {
	t.Helper()
	sub, err := e.Register(destination, action, subscribe)
	require.NoError(t, err)
	require.True(t, sub.Enabled(), "subscribe %q: %v", subscribe, sub.Err)
}

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := New(WithMetrics(NewMetrics(reg)))
	mustRegister(t, e, "webhook", "post", `type = "track"`)

	_, err := e.Route(context.Background(), event.MustParse(`{"type":"track"}`))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"fql_subscriptions_registered_total",
		"fql_events_routed_total",
		"fql_subscription_matches_total",
		"fql_route_duration_seconds",
	}, names)
}
