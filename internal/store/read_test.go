package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fql/internal/fql"
)

func TestGetSubscription(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveSubscription(ctx, "webhook", "post", `contains(event, "Nike")`)
	require.NoError(t, err)

	got, err := s.GetSubscription(ctx, "webhook", "post")
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	_, err = s.GetSubscription(ctx, "webhook", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListSubscriptions_SaveOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty, "empty slice, not nil")

	for _, dest := range []string{"zeta", "alpha", "mid"} {
		_, err := s.SaveSubscription(ctx, dest, "post", `type = "track"`)
		require.NoError(t, err)
	}

	subs, err := s.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "zeta", subs[0].Destination)
	assert.Equal(t, "alpha", subs[1].Destination)
	assert.Equal(t, "mid", subs[2].Destination)
}

func TestScanSubscription_RejectsCorruptAST(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveSubscription(ctx, "webhook", "post", `type = "track"`)
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE subscriptions SET ast = '{"type":"group","operator":"and","children":[]}'`)
	require.NoError(t, err)

	_, err = s.GetSubscription(ctx, "webhook", "post")
	assert.ErrorContains(t, err, "unmarshal ast")
}

func TestMatchingEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	written := mustWriteEvents(t, s,
		`{"type":"track","event":"Product Added","properties":{"price":150}}`,
		`{"type":"track","event":"Product Added","properties":{"price":50}}`,
		`{"type":"track","event":"Order Completed","properties":{"total":900}}`,
		`{"type":"identify","traits":{"email":"a@example.com"}}`,
	)

	tests := []struct {
		subscribe string
		want      []int
	}{
		{`type = "track"`, []int{0, 1, 2}},
		{`event = "Product Added" and properties.price >= 100`, []int{0}},
		{`(event = "Product Added" and properties.price >= 100) or (event = "Order Completed" and properties.total >= 500)`, []int{0, 2}},
		{`match(traits.email, "*@example.com")`, []int{3}},
		{`userId != null`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.subscribe, func(t *testing.T) {
			got, err := s.MatchingEvents(ctx, fql.MustParse(tt.subscribe))
			require.NoError(t, err)

			want := []StoredEvent{}
			for _, i := range tt.want {
				want = append(want, written[i])
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestMatchingEvents_InvalidTree(t *testing.T) {
	s := createTestStore(t)
	_, err := s.MatchingEvents(context.Background(), fql.NewGroup(fql.Or))
	assert.Error(t, err)
}

func TestReadEvents_SeqOrder(t *testing.T) {
	s := createTestStore(t)
	written := mustWriteEvents(t, s, `{"type":"a"}`, `{"type":"b"}`, `{"type":"c"}`)

	got, err := s.ReadEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, written, got)
}
