package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fql/internal/event"
	"github.com/roach88/fql/internal/fql"
	"github.com/roach88/fql/internal/querysql"
)

// Subscription is a stored FQL filter for one (destination, action).
type Subscription struct {
	ID          string
	Destination string
	Action      string
	Subscribe   string // as submitted
	Canonical   string
	Fingerprint string
	Group       *fql.Group
	Seq         int64
}

// StoredEvent is a sample event row.
type StoredEvent struct {
	ID      string
	Seq     int64
	Payload []byte
}

// Event decodes the stored payload.
func (e StoredEvent) Event() (*event.Event, error) {
	return event.Parse(e.Payload)
}

const selectSubscription = `
	SELECT id, destination, action, subscribe, canonical, ast, fingerprint, seq
	FROM subscriptions
`

// GetSubscription retrieves the subscription for (destination, action).
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) GetSubscription(ctx context.Context, destination, action string) (Subscription, error) {
	row := s.db.QueryRowContext(ctx, selectSubscription+`
		WHERE destination = ? AND action = ?
	`, destination, action)

	sub, err := scanSubscription(row)
	if err != nil {
		return Subscription{}, fmt.Errorf("get subscription %s/%s: %w", destination, action, err)
	}
	return sub, nil
}

// ListSubscriptions returns every subscription in save order.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, selectSubscription+`
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	return subs, nil
}

// ReadEvents returns every stored event in seq order.
func (s *Store) ReadEvents(ctx context.Context) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, payload FROM events
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return collectEvents(rows)
}

// MatchingEvents returns the stored events g selects, in seq order.
// The tree is compiled to a parameterized SQLite predicate, so filtering
// happens inside the database.
func (s *Store) MatchingEvents(ctx context.Context, g *fql.Group) ([]StoredEvent, error) {
	query, params, err := querysql.NewSQLCompiler("payload").CompileSelect("events", []string{"id", "seq", "payload"}, g)
	if err != nil {
		return nil, fmt.Errorf("matching events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("matching events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]StoredEvent, error) {
	defer rows.Close()

	events := []StoredEvent{}
	for rows.Next() {
		var ev StoredEvent
		var payload string
		if err := rows.Scan(&ev.ID, &ev.Seq, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Payload = []byte(payload)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var sub Subscription
	var astJSON string
	if err := row.Scan(
		&sub.ID,
		&sub.Destination,
		&sub.Action,
		&sub.Subscribe,
		&sub.Canonical,
		&astJSON,
		&sub.Fingerprint,
		&sub.Seq,
	); err != nil {
		return Subscription{}, err
	}

	g, err := unmarshalAST(astJSON)
	if err != nil {
		return Subscription{}, fmt.Errorf("subscription %s: %w", sub.ID, err)
	}
	sub.Group = g

	return sub, nil
}
