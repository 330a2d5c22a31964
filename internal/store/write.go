package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/fql/internal/event"
	"github.com/roach88/fql/internal/fql"
)

// SaveSubscription parses, normalizes and stores a subscription.
//
// The subscribe text is kept as submitted alongside its canonical form, the
// AST as JSON and the fingerprint. Saving an existing (destination, action)
// replaces its filter but keeps its ID and seq.
//
// Invalid FQL is rejected with the *fql.ParseError wrapped, so
// fql.IsParseError(err) reports true.
func (s *Store) SaveSubscription(ctx context.Context, destination, action, subscribe string) (Subscription, error) {
	if destination == "" || action == "" {
		return Subscription{}, fmt.Errorf("save subscription: destination and action are required")
	}

	g, err := fql.Parse(subscribe)
	if err != nil {
		return Subscription{}, fmt.Errorf("save subscription %s/%s: %w", destination, action, err)
	}

	canonical, err := fql.Generate(g)
	if err != nil {
		return Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	fingerprint, err := fql.Fingerprint(g)
	if err != nil {
		return Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	astJSON, err := marshalAST(g)
	if err != nil {
		return Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Subscription{}, fmt.Errorf("save subscription: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeq(ctx, tx, "subscriptions")
	if err != nil {
		return Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions
		(id, destination, action, subscribe, canonical, ast, fingerprint, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(destination, action) DO UPDATE SET
			subscribe = excluded.subscribe,
			canonical = excluded.canonical,
			ast = excluded.ast,
			fingerprint = excluded.fingerprint
	`,
		uuid.Must(uuid.NewV7()).String(),
		destination,
		action,
		subscribe,
		canonical,
		astJSON,
		fingerprint,
		seq,
	)
	if err != nil {
		return Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	sub, err := scanSubscription(tx.QueryRowContext(ctx, selectSubscription+`
		WHERE destination = ? AND action = ?
	`, destination, action))
	if err != nil {
		return Subscription{}, fmt.Errorf("save subscription: read back: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Subscription{}, fmt.Errorf("save subscription: commit: %w", err)
	}

	return sub, nil
}

// DeleteSubscription removes a subscription.
// Returns false if it did not exist.
func (s *Store) DeleteSubscription(ctx context.Context, destination, action string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM subscriptions WHERE destination = ? AND action = ?
	`, destination, action)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return n > 0, nil
}

// WriteEvent validates and appends a sample event.
// The event is assigned a UUIDv7 ID and the next seq.
func (s *Store) WriteEvent(ctx context.Context, payload []byte) (StoredEvent, error) {
	ev, err := event.Parse(payload)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("write event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("write event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeq(ctx, tx, "events")
	if err != nil {
		return StoredEvent{}, fmt.Errorf("write event: %w", err)
	}

	stored := StoredEvent{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Seq:     seq,
		Payload: ev.Raw(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, seq, payload) VALUES (?, ?, ?)
	`, stored.ID, stored.Seq, string(stored.Payload))
	if err != nil {
		return StoredEvent{}, fmt.Errorf("write event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return StoredEvent{}, fmt.Errorf("write event: commit: %w", err)
	}

	return stored, nil
}
