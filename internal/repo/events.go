package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/checkout-pricing/internal/events"
)

// Events persists domain events.
type Events struct {
	pool *pgxpool.Pool
}

// NewEvents constructs an Events store backed by a pgx pool.
func NewEvents(pool *pgxpool.Pool) *Events {
	return &Events{pool: pool}
}

// InsertDomainEvent records an event and returns it with the generated id
// and timestamp.
func (s *Events) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	if s == nil || s.pool == nil {
		return events.Event{}, ErrStoreUnavailable
	}
	ev := events.Event{Topic: topic, AggregateID: aggregateID, Payload: payload}
	err := s.pool.QueryRow(ctx, `INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3) RETURNING id, occurred_at`,
		topic, aggregateID, payload).Scan(&ev.ID, &ev.OccurredAt)
	if err != nil {
		return events.Event{}, fmt.Errorf("repo: insert domain event: %w", err)
	}
	return ev, nil
}

var _ events.Store = (*Events)(nil)
