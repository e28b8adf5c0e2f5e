package store

import (
	"context"

	"github.com/google/uuid"
)

// InsertDomainEvent persists an integration event for fan-out.
func (q *Queries) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (DomainEvent, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO domain_events (id, topic, aggregate_id, payload)
VALUES ($1, $2, $3, $4)
RETURNING id, topic, aggregate_id, payload, created_at`,
		uuid.New(), topic, aggregateID, payload)
	var e DomainEvent
	if err := row.Scan(&e.ID, &e.Topic, &e.AggregateID, &e.Payload, &e.CreatedAt); err != nil {
		return DomainEvent{}, err
	}
	return e, nil
}
