package postgres

import (
	"context"
	"time"

	"github.com/fanders/microfinance/pkg/events"
	pgpkg "github.com/fanders/microfinance/pkg/postgres"
)

var _ events.OutboxRepository = (*OutboxRepo)(nil)

// OutboxRepo stores domain events next to the rows that produced them.
type OutboxRepo struct {
	q pgpkg.Querier
}

// NewOutboxRepo creates an outbox repository over q.
func NewOutboxRepo(q pgpkg.Querier) *OutboxRepo {
	return &OutboxRepo{q: q}
}

func (r *OutboxRepo) Store(ctx context.Context, entries []events.OutboxEntry) error {
	const query = `
		INSERT INTO outbox (id, aggregate_id, aggregate_type, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, e := range entries {
		if _, err := r.q.Exec(ctx, query,
			e.ID, e.AggregateID, e.AggregateType, e.EventType, e.Payload, e.CreatedAt,
		); err != nil {
			return dbError("insert outbox entry "+e.EventType, err)
		}
	}
	return nil
}

// FetchUnpublished locks up to batchSize pending entries, oldest first.
// Entries locked by another relay are skipped.
func (r *OutboxRepo) FetchUnpublished(ctx context.Context, batchSize int) ([]events.OutboxEntry, error) {
	const query = `
		SELECT id, aggregate_id, aggregate_type, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.q.Query(ctx, query, batchSize)
	if err != nil {
		return nil, dbError("query outbox", err)
	}
	defer rows.Close()

	var out []events.OutboxEntry
	for rows.Next() {
		var e events.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, dbError("scan outbox entry", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate outbox", err)
	}
	return out, nil
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx,
		`UPDATE outbox SET published_at = $2 WHERE id = ANY($1::uuid[]) AND published_at IS NULL`,
		ids, time.Now().UTC(),
	)
	if err != nil {
		return dbError("mark outbox published", err)
	}
	return nil
}
