package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/pkg/events"
)

// OutboxRelay moves committed outbox entries to the event bus. Entries are
// marked published in the same transaction that fetched them, so a failed
// publish leaves them pending for the next poll. Delivery is at least once.
type OutboxRelay struct {
	tx        port.TxManager
	publisher port.EventPublisher
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

// NewOutboxRelay wires dependencies.
func NewOutboxRelay(tx port.TxManager, publisher port.EventPublisher, topic string, batchSize int, interval time.Duration, logger *slog.Logger) *OutboxRelay {
	return &OutboxRelay{
		tx:        tx,
		publisher: publisher,
		topic:     topic,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
	}
}

// RelayOnce publishes at most one batch and returns how many entries it
// shipped.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	var shipped int
	err := r.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		pending, err := s.Outbox().FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}
		if err := r.publisher.Publish(ctx, r.topic, pending...); err != nil {
			return err
		}
		if err := s.Outbox().MarkPublished(ctx, ids(pending)); err != nil {
			return fmt.Errorf("mark published: %w", err)
		}
		shipped = len(pending)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return shipped, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll.
func (r *OutboxRelay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "outbox relay starting", "topic", r.topic, "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		case n > 0:
			r.logger.DebugContext(ctx, "outbox batch relayed", "count", n)
		}
		if err == nil && n == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func ids(entries []events.OutboxEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
