package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/event"
	"github.com/fanders/microfinance/internal/domain/model"
	pkgkafka "github.com/fanders/microfinance/pkg/kafka"
)

// BlotterRefresher re-derives one day's blotter totals.
type BlotterRefresher interface {
	Execute(ctx context.Context, req dto.BlotterRequest) (dto.BlotterResponse, error)
}

// BlotterSync keeps cash blotters in step with payments and disbursements
// written by other ledger instances. Refreshing is idempotent, so redelivered
// or already-applied events are harmless.
type BlotterSync struct {
	refresher BlotterRefresher
	logger    *slog.Logger
}

// NewBlotterSync wires dependencies.
func NewBlotterSync(refresher BlotterRefresher, logger *slog.Logger) *BlotterSync {
	return &BlotterSync{refresher: refresher, logger: logger}
}

// cashMovement holds the fields shared by the events that move cash.
type cashMovement struct {
	PaymentDate      string `json:"payment_date"`
	RecordedBy       string `json:"recorded_by"`
	DisbursementDate string `json:"disbursement_date"`
	DisbursedBy      string `json:"disbursed_by"`
}

// Handle is a pkg/kafka.Handler. Returning an error leaves the message
// uncommitted.
func (s *BlotterSync) Handle(ctx context.Context, msg pkgkafka.Message) error {
	eventType := msg.Headers[HeaderEventType]
	if eventType != event.TypePaymentPosted && eventType != event.TypeLoanDisbursed {
		return nil
	}

	var m cashMovement
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		// Poison message: log and skip so the partition keeps moving.
		s.logger.ErrorContext(ctx, "undecodable ledger event", "event_type", eventType, "error", err)
		return nil
	}
	date, actor := m.PaymentDate, m.RecordedBy
	if eventType == event.TypeLoanDisbursed {
		date, actor = m.DisbursementDate, m.DisbursedBy
	}

	_, err := s.refresher.Execute(ctx, dto.BlotterRequest{Date: date, Actor: actor})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrState), errors.Is(err, model.ErrValidation):
		s.logger.WarnContext(ctx, "blotter not refreshed",
			"event_type", eventType,
			"event_id", msg.Headers[HeaderEventID],
			"date", date,
			"error", err,
		)
		return nil
	default:
		return fmt.Errorf("refresh blotter %s: %w", date, err)
	}
}
