package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
)

// ---------------------------------------------------------------------------
// OpenBlotterUseCase
// ---------------------------------------------------------------------------

// OpenBlotterUseCase returns a day's blotter, creating it on first access.
type OpenBlotterUseCase struct {
	tx    port.TxManager
	clock port.Clock
}

// NewOpenBlotterUseCase wires dependencies.
func NewOpenBlotterUseCase(tx port.TxManager, clock port.Clock) *OpenBlotterUseCase {
	return &OpenBlotterUseCase{tx: tx, clock: clock}
}

// Execute gets or creates the blotter for req.Date.
func (uc *OpenBlotterUseCase) Execute(ctx context.Context, req dto.BlotterRequest) (dto.BlotterResponse, error) {
	date, err := parseDateOr(req.Date, uc.clock.Today())
	if err != nil {
		return dto.BlotterResponse{}, err
	}
	actor := model.Actor(req.Actor)
	if err := actor.Validate(); err != nil {
		return dto.BlotterResponse{}, err
	}

	var out model.CashBlotter
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		var err error
		out, err = openBlotter(ctx, s, date, actor, uc.clock.Now())
		return err
	})
	if err != nil {
		return dto.BlotterResponse{}, err
	}
	return toBlotterDTO(out), nil
}

// ---------------------------------------------------------------------------
// RefreshBlotterUseCase
// ---------------------------------------------------------------------------

// RefreshBlotterUseCase re-derives a day's collections and releases. It is
// idempotent and is also driven by the event consumer.
type RefreshBlotterUseCase struct {
	tx     port.TxManager
	clock  port.Clock
	logger *slog.Logger
}

// NewRefreshBlotterUseCase wires dependencies.
func NewRefreshBlotterUseCase(tx port.TxManager, clock port.Clock, logger *slog.Logger) *RefreshBlotterUseCase {
	return &RefreshBlotterUseCase{tx: tx, clock: clock, logger: logger}
}

// Execute fails with model.ErrState when the day is finalized.
func (uc *RefreshBlotterUseCase) Execute(ctx context.Context, req dto.BlotterRequest) (dto.BlotterResponse, error) {
	date, err := parseDateOr(req.Date, uc.clock.Today())
	if err != nil {
		return dto.BlotterResponse{}, err
	}
	actor := model.Actor(req.Actor)
	if err := actor.Validate(); err != nil {
		return dto.BlotterResponse{}, err
	}

	var out model.CashBlotter
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		now := uc.clock.Now()
		b, err := openBlotter(ctx, s, date, actor, now)
		if err != nil {
			return err
		}
		if out, err = refreshBlotter(ctx, s, b, now); err != nil {
			return fmt.Errorf("refresh blotter: %w", err)
		}
		if err := s.Blotters().Save(ctx, out); err != nil {
			return fmt.Errorf("save blotter: %w", err)
		}
		return nil
	})
	if err != nil {
		return dto.BlotterResponse{}, err
	}

	uc.logger.DebugContext(ctx, "blotter refreshed",
		"date", date.String(),
		"collections", out.TotalCollections().String(),
		"releases", out.TotalReleases().String(),
		"closing", out.ClosingBalance().String(),
	)
	return toBlotterDTO(out), nil
}

// ---------------------------------------------------------------------------
// AddExpenseUseCase
// ---------------------------------------------------------------------------

// AddExpenseUseCase records a cash outflow on a Draft day.
type AddExpenseUseCase struct {
	tx      port.TxManager
	clock   port.Clock
	metrics *Metrics
	logger  *slog.Logger
}

// NewAddExpenseUseCase wires dependencies.
func NewAddExpenseUseCase(tx port.TxManager, clock port.Clock, metrics *Metrics, logger *slog.Logger) *AddExpenseUseCase {
	return &AddExpenseUseCase{tx: tx, clock: clock, metrics: orNoop(metrics), logger: logger}
}

// Execute fails with model.ErrState when the day is finalized.
func (uc *AddExpenseUseCase) Execute(ctx context.Context, req dto.AddExpenseRequest) (dto.AddExpenseResponse, error) {
	date, err := parseDateOr(req.Date, uc.clock.Today())
	if err != nil {
		return dto.AddExpenseResponse{}, err
	}
	now := uc.clock.Now()
	expense, err := model.NewExpense(date, req.Amount, req.Description, model.Actor(req.Actor), now)
	if err != nil {
		return dto.AddExpenseResponse{}, fmt.Errorf("create expense: %w", err)
	}

	var out model.CashBlotter
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		b, err := openBlotter(ctx, s, date, expense.RecordedBy(), now)
		if err != nil {
			return err
		}
		if out, err = b.AddExpense(expense, now); err != nil {
			return fmt.Errorf("add expense: %w", err)
		}
		if err := s.Blotters().InsertExpense(ctx, expense); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		if err := s.Blotters().Save(ctx, out); err != nil {
			return fmt.Errorf("save blotter: %w", err)
		}
		return recordEvents(ctx, s, out.DomainEvents()...)
	})
	if err != nil {
		return dto.AddExpenseResponse{}, err
	}

	uc.metrics.expensesRecorded.Add(ctx, 1)
	uc.logger.InfoContext(ctx, "expense recorded",
		"date", date.String(),
		"expense_id", expense.ID(),
		"amount", expense.Amount().String(),
	)
	return dto.AddExpenseResponse{Expense: toExpenseDTO(expense), Blotter: toBlotterDTO(out)}, nil
}

// ---------------------------------------------------------------------------
// FinalizeBlotterUseCase
// ---------------------------------------------------------------------------

// FinalizeBlotterUseCase locks a day after checking that it reconciles.
type FinalizeBlotterUseCase struct {
	tx      port.TxManager
	clock   port.Clock
	metrics *Metrics
	logger  *slog.Logger
}

// NewFinalizeBlotterUseCase wires dependencies.
func NewFinalizeBlotterUseCase(tx port.TxManager, clock port.Clock, metrics *Metrics, logger *slog.Logger) *FinalizeBlotterUseCase {
	return &FinalizeBlotterUseCase{tx: tx, clock: clock, metrics: orNoop(metrics), logger: logger}
}

// Execute finalizes the stored blotter as-is. It fails with
// model.ErrIntegrity when the stored closing balance does not match its
// components and with model.ErrNotFound when the day was never opened.
func (uc *FinalizeBlotterUseCase) Execute(ctx context.Context, req dto.BlotterRequest) (dto.BlotterResponse, error) {
	date, err := parseDateOr(req.Date, uc.clock.Today())
	if err != nil {
		return dto.BlotterResponse{}, err
	}
	ctx, span := tracer.Start(ctx, "FinalizeBlotter", trace.WithAttributes(attribute.String("date", date.String())))
	defer span.End()

	var out model.CashBlotter
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		b, err := s.Blotters().GetByDateForUpdate(ctx, date)
		if err != nil {
			return fmt.Errorf("find blotter: %w", err)
		}
		if out, err = b.Finalize(model.Actor(req.Actor), uc.clock.Now()); err != nil {
			return fmt.Errorf("finalize blotter: %w", err)
		}
		if err := s.Blotters().Save(ctx, out); err != nil {
			return fmt.Errorf("save blotter: %w", err)
		}
		return recordEvents(ctx, s, out.DomainEvents()...)
	})
	if err != nil {
		if isIntegrity(err) {
			uc.metrics.finalizeRejections.Add(ctx, 1)
			uc.logger.WarnContext(ctx, "blotter finalize refused", "date", date.String(), "error", err)
		}
		span.RecordError(err)
		return dto.BlotterResponse{}, err
	}

	uc.metrics.blottersFinalized.Add(ctx, 1)
	uc.logger.InfoContext(ctx, "blotter finalized",
		"date", date.String(),
		"closing_balance", out.ClosingBalance().String(),
		"finalized_by", req.Actor,
	)
	return toBlotterDTO(out), nil
}
