package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/service"
	"github.com/fanders/microfinance/internal/domain/valueobject"
)

// maxRangeDays bounds a single range query.
const maxRangeDays = 366

// GetBlotterRangeUseCase lists blotters in a period with their totals.
type GetBlotterRangeUseCase struct {
	blotters port.BlotterRepository
}

// NewGetBlotterRangeUseCase wires dependencies.
func NewGetBlotterRangeUseCase(blotters port.BlotterRepository) *GetBlotterRangeUseCase {
	return &GetBlotterRangeUseCase{blotters: blotters}
}

func (uc *GetBlotterRangeUseCase) Execute(ctx context.Context, req dto.BlotterRangeRequest) (dto.BlotterRangeResponse, error) {
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return dto.BlotterRangeResponse{}, err
	}
	list, err := uc.blotters.ListRange(ctx, from, to)
	if err != nil {
		return dto.BlotterRangeResponse{}, fmt.Errorf("list blotters: %w", err)
	}

	out := make([]dto.BlotterResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBlotterDTO(b))
	}
	sum := service.SummarizeCashFlow(list)
	return dto.BlotterRangeResponse{
		Blotters: out,
		Summary: dto.CashFlowResponse{
			Days:         sum.Days,
			TotalInflow:  sum.TotalInflow,
			TotalOutflow: sum.TotalOutflow,
			NetFlow:      sum.NetFlow,
		},
	}, nil
}

func parseRange(fromStr, toStr string) (valueobject.BusinessDate, valueobject.BusinessDate, error) {
	from, err := valueobject.ParseBusinessDate(fromStr)
	if err != nil {
		return from, from, fmt.Errorf("%w: from: %w", model.ErrValidation, err)
	}
	to, err := valueobject.ParseBusinessDate(toStr)
	if err != nil {
		return from, to, fmt.Errorf("%w: to: %w", model.ErrValidation, err)
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("%w: range end %s precedes start %s", model.ErrValidation, to, from)
	}
	if from.DaysUntil(to) > maxRangeDays {
		return from, to, fmt.Errorf("%w: range exceeds %d days", model.ErrValidation, maxRangeDays)
	}
	return from, to, nil
}

// ---------------------------------------------------------------------------
// GetCashPositionUseCase
// ---------------------------------------------------------------------------

// GetCashPositionUseCase reports the latest closing balance and alerts.
type GetCashPositionUseCase struct {
	blotters  port.BlotterRepository
	threshold decimal.Decimal
}

// NewGetCashPositionUseCase wires dependencies. threshold is the balance
// below which a low-cash warning is raised.
func NewGetCashPositionUseCase(blotters port.BlotterRepository, threshold decimal.Decimal) *GetCashPositionUseCase {
	return &GetCashPositionUseCase{blotters: blotters, threshold: threshold}
}

func (uc *GetCashPositionUseCase) Execute(ctx context.Context) (dto.CashPositionResponse, error) {
	resp := dto.CashPositionResponse{Balance: decimal.Zero, Threshold: uc.threshold}

	latest, err := uc.blotters.Latest(ctx)
	switch {
	case err == nil:
		resp.AsOf = latest.Date().String()
		resp.Balance = latest.ClosingBalance()
	case !errors.Is(err, model.ErrNotFound):
		return dto.CashPositionResponse{}, fmt.Errorf("latest blotter: %w", err)
	}

	alerts := service.CashAlerts(resp.Balance, uc.threshold)
	resp.Alerts = make([]dto.CashAlertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp.Alerts = append(resp.Alerts, dto.CashAlertResponse{
			Type:     string(a.Kind),
			Severity: a.Severity,
			Message:  a.Message,
		})
	}
	return resp, nil
}

// ---------------------------------------------------------------------------
// RecalculateBlottersUseCase
// ---------------------------------------------------------------------------

// RecalculateBlottersUseCase refreshes every Draft blotter from a date up to
// today, one unit per day. Finalized days are left untouched.
type RecalculateBlottersUseCase struct {
	tx     port.TxManager
	clock  port.Clock
	logger *slog.Logger
}

// NewRecalculateBlottersUseCase wires dependencies.
func NewRecalculateBlottersUseCase(tx port.TxManager, clock port.Clock, logger *slog.Logger) *RecalculateBlottersUseCase {
	return &RecalculateBlottersUseCase{tx: tx, clock: clock, logger: logger}
}

func (uc *RecalculateBlottersUseCase) Execute(ctx context.Context, req dto.RecalculateBlottersRequest) (dto.RecalculateBlottersResponse, error) {
	from, err := valueobject.ParseBusinessDate(req.From)
	if err != nil {
		return dto.RecalculateBlottersResponse{}, fmt.Errorf("%w: %w", model.ErrValidation, err)
	}
	today := uc.clock.Today()
	if from.After(today) {
		return dto.RecalculateBlottersResponse{}, fmt.Errorf("%w: %s is in the future", model.ErrValidation, from)
	}

	var dates []valueobject.BusinessDate
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		list, err := s.Blotters().ListRange(ctx, from, today)
		if err != nil {
			return fmt.Errorf("list blotters: %w", err)
		}
		for _, b := range list {
			dates = append(dates, b.Date())
		}
		return nil
	})
	if err != nil {
		return dto.RecalculateBlottersResponse{}, err
	}

	resp := dto.RecalculateBlottersResponse{Refreshed: []string{}, Skipped: []string{}}
	for _, date := range dates {
		refreshed, err := uc.recalculateDay(ctx, date)
		if err != nil {
			return resp, fmt.Errorf("recalculate %s: %w", date, err)
		}
		if refreshed {
			resp.Refreshed = append(resp.Refreshed, date.String())
		} else {
			resp.Skipped = append(resp.Skipped, date.String())
		}
	}

	uc.logger.InfoContext(ctx, "blotters recalculated",
		"from", from.String(),
		"refreshed", len(resp.Refreshed),
		"skipped", len(resp.Skipped),
	)
	return resp, nil
}

func (uc *RecalculateBlottersUseCase) recalculateDay(ctx context.Context, date valueobject.BusinessDate) (bool, error) {
	refreshed := false
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		b, err := s.Blotters().GetByDateForUpdate(ctx, date)
		if err != nil {
			return err
		}
		if b.IsFinalized() {
			return nil
		}
		now := uc.clock.Now()
		if b, err = refreshBlotter(ctx, s, b, now); err != nil {
			return err
		}
		expenses, err := s.Blotters().ListExpenses(ctx, date)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		total := decimal.Zero
		for _, e := range expenses {
			total = total.Add(e.Amount())
		}
		if b, err = b.WithExpenses(total, now); err != nil {
			return err
		}
		if err := s.Blotters().Save(ctx, b); err != nil {
			return fmt.Errorf("save blotter: %w", err)
		}
		refreshed = true
		return nil
	})
	return refreshed, err
}
