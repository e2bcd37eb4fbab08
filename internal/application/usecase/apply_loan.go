package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
)

// ApplyLoanUseCase records a new loan application seeded by the calculator.
type ApplyLoanUseCase struct {
	calc    *model.AmortizationCalculator
	tx      port.TxManager
	clock   port.Clock
	metrics *Metrics
	logger  *slog.Logger
}

// NewApplyLoanUseCase wires dependencies.
func NewApplyLoanUseCase(
	calc *model.AmortizationCalculator,
	tx port.TxManager,
	clock port.Clock,
	metrics *Metrics,
	logger *slog.Logger,
) *ApplyLoanUseCase {
	return &ApplyLoanUseCase{calc: calc, tx: tx, clock: clock, metrics: orNoop(metrics), logger: logger}
}

// Execute computes the schedule and persists the application.
func (uc *ApplyLoanUseCase) Execute(ctx context.Context, req dto.ApplyLoanRequest) (dto.LoanResponse, error) {
	now := uc.clock.Now()
	weeks, months := resolveTerm(uc.calc.Terms(), req.TermWeeks, req.TermMonths)

	// 1. Compute the schedule.
	sched, err := uc.calc.Compute(req.Principal, weeks, months)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("compute schedule: %w", err)
	}

	// 2. Create the aggregate.
	loan, err := model.NewLoanApplication(req.ClientID, sched, model.Actor(req.Actor), uc.clock.Today(), now)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("create loan: %w", err)
	}

	// 3. Persist with its events.
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		if err := s.Loans().Save(ctx, loan); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		return recordEvents(ctx, s, loan.DomainEvents()...)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}

	uc.metrics.transition(ctx, "apply")
	uc.logger.InfoContext(ctx, "loan application recorded",
		"loan_id", loan.ID(),
		"client_id", loan.ClientID(),
		"principal", loan.Principal().String(),
		"total_loan_amount", loan.TotalLoanAmount().String(),
	)
	return toLoanDTO(loan), nil
}
