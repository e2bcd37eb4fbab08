package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
)

// ---------------------------------------------------------------------------
// ApproveLoanUseCase
// ---------------------------------------------------------------------------

// ApproveLoanUseCase moves an application to Approved.
type ApproveLoanUseCase struct {
	tx      port.TxManager
	clock   port.Clock
	metrics *Metrics
	logger  *slog.Logger
}

// NewApproveLoanUseCase wires dependencies.
func NewApproveLoanUseCase(tx port.TxManager, clock port.Clock, metrics *Metrics, logger *slog.Logger) *ApproveLoanUseCase {
	return &ApproveLoanUseCase{tx: tx, clock: clock, metrics: orNoop(metrics), logger: logger}
}

// Execute approves the loan.
func (uc *ApproveLoanUseCase) Execute(ctx context.Context, req dto.LoanActionRequest) (dto.LoanResponse, error) {
	var out model.Loan
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		loan, err := s.Loans().GetForUpdate(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		if out, err = loan.Approve(model.Actor(req.Actor), uc.clock.Today(), uc.clock.Now()); err != nil {
			return fmt.Errorf("approve loan: %w", err)
		}
		if err := s.Loans().Save(ctx, out); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		return recordEvents(ctx, s, out.DomainEvents()...)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}

	uc.metrics.transition(ctx, "approve")
	uc.logger.InfoContext(ctx, "loan approved", "loan_id", out.ID(), "approved_by", req.Actor)
	return toLoanDTO(out), nil
}

// ---------------------------------------------------------------------------
// DisburseLoanUseCase
// ---------------------------------------------------------------------------

// DisburseLoanUseCase activates an approved loan and books the principal as
// a release on today's blotter in the same unit.
type DisburseLoanUseCase struct {
	tx      port.TxManager
	clock   port.Clock
	metrics *Metrics
	logger  *slog.Logger
}

// NewDisburseLoanUseCase wires dependencies.
func NewDisburseLoanUseCase(tx port.TxManager, clock port.Clock, metrics *Metrics, logger *slog.Logger) *DisburseLoanUseCase {
	return &DisburseLoanUseCase{tx: tx, clock: clock, metrics: orNoop(metrics), logger: logger}
}

// Execute disburses the loan. It fails with model.ErrState when today's
// blotter is already finalized.
func (uc *DisburseLoanUseCase) Execute(ctx context.Context, req dto.LoanActionRequest) (dto.LoanResponse, error) {
	now, today := uc.clock.Now(), uc.clock.Today()
	actor := model.Actor(req.Actor)

	var out model.Loan
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		// 1. Lock and transition the loan.
		loan, err := s.Loans().GetForUpdate(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		if out, err = loan.Disburse(actor, today, now); err != nil {
			return fmt.Errorf("disburse loan: %w", err)
		}

		// 2. The release lands on today's blotter, which must still be open.
		blotter, err := openBlotter(ctx, s, today, actor, now)
		if err != nil {
			return err
		}
		if err := requireDraft(blotter, "disburse loan"); err != nil {
			return err
		}

		// 3. Persist the loan, then re-derive the blotter from it.
		if err := s.Loans().Save(ctx, out); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		if blotter, err = refreshBlotter(ctx, s, blotter, now); err != nil {
			return fmt.Errorf("refresh blotter: %w", err)
		}
		if err := s.Blotters().Save(ctx, blotter); err != nil {
			return fmt.Errorf("save blotter: %w", err)
		}

		// 4. Events.
		return recordEvents(ctx, s, out.DomainEvents()...)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}

	uc.metrics.transition(ctx, "disburse")
	uc.logger.InfoContext(ctx, "loan disbursed",
		"loan_id", out.ID(),
		"principal", out.Principal().String(),
		"disbursement_date", today.String(),
	)
	return toLoanDTO(out), nil
}

// ---------------------------------------------------------------------------
// MarkLoanDefaultedUseCase
// ---------------------------------------------------------------------------

// MarkLoanDefaultedUseCase records that collections gave up on a loan.
type MarkLoanDefaultedUseCase struct {
	tx      port.TxManager
	clock   port.Clock
	metrics *Metrics
	logger  *slog.Logger
}

// NewMarkLoanDefaultedUseCase wires dependencies.
func NewMarkLoanDefaultedUseCase(tx port.TxManager, clock port.Clock, metrics *Metrics, logger *slog.Logger) *MarkLoanDefaultedUseCase {
	return &MarkLoanDefaultedUseCase{tx: tx, clock: clock, metrics: orNoop(metrics), logger: logger}
}

// Execute moves an Active loan to Defaulted.
func (uc *MarkLoanDefaultedUseCase) Execute(ctx context.Context, req dto.LoanActionRequest) (dto.LoanResponse, error) {
	var out model.Loan
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		loan, err := s.Loans().GetForUpdate(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		if out, err = loan.MarkDefaulted(model.Actor(req.Actor), req.Reason, uc.clock.Now()); err != nil {
			return fmt.Errorf("default loan: %w", err)
		}
		if err := s.Loans().Save(ctx, out); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		return recordEvents(ctx, s, out.DomainEvents()...)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}

	uc.metrics.transition(ctx, "default")
	uc.logger.WarnContext(ctx, "loan defaulted", "loan_id", out.ID(), "reason", req.Reason)
	return toLoanDTO(out), nil
}
