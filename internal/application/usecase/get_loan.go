package usecase

import (
	"context"
	"fmt"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
)

// GetLoanUseCase returns a loan summary.
type GetLoanUseCase struct {
	loans port.LoanRepository
}

// NewGetLoanUseCase wires dependencies.
func NewGetLoanUseCase(loans port.LoanRepository) *GetLoanUseCase {
	return &GetLoanUseCase{loans: loans}
}

// Execute loads the loan, its payments and its schedule.
func (uc *GetLoanUseCase) Execute(ctx context.Context, req dto.GetLoanRequest) (dto.LoanSummaryResponse, error) {
	loan, err := uc.loans.Get(ctx, req.LoanID)
	if err != nil {
		return dto.LoanSummaryResponse{}, fmt.Errorf("find loan: %w", err)
	}
	payments, err := uc.loans.ListPayments(ctx, loan.ID())
	if err != nil {
		return dto.LoanSummaryResponse{}, fmt.Errorf("list payments: %w", err)
	}

	paid := model.TotalPaid(payments)
	return dto.LoanSummaryResponse{
		Loan:             toLoanDTO(loan),
		TotalPaid:        paid,
		RemainingBalance: loan.RemainingBalance(paid),
		PaymentCount:     len(payments),
		Payments:         toPaymentDTOs(payments),
		Schedule:         toScheduleDTO(loan.Schedule()),
	}, nil
}

// ListPaymentsUseCase lists a loan's payments.
type ListPaymentsUseCase struct {
	loans port.LoanRepository
}

// NewListPaymentsUseCase wires dependencies.
func NewListPaymentsUseCase(loans port.LoanRepository) *ListPaymentsUseCase {
	return &ListPaymentsUseCase{loans: loans}
}

// Execute fails with model.ErrNotFound for an unknown loan.
func (uc *ListPaymentsUseCase) Execute(ctx context.Context, req dto.GetLoanRequest) (dto.ListPaymentsResponse, error) {
	if _, err := uc.loans.Get(ctx, req.LoanID); err != nil {
		return dto.ListPaymentsResponse{}, fmt.Errorf("find loan: %w", err)
	}
	payments, err := uc.loans.ListPayments(ctx, req.LoanID)
	if err != nil {
		return dto.ListPaymentsResponse{}, fmt.Errorf("list payments: %w", err)
	}
	return dto.ListPaymentsResponse{
		LoanID:    req.LoanID,
		Payments:  toPaymentDTOs(payments),
		TotalPaid: model.TotalPaid(payments),
	}, nil
}
