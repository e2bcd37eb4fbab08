package usecase

import (
	"context"
	"fmt"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/service"
	"github.com/fanders/microfinance/internal/domain/valueobject"
)

// GetOverdueLoansUseCase runs the overdue analysis over every Active loan.
type GetOverdueLoansUseCase struct {
	loans    port.LoanRepository
	analyzer *service.OverdueAnalyzer
	terms    model.LoanTerms
	clock    port.Clock
}

// NewGetOverdueLoansUseCase wires dependencies.
func NewGetOverdueLoansUseCase(loans port.LoanRepository, analyzer *service.OverdueAnalyzer, terms model.LoanTerms, clock port.Clock) *GetOverdueLoansUseCase {
	return &GetOverdueLoansUseCase{loans: loans, analyzer: analyzer, terms: terms, clock: clock}
}

func (uc *GetOverdueLoansUseCase) Execute(ctx context.Context, req dto.OverdueLoansRequest) (dto.OverdueLoansResponse, error) {
	filter := service.OverdueFilter{
		ClientID:       req.ClientID,
		MinRemaining:   req.MinRemaining,
		MinDaysOverdue: req.MinDaysOverdue,
		Severity:       service.Severity(req.Severity),
	}
	switch filter.Severity {
	case "", service.SeverityLow, service.SeverityMedium, service.SeverityHigh, service.SeverityCritical:
	default:
		return dto.OverdueLoansResponse{}, fmt.Errorf("%w: unknown severity %q", model.ErrValidation, req.Severity)
	}

	active, err := uc.loans.ListByStatus(ctx, valueobject.LoanStatusActive)
	if err != nil {
		return dto.OverdueLoansResponse{}, fmt.Errorf("list active loans: %w", err)
	}

	positions := make([]service.LoanPosition, 0, len(active))
	for _, loan := range active {
		payments, err := uc.loans.ListPayments(ctx, loan.ID())
		if err != nil {
			return dto.OverdueLoansResponse{}, fmt.Errorf("list payments for %s: %w", loan.ID(), err)
		}
		pos := service.LoanPosition{
			Loan:         loan,
			TotalPaid:    model.TotalPaid(payments),
			PaymentsMade: len(payments),
		}
		for _, p := range payments {
			if p.PaymentDate().After(pos.LastPaymentDate) {
				pos.LastPaymentDate = p.PaymentDate()
			}
		}
		positions = append(positions, pos)
	}

	today := uc.clock.Today()
	overdue := uc.analyzer.Analyze(positions, today, filter)
	stats := uc.analyzer.Statistics(overdue)

	resp := dto.OverdueLoansResponse{
		AsOf:  today.String(),
		Loans: make([]dto.OverdueLoanResponse, 0, len(overdue)),
		Statistics: dto.OverdueStatisticsResponse{
			TotalOverdue:          stats.TotalOverdue,
			TotalOverdueAmount:    stats.TotalOverdueAmount,
			TotalRemainingBalance: stats.TotalRemainingBalance,
			AverageDaysOverdue:    stats.AverageDaysOverdue,
			CollectionRate:        stats.CollectionRate,
			BySeverity:            make(map[string]int, len(stats.BySeverity)),
		},
	}
	for sev, n := range stats.BySeverity {
		resp.Statistics.BySeverity[string(sev)] = n
	}
	for _, o := range overdue {
		item := dto.OverdueLoanResponse{
			LoanID:                 o.LoanID,
			ClientID:               o.ClientID,
			DisbursementDate:       o.DisbursementDate.String(),
			NextExpectedPayment:    o.NextExpectedPayment.String(),
			ExpectedWeeklyPayment:  o.ExpectedWeeklyPayment,
			ExpectedAmountPaid:     o.ExpectedAmountPaid,
			TotalPaid:              o.TotalPaid,
			PaymentShortfall:       o.PaymentShortfall,
			RemainingBalance:       o.RemainingBalance,
			PercentagePaid:         o.PercentagePaid,
			LatePenalty:            model.LatePenalty(uc.terms, o.ExpectedWeeklyPayment, o.DaysOverdue),
			WeeksSinceDisbursement: o.WeeksSinceDisbursement,
			PaymentsMade:           o.PaymentsMade,
			WeeksBehind:            o.WeeksBehind,
			DaysOverdue:            o.DaysOverdue,
			Severity:               string(o.Severity),
			SeverityLabel:          o.Severity.Label(),
		}
		if o.DaysSinceLastPayment >= 0 {
			days := o.DaysSinceLastPayment
			item.DaysSinceLastPayment = &days
		}
		resp.Loans = append(resp.Loans, item)
	}
	return resp, nil
}
