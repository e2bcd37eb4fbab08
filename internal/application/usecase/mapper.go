package usecase

import (
	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/valueobject"
)

func toScheduleDTO(entries []model.AmortizationEntry) []dto.ScheduleEntryResponse {
	out := make([]dto.ScheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.ScheduleEntryResponse{
			Week:             e.Week,
			DueDate:          dateString(e.DueDate),
			ExpectedPayment:  e.ExpectedPayment,
			Principal:        e.Principal,
			Interest:         e.Interest,
			Insurance:        e.Insurance,
			Savings:          e.Savings,
			RemainingBalance: e.RemainingBalance,
		})
	}
	return out
}

func toQuoteDTO(res model.ScheduleResult) dto.QuoteResponse {
	return dto.QuoteResponse{
		Principal:        res.Principal,
		InterestRate:     res.InterestRate,
		TermWeeks:        res.TermWeeks,
		TermMonths:       res.TermMonths,
		TermLabel:        valueobject.TermLabel(res.TermWeeks),
		TotalInterest:    res.TotalInterest,
		InsuranceFee:     res.InsuranceFee,
		SavingsDeduction: res.SavingsDeduction,
		TotalLoanAmount:  res.TotalLoanAmount,
		WeeklyPayment:    res.WeeklyPaymentBase,
		Schedule:         toScheduleDTO(res.Entries),
	}
}

func toLoanDTO(l model.Loan) dto.LoanResponse {
	return dto.LoanResponse{
		ID:               l.ID(),
		ClientID:         l.ClientID(),
		Principal:        l.Principal(),
		InterestRate:     l.InterestRate(),
		TermWeeks:        l.TermWeeks(),
		TermMonths:       l.TermMonths(),
		TotalInterest:    l.TotalInterest(),
		InsuranceFee:     l.InsuranceFee(),
		SavingsDeduction: l.SavingsDeduction(),
		WeeklyPayment:    l.WeeklyPayment(),
		TotalLoanAmount:  l.TotalLoanAmount(),
		Status:           l.Status().String(),
		ApplicationDate:  dateString(l.ApplicationDate()),
		ApprovalDate:     dateString(l.ApprovalDate()),
		DisbursementDate: dateString(l.DisbursementDate()),
		CompletionDate:   dateString(l.CompletionDate()),
		AppliedBy:        l.AppliedBy().String(),
		ApprovedBy:       l.ApprovedBy().String(),
		DisbursedBy:      l.DisbursedBy().String(),
		Version:          l.Version(),
	}
}

func toPaymentDTO(p model.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		ID:          p.ID(),
		LoanID:      p.LoanID(),
		Amount:      p.Amount(),
		PaymentDate: p.PaymentDate().String(),
		RecordedBy:  p.RecordedBy().String(),
		CreatedAt:   p.CreatedAt(),
	}
}

func toPaymentDTOs(payments []model.Payment) []dto.PaymentResponse {
	out := make([]dto.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentDTO(p))
	}
	return out
}

func toBlotterDTO(b model.CashBlotter) dto.BlotterResponse {
	resp := dto.BlotterResponse{
		Date:             b.Date().String(),
		OpeningBalance:   b.OpeningBalance(),
		TotalCollections: b.TotalCollections(),
		TotalReleases:    b.TotalReleases(),
		TotalExpenses:    b.TotalExpenses(),
		ClosingBalance:   b.ClosingBalance(),
		Status:           b.Status().String(),
		CreatedBy:        b.CreatedBy().String(),
		FinalizedBy:      b.FinalizedBy().String(),
		Version:          b.Version(),
	}
	if at := b.FinalizedAt(); !at.IsZero() {
		resp.FinalizedAt = &at
	}
	return resp
}

func toExpenseDTO(e model.Expense) dto.ExpenseResponse {
	return dto.ExpenseResponse{
		ID:          e.ID(),
		Date:        e.Date().String(),
		Amount:      e.Amount(),
		Description: e.Description(),
		RecordedBy:  e.RecordedBy().String(),
	}
}

func toSheetDTO(s model.CollectionSheet) dto.SheetResponse {
	items := s.Items()
	resp := dto.SheetResponse{
		ID:             s.ID(),
		OfficerID:      s.Officer().String(),
		CollectionDate: s.CollectionDate().String(),
		Status:         s.Status().String(),
		Items:          make([]dto.SheetItemResponse, 0, len(items)),
		TotalLoans:     len(items),
		CollectedLoans: s.CollectedCount(),
		TotalExpected:  s.TotalExpected(),
		TotalCollected: s.TotalCollected(),
		CollectionRate: s.CollectionRate(),
		CreatedBy:      s.CreatedBy().String(),
		SubmittedBy:    s.SubmittedBy().String(),
		ApprovedBy:     s.ApprovedBy().String(),
		Version:        s.Version(),
	}
	for _, it := range items {
		status := "pending"
		if it.IsCollected() {
			status = "collected"
		}
		resp.Items = append(resp.Items, dto.SheetItemResponse{
			LoanID:      it.LoanID,
			ClientID:    it.ClientID,
			Expected:    it.Expected,
			Collected:   it.Collected,
			Status:      status,
			PaymentID:   it.PaymentID,
			CollectedBy: it.CollectedBy.String(),
		})
	}
	if at := s.SubmittedAt(); !at.IsZero() {
		resp.SubmittedAt = &at
	}
	if at := s.ApprovedAt(); !at.IsZero() {
		resp.ApprovedAt = &at
	}
	return resp
}

func dateString(d valueobject.BusinessDate) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
