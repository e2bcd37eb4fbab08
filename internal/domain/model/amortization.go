package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/money"
)

// AmortizationEntry is an immutable value object representing one week of a
// repayment schedule.
type AmortizationEntry struct {
	DueDate          valueobject.BusinessDate
	ExpectedPayment  decimal.Decimal
	Principal        decimal.Decimal
	Interest         decimal.Decimal
	Insurance        decimal.Decimal
	Savings          decimal.Decimal
	RemainingBalance decimal.Decimal
	Week             int
}

// ScheduleResult is the full output of a loan calculation.
type ScheduleResult struct {
	Principal         decimal.Decimal
	InterestRate      decimal.Decimal
	TotalInterest     decimal.Decimal
	InsuranceFee      decimal.Decimal
	SavingsDeduction  decimal.Decimal
	TotalLoanAmount   decimal.Decimal
	WeeklyPaymentBase decimal.Decimal
	Entries           []AmortizationEntry
	TermWeeks         int
	TermMonths        int
}

// AmortizationCalculator turns a principal and term into a flat-interest
// weekly schedule. It holds no mutable state and is safe for concurrent use.
type AmortizationCalculator struct {
	terms LoanTerms
}

// NewAmortizationCalculator validates terms and returns a calculator bound to them.
func NewAmortizationCalculator(terms LoanTerms) (*AmortizationCalculator, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	return &AmortizationCalculator{terms: terms}, nil
}

// Terms returns the constants the calculator was built with.
func (c *AmortizationCalculator) Terms() LoanTerms { return c.terms }

// Compute produces the schedule for principal over termWeeks weekly
// instalments spanning termMonths months of interest.
//
//	total_interest    = principal * rate * months
//	savings_deduction = principal * savings_rate
//	total_loan_amount = principal + total_interest + insurance_fee
//	weekly_payment    = round(total_loan_amount / weeks + savings_deduction, 2)
//
// Each component is split straight-line across the weeks and rounded down to
// cents; the final week takes whatever residual is left so every column sums
// exactly to its total and no week carries a negative component.
func (c *AmortizationCalculator) Compute(principal decimal.Decimal, termWeeks, termMonths int) (ScheduleResult, error) {
	if err := c.Validate(principal, termWeeks, termMonths); err != nil {
		return ScheduleResult{}, err
	}

	totalInterest := money.Round(principal.Mul(c.terms.InterestRate).Mul(decimal.NewFromInt(int64(termMonths))))
	insurance := money.Round(c.terms.InsuranceFee)
	savings := money.Round(principal.Mul(c.terms.SavingsRate))
	total := principal.Add(totalInterest).Add(insurance)

	weeks := decimal.NewFromInt(int64(termWeeks))
	weekly := money.Round(total.Div(weeks).Add(savings))

	entries := buildEntries(principal, totalInterest, insurance, savings, termWeeks)

	return ScheduleResult{
		Principal:         principal,
		InterestRate:      c.terms.InterestRate,
		TermWeeks:         termWeeks,
		TermMonths:        termMonths,
		TotalInterest:     totalInterest,
		InsuranceFee:      insurance,
		SavingsDeduction:  savings,
		TotalLoanAmount:   total,
		WeeklyPaymentBase: weekly,
		Entries:           entries,
	}, nil
}

// Validate checks a requested principal and term against the calculator's
// bounds without computing anything.
func (c *AmortizationCalculator) Validate(principal decimal.Decimal, termWeeks, termMonths int) error {
	if principal.LessThan(c.terms.MinPrincipal) || principal.GreaterThan(c.terms.MaxPrincipal) {
		return fmt.Errorf("%w: principal %s must be between %s and %s", ErrValidation,
			principal.String(), money.Format(c.terms.MinPrincipal), money.Format(c.terms.MaxPrincipal))
	}
	if !principal.Equal(money.Round(principal)) {
		return fmt.Errorf("%w: principal %s has more than two decimal places", ErrValidation, principal)
	}
	if termWeeks < c.terms.MinTermWeeks || termWeeks > c.terms.MaxTermWeeks {
		return fmt.Errorf("%w: term of %d weeks must be between %d and %d", ErrValidation,
			termWeeks, c.terms.MinTermWeeks, c.terms.MaxTermWeeks)
	}
	if termMonths <= 0 {
		return fmt.Errorf("%w: term months must be positive, got %d", ErrValidation, termMonths)
	}
	return nil
}

// buildEntries lays the four component totals out week by week.
func buildEntries(principal, interest, insurance, savings decimal.Decimal, weeks int) []AmortizationEntry {
	principalCol := straightLine(principal, weeks)
	interestCol := straightLine(interest, weeks)
	insuranceCol := straightLine(insurance, weeks)
	savingsCol := straightLine(savings, weeks)

	entries := make([]AmortizationEntry, weeks)
	remaining := principal.Add(interest).Add(insurance)
	for i := range entries {
		owed := principalCol[i].Add(interestCol[i]).Add(insuranceCol[i])
		remaining = remaining.Sub(owed)
		entries[i] = AmortizationEntry{
			Week:             i + 1,
			Principal:        principalCol[i],
			Interest:         interestCol[i],
			Insurance:        insuranceCol[i],
			Savings:          savingsCol[i],
			ExpectedPayment:  owed.Add(savingsCol[i]),
			RemainingBalance: remaining,
		}
	}
	return entries
}

// straightLine splits total into n parts truncated to cents, the last
// absorbing the residual. Truncation keeps the last part >= every other part.
func straightLine(total decimal.Decimal, n int) []decimal.Decimal {
	parts := make([]decimal.Decimal, n)
	per := total.Div(decimal.NewFromInt(int64(n))).RoundDown(money.Scale)
	for i := 0; i < n-1; i++ {
		parts[i] = per
	}
	parts[n-1] = total.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
	return parts
}

// WithDueDates returns a copy of the entries with week i due i*7 days after
// start.
func (r ScheduleResult) WithDueDates(start valueobject.BusinessDate) []AmortizationEntry {
	out := make([]AmortizationEntry, len(r.Entries))
	for i, e := range r.Entries {
		e.DueDate = start.AddDays(7 * e.Week)
		out[i] = e
	}
	return out
}

// OwedAfter returns the scheduled balance still owed once weeksPaid
// instalments have been collected on time. Savings is not part of it.
func (r ScheduleResult) OwedAfter(weeksPaid int) decimal.Decimal {
	switch {
	case weeksPaid <= 0:
		return r.TotalLoanAmount
	case weeksPaid >= len(r.Entries):
		return decimal.Zero
	default:
		return r.Entries[weeksPaid-1].RemainingBalance
	}
}

// LatePenalty is the charge for paying one weekly instalment daysLate days
// after its due date.
func LatePenalty(terms LoanTerms, weeklyPayment decimal.Decimal, daysLate int) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	return money.Round(weeklyPayment.Mul(terms.LatePenaltyRatePerDay).Mul(decimal.NewFromInt(int64(daysLate))))
}
