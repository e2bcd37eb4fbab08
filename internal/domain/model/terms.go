package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LoanTerms are the institution-wide lending constants. They are injected
// from configuration and treated as fixed inputs by every calculation.
type LoanTerms struct {
	// InterestRate is charged per month on the principal.
	InterestRate decimal.Decimal
	InsuranceFee decimal.Decimal
	// SavingsRate is the share of principal collected as compulsory savings.
	SavingsRate decimal.Decimal

	MinPrincipal decimal.Decimal
	MaxPrincipal decimal.Decimal
	MinTermWeeks int
	MaxTermWeeks int

	DefaultTermWeeks  int
	DefaultTermMonths int

	// LatePenaltyRatePerDay is applied to one weekly payment per day late.
	LatePenaltyRatePerDay decimal.Decimal
}

// DefaultLoanTerms returns the standard product: 6% monthly interest over
// 4 months paid in 17 weekly instalments, a 425.00 insurance fee and 1%
// savings.
func DefaultLoanTerms() LoanTerms {
	return LoanTerms{
		InterestRate:          decimal.RequireFromString("0.06"),
		InsuranceFee:          decimal.NewFromInt(425),
		SavingsRate:           decimal.RequireFromString("0.01"),
		MinPrincipal:          decimal.NewFromInt(5000),
		MaxPrincipal:          decimal.NewFromInt(50000),
		MinTermWeeks:          4,
		MaxTermWeeks:          52,
		DefaultTermWeeks:      17,
		DefaultTermMonths:     4,
		LatePenaltyRatePerDay: decimal.RequireFromString("0.02"),
	}
}

// Validate rejects term sets that would make every calculation meaningless.
func (t LoanTerms) Validate() error {
	switch {
	case t.InterestRate.IsNegative():
		return fmt.Errorf("%w: interest rate must not be negative", ErrValidation)
	case t.InsuranceFee.IsNegative():
		return fmt.Errorf("%w: insurance fee must not be negative", ErrValidation)
	case t.SavingsRate.IsNegative():
		return fmt.Errorf("%w: savings rate must not be negative", ErrValidation)
	case t.LatePenaltyRatePerDay.IsNegative():
		return fmt.Errorf("%w: late penalty rate must not be negative", ErrValidation)
	case !t.MinPrincipal.IsPositive() || t.MaxPrincipal.LessThan(t.MinPrincipal):
		return fmt.Errorf("%w: principal bounds [%s, %s] are invalid", ErrValidation, t.MinPrincipal, t.MaxPrincipal)
	case t.MinTermWeeks <= 0 || t.MaxTermWeeks < t.MinTermWeeks:
		return fmt.Errorf("%w: term bounds [%d, %d] weeks are invalid", ErrValidation, t.MinTermWeeks, t.MaxTermWeeks)
	case t.DefaultTermWeeks < t.MinTermWeeks || t.DefaultTermWeeks > t.MaxTermWeeks:
		return fmt.Errorf("%w: default term %d weeks is outside bounds", ErrValidation, t.DefaultTermWeeks)
	case t.DefaultTermMonths <= 0:
		return fmt.Errorf("%w: default term months must be positive", ErrValidation)
	}
	return nil
}
