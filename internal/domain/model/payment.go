package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/money"
)

// Payment is an immutable collection against a loan. Corrections are new
// records, never edits.
type Payment struct {
	id          string
	loanID      string
	amount      decimal.Decimal
	paymentDate valueobject.BusinessDate
	recordedBy  Actor
	createdAt   time.Time
}

// NewPayment validates and creates a payment row.
func NewPayment(loanID string, amount decimal.Decimal, on valueobject.BusinessDate, by Actor, now time.Time) (Payment, error) {
	if loanID == "" {
		return Payment{}, fmt.Errorf("%w: loan ID is required", ErrValidation)
	}
	if err := ValidateAmount(amount); err != nil {
		return Payment{}, err
	}
	if err := by.Validate(); err != nil {
		return Payment{}, err
	}
	if on.IsZero() {
		return Payment{}, fmt.Errorf("%w: payment date is required", ErrValidation)
	}
	return Payment{
		id:          uuid.New().String(),
		loanID:      loanID,
		amount:      amount,
		paymentDate: on,
		recordedBy:  by,
		createdAt:   now,
	}, nil
}

// ReconstructPayment rebuilds a Payment from persistence.
func ReconstructPayment(id, loanID string, amount decimal.Decimal, on valueobject.BusinessDate, by Actor, createdAt time.Time) Payment {
	return Payment{
		id:          id,
		loanID:      loanID,
		amount:      amount,
		paymentDate: on,
		recordedBy:  by,
		createdAt:   createdAt,
	}
}

func (p Payment) ID() string                            { return p.id }
func (p Payment) LoanID() string                        { return p.loanID }
func (p Payment) Amount() decimal.Decimal               { return p.amount }
func (p Payment) PaymentDate() valueobject.BusinessDate { return p.paymentDate }
func (p Payment) RecordedBy() Actor                     { return p.recordedBy }
func (p Payment) CreatedAt() time.Time                  { return p.createdAt }

// TotalPaid sums payment amounts.
func TotalPaid(payments []Payment) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(payments))
	for i, p := range payments {
		amounts[i] = p.amount
	}
	return money.Sum(amounts...)
}

// ValidateAmount accepts strictly positive amounts with at most two decimal
// places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero, got %s", ErrValidation, amount)
	}
	if !amount.Equal(money.Round(amount)) {
		return fmt.Errorf("%w: amount %s has more than two decimal places", ErrValidation, amount)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Posting plan
// ---------------------------------------------------------------------------

// PostingPlan is what a requested payment turns into once checked against a
// loan's remaining balance.
type PostingPlan struct {
	Requested decimal.Decimal
	// Amount is what will actually be recorded.
	Amount    decimal.Decimal
	TotalPaid decimal.Decimal
	Remaining decimal.Decimal
	Clamped   bool
	Completes bool
}

// PlanPosting checks that l accepts payments and clamps requested to the
// remaining balance. paidSoFar is the sum of payments already recorded.
func (l Loan) PlanPosting(requested, paidSoFar decimal.Decimal) (PostingPlan, error) {
	if err := ValidateAmount(requested); err != nil {
		return PostingPlan{}, err
	}
	if !l.status.Equal(valueobject.LoanStatusActive) {
		return PostingPlan{}, fmt.Errorf("%w: loan %s is %s, payments require an active loan", ErrState, l.id, l.status)
	}

	remaining := l.RemainingBalance(paidSoFar)
	if !remaining.IsPositive() {
		return PostingPlan{}, fmt.Errorf("%w: loan %s has no remaining balance", ErrState, l.id)
	}

	amount := money.Min(requested, remaining)
	totalPaid := paidSoFar.Add(amount)
	return PostingPlan{
		Requested: requested,
		Amount:    amount,
		TotalPaid: totalPaid,
		Remaining: l.RemainingBalance(totalPaid),
		Clamped:   amount.LessThan(requested),
		Completes: l.IsSettledBy(totalPaid),
	}, nil
}
