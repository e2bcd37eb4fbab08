package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/event"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/money"
)

// ---------------------------------------------------------------------------
// CashBlotter aggregate root
// ---------------------------------------------------------------------------

// CashBlotter is the cash record of one business day. While Draft its closing
// balance always equals
//
//	round(opening + collections - releases - expenses, 2)
//
// and once Finalized it never changes again.
type CashBlotter struct {
	date             valueobject.BusinessDate
	openingBalance   decimal.Decimal
	totalCollections decimal.Decimal
	totalReleases    decimal.Decimal
	totalExpenses    decimal.Decimal
	closingBalance   decimal.Decimal
	status           valueobject.BlotterStatus
	createdBy        Actor
	finalizedBy      Actor
	finalizedAt      time.Time
	version          int
	createdAt        time.Time
	updatedAt        time.Time
	domainEvents     []event.DomainEvent
}

// CashBlotterRecord carries every persisted column of a blotter.
type CashBlotterRecord struct {
	Date             valueobject.BusinessDate
	OpeningBalance   decimal.Decimal
	TotalCollections decimal.Decimal
	TotalReleases    decimal.Decimal
	TotalExpenses    decimal.Decimal
	ClosingBalance   decimal.Decimal
	Status           valueobject.BlotterStatus
	CreatedBy        Actor
	FinalizedBy      Actor
	FinalizedAt      time.Time
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewCashBlotter opens the blotter for date. prior is the entry for the day
// before, or nil when there is none. The opening balance carries forward
// only from a Finalized prior day; an unfinalized chain restarts at zero.
func NewCashBlotter(date valueobject.BusinessDate, prior *CashBlotter, by Actor, now time.Time) (CashBlotter, error) {
	if date.IsZero() {
		return CashBlotter{}, fmt.Errorf("%w: blotter date is required", ErrValidation)
	}
	if err := by.Validate(); err != nil {
		return CashBlotter{}, err
	}
	if prior != nil && !prior.date.Equal(date.Prev()) {
		return CashBlotter{}, fmt.Errorf("%w: prior blotter %s does not precede %s", ErrValidation, prior.date, date)
	}

	opening := decimal.Zero
	if prior != nil && prior.IsFinalized() {
		opening = prior.closingBalance
	}

	b := CashBlotter{
		date:             date,
		openingBalance:   opening,
		totalCollections: decimal.Zero,
		totalReleases:    decimal.Zero,
		totalExpenses:    decimal.Zero,
		status:           valueobject.BlotterStatusDraft,
		createdBy:        by,
		version:          1,
		createdAt:        now,
		updatedAt:        now,
	}
	b.closingBalance = b.ExpectedClosing()
	return b, nil
}

// ReconstructCashBlotter rebuilds a CashBlotter from persistence. The stored
// closing balance is kept as-is so Finalize can detect drift.
func ReconstructCashBlotter(r CashBlotterRecord) CashBlotter {
	return CashBlotter{
		date:             r.Date,
		openingBalance:   r.OpeningBalance,
		totalCollections: r.TotalCollections,
		totalReleases:    r.TotalReleases,
		totalExpenses:    r.TotalExpenses,
		closingBalance:   r.ClosingBalance,
		status:           r.Status,
		createdBy:        r.CreatedBy,
		finalizedBy:      r.FinalizedBy,
		finalizedAt:      r.FinalizedAt,
		version:          r.Version,
		createdAt:        r.CreatedAt,
		updatedAt:        r.UpdatedAt,
	}
}

// Record flattens the blotter for persistence.
func (b CashBlotter) Record() CashBlotterRecord {
	return CashBlotterRecord{
		Date:             b.date,
		OpeningBalance:   b.openingBalance,
		TotalCollections: b.totalCollections,
		TotalReleases:    b.totalReleases,
		TotalExpenses:    b.totalExpenses,
		ClosingBalance:   b.closingBalance,
		Status:           b.status,
		CreatedBy:        b.createdBy,
		FinalizedBy:      b.finalizedBy,
		FinalizedAt:      b.finalizedAt,
		Version:          b.version,
		CreatedAt:        b.createdAt,
		UpdatedAt:        b.updatedAt,
	}
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// WithCollections replaces total_collections with the day's payment sum.
func (b CashBlotter) WithCollections(total decimal.Decimal, now time.Time) (CashBlotter, error) {
	next, err := b.mutable("recompute collections", total, now)
	if err != nil {
		return b, err
	}
	next.totalCollections = total
	next.closingBalance = next.ExpectedClosing()
	return next, nil
}

// WithReleases replaces total_loan_releases with the principal disbursed on
// the day.
func (b CashBlotter) WithReleases(total decimal.Decimal, now time.Time) (CashBlotter, error) {
	next, err := b.mutable("recompute releases", total, now)
	if err != nil {
		return b, err
	}
	next.totalReleases = total
	next.closingBalance = next.ExpectedClosing()
	return next, nil
}

// WithExpenses replaces total_expenses with the sum of the day's expense
// lines.
func (b CashBlotter) WithExpenses(total decimal.Decimal, now time.Time) (CashBlotter, error) {
	next, err := b.mutable("recompute expenses", total, now)
	if err != nil {
		return b, err
	}
	next.totalExpenses = total
	next.closingBalance = next.ExpectedClosing()
	return next, nil
}

// AddExpense adds one expense line to the day.
func (b CashBlotter) AddExpense(e Expense, now time.Time) (CashBlotter, error) {
	if !e.date.Equal(b.date) {
		return b, fmt.Errorf("%w: expense dated %s cannot be added to blotter %s", ErrValidation, e.date, b.date)
	}
	next, err := b.mutable("add expense", e.amount, now)
	if err != nil {
		return b, err
	}
	next.totalExpenses = b.totalExpenses.Add(e.amount)
	next.closingBalance = next.ExpectedClosing()
	next.domainEvents = append(next.domainEvents, event.NewExpenseRecorded(
		b.date.String(), e.id, e.amount, e.description, e.recordedBy.String(), now,
	))
	return next, nil
}

// Finalize locks the day after re-deriving the closing balance from its
// components.
func (b CashBlotter) Finalize(by Actor, now time.Time) (CashBlotter, error) {
	if err := by.Validate(); err != nil {
		return b, err
	}
	if b.IsFinalized() {
		return b, fmt.Errorf("%w: blotter %s is already finalized", ErrState, b.date)
	}
	if expected := b.ExpectedClosing(); !money.EqualCents(b.closingBalance, expected) {
		return b, fmt.Errorf("%w: blotter %s closing balance %s does not reconcile, expected %s",
			ErrIntegrity, b.date, money.Format(b.closingBalance), money.Format(expected))
	}

	next := b
	next.status = valueobject.BlotterStatusFinalized
	next.finalizedBy = by
	next.finalizedAt = now
	next.updatedAt = now
	next.domainEvents = copyEvents(b.domainEvents)
	next.domainEvents = append(next.domainEvents, event.NewBlotterFinalized(
		b.date.String(), b.openingBalance, b.closingBalance, by.String(), now,
	))
	return next, nil
}

func (b CashBlotter) mutable(op string, amount decimal.Decimal, now time.Time) (CashBlotter, error) {
	if b.IsFinalized() {
		return b, fmt.Errorf("%w: cannot %s on finalized blotter %s", ErrState, op, b.date)
	}
	if amount.IsNegative() {
		return b, fmt.Errorf("%w: %s: amount must not be negative, got %s", ErrValidation, op, amount)
	}
	next := b
	next.updatedAt = now
	next.domainEvents = copyEvents(b.domainEvents)
	return next, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// ExpectedClosing derives the closing balance from the components.
func (b CashBlotter) ExpectedClosing() decimal.Decimal {
	return money.Round(money.Sum(b.openingBalance, b.totalCollections, b.totalReleases.Neg(), b.totalExpenses.Neg()))
}

// NetFlow is collections minus releases and expenses.
func (b CashBlotter) NetFlow() decimal.Decimal {
	return b.totalCollections.Sub(b.totalReleases).Sub(b.totalExpenses)
}

func (b CashBlotter) IsFinalized() bool {
	return b.status.Equal(valueobject.BlotterStatusFinalized)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (b CashBlotter) Date() valueobject.BusinessDate    { return b.date }
func (b CashBlotter) OpeningBalance() decimal.Decimal   { return b.openingBalance }
func (b CashBlotter) TotalCollections() decimal.Decimal { return b.totalCollections }
func (b CashBlotter) TotalReleases() decimal.Decimal    { return b.totalReleases }
func (b CashBlotter) TotalExpenses() decimal.Decimal    { return b.totalExpenses }
func (b CashBlotter) ClosingBalance() decimal.Decimal   { return b.closingBalance }
func (b CashBlotter) Status() valueobject.BlotterStatus { return b.status }
func (b CashBlotter) CreatedBy() Actor                  { return b.createdBy }
func (b CashBlotter) FinalizedBy() Actor                { return b.finalizedBy }
func (b CashBlotter) FinalizedAt() time.Time            { return b.finalizedAt }
func (b CashBlotter) Version() int                      { return b.version }
func (b CashBlotter) CreatedAt() time.Time              { return b.createdAt }
func (b CashBlotter) UpdatedAt() time.Time              { return b.updatedAt }
func (b CashBlotter) DomainEvents() []event.DomainEvent { return b.domainEvents }

// ClearEvents returns a copy with an empty event list.
func (b CashBlotter) ClearEvents() CashBlotter {
	next := b
	next.domainEvents = nil
	return next
}
