package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/events"
)

// ---------------------------------------------------------------------------
// Repository ports (driven/secondary adapters)
// ---------------------------------------------------------------------------

// LoanRepository persists loans and the payments they own. Lookups of a
// missing loan return an error wrapping model.ErrNotFound; driver failures
// wrap model.ErrPersistence.
type LoanRepository interface {
	Get(ctx context.Context, id string) (model.Loan, error)
	// GetForUpdate loads the loan and holds a row lock on it until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (model.Loan, error)
	// Save inserts or updates the loan. An update whose version no longer
	// matches the stored row fails with model.ErrPersistence.
	Save(ctx context.Context, loan model.Loan) error
	ListByStatus(ctx context.Context, status valueobject.LoanStatus) ([]model.Loan, error)

	InsertPayment(ctx context.Context, p model.Payment) error
	ListPayments(ctx context.Context, loanID string) ([]model.Payment, error)
	// SumPaymentsOn totals every payment dated on.
	SumPaymentsOn(ctx context.Context, on valueobject.BusinessDate) (decimal.Decimal, error)
	// SumReleasesOn totals the principal of loans disbursed on.
	SumReleasesOn(ctx context.Context, on valueobject.BusinessDate) (decimal.Decimal, error)
}

// BlotterRepository persists cash blotters and their expense lines.
type BlotterRepository interface {
	GetByDate(ctx context.Context, on valueobject.BusinessDate) (model.CashBlotter, error)
	GetByDateForUpdate(ctx context.Context, on valueobject.BusinessDate) (model.CashBlotter, error)
	// Create inserts b unless a blotter for its date already exists. It
	// reports whether a row was inserted.
	Create(ctx context.Context, b model.CashBlotter) (bool, error)
	Save(ctx context.Context, b model.CashBlotter) error
	// ListRange returns blotters dated within [from, to], oldest first.
	ListRange(ctx context.Context, from, to valueobject.BusinessDate) ([]model.CashBlotter, error)
	Latest(ctx context.Context) (model.CashBlotter, error)

	InsertExpense(ctx context.Context, e model.Expense) error
	ListExpenses(ctx context.Context, on valueobject.BusinessDate) ([]model.Expense, error)
}

// CollectionSheetFilter narrows a sheet listing. Zero fields match anything.
type CollectionSheetFilter struct {
	Officer model.Actor
	Status  valueobject.SheetStatus
	From    valueobject.BusinessDate
	To      valueobject.BusinessDate
}

// CollectionSheetRepository persists collection sheets with their lines.
type CollectionSheetRepository interface {
	Get(ctx context.Context, id string) (model.CollectionSheet, error)
	GetForUpdate(ctx context.Context, id string) (model.CollectionSheet, error)
	// Create inserts s unless its officer already has a sheet for the same
	// day. It reports whether a row was inserted.
	Create(ctx context.Context, s model.CollectionSheet) (bool, error)
	// Save updates the sheet and replaces its lines. A stale version fails
	// with model.ErrPersistence.
	Save(ctx context.Context, s model.CollectionSheet) error
	// List returns matching sheets, newest collection date first.
	List(ctx context.Context, f CollectionSheetFilter) ([]model.CollectionSheet, error)
}

// ---------------------------------------------------------------------------
// Unit of work
// ---------------------------------------------------------------------------

// Store groups the repositories bound to one transaction.
type Store interface {
	Loans() LoanRepository
	Blotters() BlotterRepository
	CollectionSheets() CollectionSheetRepository
	Outbox() events.OutboxRepository
}

// TxManager runs fn as one atomic unit. Everything fn writes through s is
// committed when fn returns nil and discarded otherwise.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// ---------------------------------------------------------------------------
// Other driven ports
// ---------------------------------------------------------------------------

// Clock supplies the current time and business day.
type Clock interface {
	Now() time.Time
	Today() valueobject.BusinessDate
}

// QuoteCache memoises amortization results by their inputs.
type QuoteCache interface {
	Get(ctx context.Context, principal decimal.Decimal, termWeeks, termMonths int) (model.ScheduleResult, bool, error)
	Set(ctx context.Context, res model.ScheduleResult) error
}

// EventPublisher ships outbox entries to external consumers.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, entries ...events.OutboxEntry) error
}
