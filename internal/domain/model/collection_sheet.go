package model

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/event"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/money"
)

// ---------------------------------------------------------------------------
// CollectionSheet aggregate root
// ---------------------------------------------------------------------------

// CollectionItem is one loan on a sheet. Expected is fixed when the loan is
// added; Collected is the amount actually posted to the ledger, which may be
// less than requested after clamping.
type CollectionItem struct {
	LoanID      string
	ClientID    string
	Expected    decimal.Decimal
	Collected   decimal.Decimal
	PaymentID   string
	CollectedBy Actor
	CollectedAt time.Time
}

// IsCollected reports whether a payment has been posted for the line.
func (i CollectionItem) IsCollected() bool { return i.PaymentID != "" }

// CollectionSheet is a field officer's list of loans to collect on one day.
// Lines can be added and collected only while Draft. There is at most one
// sheet per officer per day.
type CollectionSheet struct {
	id             string
	officer        Actor
	collectionDate valueobject.BusinessDate
	status         valueobject.SheetStatus
	items          []CollectionItem
	createdBy      Actor
	submittedBy    Actor
	submittedAt    time.Time
	approvedBy     Actor
	approvedAt     time.Time
	version        int
	createdAt      time.Time
	updatedAt      time.Time
	domainEvents   []event.DomainEvent
}

// CollectionSheetRecord carries every persisted column of a sheet and its
// lines.
type CollectionSheetRecord struct {
	ID             string
	Officer        Actor
	CollectionDate valueobject.BusinessDate
	Status         valueobject.SheetStatus
	Items          []CollectionItem
	CreatedBy      Actor
	SubmittedBy    Actor
	SubmittedAt    time.Time
	ApprovedBy     Actor
	ApprovedAt     time.Time
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewCollectionSheet opens an empty Draft sheet for officer on date. A sheet
// cannot be opened for a day after today.
func NewCollectionSheet(officer Actor, date, today valueobject.BusinessDate, by Actor, now time.Time) (CollectionSheet, error) {
	if err := officer.Validate(); err != nil {
		return CollectionSheet{}, fmt.Errorf("%w: officer is required", ErrValidation)
	}
	if err := by.Validate(); err != nil {
		return CollectionSheet{}, err
	}
	if date.IsZero() {
		return CollectionSheet{}, fmt.Errorf("%w: collection date is required", ErrValidation)
	}
	if date.After(today) {
		return CollectionSheet{}, fmt.Errorf("%w: collection date %s is in the future", ErrValidation, date)
	}

	id := uuid.New().String()
	s := CollectionSheet{
		id:             id,
		officer:        officer,
		collectionDate: date,
		status:         valueobject.SheetStatusDraft,
		createdBy:      by,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}
	s.domainEvents = append(s.domainEvents, event.NewSheetCreated(id, officer.String(), date.String(), by.String(), now))
	return s, nil
}

// ReconstructCollectionSheet rebuilds a sheet from persistence.
func ReconstructCollectionSheet(r CollectionSheetRecord) CollectionSheet {
	return CollectionSheet{
		id:             r.ID,
		officer:        r.Officer,
		collectionDate: r.CollectionDate,
		status:         r.Status,
		items:          slices.Clone(r.Items),
		createdBy:      r.CreatedBy,
		submittedBy:    r.SubmittedBy,
		submittedAt:    r.SubmittedAt,
		approvedBy:     r.ApprovedBy,
		approvedAt:     r.ApprovedAt,
		version:        r.Version,
		createdAt:      r.CreatedAt,
		updatedAt:      r.UpdatedAt,
	}
}

// Record flattens the sheet for persistence.
func (s CollectionSheet) Record() CollectionSheetRecord {
	return CollectionSheetRecord{
		ID:             s.id,
		Officer:        s.officer,
		CollectionDate: s.collectionDate,
		Status:         s.status,
		Items:          slices.Clone(s.items),
		CreatedBy:      s.createdBy,
		SubmittedBy:    s.submittedBy,
		SubmittedAt:    s.submittedAt,
		ApprovedBy:     s.approvedBy,
		ApprovedAt:     s.approvedAt,
		Version:        s.version,
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
	}
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// AddLoan puts an Active loan on the sheet. The expected collection is one
// weekly payment, or the remaining balance when that is smaller.
func (s CollectionSheet) AddLoan(loan Loan, paidSoFar decimal.Decimal, now time.Time) (CollectionSheet, error) {
	if err := s.requireDraft("add loans"); err != nil {
		return s, err
	}
	if !loan.Status().Equal(valueobject.LoanStatusActive) {
		return s, fmt.Errorf("%w: loan %s is %s, only active loans can be collected", ErrState, loan.ID(), loan.Status())
	}
	if _, ok := s.Item(loan.ID()); ok {
		return s, fmt.Errorf("%w: loan %s is already on sheet %s", ErrValidation, loan.ID(), s.id)
	}

	next := s.mutate(now)
	next.items = append(slices.Clone(s.items), CollectionItem{
		LoanID:    loan.ID(),
		ClientID:  loan.ClientID(),
		Expected:  money.Min(loan.WeeklyPayment(), loan.RemainingBalance(paidSoFar)),
		Collected: decimal.Zero,
	})
	return next, nil
}

// CheckCollectable reports whether loanID can be collected on this sheet on
// day on. Callers check before posting so a refused line never reaches the
// ledger.
func (s CollectionSheet) CheckCollectable(loanID string, on valueobject.BusinessDate) error {
	if err := s.requireDraft("record collections"); err != nil {
		return err
	}
	if !on.Equal(s.collectionDate) {
		return fmt.Errorf("%w: sheet %s is for %s, cannot collect on %s", ErrState, s.id, s.collectionDate, on)
	}
	item, ok := s.Item(loanID)
	if !ok {
		return fmt.Errorf("%w: loan %s is not on sheet %s", ErrNotFound, loanID, s.id)
	}
	if item.IsCollected() {
		return fmt.Errorf("%w: loan %s was already collected on sheet %s", ErrState, loanID, s.id)
	}
	return nil
}

// RecordCollection marks the loan's line collected with the posted payment.
func (s CollectionSheet) RecordCollection(p Payment, now time.Time) (CollectionSheet, error) {
	if err := s.CheckCollectable(p.LoanID(), p.PaymentDate()); err != nil {
		return s, err
	}

	next := s.mutate(now)
	next.items = slices.Clone(s.items)
	i := slices.IndexFunc(next.items, func(it CollectionItem) bool { return it.LoanID == p.LoanID() })
	item := &next.items[i]
	item.Collected = p.Amount()
	item.PaymentID = p.ID()
	item.CollectedBy = p.RecordedBy()
	item.CollectedAt = now
	next.domainEvents = append(next.domainEvents, event.NewSheetCollected(
		s.id, p.LoanID(), p.ID(), item.Expected, item.Collected, now,
	))
	return next, nil
}

// Submit transitions Draft -> Submitted. An empty sheet cannot be submitted.
func (s CollectionSheet) Submit(by Actor, now time.Time) (CollectionSheet, error) {
	if err := by.Validate(); err != nil {
		return s, err
	}
	if err := s.requireDraft("submit"); err != nil {
		return s, err
	}
	if len(s.items) == 0 {
		return s, fmt.Errorf("%w: sheet %s has no loans", ErrValidation, s.id)
	}

	next := s.mutate(now)
	next.status = valueobject.SheetStatusSubmitted
	next.submittedBy = by
	next.submittedAt = now
	next.domainEvents = append(next.domainEvents, event.NewSheetSubmitted(
		s.id, s.TotalExpected(), s.TotalCollected(), by.String(), now,
	))
	return next, nil
}

// Approve transitions Submitted -> Approved.
func (s CollectionSheet) Approve(by Actor, now time.Time) (CollectionSheet, error) {
	if err := by.Validate(); err != nil {
		return s, err
	}
	if !s.status.Equal(valueobject.SheetStatusSubmitted) {
		return s, fmt.Errorf("%w: sheet %s is %s, only submitted sheets can be approved", ErrState, s.id, s.status)
	}

	next := s.mutate(now)
	next.status = valueobject.SheetStatusApproved
	next.approvedBy = by
	next.approvedAt = now
	next.domainEvents = append(next.domainEvents, event.NewSheetApproved(s.id, by.String(), now))
	return next, nil
}

func (s CollectionSheet) requireDraft(op string) error {
	if !s.status.Equal(valueobject.SheetStatusDraft) {
		return fmt.Errorf("%w: cannot %s, sheet %s is %s", ErrState, op, s.id, s.status)
	}
	return nil
}

func (s CollectionSheet) mutate(now time.Time) CollectionSheet {
	next := s
	next.updatedAt = now
	next.domainEvents = copyEvents(s.domainEvents)
	return next
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Item returns the line for loanID.
func (s CollectionSheet) Item(loanID string) (CollectionItem, bool) {
	for _, it := range s.items {
		if it.LoanID == loanID {
			return it, true
		}
	}
	return CollectionItem{}, false
}

// TotalExpected sums every line's expected collection.
func (s CollectionSheet) TotalExpected() decimal.Decimal {
	amounts := make([]decimal.Decimal, len(s.items))
	for i, it := range s.items {
		amounts[i] = it.Expected
	}
	return money.Sum(amounts...)
}

// TotalCollected sums what was actually posted.
func (s CollectionSheet) TotalCollected() decimal.Decimal {
	amounts := make([]decimal.Decimal, len(s.items))
	for i, it := range s.items {
		amounts[i] = it.Collected
	}
	return money.Sum(amounts...)
}

// CollectedCount is the number of lines with a posted payment.
func (s CollectionSheet) CollectedCount() int {
	n := 0
	for _, it := range s.items {
		if it.IsCollected() {
			n++
		}
	}
	return n
}

// CollectionRate is collected over expected as a percentage rounded to
// cents, zero for an empty sheet.
func (s CollectionSheet) CollectionRate() decimal.Decimal {
	expected := s.TotalExpected()
	if expected.IsZero() {
		return decimal.Zero
	}
	return money.Round(s.TotalCollected().Div(expected).Mul(money.Hundred))
}

func (s CollectionSheet) ID() string                               { return s.id }
func (s CollectionSheet) Officer() Actor                           { return s.officer }
func (s CollectionSheet) CollectionDate() valueobject.BusinessDate { return s.collectionDate }
func (s CollectionSheet) Status() valueobject.SheetStatus          { return s.status }
func (s CollectionSheet) Items() []CollectionItem                  { return slices.Clone(s.items) }
func (s CollectionSheet) CreatedBy() Actor                         { return s.createdBy }
func (s CollectionSheet) SubmittedBy() Actor                       { return s.submittedBy }
func (s CollectionSheet) SubmittedAt() time.Time                   { return s.submittedAt }
func (s CollectionSheet) ApprovedBy() Actor                        { return s.approvedBy }
func (s CollectionSheet) ApprovedAt() time.Time                    { return s.approvedAt }
func (s CollectionSheet) Version() int                             { return s.version }
func (s CollectionSheet) CreatedAt() time.Time                     { return s.createdAt }
func (s CollectionSheet) UpdatedAt() time.Time                     { return s.updatedAt }
func (s CollectionSheet) DomainEvents() []event.DomainEvent        { return s.domainEvents }

// ClearEvents returns a copy with an empty event list.
func (s CollectionSheet) ClearEvents() CollectionSheet {
	next := s
	next.domainEvents = nil
	return next
}
