package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/event"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/money"
)

// ---------------------------------------------------------------------------
// Loan aggregate root
// ---------------------------------------------------------------------------

// Loan is an immutable aggregate. Mutations return a new copy. The financial
// figures are fixed at application time and never recomputed from payments.
type Loan struct {
	id               string
	clientID         string
	principal        decimal.Decimal
	interestRate     decimal.Decimal
	termWeeks        int
	termMonths       int
	totalInterest    decimal.Decimal
	insuranceFee     decimal.Decimal
	savingsDeduction decimal.Decimal
	weeklyPayment    decimal.Decimal
	totalLoanAmount  decimal.Decimal
	status           valueobject.LoanStatus
	applicationDate  valueobject.BusinessDate
	approvalDate     valueobject.BusinessDate
	disbursementDate valueobject.BusinessDate
	completionDate   valueobject.BusinessDate
	appliedBy        Actor
	approvedBy       Actor
	disbursedBy      Actor
	version          int
	createdAt        time.Time
	updatedAt        time.Time
	domainEvents     []event.DomainEvent
}

// LoanRecord carries every persisted column of a loan. Repositories fill it
// and hand it to ReconstructLoan.
type LoanRecord struct {
	ID               string
	ClientID         string
	Principal        decimal.Decimal
	InterestRate     decimal.Decimal
	TermWeeks        int
	TermMonths       int
	TotalInterest    decimal.Decimal
	InsuranceFee     decimal.Decimal
	SavingsDeduction decimal.Decimal
	WeeklyPayment    decimal.Decimal
	TotalLoanAmount  decimal.Decimal
	Status           valueobject.LoanStatus
	ApplicationDate  valueobject.BusinessDate
	ApprovalDate     valueobject.BusinessDate
	DisbursementDate valueobject.BusinessDate
	CompletionDate   valueobject.BusinessDate
	AppliedBy        Actor
	ApprovedBy       Actor
	DisbursedBy      Actor
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewLoanApplication seeds a loan in Application status from a computed
// schedule.
func NewLoanApplication(
	clientID string,
	sched ScheduleResult,
	appliedBy Actor,
	on valueobject.BusinessDate,
	now time.Time,
) (Loan, error) {
	if clientID == "" {
		return Loan{}, fmt.Errorf("%w: client ID is required", ErrValidation)
	}
	if err := appliedBy.Validate(); err != nil {
		return Loan{}, err
	}
	if len(sched.Entries) == 0 || sched.TotalLoanAmount.IsZero() {
		return Loan{}, fmt.Errorf("%w: loan must be created from a computed schedule", ErrValidation)
	}
	if on.IsZero() {
		return Loan{}, fmt.Errorf("%w: application date is required", ErrValidation)
	}

	id := uuid.New().String()
	loan := Loan{
		id:               id,
		clientID:         clientID,
		principal:        sched.Principal,
		interestRate:     sched.InterestRate,
		termWeeks:        sched.TermWeeks,
		termMonths:       sched.TermMonths,
		totalInterest:    sched.TotalInterest,
		insuranceFee:     sched.InsuranceFee,
		savingsDeduction: sched.SavingsDeduction,
		weeklyPayment:    sched.WeeklyPaymentBase,
		totalLoanAmount:  sched.TotalLoanAmount,
		status:           valueobject.LoanStatusApplication,
		applicationDate:  on,
		appliedBy:        appliedBy,
		version:          1,
		createdAt:        now,
		updatedAt:        now,
	}
	loan.domainEvents = append(loan.domainEvents, event.NewLoanApplied(
		id, clientID, sched.Principal, sched.TotalLoanAmount, sched.WeeklyPaymentBase,
		sched.TermWeeks, appliedBy.String(), now,
	))
	return loan, nil
}

// ReconstructLoan rebuilds a Loan aggregate from persistence.
func ReconstructLoan(r LoanRecord) Loan {
	return Loan{
		id:               r.ID,
		clientID:         r.ClientID,
		principal:        r.Principal,
		interestRate:     r.InterestRate,
		termWeeks:        r.TermWeeks,
		termMonths:       r.TermMonths,
		totalInterest:    r.TotalInterest,
		insuranceFee:     r.InsuranceFee,
		savingsDeduction: r.SavingsDeduction,
		weeklyPayment:    r.WeeklyPayment,
		totalLoanAmount:  r.TotalLoanAmount,
		status:           r.Status,
		applicationDate:  r.ApplicationDate,
		approvalDate:     r.ApprovalDate,
		disbursementDate: r.DisbursementDate,
		completionDate:   r.CompletionDate,
		appliedBy:        r.AppliedBy,
		approvedBy:       r.ApprovedBy,
		disbursedBy:      r.DisbursedBy,
		version:          r.Version,
		createdAt:        r.CreatedAt,
		updatedAt:        r.UpdatedAt,
	}
}

// Record flattens the loan for persistence.
func (l Loan) Record() LoanRecord {
	return LoanRecord{
		ID:               l.id,
		ClientID:         l.clientID,
		Principal:        l.principal,
		InterestRate:     l.interestRate,
		TermWeeks:        l.termWeeks,
		TermMonths:       l.termMonths,
		TotalInterest:    l.totalInterest,
		InsuranceFee:     l.insuranceFee,
		SavingsDeduction: l.savingsDeduction,
		WeeklyPayment:    l.weeklyPayment,
		TotalLoanAmount:  l.totalLoanAmount,
		Status:           l.status,
		ApplicationDate:  l.applicationDate,
		ApprovalDate:     l.approvalDate,
		DisbursementDate: l.disbursementDate,
		CompletionDate:   l.completionDate,
		AppliedBy:        l.appliedBy,
		ApprovedBy:       l.approvedBy,
		DisbursedBy:      l.disbursedBy,
		Version:          l.version,
		CreatedAt:        l.createdAt,
		UpdatedAt:        l.updatedAt,
	}
}

// ---------------------------------------------------------------------------
// State transitions
// ---------------------------------------------------------------------------

// Approve transitions Application -> Approved.
func (l Loan) Approve(by Actor, on valueobject.BusinessDate, now time.Time) (Loan, error) {
	if err := by.Validate(); err != nil {
		return l, err
	}
	next, err := l.transition(valueobject.LoanEventApprove, now)
	if err != nil {
		return l, err
	}
	next.approvalDate = on
	next.approvedBy = by
	next.domainEvents = append(next.domainEvents, event.NewLoanApproved(l.id, on.String(), by.String(), now))
	return next, nil
}

// Disburse transitions Approved -> Active. The principal counts as a cash
// release on the disbursement date.
func (l Loan) Disburse(by Actor, on valueobject.BusinessDate, now time.Time) (Loan, error) {
	if err := by.Validate(); err != nil {
		return l, err
	}
	next, err := l.transition(valueobject.LoanEventDisburse, now)
	if err != nil {
		return l, err
	}
	next.disbursementDate = on
	next.disbursedBy = by
	next.domainEvents = append(next.domainEvents, event.NewLoanDisbursed(
		l.id, l.clientID, l.principal, on.String(), by.String(), now,
	))
	return next, nil
}

// Complete transitions Active -> Completed. It refuses while anything is
// still owed; totalPaid is the sum of every posted payment.
func (l Loan) Complete(totalPaid decimal.Decimal, on valueobject.BusinessDate, now time.Time) (Loan, error) {
	if !l.IsSettledBy(totalPaid) {
		return l, fmt.Errorf("%w: loan %s still owes %s", ErrState, l.id, money.Format(l.RemainingBalance(totalPaid)))
	}
	next, err := l.transition(valueobject.LoanEventComplete, now)
	if err != nil {
		return l, err
	}
	next.completionDate = on
	next.domainEvents = append(next.domainEvents, event.NewLoanCompleted(l.id, totalPaid, on.String(), now))
	return next, nil
}

// MarkDefaulted transitions Active -> Defaulted.
func (l Loan) MarkDefaulted(by Actor, reason string, now time.Time) (Loan, error) {
	if err := by.Validate(); err != nil {
		return l, err
	}
	next, err := l.transition(valueobject.LoanEventDefault, now)
	if err != nil {
		return l, err
	}
	next.domainEvents = append(next.domainEvents, event.NewLoanDefaulted(l.id, by.String(), reason, now))
	return next, nil
}

func (l Loan) transition(e valueobject.LoanEvent, now time.Time) (Loan, error) {
	status, err := l.status.Next(e)
	if err != nil {
		return l, fmt.Errorf("%w: loan %s: %w", ErrState, l.id, err)
	}
	next := l
	next.status = status
	next.updatedAt = now
	next.domainEvents = copyEvents(l.domainEvents)
	return next, nil
}

// ---------------------------------------------------------------------------
// Balance queries
// ---------------------------------------------------------------------------

// RemainingBalance is total_loan_amount minus totalPaid, never negative.
func (l Loan) RemainingBalance(totalPaid decimal.Decimal) decimal.Decimal {
	r := l.totalLoanAmount.Sub(totalPaid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// IsSettledBy reports whether totalPaid covers total_loan_amount at cent
// precision. Savings collections are not part of the threshold.
func (l Loan) IsSettledBy(totalPaid decimal.Decimal) bool {
	return money.Round(totalPaid).GreaterThanOrEqual(money.Round(l.totalLoanAmount))
}

// Schedule re-derives the weekly breakdown from the stored totals. Due dates
// are filled in once the loan has been disbursed.
func (l Loan) Schedule() []AmortizationEntry {
	if l.termWeeks <= 0 {
		return nil
	}
	entries := buildEntries(l.principal, l.totalInterest, l.insuranceFee, l.savingsDeduction, l.termWeeks)
	if !l.disbursementDate.IsZero() {
		for i := range entries {
			entries[i].DueDate = l.disbursementDate.AddDays(7 * entries[i].Week)
		}
	}
	return entries
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (l Loan) ID() string                                 { return l.id }
func (l Loan) ClientID() string                           { return l.clientID }
func (l Loan) Principal() decimal.Decimal                 { return l.principal }
func (l Loan) InterestRate() decimal.Decimal              { return l.interestRate }
func (l Loan) TermWeeks() int                             { return l.termWeeks }
func (l Loan) TermMonths() int                            { return l.termMonths }
func (l Loan) TotalInterest() decimal.Decimal             { return l.totalInterest }
func (l Loan) InsuranceFee() decimal.Decimal              { return l.insuranceFee }
func (l Loan) SavingsDeduction() decimal.Decimal          { return l.savingsDeduction }
func (l Loan) WeeklyPayment() decimal.Decimal             { return l.weeklyPayment }
func (l Loan) TotalLoanAmount() decimal.Decimal           { return l.totalLoanAmount }
func (l Loan) Status() valueobject.LoanStatus             { return l.status }
func (l Loan) ApplicationDate() valueobject.BusinessDate  { return l.applicationDate }
func (l Loan) ApprovalDate() valueobject.BusinessDate     { return l.approvalDate }
func (l Loan) DisbursementDate() valueobject.BusinessDate { return l.disbursementDate }
func (l Loan) CompletionDate() valueobject.BusinessDate   { return l.completionDate }
func (l Loan) AppliedBy() Actor                           { return l.appliedBy }
func (l Loan) ApprovedBy() Actor                          { return l.approvedBy }
func (l Loan) DisbursedBy() Actor                         { return l.disbursedBy }
func (l Loan) Version() int                               { return l.version }
func (l Loan) CreatedAt() time.Time                       { return l.createdAt }
func (l Loan) UpdatedAt() time.Time                       { return l.updatedAt }
func (l Loan) DomainEvents() []event.DomainEvent          { return l.domainEvents }

// ClearEvents returns a copy with an empty event list.
func (l Loan) ClearEvents() Loan {
	next := l
	next.domainEvents = nil
	return next
}

func copyEvents(src []event.DomainEvent) []event.DomainEvent {
	if src == nil {
		return nil
	}
	dst := make([]event.DomainEvent, len(src))
	copy(dst, src)
	return dst
}
