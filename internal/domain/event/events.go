package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/pkg/events"
)

// DomainEvent is an alias for the shared pkg/events.DomainEvent interface.
type DomainEvent = events.DomainEvent

const (
	AggregateLoan            = "Loan"
	AggregateBlotter         = "CashBlotter"
	AggregateCollectionSheet = "CollectionSheet"
)

// Event type names as they appear on the outbox and the Kafka topic.
const (
	TypeLoanApplied      = "ledger.loan.applied"
	TypeLoanApproved     = "ledger.loan.approved"
	TypeLoanDisbursed    = "ledger.loan.disbursed"
	TypeLoanCompleted    = "ledger.loan.completed"
	TypeLoanDefaulted    = "ledger.loan.defaulted"
	TypePaymentPosted    = "ledger.payment.posted"
	TypeExpenseRecorded  = "ledger.blotter.expense_recorded"
	TypeBlotterFinalized = "ledger.blotter.finalized"

	TypeSheetCreated   = "ledger.collection_sheet.created"
	TypeSheetCollected = "ledger.collection_sheet.collected"
	TypeSheetSubmitted = "ledger.collection_sheet.submitted"
	TypeSheetApproved  = "ledger.collection_sheet.approved"
)

// ---------------------------------------------------------------------------
// Loan Events
// ---------------------------------------------------------------------------

// LoanApplied is raised when a calculated loan enters the Application state.
type LoanApplied struct {
	events.BaseEvent
	ClientID        string          `json:"client_id"`
	Principal       decimal.Decimal `json:"principal"`
	TotalLoanAmount decimal.Decimal `json:"total_loan_amount"`
	WeeklyPayment   decimal.Decimal `json:"weekly_payment"`
	TermWeeks       int             `json:"term_weeks"`
	AppliedBy       string          `json:"applied_by"`
}

func NewLoanApplied(
	loanID, clientID string,
	principal, total, weekly decimal.Decimal,
	termWeeks int, appliedBy string, now time.Time,
) LoanApplied {
	return LoanApplied{
		BaseEvent:       events.NewBaseEvent(TypeLoanApplied, loanID, AggregateLoan, now),
		ClientID:        clientID,
		Principal:       principal,
		TotalLoanAmount: total,
		WeeklyPayment:   weekly,
		TermWeeks:       termWeeks,
		AppliedBy:       appliedBy,
	}
}

// LoanApproved is raised on Application -> Approved.
type LoanApproved struct {
	events.BaseEvent
	ApprovalDate string `json:"approval_date"`
	ApprovedBy   string `json:"approved_by"`
}

func NewLoanApproved(loanID, approvalDate, approvedBy string, now time.Time) LoanApproved {
	return LoanApproved{
		BaseEvent:    events.NewBaseEvent(TypeLoanApproved, loanID, AggregateLoan, now),
		ApprovalDate: approvalDate,
		ApprovedBy:   approvedBy,
	}
}

// LoanDisbursed is raised when the principal leaves the cash drawer and the
// loan becomes Active.
type LoanDisbursed struct {
	events.BaseEvent
	ClientID         string          `json:"client_id"`
	Principal        decimal.Decimal `json:"principal"`
	DisbursementDate string          `json:"disbursement_date"`
	DisbursedBy      string          `json:"disbursed_by"`
}

func NewLoanDisbursed(loanID, clientID string, principal decimal.Decimal, disbursementDate, disbursedBy string, now time.Time) LoanDisbursed {
	return LoanDisbursed{
		BaseEvent:        events.NewBaseEvent(TypeLoanDisbursed, loanID, AggregateLoan, now),
		ClientID:         clientID,
		Principal:        principal,
		DisbursementDate: disbursementDate,
		DisbursedBy:      disbursedBy,
	}
}

// LoanCompleted is raised in the same unit as the payment that settles the
// loan.
type LoanCompleted struct {
	events.BaseEvent
	TotalPaid      decimal.Decimal `json:"total_paid"`
	CompletionDate string          `json:"completion_date"`
}

func NewLoanCompleted(loanID string, totalPaid decimal.Decimal, completionDate string, now time.Time) LoanCompleted {
	return LoanCompleted{
		BaseEvent:      events.NewBaseEvent(TypeLoanCompleted, loanID, AggregateLoan, now),
		TotalPaid:      totalPaid,
		CompletionDate: completionDate,
	}
}

// LoanDefaulted is raised when collections gives up on an Active loan.
type LoanDefaulted struct {
	events.BaseEvent
	MarkedBy string `json:"marked_by"`
	Reason   string `json:"reason,omitempty"`
}

func NewLoanDefaulted(loanID, markedBy, reason string, now time.Time) LoanDefaulted {
	return LoanDefaulted{
		BaseEvent: events.NewBaseEvent(TypeLoanDefaulted, loanID, AggregateLoan, now),
		MarkedBy:  markedBy,
		Reason:    reason,
	}
}

// PaymentPosted is raised for every recorded payment. Amount is what was
// actually posted after clamping.
type PaymentPosted struct {
	events.BaseEvent
	PaymentID   string          `json:"payment_id"`
	Amount      decimal.Decimal `json:"amount"`
	Requested   decimal.Decimal `json:"requested"`
	PaymentDate string          `json:"payment_date"`
	RecordedBy  string          `json:"recorded_by"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Remaining   decimal.Decimal `json:"remaining"`
}

func NewPaymentPosted(
	loanID, paymentID string,
	amount, requested decimal.Decimal,
	paymentDate, recordedBy string,
	totalPaid, remaining decimal.Decimal,
	now time.Time,
) PaymentPosted {
	return PaymentPosted{
		BaseEvent:   events.NewBaseEvent(TypePaymentPosted, loanID, AggregateLoan, now),
		PaymentID:   paymentID,
		Amount:      amount,
		Requested:   requested,
		PaymentDate: paymentDate,
		RecordedBy:  recordedBy,
		TotalPaid:   totalPaid,
		Remaining:   remaining,
	}
}

// ---------------------------------------------------------------------------
// Cash Blotter Events
// ---------------------------------------------------------------------------

// ExpenseRecorded is raised for each expense line added to a day.
type ExpenseRecorded struct {
	events.BaseEvent
	ExpenseID   string          `json:"expense_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	RecordedBy  string          `json:"recorded_by"`
}

func NewExpenseRecorded(blotterDate, expenseID string, amount decimal.Decimal, description, recordedBy string, now time.Time) ExpenseRecorded {
	return ExpenseRecorded{
		BaseEvent:   events.NewBaseEvent(TypeExpenseRecorded, blotterDate, AggregateBlotter, now),
		ExpenseID:   expenseID,
		Amount:      amount,
		Description: description,
		RecordedBy:  recordedBy,
	}
}

// BlotterFinalized is raised when a day is locked.
type BlotterFinalized struct {
	events.BaseEvent
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	FinalizedBy    string          `json:"finalized_by"`
}

func NewBlotterFinalized(blotterDate string, opening, closing decimal.Decimal, finalizedBy string, now time.Time) BlotterFinalized {
	return BlotterFinalized{
		BaseEvent:      events.NewBaseEvent(TypeBlotterFinalized, blotterDate, AggregateBlotter, now),
		OpeningBalance: opening,
		ClosingBalance: closing,
		FinalizedBy:    finalizedBy,
	}
}

// ---------------------------------------------------------------------------
// Collection Sheet Events
// ---------------------------------------------------------------------------

// SheetCreated is raised when a field officer opens a sheet for a day.
type SheetCreated struct {
	events.BaseEvent
	OfficerID      string `json:"officer_id"`
	CollectionDate string `json:"collection_date"`
	CreatedBy      string `json:"created_by"`
}

func NewSheetCreated(sheetID, officerID, collectionDate, createdBy string, now time.Time) SheetCreated {
	return SheetCreated{
		BaseEvent:      events.NewBaseEvent(TypeSheetCreated, sheetID, AggregateCollectionSheet, now),
		OfficerID:      officerID,
		CollectionDate: collectionDate,
		CreatedBy:      createdBy,
	}
}

// SheetCollected is raised when a sheet line is collected. The matching
// PaymentPosted event carries the ledger side.
type SheetCollected struct {
	events.BaseEvent
	LoanID    string          `json:"loan_id"`
	PaymentID string          `json:"payment_id"`
	Expected  decimal.Decimal `json:"expected"`
	Collected decimal.Decimal `json:"collected"`
}

func NewSheetCollected(sheetID, loanID, paymentID string, expected, collected decimal.Decimal, now time.Time) SheetCollected {
	return SheetCollected{
		BaseEvent: events.NewBaseEvent(TypeSheetCollected, sheetID, AggregateCollectionSheet, now),
		LoanID:    loanID,
		PaymentID: paymentID,
		Expected:  expected,
		Collected: collected,
	}
}

// SheetSubmitted is raised on Draft -> Submitted.
type SheetSubmitted struct {
	events.BaseEvent
	TotalExpected  decimal.Decimal `json:"total_expected"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	SubmittedBy    string          `json:"submitted_by"`
}

func NewSheetSubmitted(sheetID string, expected, collected decimal.Decimal, submittedBy string, now time.Time) SheetSubmitted {
	return SheetSubmitted{
		BaseEvent:      events.NewBaseEvent(TypeSheetSubmitted, sheetID, AggregateCollectionSheet, now),
		TotalExpected:  expected,
		TotalCollected: collected,
		SubmittedBy:    submittedBy,
	}
}

// SheetApproved is raised on Submitted -> Approved.
type SheetApproved struct {
	events.BaseEvent
	ApprovedBy string `json:"approved_by"`
}

func NewSheetApproved(sheetID, approvedBy string, now time.Time) SheetApproved {
	return SheetApproved{
		BaseEvent:  events.NewBaseEvent(TypeSheetApproved, sheetID, AggregateCollectionSheet, now),
		ApprovedBy: approvedBy,
	}
}
