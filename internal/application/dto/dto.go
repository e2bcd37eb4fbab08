package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// QuoteLoanRequest asks for a schedule preview. Zero term fields fall back to
// the configured defaults; a zero TermMonths with a non-default TermWeeks is
// derived from the week count.
type QuoteLoanRequest struct {
	Principal  decimal.Decimal `json:"principal"`
	TermWeeks  int             `json:"term_weeks,omitempty"`
	TermMonths int             `json:"term_months,omitempty"`
}

// ApplyLoanRequest creates a loan in Application status.
type ApplyLoanRequest struct {
	ClientID   string          `json:"client_id"`
	Principal  decimal.Decimal `json:"principal"`
	TermWeeks  int             `json:"term_weeks,omitempty"`
	TermMonths int             `json:"term_months,omitempty"`
	Actor      string          `json:"-"`
}

// LoanActionRequest drives one lifecycle transition.
type LoanActionRequest struct {
	LoanID string `json:"loan_id"`
	Reason string `json:"reason,omitempty"`
	Actor  string `json:"-"`
}

// GetLoanRequest identifies a loan to retrieve.
type GetLoanRequest struct {
	LoanID string `json:"loan_id"`
}

// PostPaymentRequest records a collection against an Active loan.
type PostPaymentRequest struct {
	LoanID string          `json:"loan_id"`
	Amount decimal.Decimal `json:"amount"`
	Actor  string          `json:"-"`
}

// BlotterRequest addresses the blotter of one day. An empty Date means today.
type BlotterRequest struct {
	Date  string `json:"date,omitempty"`
	Actor string `json:"-"`
}

// AddExpenseRequest records one cash outflow on a day.
type AddExpenseRequest struct {
	Date        string          `json:"date,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Actor       string          `json:"-"`
}

// BlotterRangeRequest selects blotters within [From, To].
type BlotterRangeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RecalculateBlottersRequest refreshes every Draft blotter from From onwards.
type RecalculateBlottersRequest struct {
	From  string `json:"from"`
	Actor string `json:"-"`
}

// OverdueLoansRequest filters the overdue analysis.
type OverdueLoansRequest struct {
	ClientID       string          `json:"client_id,omitempty"`
	MinRemaining   decimal.Decimal `json:"min_remaining,omitempty"`
	MinDaysOverdue int             `json:"min_days_overdue,omitempty"`
	Severity       string          `json:"severity,omitempty"`
}

// CreateSheetRequest opens a collection sheet. An empty Date means today; an
// empty OfficerID means the caller.
type CreateSheetRequest struct {
	OfficerID string   `json:"officer_id,omitempty"`
	Date      string   `json:"date,omitempty"`
	LoanIDs   []string `json:"loan_ids,omitempty"`
	Actor     string   `json:"-"`
}

// AddSheetLoansRequest puts more loans on a Draft sheet.
type AddSheetLoansRequest struct {
	SheetID string   `json:"sheet_id"`
	LoanIDs []string `json:"loan_ids"`
	Actor   string   `json:"-"`
}

// RecordCollectionRequest collects one loan on a sheet.
type RecordCollectionRequest struct {
	SheetID string          `json:"sheet_id"`
	LoanID  string          `json:"loan_id"`
	Amount  decimal.Decimal `json:"amount"`
	Actor   string          `json:"-"`
}

// SheetActionRequest drives one sheet transition.
type SheetActionRequest struct {
	SheetID string `json:"sheet_id"`
	Actor   string `json:"-"`
}

// GetSheetRequest identifies a sheet to retrieve.
type GetSheetRequest struct {
	SheetID string `json:"sheet_id"`
}

// ListSheetsRequest filters sheets. Empty fields match anything.
type ListSheetsRequest struct {
	OfficerID string `json:"officer_id,omitempty"`
	Status    string `json:"status,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// ScheduleEntryResponse is one week of a repayment schedule.
type ScheduleEntryResponse struct {
	Week             int             `json:"week"`
	DueDate          string          `json:"due_date,omitempty"`
	ExpectedPayment  decimal.Decimal `json:"expected_payment"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	Insurance        decimal.Decimal `json:"insurance"`
	Savings          decimal.Decimal `json:"savings"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// QuoteResponse is a computed schedule that has not been persisted.
type QuoteResponse struct {
	Principal        decimal.Decimal         `json:"principal"`
	InterestRate     decimal.Decimal         `json:"interest_rate"`
	TermWeeks        int                     `json:"term_weeks"`
	TermMonths       int                     `json:"term_months"`
	TermLabel        string                  `json:"term_label"`
	TotalInterest    decimal.Decimal         `json:"total_interest"`
	InsuranceFee     decimal.Decimal         `json:"insurance_fee"`
	SavingsDeduction decimal.Decimal         `json:"savings_deduction"`
	TotalLoanAmount  decimal.Decimal         `json:"total_loan_amount"`
	WeeklyPayment    decimal.Decimal         `json:"weekly_payment"`
	Schedule         []ScheduleEntryResponse `json:"schedule"`
}

// TermOptionResponse is one selectable loan term.
type TermOptionResponse struct {
	Weeks    int    `json:"weeks"`
	Label    string `json:"label"`
	Standard bool   `json:"standard,omitempty"`
}

// LoanConfigResponse exposes the active lending constants.
type LoanConfigResponse struct {
	InterestRate          decimal.Decimal      `json:"interest_rate"`
	InsuranceFee          decimal.Decimal      `json:"insurance_fee"`
	SavingsRate           decimal.Decimal      `json:"savings_rate"`
	MinPrincipal          decimal.Decimal      `json:"min_principal"`
	MaxPrincipal          decimal.Decimal      `json:"max_principal"`
	MinTermWeeks          int                  `json:"min_term_weeks"`
	MaxTermWeeks          int                  `json:"max_term_weeks"`
	DefaultTermWeeks      int                  `json:"default_term_weeks"`
	DefaultTermMonths     int                  `json:"default_term_months"`
	LatePenaltyRatePerDay decimal.Decimal      `json:"late_penalty_rate_per_day"`
	TermOptions           []TermOptionResponse `json:"term_options"`
}

// LoanResponse is the external representation of a loan.
type LoanResponse struct {
	ID               string          `json:"id"`
	ClientID         string          `json:"client_id"`
	Principal        decimal.Decimal `json:"principal"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	TermWeeks        int             `json:"term_weeks"`
	TermMonths       int             `json:"term_months"`
	TotalInterest    decimal.Decimal `json:"total_interest"`
	InsuranceFee     decimal.Decimal `json:"insurance_fee"`
	SavingsDeduction decimal.Decimal `json:"savings_deduction"`
	WeeklyPayment    decimal.Decimal `json:"weekly_payment"`
	TotalLoanAmount  decimal.Decimal `json:"total_loan_amount"`
	Status           string          `json:"status"`
	ApplicationDate  string          `json:"application_date"`
	ApprovalDate     string          `json:"approval_date,omitempty"`
	DisbursementDate string          `json:"disbursement_date,omitempty"`
	CompletionDate   string          `json:"completion_date,omitempty"`
	AppliedBy        string          `json:"applied_by"`
	ApprovedBy       string          `json:"approved_by,omitempty"`
	DisbursedBy      string          `json:"disbursed_by,omitempty"`
	Version          int             `json:"version"`
}

// LoanSummaryResponse is a loan with its payment history and schedule.
type LoanSummaryResponse struct {
	Loan             LoanResponse            `json:"loan"`
	TotalPaid        decimal.Decimal         `json:"total_paid"`
	RemainingBalance decimal.Decimal         `json:"remaining_balance"`
	PaymentCount     int                     `json:"payment_count"`
	Payments         []PaymentResponse       `json:"payments"`
	Schedule         []ScheduleEntryResponse `json:"schedule"`
}

// PaymentResponse is the external representation of a payment.
type PaymentResponse struct {
	ID          string          `json:"id"`
	LoanID      string          `json:"loan_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date"`
	RecordedBy  string          `json:"recorded_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PostPaymentResponse reports what a posting actually recorded.
type PostPaymentResponse struct {
	Payment          PaymentResponse `json:"payment"`
	RequestedAmount  decimal.Decimal `json:"requested_amount"`
	Clamped          bool            `json:"clamped"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	LoanStatus       string          `json:"loan_status"`
}

// ListPaymentsResponse lists a loan's payments oldest first.
type ListPaymentsResponse struct {
	LoanID    string            `json:"loan_id"`
	Payments  []PaymentResponse `json:"payments"`
	TotalPaid decimal.Decimal   `json:"total_paid"`
}

// BlotterResponse is the external representation of a day's blotter.
type BlotterResponse struct {
	Date             string          `json:"date"`
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
	TotalCollections decimal.Decimal `json:"total_collections"`
	TotalReleases    decimal.Decimal `json:"total_loan_releases"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	ClosingBalance   decimal.Decimal `json:"closing_balance"`
	Status           string          `json:"status"`
	CreatedBy        string          `json:"created_by"`
	FinalizedBy      string          `json:"finalized_by,omitempty"`
	FinalizedAt      *time.Time      `json:"finalized_at,omitempty"`
	Version          int             `json:"version"`
}

// ExpenseResponse is one recorded expense line.
type ExpenseResponse struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	RecordedBy  string          `json:"recorded_by"`
}

// AddExpenseResponse returns the new line and the updated blotter.
type AddExpenseResponse struct {
	Expense ExpenseResponse `json:"expense"`
	Blotter BlotterResponse `json:"blotter"`
}

// CashFlowResponse totals a period.
type CashFlowResponse struct {
	Days         int             `json:"days"`
	TotalInflow  decimal.Decimal `json:"total_inflow"`
	TotalOutflow decimal.Decimal `json:"total_outflow"`
	NetFlow      decimal.Decimal `json:"net_flow"`
}

// BlotterRangeResponse lists blotters with their cash-flow summary.
type BlotterRangeResponse struct {
	Blotters []BlotterResponse `json:"blotters"`
	Summary  CashFlowResponse  `json:"summary"`
}

// RecalculateBlottersResponse reports which days were refreshed.
type RecalculateBlottersResponse struct {
	Refreshed []string `json:"refreshed"`
	Skipped   []string `json:"skipped_finalized"`
}

// CashAlertResponse is one drawer warning.
type CashAlertResponse struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// CashPositionResponse is the current drawer balance and its alerts.
type CashPositionResponse struct {
	AsOf      string              `json:"as_of,omitempty"`
	Balance   decimal.Decimal     `json:"balance"`
	Threshold decimal.Decimal     `json:"threshold"`
	Alerts    []CashAlertResponse `json:"alerts"`
}

// OverdueLoanResponse is one loan behind schedule.
type OverdueLoanResponse struct {
	LoanID                 string          `json:"loan_id"`
	ClientID               string          `json:"client_id"`
	DisbursementDate       string          `json:"disbursement_date"`
	NextExpectedPayment    string          `json:"next_expected_payment"`
	ExpectedWeeklyPayment  decimal.Decimal `json:"expected_weekly_payment"`
	ExpectedAmountPaid     decimal.Decimal `json:"expected_amount_paid"`
	TotalPaid              decimal.Decimal `json:"total_paid"`
	PaymentShortfall       decimal.Decimal `json:"payment_shortfall"`
	RemainingBalance       decimal.Decimal `json:"remaining_balance"`
	PercentagePaid         decimal.Decimal `json:"percentage_paid"`
	LatePenalty            decimal.Decimal `json:"late_penalty"`
	WeeksSinceDisbursement int             `json:"weeks_since_disbursement"`
	PaymentsMade           int             `json:"payments_made"`
	WeeksBehind            int             `json:"weeks_behind"`
	DaysOverdue            int             `json:"days_overdue"`
	DaysSinceLastPayment   *int            `json:"days_since_last_payment,omitempty"`
	Severity               string          `json:"severity"`
	SeverityLabel          string          `json:"severity_label"`
}

// OverdueStatisticsResponse summarises an overdue analysis.
type OverdueStatisticsResponse struct {
	TotalOverdue          int             `json:"total_overdue"`
	TotalOverdueAmount    decimal.Decimal `json:"total_overdue_amount"`
	TotalRemainingBalance decimal.Decimal `json:"total_remaining_balance"`
	AverageDaysOverdue    decimal.Decimal `json:"average_days_overdue"`
	BySeverity            map[string]int  `json:"severity_stats"`
	CollectionRate        decimal.Decimal `json:"collection_rate"`
}

// OverdueLoansResponse is the analysis plus its statistics.
type OverdueLoansResponse struct {
	AsOf       string                    `json:"as_of"`
	Loans      []OverdueLoanResponse     `json:"loans"`
	Statistics OverdueStatisticsResponse `json:"statistics"`
}

// SheetItemResponse is one loan line on a collection sheet.
type SheetItemResponse struct {
	LoanID      string          `json:"loan_id"`
	ClientID    string          `json:"client_id"`
	Expected    decimal.Decimal `json:"expected"`
	Collected   decimal.Decimal `json:"collected"`
	Status      string          `json:"status"`
	PaymentID   string          `json:"payment_id,omitempty"`
	CollectedBy string          `json:"collected_by,omitempty"`
}

// SheetResponse is a collection sheet with its lines and totals.
type SheetResponse struct {
	ID             string              `json:"id"`
	OfficerID      string              `json:"officer_id"`
	CollectionDate string              `json:"collection_date"`
	Status         string              `json:"status"`
	Items          []SheetItemResponse `json:"items"`
	TotalLoans     int                 `json:"total_loans"`
	CollectedLoans int                 `json:"collected_loans"`
	TotalExpected  decimal.Decimal     `json:"total_expected"`
	TotalCollected decimal.Decimal     `json:"total_collected"`
	CollectionRate decimal.Decimal     `json:"collection_rate"`
	CreatedBy      string              `json:"created_by"`
	SubmittedBy    string              `json:"submitted_by,omitempty"`
	SubmittedAt    *time.Time          `json:"submitted_at,omitempty"`
	ApprovedBy     string              `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time          `json:"approved_at,omitempty"`
	Version        int                 `json:"version"`
}

// RecordCollectionResponse is the updated sheet and the ledger posting.
type RecordCollectionResponse struct {
	Sheet   SheetResponse       `json:"sheet"`
	Posting PostPaymentResponse `json:"posting"`
}

// ListSheetsResponse lists sheets newest day first.
type ListSheetsResponse struct {
	Sheets []SheetResponse `json:"sheets"`
}
