package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	pgpkg "github.com/fanders/microfinance/pkg/postgres"
)

var _ port.LoanRepository = (*LoanRepo)(nil)

const loanColumns = `
	id, client_id, principal, interest_rate, term_weeks, term_months,
	total_interest, insurance_fee, savings_deduction, weekly_payment, total_loan_amount,
	status, application_date, approval_date, disbursement_date, completion_date,
	applied_by, approved_by, disbursed_by, version, created_at, updated_at`

// LoanRepo implements port.LoanRepository.
type LoanRepo struct {
	q pgpkg.Querier
}

// NewLoanRepo creates a loan repository over q.
func NewLoanRepo(q pgpkg.Querier) *LoanRepo {
	return &LoanRepo{q: q}
}

func (r *LoanRepo) Get(ctx context.Context, id string) (model.Loan, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate holds the row lock until the surrounding transaction ends.
func (r *LoanRepo) GetForUpdate(ctx context.Context, id string) (model.Loan, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *LoanRepo) get(ctx context.Context, id, lock string) (model.Loan, error) {
	if !validID(id) {
		return model.Loan{}, fmt.Errorf("%w: loan %s", model.ErrNotFound, id)
	}
	row := r.q.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`+lock, id)
	loan, err := scanLoanRow(row)
	if err != nil {
		return model.Loan{}, dbError("loan "+id, err)
	}
	return loan, nil
}

// Save upserts the loan. An existing row is only updated when its version
// still equals loan.Version(); the stored version is then incremented.
func (r *LoanRepo) Save(ctx context.Context, loan model.Loan) error {
	const query = `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (id) DO UPDATE SET
			status            = EXCLUDED.status,
			approval_date     = EXCLUDED.approval_date,
			disbursement_date = EXCLUDED.disbursement_date,
			completion_date   = EXCLUDED.completion_date,
			approved_by       = EXCLUDED.approved_by,
			disbursed_by      = EXCLUDED.disbursed_by,
			version           = loans.version + 1,
			updated_at        = EXCLUDED.updated_at
		WHERE loans.version = $20
	`
	rec := loan.Record()
	tag, err := r.q.Exec(ctx, query,
		rec.ID, rec.ClientID, rec.Principal, rec.InterestRate, rec.TermWeeks, rec.TermMonths,
		rec.TotalInterest, rec.InsuranceFee, rec.SavingsDeduction, rec.WeeklyPayment, rec.TotalLoanAmount,
		rec.Status.String(), rec.ApplicationDate.Time(), nullDate(rec.ApprovalDate),
		nullDate(rec.DisbursementDate), nullDate(rec.CompletionDate),
		rec.AppliedBy.String(), rec.ApprovedBy.String(), rec.DisbursedBy.String(),
		rec.Version, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return dbError("save loan "+rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: optimistic locking conflict on loan %s (version %d)", model.ErrPersistence, rec.ID, rec.Version)
	}
	return nil
}

func (r *LoanRepo) ListByStatus(ctx context.Context, status valueobject.LoanStatus) ([]model.Loan, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE status = $1 ORDER BY created_at, id`,
		status.String(),
	)
	if err != nil {
		return nil, dbError("query loans", err)
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		loan, err := scanLoanRow(rows)
		if err != nil {
			return nil, dbError("scan loan", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate loans", err)
	}
	return loans, nil
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

func (r *LoanRepo) InsertPayment(ctx context.Context, p model.Payment) error {
	const query = `
		INSERT INTO payments (id, loan_id, amount, payment_date, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.Exec(ctx, query,
		p.ID(), p.LoanID(), p.Amount(), p.PaymentDate().Time(), p.RecordedBy().String(), p.CreatedAt(),
	)
	if err != nil {
		return dbError("insert payment", err)
	}
	return nil
}

func (r *LoanRepo) ListPayments(ctx context.Context, loanID string) ([]model.Payment, error) {
	if !validID(loanID) {
		return nil, nil
	}
	const query = `
		SELECT id, loan_id, amount, payment_date, recorded_by, created_at
		FROM payments
		WHERE loan_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.q.Query(ctx, query, loanID)
	if err != nil {
		return nil, dbError("query payments", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var (
			id, loan, recordedBy string
			amount               decimal.Decimal
			paymentDate          time.Time
			createdAt            time.Time
		)
		if err := rows.Scan(&id, &loan, &amount, &paymentDate, &recordedBy, &createdAt); err != nil {
			return nil, dbError("scan payment", err)
		}
		payments = append(payments, model.ReconstructPayment(
			id, loan, amount, valueobject.BusinessDateOf(paymentDate), model.Actor(recordedBy), createdAt.UTC(),
		))
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate payments", err)
	}
	return payments, nil
}

func (r *LoanRepo) SumPaymentsOn(ctx context.Context, on valueobject.BusinessDate) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE payment_date = $1`, on.Time(),
	).Scan(&total)
	if err != nil {
		return decimal.Zero, dbError("sum payments", err)
	}
	return total, nil
}

func (r *LoanRepo) SumReleasesOn(ctx context.Context, on valueobject.BusinessDate) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(principal), 0) FROM loans WHERE disbursement_date = $1`, on.Time(),
	).Scan(&total)
	if err != nil {
		return decimal.Zero, dbError("sum releases", err)
	}
	return total, nil
}

// ---------------------------------------------------------------------------
// internal helpers
// ---------------------------------------------------------------------------

func scanLoanRow(s scannable) (model.Loan, error) {
	var (
		rec                                      model.LoanRecord
		statusStr                                string
		appliedBy, approvedBy, disbursedBy       string
		applicationDate                          time.Time
		approvalDate, disbursementDate, complete *time.Time
	)
	err := s.Scan(
		&rec.ID, &rec.ClientID, &rec.Principal, &rec.InterestRate, &rec.TermWeeks, &rec.TermMonths,
		&rec.TotalInterest, &rec.InsuranceFee, &rec.SavingsDeduction, &rec.WeeklyPayment, &rec.TotalLoanAmount,
		&statusStr, &applicationDate, &approvalDate, &disbursementDate, &complete,
		&appliedBy, &approvedBy, &disbursedBy, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return model.Loan{}, err
	}

	status, err := valueobject.NewLoanStatus(statusStr)
	if err != nil {
		return model.Loan{}, fmt.Errorf("%w: loan %s: %w", model.ErrIntegrity, rec.ID, err)
	}
	rec.Status = status
	rec.ApplicationDate = valueobject.BusinessDateOf(applicationDate)
	rec.ApprovalDate = dateOf(approvalDate)
	rec.DisbursementDate = dateOf(disbursementDate)
	rec.CompletionDate = dateOf(complete)
	rec.AppliedBy = model.Actor(appliedBy)
	rec.ApprovedBy = model.Actor(approvedBy)
	rec.DisbursedBy = model.Actor(disbursedBy)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return model.ReconstructLoan(rec), nil
}
