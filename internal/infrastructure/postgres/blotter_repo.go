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

var _ port.BlotterRepository = (*BlotterRepo)(nil)

const blotterColumns = `
	blotter_date, opening_balance, total_collections, total_loan_releases, total_expenses,
	closing_balance, status, created_by, finalized_by, finalized_at, version, created_at, updated_at`

// BlotterRepo implements port.BlotterRepository. One row per business day.
type BlotterRepo struct {
	q pgpkg.Querier
}

// NewBlotterRepo creates a blotter repository over q.
func NewBlotterRepo(q pgpkg.Querier) *BlotterRepo {
	return &BlotterRepo{q: q}
}

func (r *BlotterRepo) GetByDate(ctx context.Context, on valueobject.BusinessDate) (model.CashBlotter, error) {
	return r.get(ctx, on, "")
}

func (r *BlotterRepo) GetByDateForUpdate(ctx context.Context, on valueobject.BusinessDate) (model.CashBlotter, error) {
	return r.get(ctx, on, " FOR UPDATE")
}

func (r *BlotterRepo) get(ctx context.Context, on valueobject.BusinessDate, lock string) (model.CashBlotter, error) {
	row := r.q.QueryRow(ctx, `SELECT `+blotterColumns+` FROM cash_blotters WHERE blotter_date = $1`+lock, on.Time())
	b, err := scanBlotterRow(row)
	if err != nil {
		return model.CashBlotter{}, dbError("blotter "+on.String(), err)
	}
	return b, nil
}

// Create inserts b unless its day already exists. Concurrent creators race
// on the primary key; exactly one of them inserts.
func (r *BlotterRepo) Create(ctx context.Context, b model.CashBlotter) (bool, error) {
	const query = `
		INSERT INTO cash_blotters (` + blotterColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (blotter_date) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, query, blotterArgs(b.Record())...)
	if err != nil {
		return false, dbError("create blotter "+b.Date().String(), err)
	}
	return tag.RowsAffected() == 1, nil
}

// Save updates a Draft row whose version still matches. Finalized rows are
// never rewritten.
func (r *BlotterRepo) Save(ctx context.Context, b model.CashBlotter) error {
	const query = `
		UPDATE cash_blotters SET
			opening_balance     = $2,
			total_collections   = $3,
			total_loan_releases = $4,
			total_expenses      = $5,
			closing_balance     = $6,
			status              = $7,
			finalized_by        = $8,
			finalized_at        = $9,
			version             = version + 1,
			updated_at          = $10
		WHERE blotter_date = $1 AND version = $11 AND status = 'draft'
	`
	rec := b.Record()
	tag, err := r.q.Exec(ctx, query,
		rec.Date.Time(), rec.OpeningBalance, rec.TotalCollections, rec.TotalReleases, rec.TotalExpenses,
		rec.ClosingBalance, rec.Status.String(), rec.FinalizedBy.String(), nullTime(rec.FinalizedAt),
		rec.UpdatedAt, rec.Version,
	)
	if err != nil {
		return dbError("save blotter "+rec.Date.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: blotter %s changed concurrently or is finalized (version %d)",
			model.ErrPersistence, rec.Date, rec.Version)
	}
	return nil
}

func (r *BlotterRepo) ListRange(ctx context.Context, from, to valueobject.BusinessDate) ([]model.CashBlotter, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+blotterColumns+` FROM cash_blotters
		 WHERE blotter_date BETWEEN $1 AND $2
		 ORDER BY blotter_date`,
		from.Time(), to.Time(),
	)
	if err != nil {
		return nil, dbError("query blotters", err)
	}
	defer rows.Close()

	var out []model.CashBlotter
	for rows.Next() {
		b, err := scanBlotterRow(rows)
		if err != nil {
			return nil, dbError("scan blotter", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate blotters", err)
	}
	return out, nil
}

func (r *BlotterRepo) Latest(ctx context.Context) (model.CashBlotter, error) {
	row := r.q.QueryRow(ctx, `SELECT `+blotterColumns+` FROM cash_blotters ORDER BY blotter_date DESC LIMIT 1`)
	b, err := scanBlotterRow(row)
	if err != nil {
		return model.CashBlotter{}, dbError("latest blotter", err)
	}
	return b, nil
}

// ---------------------------------------------------------------------------
// Expenses
// ---------------------------------------------------------------------------

func (r *BlotterRepo) InsertExpense(ctx context.Context, e model.Expense) error {
	const query = `
		INSERT INTO expenses (id, expense_date, amount, description, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.Exec(ctx, query,
		e.ID(), e.Date().Time(), e.Amount(), e.Description(), e.RecordedBy().String(), e.CreatedAt(),
	)
	if err != nil {
		return dbError("insert expense", err)
	}
	return nil
}

func (r *BlotterRepo) ListExpenses(ctx context.Context, on valueobject.BusinessDate) ([]model.Expense, error) {
	const query = `
		SELECT id, expense_date, amount, description, recorded_by, created_at
		FROM expenses
		WHERE expense_date = $1
		ORDER BY created_at, id
	`
	rows, err := r.q.Query(ctx, query, on.Time())
	if err != nil {
		return nil, dbError("query expenses", err)
	}
	defer rows.Close()

	var out []model.Expense
	for rows.Next() {
		var (
			id, description, recordedBy string
			date, createdAt             time.Time
			amount                      decimal.Decimal
		)
		if err := rows.Scan(&id, &date, &amount, &description, &recordedBy, &createdAt); err != nil {
			return nil, dbError("scan expense", err)
		}
		out = append(out, model.ReconstructExpense(
			id, valueobject.BusinessDateOf(date), amount, description, model.Actor(recordedBy), createdAt.UTC(),
		))
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate expenses", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// internal helpers
// ---------------------------------------------------------------------------

func blotterArgs(rec model.CashBlotterRecord) []any {
	return []any{
		rec.Date.Time(), rec.OpeningBalance, rec.TotalCollections, rec.TotalReleases, rec.TotalExpenses,
		rec.ClosingBalance, rec.Status.String(), rec.CreatedBy.String(), rec.FinalizedBy.String(),
		nullTime(rec.FinalizedAt), rec.Version, rec.CreatedAt, rec.UpdatedAt,
	}
}

func scanBlotterRow(s scannable) (model.CashBlotter, error) {
	var (
		rec                               model.CashBlotterRecord
		date                              time.Time
		statusStr, createdBy, finalizedBy string
		finalizedAt                       *time.Time
	)
	err := s.Scan(
		&date, &rec.OpeningBalance, &rec.TotalCollections, &rec.TotalReleases, &rec.TotalExpenses,
		&rec.ClosingBalance, &statusStr, &createdBy, &finalizedBy, &finalizedAt,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return model.CashBlotter{}, err
	}

	status, err := valueobject.NewBlotterStatus(statusStr)
	if err != nil {
		return model.CashBlotter{}, fmt.Errorf("%w: blotter %s: %w", model.ErrIntegrity, date.Format("2006-01-02"), err)
	}
	rec.Date = valueobject.BusinessDateOf(date)
	rec.Status = status
	rec.CreatedBy = model.Actor(createdBy)
	rec.FinalizedBy = model.Actor(finalizedBy)
	rec.FinalizedAt = timeOf(finalizedAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return model.ReconstructCashBlotter(rec), nil
}
