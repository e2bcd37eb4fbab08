package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	pgpkg "github.com/fanders/microfinance/pkg/postgres"
)

var _ port.CollectionSheetRepository = (*SheetRepo)(nil)

const sheetColumns = `
	id, officer_id, collection_date, status, created_by, submitted_by, submitted_at,
	approved_by, approved_at, version, created_at, updated_at`

const sheetItemColumns = `
	loan_id, client_id, expected, collected, payment_id, collected_by, collected_at`

// SheetRepo implements port.CollectionSheetRepository. Lines live in
// collection_sheet_items and are written with their sheet; Save is meant to
// run inside a unit of work.
type SheetRepo struct {
	q pgpkg.Querier
}

// NewSheetRepo creates a collection sheet repository over q.
func NewSheetRepo(q pgpkg.Querier) *SheetRepo {
	return &SheetRepo{q: q}
}

func (r *SheetRepo) Get(ctx context.Context, id string) (model.CollectionSheet, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate locks the sheet row; its lines are only written through it.
func (r *SheetRepo) GetForUpdate(ctx context.Context, id string) (model.CollectionSheet, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *SheetRepo) get(ctx context.Context, id, lock string) (model.CollectionSheet, error) {
	if !validID(id) {
		return model.CollectionSheet{}, fmt.Errorf("%w: collection sheet %s", model.ErrNotFound, id)
	}
	row := r.q.QueryRow(ctx, `SELECT `+sheetColumns+` FROM collection_sheets WHERE id = $1`+lock, id)
	rec, err := scanSheetRow(row)
	if err != nil {
		return model.CollectionSheet{}, dbError("collection sheet "+id, err)
	}
	if rec.Items, err = r.items(ctx, id); err != nil {
		return model.CollectionSheet{}, err
	}
	return model.ReconstructCollectionSheet(rec), nil
}

// Create inserts the sheet and its lines unless the officer already has a
// sheet for the day. The unique (officer_id, collection_date) constraint
// decides concurrent creators.
func (r *SheetRepo) Create(ctx context.Context, s model.CollectionSheet) (bool, error) {
	const query = `
		INSERT INTO collection_sheets (` + sheetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (officer_id, collection_date) DO NOTHING
	`
	rec := s.Record()
	tag, err := r.q.Exec(ctx, query,
		rec.ID, rec.Officer.String(), rec.CollectionDate.Time(), rec.Status.String(), rec.CreatedBy.String(),
		rec.SubmittedBy.String(), nullTime(rec.SubmittedAt), rec.ApprovedBy.String(), nullTime(rec.ApprovedAt),
		rec.Version, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return false, dbError("create collection sheet", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, r.upsertItems(ctx, rec)
}

// Save updates the sheet when its version still matches and upserts every
// line. Lines are never removed from a sheet.
func (r *SheetRepo) Save(ctx context.Context, s model.CollectionSheet) error {
	const query = `
		UPDATE collection_sheets SET
			status       = $2,
			submitted_by = $3,
			submitted_at = $4,
			approved_by  = $5,
			approved_at  = $6,
			version      = version + 1,
			updated_at   = $7
		WHERE id = $1 AND version = $8
	`
	rec := s.Record()
	tag, err := r.q.Exec(ctx, query,
		rec.ID, rec.Status.String(), rec.SubmittedBy.String(), nullTime(rec.SubmittedAt),
		rec.ApprovedBy.String(), nullTime(rec.ApprovedAt), rec.UpdatedAt, rec.Version,
	)
	if err != nil {
		return dbError("save collection sheet "+rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: collection sheet %s changed concurrently (version %d)", model.ErrPersistence, rec.ID, rec.Version)
	}
	return r.upsertItems(ctx, rec)
}

func (r *SheetRepo) List(ctx context.Context, f port.CollectionSheetFilter) ([]model.CollectionSheet, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Officer != "" {
		add("officer_id = $%d", f.Officer.String())
	}
	if !f.Status.IsZero() {
		add("status = $%d", f.Status.String())
	}
	if !f.From.IsZero() {
		add("collection_date >= $%d", f.From.Time())
	}
	if !f.To.IsZero() {
		add("collection_date <= $%d", f.To.Time())
	}

	query := `SELECT ` + sheetColumns + ` FROM collection_sheets`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY collection_date DESC, created_at DESC`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("query collection sheets", err)
	}
	var recs []model.CollectionSheetRecord
	for rows.Next() {
		rec, err := scanSheetRow(rows)
		if err != nil {
			rows.Close()
			return nil, dbError("scan collection sheet", err)
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate collection sheets", err)
	}

	out := make([]model.CollectionSheet, 0, len(recs))
	for _, rec := range recs {
		if rec.Items, err = r.items(ctx, rec.ID); err != nil {
			return nil, err
		}
		out = append(out, model.ReconstructCollectionSheet(rec))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Lines
// ---------------------------------------------------------------------------

func (r *SheetRepo) items(ctx context.Context, sheetID string) ([]model.CollectionItem, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+sheetItemColumns+` FROM collection_sheet_items WHERE sheet_id = $1 ORDER BY position`, sheetID)
	if err != nil {
		return nil, dbError("query collection sheet items", err)
	}
	defer rows.Close()

	var out []model.CollectionItem
	for rows.Next() {
		var (
			it          model.CollectionItem
			paymentID   *string
			collectedBy string
			collectedAt *time.Time
		)
		if err := rows.Scan(&it.LoanID, &it.ClientID, &it.Expected, &it.Collected,
			&paymentID, &collectedBy, &collectedAt); err != nil {
			return nil, dbError("scan collection sheet item", err)
		}
		if paymentID != nil {
			it.PaymentID = *paymentID
		}
		it.CollectedBy = model.Actor(collectedBy)
		it.CollectedAt = timeOf(collectedAt)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate collection sheet items", err)
	}
	return out, nil
}

func (r *SheetRepo) upsertItems(ctx context.Context, rec model.CollectionSheetRecord) error {
	const query = `
		INSERT INTO collection_sheet_items (sheet_id, position, ` + sheetItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sheet_id, loan_id) DO UPDATE SET
			collected    = EXCLUDED.collected,
			payment_id   = EXCLUDED.payment_id,
			collected_by = EXCLUDED.collected_by,
			collected_at = EXCLUDED.collected_at
	`
	for i, it := range rec.Items {
		var paymentID *string
		if it.PaymentID != "" {
			paymentID = &it.PaymentID
		}
		_, err := r.q.Exec(ctx, query,
			rec.ID, i, it.LoanID, it.ClientID, it.Expected, it.Collected,
			paymentID, it.CollectedBy.String(), nullTime(it.CollectedAt),
		)
		if err != nil {
			return dbError("save collection sheet item "+it.LoanID, err)
		}
	}
	return nil
}

func scanSheetRow(s scannable) (model.CollectionSheetRecord, error) {
	var (
		rec                                               model.CollectionSheetRecord
		date                                              time.Time
		officer, statusStr, createdBy, submittedBy, apprv string
		submittedAt, approvedAt                           *time.Time
	)
	err := s.Scan(
		&rec.ID, &officer, &date, &statusStr, &createdBy, &submittedBy, &submittedAt,
		&apprv, &approvedAt, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return model.CollectionSheetRecord{}, err
	}

	status, err := valueobject.NewSheetStatus(statusStr)
	if err != nil {
		return model.CollectionSheetRecord{}, fmt.Errorf("%w: collection sheet %s: %w", model.ErrIntegrity, rec.ID, err)
	}
	rec.Officer = model.Actor(officer)
	rec.CollectionDate = valueobject.BusinessDateOf(date)
	rec.Status = status
	rec.CreatedBy = model.Actor(createdBy)
	rec.SubmittedBy = model.Actor(submittedBy)
	rec.SubmittedAt = timeOf(submittedAt)
	rec.ApprovedBy = model.Actor(apprv)
	rec.ApprovedAt = timeOf(approvedAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}
