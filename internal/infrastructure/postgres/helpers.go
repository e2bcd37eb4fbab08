package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/valueobject"
)

// scannable is satisfied by pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// dbError maps a driver failure to the ledger's error kinds. A missing row
// becomes model.ErrNotFound; everything else is model.ErrPersistence.
func dbError(what string, err error) error {
	if hasKind(err) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", model.ErrNotFound, what)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrPersistence, what, err)
}

// validID reports whether id can address a UUID column. Anything else can
// never match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// nullDate maps the zero BusinessDate to SQL NULL.
func nullDate(d valueobject.BusinessDate) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time()
	return &t
}

func dateOf(t *time.Time) valueobject.BusinessDate {
	if t == nil {
		return valueobject.BusinessDate{}
	}
	return valueobject.BusinessDateOf(*t)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
