package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fanders/microfinance/internal/domain/event"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/events"
)

// recordEvents writes evts to the outbox of the current unit.
func recordEvents(ctx context.Context, s port.Store, evts ...event.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	entries, err := events.NewOutboxEntries(evts)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	if err := s.Outbox().Store(ctx, entries); err != nil {
		return fmt.Errorf("store outbox: %w", err)
	}
	return nil
}

// openBlotter returns the locked blotter for date, creating it when absent.
// A new blotter carries forward the prior day's closing balance only if that
// day was finalized.
func openBlotter(ctx context.Context, s port.Store, date valueobject.BusinessDate, by model.Actor, now time.Time) (model.CashBlotter, error) {
	b, err := s.Blotters().GetByDateForUpdate(ctx, date)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.CashBlotter{}, fmt.Errorf("load blotter %s: %w", date, err)
	}

	var prior *model.CashBlotter
	p, err := s.Blotters().GetByDate(ctx, date.Prev())
	switch {
	case err == nil:
		prior = &p
	case !errors.Is(err, model.ErrNotFound):
		return model.CashBlotter{}, fmt.Errorf("load blotter %s: %w", date.Prev(), err)
	}

	fresh, err := model.NewCashBlotter(date, prior, by, now)
	if err != nil {
		return model.CashBlotter{}, err
	}
	inserted, err := s.Blotters().Create(ctx, fresh)
	if err != nil {
		return model.CashBlotter{}, fmt.Errorf("create blotter %s: %w", date, err)
	}
	if inserted {
		return fresh, nil
	}

	// Another writer created the day first; lock theirs.
	b, err = s.Blotters().GetByDateForUpdate(ctx, date)
	if err != nil {
		return model.CashBlotter{}, fmt.Errorf("load blotter %s: %w", date, err)
	}
	return b, nil
}

// refreshBlotter re-derives the day's collections and releases from the
// source records. It fails with model.ErrState on a finalized day.
func refreshBlotter(ctx context.Context, s port.Store, b model.CashBlotter, now time.Time) (model.CashBlotter, error) {
	collections, err := s.Loans().SumPaymentsOn(ctx, b.Date())
	if err != nil {
		return b, fmt.Errorf("sum collections: %w", err)
	}
	releases, err := s.Loans().SumReleasesOn(ctx, b.Date())
	if err != nil {
		return b, fmt.Errorf("sum releases: %w", err)
	}
	if b, err = b.WithCollections(collections, now); err != nil {
		return b, err
	}
	return b.WithReleases(releases, now)
}

// requireDraft fails when the day is already locked, before anything that
// would change its totals is written.
func requireDraft(b model.CashBlotter, op string) error {
	if b.IsFinalized() {
		return fmt.Errorf("%w: cannot %s, blotter %s is finalized", model.ErrState, op, b.Date())
	}
	return nil
}

func parseDateOr(s string, fallback valueobject.BusinessDate) (valueobject.BusinessDate, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := valueobject.ParseBusinessDate(s)
	if err != nil {
		return valueobject.BusinessDate{}, fmt.Errorf("%w: %w", model.ErrValidation, err)
	}
	return d, nil
}

func isIntegrity(err error) bool { return errors.Is(err, model.ErrIntegrity) }
