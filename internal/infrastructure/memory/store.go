// Package memory is a process-local implementation of the ledger ports. A
// unit of work runs against a private copy of the state behind one mutex and
// replaces the committed state only when it succeeds.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/events"
)

var (
	_ port.TxManager                 = (*Store)(nil)
	_ port.Store                     = (*Store)(nil)
	_ port.LoanRepository            = (*loanRepo)(nil)
	_ port.BlotterRepository         = (*blotterRepo)(nil)
	_ port.CollectionSheetRepository = (*sheetRepo)(nil)
	_ events.OutboxRepository        = (*outboxRepo)(nil)
)

type state struct {
	loans    map[string]model.LoanRecord
	payments []model.Payment
	blotters map[string]model.CashBlotterRecord
	expenses []model.Expense
	sheets   map[string]model.CollectionSheetRecord
	outbox   []events.OutboxEntry
}

func (st *state) clone() *state {
	return &state{
		loans:    maps.Clone(st.loans),
		payments: slices.Clone(st.payments),
		blotters: maps.Clone(st.blotters),
		expenses: slices.Clone(st.expenses),
		sheets:   maps.Clone(st.sheets),
		outbox:   slices.Clone(st.outbox),
	}
}

// access runs fn against some state; the Store locks around the committed
// state, a unit passes its private copy.
type access func(fn func(st *state) error) error

// Store holds the committed state.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: &state{
		loans:    make(map[string]model.LoanRecord),
		blotters: make(map[string]model.CashBlotterRecord),
		sheets:   make(map[string]model.CollectionSheetRecord),
	}}
}

func (s *Store) locked(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Loans returns a repository over the committed state.
func (s *Store) Loans() port.LoanRepository { return &loanRepo{with: s.locked} }

// Blotters returns a repository over the committed state.
func (s *Store) Blotters() port.BlotterRepository { return &blotterRepo{with: s.locked} }

// CollectionSheets returns a repository over the committed state.
func (s *Store) CollectionSheets() port.CollectionSheetRepository { return &sheetRepo{with: s.locked} }

// Outbox returns the outbox over the committed state.
func (s *Store) Outbox() events.OutboxRepository { return &outboxRepo{with: s.locked} }

// WithinTx runs fn with exclusive access to a copy of the state. The copy is
// committed only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, s port.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	work := s.st.clone()
	if err := fn(ctx, &txStore{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	s.st = work
	return nil
}

type txStore struct {
	st *state
}

func (t *txStore) direct(fn func(st *state) error) error { return fn(t.st) }

func (t *txStore) Loans() port.LoanRepository       { return &loanRepo{with: t.direct} }
func (t *txStore) Blotters() port.BlotterRepository { return &blotterRepo{with: t.direct} }
func (t *txStore) Outbox() events.OutboxRepository  { return &outboxRepo{with: t.direct} }

func (t *txStore) CollectionSheets() port.CollectionSheetRepository {
	return &sheetRepo{with: t.direct}
}

// ---------------------------------------------------------------------------
// Loans and payments
// ---------------------------------------------------------------------------

type loanRepo struct {
	with access
}

func (r *loanRepo) Get(_ context.Context, id string) (model.Loan, error) {
	var loan model.Loan
	err := r.with(func(st *state) error {
		rec, ok := st.loans[id]
		if !ok {
			return fmt.Errorf("%w: loan %s", model.ErrNotFound, id)
		}
		loan = model.ReconstructLoan(rec)
		return nil
	})
	return loan, err
}

// GetForUpdate is Get: a unit already holds the store exclusively.
func (r *loanRepo) GetForUpdate(ctx context.Context, id string) (model.Loan, error) {
	return r.Get(ctx, id)
}

func (r *loanRepo) Save(_ context.Context, loan model.Loan) error {
	return r.with(func(st *state) error {
		rec := loan.Record()
		if cur, ok := st.loans[rec.ID]; ok {
			if cur.Version != rec.Version {
				return fmt.Errorf("%w: loan %s version conflict (expected %d)", model.ErrPersistence, rec.ID, rec.Version)
			}
			rec.Version = cur.Version + 1
		}
		st.loans[rec.ID] = rec
		return nil
	})
}

func (r *loanRepo) ListByStatus(_ context.Context, status valueobject.LoanStatus) ([]model.Loan, error) {
	var out []model.Loan
	err := r.with(func(st *state) error {
		for _, rec := range st.loans {
			if rec.Status.Equal(status) {
				out = append(out, model.ReconstructLoan(rec))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out, err
}

func (r *loanRepo) InsertPayment(_ context.Context, p model.Payment) error {
	return r.with(func(st *state) error {
		if _, ok := st.loans[p.LoanID()]; !ok {
			return fmt.Errorf("%w: loan %s", model.ErrNotFound, p.LoanID())
		}
		st.payments = append(st.payments, p)
		return nil
	})
}

func (r *loanRepo) ListPayments(_ context.Context, loanID string) ([]model.Payment, error) {
	var out []model.Payment
	err := r.with(func(st *state) error {
		for _, p := range st.payments {
			if p.LoanID() == loanID {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (r *loanRepo) SumPaymentsOn(_ context.Context, on valueobject.BusinessDate) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.with(func(st *state) error {
		for _, p := range st.payments {
			if p.PaymentDate().Equal(on) {
				total = total.Add(p.Amount())
			}
		}
		return nil
	})
	return total, err
}

func (r *loanRepo) SumReleasesOn(_ context.Context, on valueobject.BusinessDate) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.with(func(st *state) error {
		for _, rec := range st.loans {
			if !rec.DisbursementDate.IsZero() && rec.DisbursementDate.Equal(on) {
				total = total.Add(rec.Principal)
			}
		}
		return nil
	})
	return total, err
}

// ---------------------------------------------------------------------------
// Blotters and expenses
// ---------------------------------------------------------------------------

type blotterRepo struct {
	with access
}

func (r *blotterRepo) GetByDate(_ context.Context, on valueobject.BusinessDate) (model.CashBlotter, error) {
	var b model.CashBlotter
	err := r.with(func(st *state) error {
		rec, ok := st.blotters[on.String()]
		if !ok {
			return fmt.Errorf("%w: blotter %s", model.ErrNotFound, on)
		}
		b = model.ReconstructCashBlotter(rec)
		return nil
	})
	return b, err
}

func (r *blotterRepo) GetByDateForUpdate(ctx context.Context, on valueobject.BusinessDate) (model.CashBlotter, error) {
	return r.GetByDate(ctx, on)
}

func (r *blotterRepo) Create(_ context.Context, b model.CashBlotter) (bool, error) {
	inserted := false
	err := r.with(func(st *state) error {
		key := b.Date().String()
		if _, ok := st.blotters[key]; ok {
			return nil
		}
		st.blotters[key] = b.Record()
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *blotterRepo) Save(_ context.Context, b model.CashBlotter) error {
	return r.with(func(st *state) error {
		rec := b.Record()
		key := rec.Date.String()
		if cur, ok := st.blotters[key]; ok {
			if cur.Version != rec.Version {
				return fmt.Errorf("%w: blotter %s version conflict (expected %d)", model.ErrPersistence, key, rec.Version)
			}
			rec.Version = cur.Version + 1
		}
		st.blotters[key] = rec
		return nil
	})
}

func (r *blotterRepo) ListRange(_ context.Context, from, to valueobject.BusinessDate) ([]model.CashBlotter, error) {
	var out []model.CashBlotter
	err := r.with(func(st *state) error {
		for _, rec := range st.blotters {
			if rec.Date.Before(from) || rec.Date.After(to) {
				continue
			}
			out = append(out, model.ReconstructCashBlotter(rec))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date().Before(out[j].Date()) })
	return out, err
}

func (r *blotterRepo) Latest(_ context.Context) (model.CashBlotter, error) {
	var b model.CashBlotter
	err := r.with(func(st *state) error {
		var latest *model.CashBlotterRecord
		for _, rec := range st.blotters {
			if latest == nil || rec.Date.After(latest.Date) {
				latest = &rec
			}
		}
		if latest == nil {
			return fmt.Errorf("%w: no blotters recorded", model.ErrNotFound)
		}
		b = model.ReconstructCashBlotter(*latest)
		return nil
	})
	return b, err
}

func (r *blotterRepo) InsertExpense(_ context.Context, e model.Expense) error {
	return r.with(func(st *state) error {
		st.expenses = append(st.expenses, e)
		return nil
	})
}

func (r *blotterRepo) ListExpenses(_ context.Context, on valueobject.BusinessDate) ([]model.Expense, error) {
	var out []model.Expense
	err := r.with(func(st *state) error {
		for _, e := range st.expenses {
			if e.Date().Equal(on) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// ---------------------------------------------------------------------------
// Collection sheets
// ---------------------------------------------------------------------------

type sheetRepo struct {
	with access
}

func (r *sheetRepo) Get(_ context.Context, id string) (model.CollectionSheet, error) {
	var sheet model.CollectionSheet
	err := r.with(func(st *state) error {
		rec, ok := st.sheets[id]
		if !ok {
			return fmt.Errorf("%w: collection sheet %s", model.ErrNotFound, id)
		}
		sheet = model.ReconstructCollectionSheet(rec)
		return nil
	})
	return sheet, err
}

func (r *sheetRepo) GetForUpdate(ctx context.Context, id string) (model.CollectionSheet, error) {
	return r.Get(ctx, id)
}

func (r *sheetRepo) Create(_ context.Context, s model.CollectionSheet) (bool, error) {
	inserted := false
	err := r.with(func(st *state) error {
		for _, rec := range st.sheets {
			if rec.Officer == s.Officer() && rec.CollectionDate.Equal(s.CollectionDate()) {
				return nil
			}
		}
		st.sheets[s.ID()] = s.Record()
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *sheetRepo) Save(_ context.Context, s model.CollectionSheet) error {
	return r.with(func(st *state) error {
		rec := s.Record()
		cur, ok := st.sheets[rec.ID]
		if !ok {
			return fmt.Errorf("%w: collection sheet %s", model.ErrNotFound, rec.ID)
		}
		if cur.Version != rec.Version {
			return fmt.Errorf("%w: collection sheet %s version conflict (expected %d)", model.ErrPersistence, rec.ID, rec.Version)
		}
		rec.Version = cur.Version + 1
		st.sheets[rec.ID] = rec
		return nil
	})
}

func (r *sheetRepo) List(_ context.Context, f port.CollectionSheetFilter) ([]model.CollectionSheet, error) {
	var out []model.CollectionSheet
	err := r.with(func(st *state) error {
		for _, rec := range st.sheets {
			switch {
			case f.Officer != "" && rec.Officer != f.Officer,
				!f.Status.IsZero() && !rec.Status.Equal(f.Status),
				!f.From.IsZero() && rec.CollectionDate.Before(f.From),
				!f.To.IsZero() && rec.CollectionDate.After(f.To):
				continue
			}
			out = append(out, model.ReconstructCollectionSheet(rec))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CollectionDate().Equal(out[j].CollectionDate()) {
			return out[i].CollectionDate().After(out[j].CollectionDate())
		}
		return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	return out, err
}

// ---------------------------------------------------------------------------
// Outbox
// ---------------------------------------------------------------------------

type outboxRepo struct {
	with access
}

func (r *outboxRepo) Store(_ context.Context, entries []events.OutboxEntry) error {
	return r.with(func(st *state) error {
		st.outbox = append(st.outbox, entries...)
		return nil
	})
}

func (r *outboxRepo) FetchUnpublished(_ context.Context, batchSize int) ([]events.OutboxEntry, error) {
	var out []events.OutboxEntry
	err := r.with(func(st *state) error {
		for _, e := range st.outbox {
			if e.PublishedAt != nil {
				continue
			}
			out = append(out, e)
			if batchSize > 0 && len(out) == batchSize {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *outboxRepo) MarkPublished(_ context.Context, ids []string) error {
	return r.with(func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].PublishedAt == nil && slices.Contains(ids, st.outbox[i].ID) {
				now := time.Now().UTC()
				st.outbox[i].PublishedAt = &now
			}
		}
		return nil
	})
}
