package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/internal/infrastructure/memory"
	"github.com/fanders/microfinance/pkg/events"
	"github.com/fanders/microfinance/pkg/testutil"
)

var (
	today = valueobject.BusinessDateOf(testutil.BusinessDay)
	now   = testutil.BusinessDay.Add(9 * time.Hour)
)

func newLoan(t *testing.T) model.Loan {
	t.Helper()
	calc, err := model.NewAmortizationCalculator(model.DefaultLoanTerms())
	require.NoError(t, err)
	sched, err := calc.Compute(decimal.NewFromInt(10000), 17, 4)
	require.NoError(t, err)
	loan, err := model.NewLoanApplication(testutil.ClientID, sched, testutil.CashierID, today, now)
	require.NoError(t, err)
	return loan.ClearEvents()
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	loan := newLoan(t)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		require.NoError(t, s.Loans().Save(ctx, loan))
		_, err := s.Loans().Get(ctx, loan.ID())
		require.NoError(t, err)
		return boom
	})

	require.ErrorIs(t, err, boom)
	_, err = store.Loans().Get(ctx, loan.ID())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	loan := newLoan(t)

	err := store.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		return s.Loans().Save(ctx, loan)
	})

	require.NoError(t, err)
	got, err := store.Loans().Get(ctx, loan.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version())
}

func TestStore_CancelledContextDiscardsUnit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := memory.NewStore()
	loan := newLoan(t)

	err := store.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		cancel()
		return s.Loans().Save(ctx, loan)
	})

	require.ErrorIs(t, err, model.ErrPersistence)
	_, err = store.Loans().Get(context.Background(), loan.ID())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLoanRepo_SaveDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	loan := newLoan(t)
	require.NoError(t, store.Loans().Save(ctx, loan))

	approved, err := loan.Approve(testutil.ManagerID, today, now)
	require.NoError(t, err)
	require.NoError(t, store.Loans().Save(ctx, approved))

	err = store.Loans().Save(ctx, approved)
	require.ErrorIs(t, err, model.ErrPersistence)

	stored, err := store.Loans().Get(ctx, loan.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version())
	assert.Equal(t, "approved", stored.Status().String())
}

func TestBlotterRepo_CreateIsInsertOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	b, err := model.NewCashBlotter(today, nil, testutil.CashierID, now)
	require.NoError(t, err)

	inserted, err := store.Blotters().Create(ctx, b)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Blotters().Create(ctx, b)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestBlotterRepo_RangeAndLatest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	_, err := store.Blotters().Latest(ctx)
	require.ErrorIs(t, err, model.ErrNotFound)

	for _, offset := range []int{2, 0, 1} {
		b, err := model.NewCashBlotter(today.AddDays(offset), nil, testutil.CashierID, now)
		require.NoError(t, err)
		_, err = store.Blotters().Create(ctx, b)
		require.NoError(t, err)
	}

	list, err := store.Blotters().ListRange(ctx, today, today.AddDays(1))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Date().Equal(today))
	assert.True(t, list[1].Date().Equal(today.AddDays(1)))

	latest, err := store.Blotters().Latest(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Date().Equal(today.AddDays(2)))
}

func TestOutbox_FetchAndMark(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	approved, err := newLoan(t).Approve(testutil.ManagerID, today, now)
	require.NoError(t, err)
	entries, err := events.NewOutboxEntries(approved.DomainEvents())
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		return s.Outbox().Store(ctx, entries)
	})
	require.NoError(t, err)

	pending, err := store.Outbox().FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ledger.loan.approved", pending[0].EventType)
	assert.Equal(t, approved.ID(), pending[0].AggregateID)

	require.NoError(t, store.Outbox().MarkPublished(ctx, []string{pending[0].ID}))
	pending, err = store.Outbox().FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func newSheet(t *testing.T, officer string, on valueobject.BusinessDate) model.CollectionSheet {
	t.Helper()
	s, err := model.NewCollectionSheet(model.Actor(officer), on, today, model.Actor(officer), now)
	require.NoError(t, err)
	return s.ClearEvents()
}

func TestSheetRepo_OneSheetPerOfficerPerDay(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	inserted, err := store.CollectionSheets().Create(ctx, newSheet(t, testutil.OfficerID, today))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.CollectionSheets().Create(ctx, newSheet(t, testutil.OfficerID, today))
	require.NoError(t, err)
	assert.False(t, inserted, "same officer, same day")

	inserted, err = store.CollectionSheets().Create(ctx, newSheet(t, "user-officer-2", today))
	require.NoError(t, err)
	assert.True(t, inserted, "another officer")
}

func TestSheetRepo_SaveAndList(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	older := newSheet(t, testutil.OfficerID, today.AddDays(-1))
	current := newSheet(t, testutil.OfficerID, today)
	elsewhere := newSheet(t, "user-officer-2", today)
	for _, s := range []model.CollectionSheet{older, current, elsewhere} {
		_, err := store.CollectionSheets().Create(ctx, s)
		require.NoError(t, err)
	}

	submitted := current
	submitted, err := submitted.AddLoan(activeLoan(t), decimal.Zero, now)
	require.NoError(t, err)
	submitted, err = submitted.Submit(testutil.OfficerID, now)
	require.NoError(t, err)
	require.NoError(t, store.CollectionSheets().Save(ctx, submitted))
	assert.ErrorIs(t, store.CollectionSheets().Save(ctx, submitted), model.ErrPersistence, "stale version")

	got, err := store.CollectionSheets().Get(ctx, current.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version())
	assert.Len(t, got.Items(), 1)

	mine, err := store.CollectionSheets().List(ctx, port.CollectionSheetFilter{Officer: testutil.OfficerID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, current.ID(), mine[0].ID(), "newest day first")

	pending, err := store.CollectionSheets().List(ctx, port.CollectionSheetFilter{Status: valueobject.SheetStatusSubmitted})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, current.ID(), pending[0].ID())

	past, err := store.CollectionSheets().List(ctx, port.CollectionSheetFilter{To: today.AddDays(-1)})
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, older.ID(), past[0].ID())

	_, err = store.CollectionSheets().Get(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func activeLoan(t *testing.T) model.Loan {
	t.Helper()
	loan, err := newLoan(t).Approve(testutil.ManagerID, today, now)
	require.NoError(t, err)
	loan, err = loan.Disburse(testutil.CashierID, today, now)
	require.NoError(t, err)
	return loan.ClearEvents()
}
