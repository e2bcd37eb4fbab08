//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/application/usecase"
	"github.com/fanders/microfinance/internal/domain/event"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/internal/infrastructure/clock"
	"github.com/fanders/microfinance/internal/infrastructure/postgres"
	"github.com/fanders/microfinance/pkg/observability"
	"github.com/fanders/microfinance/pkg/testutil"
)

var tables = []string{
	"collection_sheet_items", "collection_sheets", "outbox", "expenses", "payments", "cash_blotters", "loans",
}

type harness struct {
	pg    *testutil.PostgresContainer
	store *postgres.Store
	tx    *postgres.TxManager
	clock *clock.Fixed
	calc  *model.AmortizationCalculator
}

func setup(t *testing.T) *harness {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	ctx := context.Background()

	pg := testutil.NewPostgresContainer(ctx, t)
	pg.RunMigrations(t, postgres.Migrations, postgres.MigrationsDir)

	calc, err := model.NewAmortizationCalculator(model.DefaultLoanTerms())
	require.NoError(t, err)

	logger := quietLogger()
	return &harness{
		pg:    pg,
		store: postgres.NewStore(pg.Pool),
		tx:    postgres.NewTxManager(pg.Pool, 5*time.Second, logger),
		clock: clock.NewFixed(testutil.BusinessDay.Add(9 * time.Hour)),
		calc:  calc,
	}
}

func quietLogger() *slog.Logger {
	return observability.InitLogger(observability.LogConfig{Level: "error", Output: io.Discard})
}

func (h *harness) activeLoan(t *testing.T) dto.LoanResponse {
	t.Helper()
	ctx := context.Background()
	logger := quietLogger()

	loan, err := usecase.NewApplyLoanUseCase(h.calc, h.tx, h.clock, nil, logger).Execute(ctx, dto.ApplyLoanRequest{
		ClientID:  testutil.ClientID,
		Principal: decimal.NewFromInt(10000),
		Actor:     testutil.CashierID,
	})
	require.NoError(t, err)

	_, err = usecase.NewApproveLoanUseCase(h.tx, h.clock, nil, logger).Execute(ctx,
		dto.LoanActionRequest{LoanID: loan.ID, Actor: testutil.ManagerID})
	require.NoError(t, err)

	loan, err = usecase.NewDisburseLoanUseCase(h.tx, h.clock, nil, logger).Execute(ctx,
		dto.LoanActionRequest{LoanID: loan.ID, Actor: testutil.CashierID})
	require.NoError(t, err)
	return loan
}

func TestStore_LoanLifecycleAndPayments(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	logger := quietLogger()
	post := usecase.NewPostPaymentUseCase(h.tx, h.clock, nil, logger)

	t.Run("posting updates loan, payments and blotter together", func(t *testing.T) {
		h.pg.Truncate(t, tables...)
		loan := h.activeLoan(t)

		resp, err := post.Execute(ctx, dto.PostPaymentRequest{
			LoanID: loan.ID, Amount: decimal.RequireFromString("854.41"), Actor: testutil.CashierID,
		})
		require.NoError(t, err)
		testutil.AssertAmount(t, "11970.59", resp.RemainingBalance)

		payments, err := h.store.Loans().ListPayments(ctx, loan.ID)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		testutil.AssertAmount(t, "854.41", payments[0].Amount())

		today := h.clock.Today()
		b, err := h.store.Blotters().GetByDate(ctx, today)
		require.NoError(t, err)
		testutil.AssertAmount(t, "854.41", b.TotalCollections())
		testutil.AssertAmount(t, "10000", b.TotalReleases())
		testutil.AssertAmount(t, "-9145.59", b.ClosingBalance())
	})

	t.Run("overpayment is clamped and completes the loan", func(t *testing.T) {
		h.pg.Truncate(t, tables...)
		loan := h.activeLoan(t)

		resp, err := post.Execute(ctx, dto.PostPaymentRequest{
			LoanID: loan.ID, Amount: decimal.NewFromInt(20000), Actor: testutil.CashierID,
		})
		require.NoError(t, err)
		assert.True(t, resp.Clamped)
		assert.Equal(t, valueobject.LoanStatusCompleted.String(), resp.LoanStatus)

		stored, err := h.store.Loans().Get(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.LoanStatusCompleted, stored.Status())
		assert.True(t, stored.CompletionDate().Equal(h.clock.Today()))

		_, err = post.Execute(ctx, dto.PostPaymentRequest{
			LoanID: loan.ID, Amount: decimal.NewFromInt(1), Actor: testutil.CashierID,
		})
		assert.ErrorIs(t, err, model.ErrState)
	})

	t.Run("concurrent postings never exceed the total", func(t *testing.T) {
		h.pg.Truncate(t, tables...)
		loan := h.activeLoan(t)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = post.Execute(ctx, dto.PostPaymentRequest{
					LoanID: loan.ID, Amount: decimal.NewFromInt(2000), Actor: testutil.CashierID,
				})
			}()
		}
		wg.Wait()

		payments, err := h.store.Loans().ListPayments(ctx, loan.ID)
		require.NoError(t, err)
		testutil.AssertAmount(t, "12825", model.TotalPaid(payments))

		stored, err := h.store.Loans().Get(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.LoanStatusCompleted, stored.Status())
	})

	t.Run("unknown and malformed ids are not found", func(t *testing.T) {
		_, err := h.store.Loans().Get(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = h.store.Loans().Get(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestLoanRepo_StaleVersionIsRejected(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	sched, err := h.calc.Compute(decimal.NewFromInt(10000), 17, 4)
	require.NoError(t, err)
	today := h.clock.Today()
	loan, err := model.NewLoanApplication(testutil.ClientID, sched, testutil.CashierID, today, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, h.store.Loans().Save(ctx, loan))

	approved, err := loan.Approve(testutil.ManagerID, today, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, h.store.Loans().Save(ctx, approved))

	// second writer still holds the original version
	err = h.store.Loans().Save(ctx, approved)
	assert.ErrorIs(t, err, model.ErrPersistence)

	stored, err := h.store.Loans().Get(ctx, loan.ID())
	require.NoError(t, err)
	assert.Equal(t, loan.Version()+1, stored.Version())
	assert.Equal(t, valueobject.LoanStatusApproved, stored.Status())
}

func TestBlotterRepo(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	now := h.clock.Now()
	today := h.clock.Today()

	t.Run("create inserts once per date", func(t *testing.T) {
		h.pg.Truncate(t, tables...)
		b, err := model.NewCashBlotter(today, nil, testutil.CashierID, now)
		require.NoError(t, err)

		created, err := h.store.Blotters().Create(ctx, b)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = h.store.Blotters().Create(ctx, b)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("stale draft cannot overwrite a finalized row", func(t *testing.T) {
		h.pg.Truncate(t, tables...)
		b, err := model.NewCashBlotter(today, nil, testutil.CashierID, now)
		require.NoError(t, err)
		_, err = h.store.Blotters().Create(ctx, b)
		require.NoError(t, err)

		fin, err := b.Finalize(testutil.ManagerID, now)
		require.NoError(t, err)
		require.NoError(t, h.store.Blotters().Save(ctx, fin))

		stored, err := h.store.Blotters().GetByDate(ctx, today)
		require.NoError(t, err)
		assert.True(t, stored.IsFinalized())
		assert.Equal(t, model.Actor(testutil.ManagerID), stored.FinalizedBy())

		stale, err := b.WithCollections(decimal.NewFromInt(5), now)
		require.NoError(t, err)
		assert.ErrorIs(t, h.store.Blotters().Save(ctx, stale), model.ErrPersistence)
	})

	t.Run("range, latest and expenses", func(t *testing.T) {
		h.pg.Truncate(t, tables...)
		for i := range 3 {
			b, err := model.NewCashBlotter(today.AddDays(i), nil, testutil.CashierID, now)
			require.NoError(t, err)
			_, err = h.store.Blotters().Create(ctx, b)
			require.NoError(t, err)
		}

		got, err := h.store.Blotters().ListRange(ctx, today, today.AddDays(1))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].Date().Equal(today))

		latest, err := h.store.Blotters().Latest(ctx)
		require.NoError(t, err)
		assert.True(t, latest.Date().Equal(today.AddDays(2)))

		e, err := model.NewExpense(today, decimal.RequireFromString("125.50"), "snacks", testutil.CashierID, now)
		require.NoError(t, err)
		require.NoError(t, h.store.Blotters().InsertExpense(ctx, e))

		lines, err := h.store.Blotters().ListExpenses(ctx, today)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		testutil.AssertAmount(t, "125.50", lines[0].Amount())
		assert.Equal(t, "snacks", lines[0].Description())
	})

	t.Run("latest on an empty table is not found", func(t *testing.T) {
		h.pg.Truncate(t, tables...)
		_, err := h.store.Blotters().Latest(ctx)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestTxManager_RollsBackWholeUnit(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.pg.Truncate(t, tables...)

	b, err := model.NewCashBlotter(h.clock.Today(), nil, testutil.CashierID, h.clock.Now())
	require.NoError(t, err)

	err = h.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		if _, err := s.Blotters().Create(ctx, b); err != nil {
			return err
		}
		return model.ErrState
	})
	require.ErrorIs(t, err, model.ErrState)

	_, err = h.store.Blotters().GetByDate(ctx, h.clock.Today())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOutboxRepo(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.pg.Truncate(t, tables...)
	loan := h.activeLoan(t)

	var pending []string
	err := h.tx.WithinTx(ctx, func(ctx context.Context, s port.Store) error {
		entries, err := s.Outbox().FetchUnpublished(ctx, 10)
		if err != nil {
			return err
		}
		for _, e := range entries {
			assert.Equal(t, loan.ID, e.AggregateID)
			assert.True(t, json.Valid(e.Payload))
			pending = append(pending, e.ID)
		}
		require.Len(t, entries, 3)
		assert.Equal(t, event.TypeLoanApplied, entries[0].EventType)
		return s.Outbox().MarkPublished(ctx, pending)
	})
	require.NoError(t, err)

	left, err := h.store.Outbox().FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestStore_CollectionSheets(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	logger := quietLogger()
	post := usecase.NewPostPaymentUseCase(h.tx, h.clock, nil, logger)
	create := usecase.NewCreateSheetUseCase(h.tx, h.clock, logger)
	collect := usecase.NewRecordCollectionUseCase(h.tx, h.clock, post)

	t.Run("collection lines persist with their payment", func(t *testing.T) {
		h.pg.Truncate(t, tables...)
		first, second := h.activeLoan(t), h.activeLoan(t)

		sheet, err := create.Execute(ctx, dto.CreateSheetRequest{
			OfficerID: testutil.OfficerID, LoanIDs: []string{first.ID, second.ID}, Actor: testutil.OfficerID,
		})
		require.NoError(t, err)

		resp, err := collect.Execute(ctx, dto.RecordCollectionRequest{
			SheetID: sheet.ID, LoanID: second.ID, Amount: decimal.NewFromInt(500), Actor: testutil.OfficerID,
		})
		require.NoError(t, err)

		stored, err := h.store.CollectionSheets().Get(ctx, sheet.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Version())
		items := stored.Items()
		require.Len(t, items, 2)
		assert.Equal(t, first.ID, items[0].LoanID, "lines keep their order")
		assert.False(t, items[0].IsCollected())
		assert.Equal(t, resp.Posting.Payment.ID, items[1].PaymentID)
		testutil.AssertAmount(t, "500", items[1].Collected)

		listed, err := h.store.CollectionSheets().List(ctx, port.CollectionSheetFilter{Officer: testutil.OfficerID})
		require.NoError(t, err)
		require.Len(t, listed, 1)
	})

	t.Run("one sheet per officer per day", func(t *testing.T) {
		h.pg.Truncate(t, tables...)
		_, err := create.Execute(ctx, dto.CreateSheetRequest{Actor: testutil.OfficerID})
		require.NoError(t, err)

		_, err = create.Execute(ctx, dto.CreateSheetRequest{Actor: testutil.OfficerID})
		assert.ErrorIs(t, err, model.ErrState)
	})
}
