package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/pkg/testutil"
)

func TestOpenBlotter_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("first day opens at zero", func(t *testing.T) {
		l := newLedger(t)

		b, err := l.openDay.Execute(ctx, dto.BlotterRequest{Actor: testutil.CashierID})

		require.NoError(t, err)
		assert.Equal(t, l.today(), b.Date)
		assert.Equal(t, "draft", b.Status)
		assert.True(t, b.OpeningBalance.IsZero())
		assert.True(t, b.ClosingBalance.IsZero())
	})

	t.Run("is idempotent for an existing day", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.expense.Execute(ctx, dto.AddExpenseRequest{Amount: amount("50"), Description: "fuel", Actor: testutil.CashierID})
		require.NoError(t, err)

		b, err := l.openDay.Execute(ctx, dto.BlotterRequest{Actor: testutil.CashierID})

		require.NoError(t, err)
		testutil.AssertAmount(t, "50", b.TotalExpenses)
	})

	t.Run("carries forward a finalized prior closing", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		l.pay(t, loan.ID, "12825")
		_, err := l.expense.Execute(ctx, dto.AddExpenseRequest{Amount: amount("150.25"), Description: "office supplies", Actor: testutil.CashierID})
		require.NoError(t, err)
		closed, err := l.finalize.Execute(ctx, dto.BlotterRequest{Actor: testutil.ManagerID})
		require.NoError(t, err)
		testutil.AssertAmount(t, "2674.75", closed.ClosingBalance)

		l.clock.AdvanceDays(1)
		b, err := l.openDay.Execute(ctx, dto.BlotterRequest{Actor: testutil.CashierID})

		require.NoError(t, err)
		testutil.AssertAmount(t, "2674.75", b.OpeningBalance)
		testutil.AssertAmount(t, "2674.75", b.ClosingBalance)
	})

	t.Run("restarts at zero after an unfinalized day", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.expense.Execute(ctx, dto.AddExpenseRequest{Amount: amount("80"), Description: "fuel", Actor: testutil.CashierID})
		require.NoError(t, err)

		l.clock.AdvanceDays(1)
		b, err := l.openDay.Execute(ctx, dto.BlotterRequest{Actor: testutil.CashierID})

		require.NoError(t, err)
		assert.True(t, b.OpeningBalance.IsZero())
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.openDay.Execute(ctx, dto.BlotterRequest{Date: "02/03/2026", Actor: testutil.CashierID})
		require.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestAddExpense_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("adds to the day's expenses", func(t *testing.T) {
		l := newLedger(t)

		_, err := l.expense.Execute(ctx, dto.AddExpenseRequest{Amount: amount("100"), Description: "rent", Actor: testutil.CashierID})
		require.NoError(t, err)
		resp, err := l.expense.Execute(ctx, dto.AddExpenseRequest{Amount: amount("25.50"), Description: " snacks ", Actor: testutil.CashierID})

		require.NoError(t, err)
		assert.Equal(t, "snacks", resp.Expense.Description)
		testutil.AssertAmount(t, "125.50", resp.Blotter.TotalExpenses)
		testutil.AssertAmount(t, "-125.50", resp.Blotter.ClosingBalance)

		lines, err := l.store.Blotters().ListExpenses(ctx, l.clock.Today())
		require.NoError(t, err)
		assert.Len(t, lines, 2)
	})

	t.Run("refused on a finalized day", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.openDay.Execute(ctx, dto.BlotterRequest{Actor: testutil.CashierID})
		require.NoError(t, err)
		_, err = l.finalize.Execute(ctx, dto.BlotterRequest{Actor: testutil.ManagerID})
		require.NoError(t, err)

		_, err = l.expense.Execute(ctx, dto.AddExpenseRequest{Amount: amount("10"), Description: "late", Actor: testutil.CashierID})

		require.ErrorIs(t, err, model.ErrState)
		lines, err := l.store.Blotters().ListExpenses(ctx, l.clock.Today())
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("requires a description", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.expense.Execute(ctx, dto.AddExpenseRequest{Amount: amount("10"), Description: "  ", Actor: testutil.CashierID})
		require.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestRefreshBlotter_Execute(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	loan := l.activeLoan(t)
	l.pay(t, loan.ID, "854.41")
	l.pay(t, loan.ID, "854.41")

	first, err := l.refresh.Execute(ctx, dto.BlotterRequest{Actor: testutil.CashierID})
	require.NoError(t, err)
	second, err := l.refresh.Execute(ctx, dto.BlotterRequest{Actor: testutil.CashierID})
	require.NoError(t, err)

	testutil.AssertAmount(t, "1708.82", first.TotalCollections)
	testutil.AssertAmount(t, "10000", first.TotalReleases)
	assert.True(t, first.ClosingBalance.Equal(second.ClosingBalance))
	assert.True(t, first.TotalCollections.Equal(second.TotalCollections))

	_, err = l.finalize.Execute(ctx, dto.BlotterRequest{Actor: testutil.ManagerID})
	require.NoError(t, err)
	_, err = l.refresh.Execute(ctx, dto.BlotterRequest{Actor: testutil.CashierID})
	require.ErrorIs(t, err, model.ErrState)
}

func TestFinalizeBlotter_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("locks a reconciled day", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.expense.Execute(ctx, dto.AddExpenseRequest{Amount: amount("40"), Description: "fuel", Actor: testutil.CashierID})
		require.NoError(t, err)

		b, err := l.finalize.Execute(ctx, dto.BlotterRequest{Actor: testutil.ManagerID})

		require.NoError(t, err)
		assert.Equal(t, "finalized", b.Status)
		assert.Equal(t, testutil.ManagerID, b.FinalizedBy)
		require.NotNil(t, b.FinalizedAt)
	})

	t.Run("refuses a second finalize", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.openDay.Execute(ctx, dto.BlotterRequest{Actor: testutil.CashierID})
		require.NoError(t, err)
		_, err = l.finalize.Execute(ctx, dto.BlotterRequest{Actor: testutil.ManagerID})
		require.NoError(t, err)

		_, err = l.finalize.Execute(ctx, dto.BlotterRequest{Actor: testutil.ManagerID})
		require.ErrorIs(t, err, model.ErrState)
	})

	t.Run("refuses a drifted closing balance", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.expense.Execute(ctx, dto.AddExpenseRequest{Amount: amount("40"), Description: "fuel", Actor: testutil.CashierID})
		require.NoError(t, err)

		stored, err := l.store.Blotters().GetByDate(ctx, l.clock.Today())
		require.NoError(t, err)
		rec := stored.Record()
		rec.ClosingBalance = amount("60")
		require.NoError(t, l.store.Blotters().Save(ctx, model.ReconstructCashBlotter(rec)))

		_, err = l.finalize.Execute(ctx, dto.BlotterRequest{Actor: testutil.ManagerID})

		require.ErrorIs(t, err, model.ErrIntegrity)
		after, err := l.store.Blotters().GetByDate(ctx, l.clock.Today())
		require.NoError(t, err)
		assert.False(t, after.IsFinalized())
	})

	t.Run("day never opened", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.finalize.Execute(ctx, dto.BlotterRequest{Actor: testutil.ManagerID})
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}
