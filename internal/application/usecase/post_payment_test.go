package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/event"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/pkg/testutil"
)

func TestPostPayment_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("records the payment and refreshes today's collections", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)

		resp := l.pay(t, loan.ID, "854.41")

		testutil.AssertAmount(t, "854.41", resp.Payment.Amount)
		assert.Equal(t, l.today(), resp.Payment.PaymentDate)
		assert.Equal(t, testutil.CashierID, resp.Payment.RecordedBy)
		assert.False(t, resp.Clamped)
		testutil.AssertAmount(t, "854.41", resp.TotalPaid)
		testutil.AssertAmount(t, "11970.59", resp.RemainingBalance)
		assert.Equal(t, "active", resp.LoanStatus)

		blotter, err := l.store.Blotters().GetByDate(ctx, l.clock.Today())
		require.NoError(t, err)
		testutil.AssertAmount(t, "854.41", blotter.TotalCollections())
		testutil.AssertAmount(t, "10000", blotter.TotalReleases())
		testutil.AssertAmount(t, "-9145.59", blotter.ClosingBalance())
	})

	t.Run("clamps the final payment and completes the loan", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		l.pay(t, loan.ID, "12000")

		resp := l.pay(t, loan.ID, "1000")

		assert.True(t, resp.Clamped)
		testutil.AssertAmount(t, "1000", resp.RequestedAmount)
		testutil.AssertAmount(t, "825", resp.Payment.Amount)
		testutil.AssertAmount(t, "12825", resp.TotalPaid)
		assert.True(t, resp.RemainingBalance.IsZero())
		assert.Equal(t, "completed", resp.LoanStatus)

		summary, err := l.getLoan.Execute(ctx, dto.GetLoanRequest{LoanID: loan.ID})
		require.NoError(t, err)
		assert.Equal(t, "completed", summary.Loan.Status)
		assert.Equal(t, l.today(), summary.Loan.CompletionDate)
		assert.Equal(t, 2, summary.PaymentCount)
	})

	t.Run("exact payoff completes without clamping", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)

		resp := l.pay(t, loan.ID, "12825.00")

		assert.False(t, resp.Clamped)
		assert.Equal(t, "completed", resp.LoanStatus)
	})

	t.Run("refuses payments on a completed loan", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		l.pay(t, loan.ID, "12825")

		_, err := l.post.Execute(ctx, dto.PostPaymentRequest{LoanID: loan.ID, Amount: amount("10"), Actor: testutil.CashierID})

		require.ErrorIs(t, err, model.ErrState)
		list, err := l.payments.Execute(ctx, dto.GetLoanRequest{LoanID: loan.ID})
		require.NoError(t, err)
		assert.Len(t, list.Payments, 1)
	})

	t.Run("refuses payments on a loan that is not active", func(t *testing.T) {
		l := newLedger(t)
		app, err := l.apply.Execute(ctx, dto.ApplyLoanRequest{
			ClientID:  testutil.ClientID,
			Principal: decimal.NewFromInt(10000),
			Actor:     testutil.CashierID,
		})
		require.NoError(t, err)

		_, err = l.post.Execute(ctx, dto.PostPaymentRequest{LoanID: app.ID, Amount: amount("100"), Actor: testutil.CashierID})
		require.ErrorIs(t, err, model.ErrState)
	})

	t.Run("rejects invalid amounts", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)

		for _, amt := range []string{"0", "-5", "10.005"} {
			_, err := l.post.Execute(ctx, dto.PostPaymentRequest{LoanID: loan.ID, Amount: amount(amt), Actor: testutil.CashierID})
			assert.ErrorIs(t, err, model.ErrValidation, amt)
		}
	})

	t.Run("fails when loan not found", func(t *testing.T) {
		l := newLedger(t)

		_, err := l.post.Execute(ctx, dto.PostPaymentRequest{LoanID: "missing", Amount: amount("100"), Actor: testutil.CashierID})

		require.ErrorIs(t, err, model.ErrNotFound)
		assert.Contains(t, err.Error(), "find loan")
	})

	t.Run("refuses a finalized day and rolls back", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		_, err := l.finalize.Execute(ctx, dto.BlotterRequest{Actor: testutil.ManagerID})
		require.NoError(t, err)

		_, err = l.post.Execute(ctx, dto.PostPaymentRequest{LoanID: loan.ID, Amount: amount("854.41"), Actor: testutil.CashierID})

		require.ErrorIs(t, err, model.ErrState)
		list, err := l.payments.Execute(ctx, dto.GetLoanRequest{LoanID: loan.ID})
		require.NoError(t, err)
		assert.Empty(t, list.Payments)
	})

	t.Run("writes payment and completion events to the outbox", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		l.pay(t, loan.ID, "12825")

		entries, err := l.store.Outbox().FetchUnpublished(ctx, 0)
		require.NoError(t, err)
		var types []string
		for _, e := range entries {
			types = append(types, e.EventType)
		}
		assert.Equal(t, []string{
			event.TypeLoanApplied,
			event.TypeLoanApproved,
			event.TypeLoanDisbursed,
			event.TypePaymentPosted,
			event.TypeLoanCompleted,
		}, types)
	})
}

func TestPostPayment_ConcurrentPostsNeverOverpay(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	loan := l.activeLoan(t)

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		posted   []decimal.Decimal
		rejected int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := l.post.Execute(ctx, dto.PostPaymentRequest{LoanID: loan.ID, Amount: amount("2000"), Actor: testutil.CashierID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, model.ErrState)
				rejected++
				return
			}
			posted = append(posted, resp.Payment.Amount)
		}()
	}
	wg.Wait()

	assert.Len(t, posted, 7)
	assert.Equal(t, 3, rejected)
	total := decimal.Zero
	for _, p := range posted {
		total = total.Add(p)
	}
	testutil.AssertAmount(t, "12825", total)

	summary, err := l.getLoan.Execute(ctx, dto.GetLoanRequest{LoanID: loan.ID})
	require.NoError(t, err)
	assert.Equal(t, "completed", summary.Loan.Status)
	testutil.AssertAmount(t, "12825", summary.TotalPaid)
}
