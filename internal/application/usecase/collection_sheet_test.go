package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/domain/event"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/pkg/testutil"
)

func (l *ledger) sheetFor(t *testing.T, loanIDs ...string) dto.SheetResponse {
	t.Helper()
	sheet, err := l.newSheet.Execute(context.Background(), dto.CreateSheetRequest{
		OfficerID: testutil.OfficerID,
		LoanIDs:   loanIDs,
		Actor:     testutil.OfficerID,
	})
	require.NoError(t, err)
	return sheet
}

func (l *ledger) collectOn(sheetID, loanID, amt string) (dto.RecordCollectionResponse, error) {
	return l.collect.Execute(context.Background(), dto.RecordCollectionRequest{
		SheetID: sheetID,
		LoanID:  loanID,
		Amount:  amount(amt),
		Actor:   testutil.OfficerID,
	})
}

func TestCreateSheet_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("opens today's sheet with its loans", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)

		sheet := l.sheetFor(t, loan.ID)

		assert.Equal(t, testutil.OfficerID, sheet.OfficerID)
		assert.Equal(t, l.today(), sheet.CollectionDate)
		assert.Equal(t, "draft", sheet.Status)
		require.Len(t, sheet.Items, 1)
		assert.Equal(t, "pending", sheet.Items[0].Status)
		testutil.AssertAmount(t, "854.41", sheet.Items[0].Expected)
		testutil.AssertAmount(t, "854.41", sheet.TotalExpected)
	})

	t.Run("defaults the officer to the caller", func(t *testing.T) {
		l := newLedger(t)

		sheet, err := l.newSheet.Execute(ctx, dto.CreateSheetRequest{Actor: testutil.OfficerID})
		require.NoError(t, err)
		assert.Equal(t, testutil.OfficerID, sheet.OfficerID)
	})

	t.Run("one sheet per officer per day", func(t *testing.T) {
		l := newLedger(t)
		l.sheetFor(t)

		_, err := l.newSheet.Execute(ctx, dto.CreateSheetRequest{OfficerID: testutil.OfficerID, Actor: testutil.ManagerID})
		require.ErrorIs(t, err, model.ErrState)

		other, err := l.newSheet.Execute(ctx, dto.CreateSheetRequest{OfficerID: "user-officer-2", Actor: testutil.ManagerID})
		require.NoError(t, err)
		assert.Equal(t, "user-officer-2", other.OfficerID)
	})

	t.Run("a refused loan creates nothing", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)

		_, err := l.newSheet.Execute(ctx, dto.CreateSheetRequest{
			OfficerID: testutil.OfficerID,
			LoanIDs:   []string{loan.ID, "missing-loan"},
			Actor:     testutil.OfficerID,
		})
		require.ErrorIs(t, err, model.ErrNotFound)

		list, err := l.listSheet.Execute(ctx, dto.ListSheetsRequest{})
		require.NoError(t, err)
		assert.Empty(t, list.Sheets)
	})

	t.Run("rejects future days", func(t *testing.T) {
		l := newLedger(t)

		_, err := l.newSheet.Execute(ctx, dto.CreateSheetRequest{
			Date:  l.clock.Today().AddDays(1).String(),
			Actor: testutil.OfficerID,
		})
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestAddSheetLoans_Execute(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	first, second := l.activeLoan(t), l.activeLoan(t)
	sheet := l.sheetFor(t, first.ID)

	t.Run("adds loans to a draft", func(t *testing.T) {
		out, err := l.addLoans.Execute(ctx, dto.AddSheetLoansRequest{
			SheetID: sheet.ID, LoanIDs: []string{second.ID}, Actor: testutil.OfficerID,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, out.TotalLoans)
		testutil.AssertAmount(t, "1708.82", out.TotalExpected)
	})

	t.Run("rejects a loan already on the sheet", func(t *testing.T) {
		_, err := l.addLoans.Execute(ctx, dto.AddSheetLoansRequest{
			SheetID: sheet.ID, LoanIDs: []string{first.ID}, Actor: testutil.OfficerID,
		})
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("requires at least one loan", func(t *testing.T) {
		_, err := l.addLoans.Execute(ctx, dto.AddSheetLoansRequest{SheetID: sheet.ID, Actor: testutil.OfficerID})
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestRecordCollection_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the payment and marks the line", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		sheet := l.sheetFor(t, loan.ID)

		resp, err := l.collectOn(sheet.ID, loan.ID, "800")
		require.NoError(t, err)

		testutil.AssertAmount(t, "800", resp.Posting.Payment.Amount)
		assert.Equal(t, testutil.OfficerID, resp.Posting.Payment.RecordedBy)
		require.Len(t, resp.Sheet.Items, 1)
		assert.Equal(t, "collected", resp.Sheet.Items[0].Status)
		assert.Equal(t, resp.Posting.Payment.ID, resp.Sheet.Items[0].PaymentID)
		testutil.AssertAmount(t, "800", resp.Sheet.TotalCollected)
		testutil.AssertAmount(t, "93.63", resp.Sheet.CollectionRate)

		payments, err := l.payments.Execute(ctx, dto.GetLoanRequest{LoanID: loan.ID})
		require.NoError(t, err)
		require.Len(t, payments.Payments, 1)

		blotter, err := l.store.Blotters().GetByDate(ctx, l.clock.Today())
		require.NoError(t, err)
		testutil.AssertAmount(t, "800", blotter.TotalCollections())
	})

	t.Run("records the clamped amount and completes the loan", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		l.pay(t, loan.ID, "12000")
		sheet := l.sheetFor(t, loan.ID)
		testutil.AssertAmount(t, "825", sheet.Items[0].Expected)

		resp, err := l.collectOn(sheet.ID, loan.ID, "1000")
		require.NoError(t, err)

		assert.True(t, resp.Posting.Clamped)
		assert.Equal(t, "completed", resp.Posting.LoanStatus)
		testutil.AssertAmount(t, "825", resp.Sheet.Items[0].Collected)
		testutil.AssertAmount(t, "100", resp.Sheet.CollectionRate)
	})

	t.Run("a line is collected once", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		sheet := l.sheetFor(t, loan.ID)
		_, err := l.collectOn(sheet.ID, loan.ID, "854.41")
		require.NoError(t, err)

		_, err = l.collectOn(sheet.ID, loan.ID, "854.41")
		require.ErrorIs(t, err, model.ErrState)

		payments, err := l.payments.Execute(ctx, dto.GetLoanRequest{LoanID: loan.ID})
		require.NoError(t, err)
		assert.Len(t, payments.Payments, 1)
	})

	t.Run("a refused sheet writes no payment", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		sheet := l.sheetFor(t, loan.ID)
		l.clock.AdvanceDays(1)

		_, err := l.collectOn(sheet.ID, loan.ID, "854.41")
		require.ErrorIs(t, err, model.ErrState)

		payments, err := l.payments.Execute(ctx, dto.GetLoanRequest{LoanID: loan.ID})
		require.NoError(t, err)
		assert.Empty(t, payments.Payments)
	})

	t.Run("a refused posting leaves the line pending", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		sheet := l.sheetFor(t, loan.ID)
		l.pay(t, loan.ID, "12825")

		_, err := l.collectOn(sheet.ID, loan.ID, "100")
		require.ErrorIs(t, err, model.ErrState)

		got, err := l.getSheet.Execute(ctx, dto.GetSheetRequest{SheetID: sheet.ID})
		require.NoError(t, err)
		assert.Equal(t, "pending", got.Items[0].Status)
		assert.Equal(t, sheet.Version, got.Version)
	})

	t.Run("loans not on the sheet are not found", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		sheet := l.sheetFor(t)

		_, err := l.collectOn(sheet.ID, loan.ID, "854.41")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("rejects bad amounts before touching the store", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.collectOn("any", "any", "-1")
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("writes sheet and payment events in one unit", func(t *testing.T) {
		l := newLedger(t)
		loan := l.activeLoan(t)
		sheet := l.sheetFor(t, loan.ID)
		_, err := l.collectOn(sheet.ID, loan.ID, "854.41")
		require.NoError(t, err)

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
			event.TypeSheetCreated,
			event.TypePaymentPosted,
			event.TypeSheetCollected,
		}, types)
	})
}

func TestSheetApproval_Execute(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	loan := l.activeLoan(t)
	sheet := l.sheetFor(t, loan.ID)
	_, err := l.collectOn(sheet.ID, loan.ID, "854.41")
	require.NoError(t, err)

	_, err = l.signOff.Execute(ctx, dto.SheetActionRequest{SheetID: sheet.ID, Actor: testutil.ManagerID})
	require.ErrorIs(t, err, model.ErrState, "drafts are approved only after submission")

	submitted, err := l.submit.Execute(ctx, dto.SheetActionRequest{SheetID: sheet.ID, Actor: testutil.OfficerID})
	require.NoError(t, err)
	assert.Equal(t, "submitted", submitted.Status)
	assert.Equal(t, testutil.OfficerID, submitted.SubmittedBy)
	require.NotNil(t, submitted.SubmittedAt)

	_, err = l.addLoans.Execute(ctx, dto.AddSheetLoansRequest{
		SheetID: sheet.ID, LoanIDs: []string{l.activeLoan(t).ID}, Actor: testutil.OfficerID,
	})
	require.ErrorIs(t, err, model.ErrState)

	approved, err := l.signOff.Execute(ctx, dto.SheetActionRequest{SheetID: sheet.ID, Actor: testutil.ManagerID})
	require.NoError(t, err)
	assert.Equal(t, "approved", approved.Status)
	assert.Equal(t, testutil.ManagerID, approved.ApprovedBy)

	t.Run("lists by status", func(t *testing.T) {
		list, err := l.listSheet.Execute(ctx, dto.ListSheetsRequest{Status: "approved", OfficerID: testutil.OfficerID})
		require.NoError(t, err)
		require.Len(t, list.Sheets, 1)
		assert.Equal(t, sheet.ID, list.Sheets[0].ID)

		list, err = l.listSheet.Execute(ctx, dto.ListSheetsRequest{Status: "draft"})
		require.NoError(t, err)
		assert.Empty(t, list.Sheets)
	})

	t.Run("rejects bad filters", func(t *testing.T) {
		_, err := l.listSheet.Execute(ctx, dto.ListSheetsRequest{Status: "closed"})
		assert.ErrorIs(t, err, model.ErrValidation)

		_, err = l.listSheet.Execute(ctx, dto.ListSheetsRequest{From: "2026-03-05", To: "2026-03-01"})
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}
