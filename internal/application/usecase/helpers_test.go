package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fanders/microfinance/internal/application/dto"
	"github.com/fanders/microfinance/internal/application/usecase"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/infrastructure/clock"
	"github.com/fanders/microfinance/internal/infrastructure/memory"
	"github.com/fanders/microfinance/pkg/testutil"
)

// ledger bundles the use cases over one in-memory store and a stopped clock
// at 09:00 on testutil.BusinessDay.
type ledger struct {
	store *memory.Store
	clock *clock.Fixed
	terms model.LoanTerms

	apply    *usecase.ApplyLoanUseCase
	approve  *usecase.ApproveLoanUseCase
	disburse *usecase.DisburseLoanUseCase
	markDef  *usecase.MarkLoanDefaultedUseCase
	getLoan  *usecase.GetLoanUseCase
	post     *usecase.PostPaymentUseCase
	payments *usecase.ListPaymentsUseCase

	openDay  *usecase.OpenBlotterUseCase
	refresh  *usecase.RefreshBlotterUseCase
	expense  *usecase.AddExpenseUseCase
	finalize *usecase.FinalizeBlotterUseCase
	rangeRep *usecase.GetBlotterRangeUseCase
	position *usecase.GetCashPositionUseCase
	recalc   *usecase.RecalculateBlottersUseCase

	newSheet  *usecase.CreateSheetUseCase
	addLoans  *usecase.AddSheetLoansUseCase
	collect   *usecase.RecordCollectionUseCase
	submit    *usecase.SubmitSheetUseCase
	signOff   *usecase.ApproveSheetUseCase
	getSheet  *usecase.GetSheetUseCase
	listSheet *usecase.ListSheetsUseCase
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	terms := model.DefaultLoanTerms()
	calc, err := model.NewAmortizationCalculator(terms)
	require.NoError(t, err)

	store := memory.NewStore()
	clk := clock.NewFixed(testutil.BusinessDay.Add(9 * time.Hour))
	logger := discardLogger()
	post := usecase.NewPostPaymentUseCase(store, clk, nil, logger)

	return &ledger{
		store: store,
		clock: clk,
		terms: terms,

		apply:    usecase.NewApplyLoanUseCase(calc, store, clk, nil, logger),
		approve:  usecase.NewApproveLoanUseCase(store, clk, nil, logger),
		disburse: usecase.NewDisburseLoanUseCase(store, clk, nil, logger),
		markDef:  usecase.NewMarkLoanDefaultedUseCase(store, clk, nil, logger),
		getLoan:  usecase.NewGetLoanUseCase(store.Loans()),
		post:     post,
		payments: usecase.NewListPaymentsUseCase(store.Loans()),

		openDay:  usecase.NewOpenBlotterUseCase(store, clk),
		refresh:  usecase.NewRefreshBlotterUseCase(store, clk, logger),
		expense:  usecase.NewAddExpenseUseCase(store, clk, nil, logger),
		finalize: usecase.NewFinalizeBlotterUseCase(store, clk, nil, logger),
		rangeRep: usecase.NewGetBlotterRangeUseCase(store.Blotters()),
		position: usecase.NewGetCashPositionUseCase(store.Blotters(), decimal.NewFromInt(1000)),
		recalc:   usecase.NewRecalculateBlottersUseCase(store, clk, logger),

		newSheet:  usecase.NewCreateSheetUseCase(store, clk, logger),
		addLoans:  usecase.NewAddSheetLoansUseCase(store, clk),
		collect:   usecase.NewRecordCollectionUseCase(store, clk, post),
		submit:    usecase.NewSubmitSheetUseCase(store, clk, logger),
		signOff:   usecase.NewApproveSheetUseCase(store, clk, logger),
		getSheet:  usecase.NewGetSheetUseCase(store.CollectionSheets()),
		listSheet: usecase.NewListSheetsUseCase(store.CollectionSheets()),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// activeLoan applies for, approves and disburses a standard 10,000 loan
// today.
func (l *ledger) activeLoan(t *testing.T) dto.LoanResponse {
	t.Helper()
	ctx := context.Background()

	loan, err := l.apply.Execute(ctx, dto.ApplyLoanRequest{
		ClientID:  testutil.ClientID,
		Principal: decimal.NewFromInt(10000),
		Actor:     testutil.CashierID,
	})
	require.NoError(t, err)

	_, err = l.approve.Execute(ctx, dto.LoanActionRequest{LoanID: loan.ID, Actor: testutil.ManagerID})
	require.NoError(t, err)

	loan, err = l.disburse.Execute(ctx, dto.LoanActionRequest{LoanID: loan.ID, Actor: testutil.CashierID})
	require.NoError(t, err)
	return loan
}

func (l *ledger) pay(t *testing.T, loanID, amt string) dto.PostPaymentResponse {
	t.Helper()
	resp, err := l.post.Execute(context.Background(), dto.PostPaymentRequest{
		LoanID: loanID,
		Amount: amount(amt),
		Actor:  testutil.CashierID,
	})
	require.NoError(t, err)
	return resp
}

func (l *ledger) today() string { return l.clock.Today().String() }
