package model_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/valueobject"
	"github.com/fanders/microfinance/pkg/testutil"
)

var (
	today   = valueobject.BusinessDateOf(testutil.BusinessDay)
	now     = testutil.BusinessDay.Add(9 * time.Hour)
	cashier = model.Actor(testutil.CashierID)
	manager = model.Actor(testutil.ManagerID)
	officer = model.Actor(testutil.OfficerID)
)

func day(n int) valueobject.BusinessDate { return today.AddDays(n) }

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newActiveLoan walks a standard 10,000 loan through approval and
// disbursement on today.
func newActiveLoan(t *testing.T) model.Loan {
	t.Helper()
	loan := newApplication(t)
	loan, err := loan.Approve(manager, today, now)
	require.NoError(t, err)
	loan, err = loan.Disburse(cashier, today, now)
	require.NoError(t, err)
	return loan.ClearEvents()
}

func newApplication(t *testing.T) model.Loan {
	t.Helper()
	calc, err := model.NewAmortizationCalculator(model.DefaultLoanTerms())
	require.NoError(t, err)
	sched, err := calc.Compute(decimal.NewFromInt(10000), 17, 4)
	require.NoError(t, err)
	loan, err := model.NewLoanApplication(testutil.ClientID, sched, cashier, today, now)
	require.NoError(t, err)
	return loan
}
